package physical

import (
	"math"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// WindUp tracks the accumulated phase wind-up cycles per satellite
// (REDESIGN FLAGS: mutable per-PRN state kept in an explicit struct
// rather than the teacher's package-level sumWind/lastEtime arrays).
// Grounded on t_windUp (pppModel.cpp) / Model_Phw+Sat_Yaw (ppp.go).
type WindUp struct {
	sum      map[prn.Prn]float64
	lastTime map[prn.Prn]gtime.Time
}

// NewWindUp returns an empty wind-up tracker.
func NewWindUp() *WindUp {
	return &WindUp{sum: make(map[prn.Prn]float64), lastTime: make(map[prn.Prn]gtime.Time)}
}

// Value returns the accumulated, unwrapped phase wind-up (cycles) for
// sat at epoch t, given the satellite position rSat and receiver
// position rRec (ECEF, m) and the satellite's Sun-pointing body-frame
// convention (sz = -r̂sat, sy = sz x r̂sun, sx = sy x sz).
func (w *WindUp) Value(t gtime.Time, sat prn.Prn, rRec, rSat gtime.Vec3) float64 {
	if last, ok := w.lastTime[sat]; ok && t.Sub(last) == 0 {
		return w.sum[sat]
	}

	rho := unitVec(gtime.Vec3{rRec[0] - rSat[0], rRec[1] - rSat[1], rRec[2] - rSat[2]})

	sz := unitVec(gtime.Vec3{-rSat[0], -rSat[1], -rSat[2]})
	sun, _ := SunMoonPositionECEF(t)
	xSun := unitVec(sun)
	sy := crossVec(sz, xSun)
	sx := crossVec(sy, sz)

	dipSat := gtime.Vec3{
		sx[0] - rho[0]*dot3(rho, sx) - crossVec(rho, sy)[0],
		sx[1] - rho[1]*dot3(rho, sx) - crossVec(rho, sy)[1],
		sx[2] - rho[2]*dot3(rho, sx) - crossVec(rho, sy)[2],
	}

	lat, lon, _, err := gtime.EcefToGeodetic(rRec)
	if err != nil {
		return w.sum[sat]
	}
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	rx := gtime.Vec3{-sinLat * cosLon, -sinLat * sinLon, cosLat} // local north
	ry := gtime.Vec3{sinLon, -cosLon, 0}                          // local west (-east)

	dipRec := gtime.Vec3{
		rx[0] - rho[0]*dot3(rho, rx) + crossVec(rho, ry)[0],
		rx[1] - rho[1]*dot3(rho, rx) + crossVec(rho, ry)[1],
		rx[2] - rho[2]*dot3(rho, rx) + crossVec(rho, ry)[2],
	}

	alpha := dot3(dipSat, dipRec) / (norm3(dipSat) * norm3(dipRec))
	if alpha > 1.0 {
		alpha = 1.0
	} else if alpha < -1.0 {
		alpha = -1.0
	}
	dphi := math.Acos(alpha) / (2.0 * math.Pi)
	if dot3(rho, crossVec(dipSat, dipRec)) < 0 {
		dphi = -dphi
	}

	if _, ok := w.lastTime[sat]; !ok {
		w.sum[sat] = dphi
	} else {
		w.sum[sat] = math.Floor(w.sum[sat]-dphi+0.5) + dphi
	}
	w.lastTime[sat] = t
	return w.sum[sat]
}

func unitVec(v gtime.Vec3) gtime.Vec3 {
	n := norm3(v)
	if n == 0 {
		return v
	}
	return gtime.Vec3{v[0] / n, v[1] / n, v[2] / n}
}

func crossVec(a, b gtime.Vec3) gtime.Vec3 {
	return gtime.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
