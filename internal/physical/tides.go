package physical

import (
	"math"

	"bncgo/internal/gtime"
)

// Gravitational constants for the tide model, grounded on tides.go's
// GME/GMS/GMM.
const (
	gmEarth = 3.986004415e14
	gmSun   = 1.327124e20
	gmMoon  = 4.902801e12

	reWGS84 = 6378137.0
	au      = 149597870691.0
	d2r     = math.Pi / 180.0
)

func sqr(x float64) float64 { return x * x }

func dot3(a, b gtime.Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func norm3(v gtime.Vec3) float64 { return math.Sqrt(dot3(v, v)) }

// j2000Epoch is 2000-01-01 12:00 UTC, the reference instant for the
// Sun/Moon low-order series and the GMST approximation below.
var j2000Epoch = gtime.Set(2000, 1, 1, 12, 0, 0)

// centuriesSinceJ2000 returns Julian centuries of UT1 (approximated by
// GPS time; the sub-second UT1-UTC offset this ignores is immaterial at
// the arcminute-level accuracy these corrections need).
func centuriesSinceJ2000(t gtime.Time) float64 {
	return t.Sub(j2000Epoch) / 86400.0 / 36525.0
}

// gmstApprox returns Greenwich Mean Sidereal Time (rad) via the IAU 1982
// polynomial in centuries since J2000, a simplified single-rotation
// stand-in for the teacher's full IAU1980 precession/nutation chain
// (Eci2Ecef in common.go) — adequate here since GMST only orients the
// Sun/Moon directions feeding the tide and phase wind-up corrections,
// not a geodetic-grade ECI/ECEF transform.
func gmstApprox(t gtime.Time) float64 {
	secOfDay := math.Mod(t.GpsSec(), 86400.0)
	tc := centuriesSinceJ2000(t) - secOfDay/86400.0/36525.0 // at 0h of the day
	gmstSec := 24110.54841 + 8640184.812866*tc + 0.093104*tc*tc - 6.2e-6*tc*tc*tc + secOfDay*1.00273790935
	const secPerRev = 86400.0
	frac := math.Mod(gmstSec, secPerRev)
	if frac < 0 {
		frac += secPerRev
	}
	return frac / secPerRev * 2.0 * math.Pi
}

// SunMoonPositionECEF returns low-order-series approximate Sun and Moon
// positions in ECEF at time t, grounded on sunmoonpos_eci/SunMoonPos
// (common.go): the satellite-body and tide routines only need
// arc-minute-level sun/moon directions, not full ephemeris accuracy, so
// the teacher forgoes a full planetary theory here.
func SunMoonPositionECEF(t gtime.Time) (sun, moon gtime.Vec3) {
	tt := centuriesSinceJ2000(t)

	ms := 357.5277233 + 35999.05034*tt
	ls := 280.460 + 36000.770*tt + 1.914666471*math.Sin(ms*d2r) + 0.019994643*math.Sin(2.0*ms*d2r)
	rs := au * (1.000140612 - 0.016708617*math.Cos(ms*d2r) - 0.000139589*math.Cos(2.0*ms*d2r))
	eps := 23.439291 - 0.0130042*tt
	sine, cose := math.Sincos(eps * d2r)
	sinl, cosl := math.Sincos(ls * d2r)

	sunEci := gtime.Vec3{rs * cosl, rs * cose * sinl, rs * sine * sinl}

	lm := 218.32 + 481267.883*tt
	pm := 5.13 * math.Sin(d2r*(93.3+483202.0*tt))
	rm := reWGS84 / math.Sin((0.9508+0.0518*math.Cos(tt*360.0*d2r))*d2r+1e-12)
	sinlm, coslm := math.Sincos(lm * d2r)
	sinpm, cospm := math.Sincos(pm * d2r)
	moonEci := gtime.Vec3{
		rm * cospm * coslm,
		rm * (cose*cospm*sinlm - sine*sinpm),
		rm * (sine*cospm*sinlm + cose*sinpm),
	}

	gmst := gmstApprox(t)
	sun = eciToEcefByGmst(sunEci, gmst)
	moon = eciToEcefByGmst(moonEci, gmst)
	return sun, moon
}

func eciToEcefByGmst(v gtime.Vec3, gmst float64) gtime.Vec3 {
	s, c := math.Sincos(gmst)
	return gtime.Vec3{c*v[0] + s*v[1], -s*v[0] + c*v[1], v[2]}
}

// GMST exposes the approximation above for callers (the VTEC local-time
// longitude term and phase wind-up) that need Greenwich sidereal time
// without recomputing Sun/Moon positions.
func GMST(t gtime.Time) float64 { return gmstApprox(t) }

// tidePl computes the step-1 solar/lunar tidal displacement contribution
// at geodetic pos from body rp with gravitational parameter GMp, along
// the station's local vertical unit vector eu, grounded
// verbatim on Tide_pl (tides.go) including the Love/Shida numbers
// H2=0.6078/L2=0.0847 and their degree-3 counterparts.
func tidePl(eu, rp gtime.Vec3, gmp float64, lat, lon float64) gtime.Vec3 {
	const h3, l3 = 0.292, 0.015
	r := norm3(rp)
	if r <= 0 {
		return gtime.Vec3{}
	}
	ep := gtime.Vec3{rp[0] / r, rp[1] / r, rp[2] / r}

	k2 := gmp / gmEarth * sqr(reWGS84) * sqr(reWGS84) / (r * r * r)
	k3 := k2 * reWGS84 / r
	latp := math.Asin(ep[2])
	lonp := math.Atan2(ep[1], ep[0])
	cosp := math.Cos(latp)
	sinl, cosl := math.Sincos(lat)

	p := (3.0*sinl*sinl - 1.0) / 2.0
	h2 := 0.6078 - 0.0006*p
	l2 := 0.0847 + 0.0002*p
	a := dot3(ep, eu)
	dp := k2 * 3.0 * l2 * a
	du := k2 * (h2*(1.5*a*a-0.5) - 3.0*l2*a*a)

	dp += k3 * l3 * (7.5*a*a - 1.5)
	du += k3 * (h3*(2.5*a*a*a-1.5*a) - l3*(7.5*a*a-1.5)*a)

	du += 3.0 / 4.0 * 0.0025 * k2 * math.Sin(2.0*latp) * math.Sin(2.0*lat) * math.Sin(lon-lonp)
	du += 3.0 / 4.0 * 0.0022 * k2 * cosp * cosp * cosl * cosl * math.Sin(2.0*(lon-lonp))

	return gtime.Vec3{
		dp*ep[0] + du*eu[0],
		dp*ep[1] + du*eu[1],
		dp*ep[2] + du*eu[2],
	}
}

// SolidEarthTide returns the ECEF displacement (m) a station at pos
// (lat, lon, ECEF unit vector eu = local vertical) experiences from the
// solid-Earth tide raised by the Sun and Moon, at gmst (rad). Grounded
// on Tide_solid (tides.go); the permanent-deformation removal branch
// (opt&8) is not exercised since the spec models displacement relative
// to a conventional (not tide-free) frame.
func SolidEarthTide(sun, moon gtime.Vec3, lat, lon float64, eu gtime.Vec3, gmst float64) gtime.Vec3 {
	dr1 := tidePl(eu, sun, gmSun, lat, lon)
	dr2 := tidePl(eu, moon, gmMoon, lat, lon)

	sin2l := math.Sin(2.0 * lat)
	du := -0.012 * sin2l * math.Sin(gmst+lon)

	return gtime.Vec3{
		dr1[0] + dr2[0] + du*eu[0],
		dr1[1] + dr2[1] + du*eu[1],
		dr1[2] + dr2[2] + du*eu[2],
	}
}
