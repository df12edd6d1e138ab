package physical

import "math"

// rGeoc is the spherical-Earth radius used for the VTEC pierce-point
// geometry, grounded on t_CST::rgeoc (bncutils.h/pppModel.cpp).
const rGeoc = 6.370e6

// factorial is memoized up to the small n the associated Legendre
// function needs (VTEC spherical-harmonic degrees stay single digits).
var factorialCache [21]float64

func init() {
	factorialCache[0] = 1
	for i := 1; i <= 20; i++ {
		factorialCache[i] = factorialCache[i-1] * float64(i)
	}
}

func factorial(n int) float64 {
	if n < 0 {
		return 1
	}
	if n > 20 {
		n = 20
	}
	return factorialCache[n]
}

// associatedLegendre evaluates the unnormalized associated Legendre
// function P_n^m(t), grounded verbatim on associatedLegendreFunction
// (bncutils.cpp).
func associatedLegendre(n, m int, t float64) float64 {
	sum := 0.0
	r := (n - m) / 2
	for k := 0; k <= r; k++ {
		sign := 1.0
		if k%2 == 1 {
			sign = -1.0
		}
		sum += sign * factorial(2*n-2*k) / (factorial(k) * factorial(n-k) * factorial(n-m-2*k)) * math.Pow(t, float64(n-m-2*k))
	}
	fac := math.Pow(2.0, -float64(n)) * math.Pow(1-t*t, float64(m)/2.0)
	return sum * fac
}

// PiercePoint is the ionospheric pierce-point geometry for one VTEC
// layer: psiPP (Earth's central angle to the pierce point), phiPP/lonS
// (pierce-point geographic and Sun-fixed longitude), grounded on
// t_iono::piercePoint (pppModel.cpp).
type PiercePoint struct {
	PsiPP, PhiPP, LambdaPP, LonS float64
}

// ComputePiercePoint evaluates the pierce point of a layer at height
// layerHeight (m) given the station's spherical-earth geocentric
// position (lat, lon, h) and the spherical elevation/azimuth of the
// satellite, at seconds-of-day epoch (for the Sun-fixed longitude
// rotation).
func ComputePiercePoint(layerHeight, geocLat, geocLon, geocH, sphEle, sphAzi, secOfDay float64) PiercePoint {
	q := (rGeoc + geocH) / (rGeoc + layerHeight)
	psiPP := math.Pi/2.0 - sphEle - math.Asin(q*math.Cos(sphEle))
	phiPP := math.Asin(math.Sin(geocLat)*math.Cos(psiPP) + math.Cos(geocLat)*math.Sin(psiPP)*math.Cos(sphAzi))

	var lambdaPP float64
	tanCond := math.Tan(psiPP) * math.Cos(sphAzi)
	if (geocLat > 0 && tanCond > math.Tan(math.Pi/2.0-geocLat)) ||
		(geocLat < 0 && -tanCond > math.Tan(math.Pi/2.0+geocLat)) {
		lambdaPP = geocLon + math.Pi - math.Asin(math.Sin(psiPP)*math.Sin(sphAzi)/math.Cos(phiPP))
	} else {
		lambdaPP = geocLon + math.Asin(math.Sin(psiPP)*math.Sin(sphAzi)/math.Cos(phiPP))
	}

	lonS := math.Mod(lambdaPP+(secOfDay-50400.0)*math.Pi/43200.0, 2*math.Pi)
	return PiercePoint{PsiPP: psiPP, PhiPP: phiPP, LambdaPP: lambdaPP, LonS: lonS}
}

// VTecLayerValue evaluates the vertical TEC spherical-harmonic series
// (C, S indexed [degree][order]) at a pierce point, grounded on
// t_iono::vtecSingleLayerContribution (pppModel.cpp). Negative results
// are clamped to zero, matching the original.
func VTecLayerValue(c, s [][]float64, pp PiercePoint) float64 {
	n := len(c) - 1
	if n < 0 {
		return 0
	}
	vtec := 0.0
	sinPhi := math.Sin(pp.PhiPP)
	for deg := 0; deg <= n; deg++ {
		m := len(c[deg]) - 1
		for ord := 0; ord <= deg && ord <= m; ord++ {
			pnm := associatedLegendre(deg, ord, sinPhi)
			var fac float64
			if ord == 0 {
				fac = math.Sqrt(2.0*float64(deg) + 1.0)
			} else {
				fac = math.Sqrt(2.0 * (2.0*float64(deg) + 1.0) * factorial(deg-ord) / factorial(deg+ord))
			}
			pnm *= fac
			cnm := c[deg][ord] * math.Cos(float64(ord)*pp.LonS)
			snm := 0.0
			if s != nil && deg < len(s) && ord < len(s[deg]) {
				snm = s[deg][ord] * math.Sin(float64(ord)*pp.LonS)
			}
			vtec += (snm + cnm) * pnm
		}
	}
	if vtec < 0 {
		return 0
	}
	return vtec
}

// SlantTEC sums each layer's VTEC contribution along the line of sight,
// grounded on t_iono::stec (pppModel.cpp): vtec * sin(sphEle + psiPP)
// converts the vertical value to along-path TEC for that layer.
func SlantTEC(layers []VTecLayerInput, geocLat, geocLon, geocH, sphEle, sphAzi, secOfDay float64) float64 {
	stec := 0.0
	for _, l := range layers {
		pp := ComputePiercePoint(l.Height, geocLat, geocLon, geocH, sphEle, sphAzi, secOfDay)
		vtec := VTecLayerValue(l.C, l.S, pp)
		stec += vtec * math.Sin(sphEle+pp.PsiPP)
	}
	return stec
}

// VTecLayerInput is the minimal per-layer input SlantTEC needs.
type VTecLayerInput struct {
	Height float64
	C, S   [][]float64
}
