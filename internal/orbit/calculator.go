// Package orbit computes simulated satellite positions.
//
// Positions are a visual approximation for the dashboard map, not physical
// propagation: low orbits follow an inclination-bounded sinusoidal ground
// track whose ascending node regresses with Earth rotation, and geostationary
// satellites wobble around their fixed longitude.
package orbit

import (
	"math"
	"time"
)

// Altitude thresholds (km) at which velocity and default period change.
const (
	MEOThresholdKm = 1000.0
	GEOThresholdKm = 5000.0
)

// earthRotationDegPerMin approximates Earth rotation under a satellite
// (360° per 1440 min), applied to the ascending node every orbit.
const earthRotationDegPerMin = 0.25

// Geostationary wobble amplitudes (degrees). The latitude bound is their sum.
const (
	geoLatAmplitude  = 0.1
	geoLatHarmonic   = 0.02
	geoLngAmplitude  = 0.05
	GEOLatitudeBound = geoLatAmplitude + geoLatHarmonic

	geoVelocityKmS = 3.07
	geoPeriodMin   = 1436.0
)

// classConstants returns velocity (km/s) and default period (min) for altitude.
func classConstants(altitudeKm float64) (velocity, period float64) {
	switch {
	case altitudeKm < MEOThresholdKm:
		return 7.66, 92
	case altitudeKm < GEOThresholdKm:
		return 7.0, 120
	default:
		return 3.87, 720
	}
}

// ClassOf reports the altitude class of s. Geostationary satellites are GEO
// regardless of the declared altitude.
func ClassOf(s Satellite) Class {
	if s.Geostationary {
		return ClassGEO
	}
	switch {
	case s.AltitudeKm < MEOThresholdKm:
		return ClassLEO
	case s.AltitudeKm < GEOThresholdKm:
		return ClassMEO
	default:
		return ClassGEO
	}
}

// Period returns the orbital period used for s in minutes.
func Period(s Satellite) float64 {
	if s.Geostationary && s.FixedLongitude != nil {
		return geoPeriodMin
	}
	if s.PeriodMin > 0 {
		return s.PeriodMin
	}
	_, p := classConstants(s.AltitudeKm)
	return p
}

// Calculate returns the simulated position of s at t. It is a pure function
// of its inputs.
func Calculate(t time.Time, s Satellite) Position {
	if s.Geostationary && s.FixedLongitude != nil {
		return geostationary(t, s, *s.FixedLongitude)
	}
	return lowOrbit(t, s)
}

func geostationary(t time.Time, s Satellite, fixedLng float64) Position {
	minutes := minutesSinceEpoch(t)
	phase := 2*math.Pi*minutes/geoPeriodMin + s.OrbitOffset*math.Pi/180

	lat := geoLatAmplitude*math.Sin(phase) + geoLatHarmonic*math.Sin(3*phase)
	lng := normalizeLng(fixedLng + geoLngAmplitude*math.Cos(phase))

	return Position{
		SatelliteID: s.ID,
		Lat:         lat,
		Lng:         lng,
		AltitudeKm:  s.AltitudeKm,
		VelocityKmS: geoVelocityKmS,
		Timestamp:   t,
	}
}

func lowOrbit(t time.Time, s Satellite) Position {
	velocity, _ := classConstants(s.AltitudeKm)
	period := Period(s)

	minutes := minutesSinceEpoch(t)
	orbits := minutes / period
	orbitNumber := math.Floor(orbits)
	frac := orbits - orbitNumber

	phase := 2*math.Pi*frac + s.OrbitOffset*math.Pi/180
	lat := maxLatitude(s.InclinationDeg) * math.Sin(phase)

	// The ascending node slips west by the Earth rotation accumulated over
	// each completed orbit, and the current orbit drifts continuously.
	rotationPerOrbit := period * earthRotationDegPerMin
	node := s.OrbitOffset - orbitNumber*rotationPerOrbit
	lng := normalizeLng(node + frac*360 - frac*rotationPerOrbit)

	// Slight altitude breathing so the readout is not static.
	alt := s.AltitudeKm + 2*math.Sin(2*phase)

	return Position{
		SatelliteID: s.ID,
		Lat:         lat,
		Lng:         lng,
		AltitudeKm:  alt,
		VelocityKmS: velocity,
		Timestamp:   t,
	}
}

// maxLatitude is the highest latitude reachable with inclination i. Retrograde
// orbits (i > 90°) mirror to 180-i, which never exceeds i.
func maxLatitude(inclinationDeg float64) float64 {
	i := math.Abs(inclinationDeg)
	if i > 90 {
		i = 180 - i
	}
	if i < 0 {
		i = 0
	}
	return i
}

func minutesSinceEpoch(t time.Time) float64 {
	return float64(t.UnixMilli()) / 60000.0
}

// normalizeLng wraps a longitude into (-180, 180].
func normalizeLng(lng float64) float64 {
	lng = math.Mod(lng+180, 360)
	if lng <= 0 {
		lng += 360
	}
	return lng - 180
}
