package orbit

import "time"

// Satellite is a tracked satellite with static, visual-approximation orbital
// parameters.
type Satellite struct {
	ID             string   `json:"id"`
	NORADID        int      `json:"norad_id"`
	Name           string   `json:"name"`
	Color          string   `json:"color"`
	OrbitOffset    float64  `json:"orbit_offset"`    // degrees of phase at the Unix epoch
	AltitudeKm     float64  `json:"altitude_km"`     // mean altitude
	InclinationDeg float64  `json:"inclination_deg"` // bounds the ground-track latitude
	PeriodMin      float64  `json:"period_min"`      // 0 selects the altitude-class default
	Geostationary  bool     `json:"geostationary"`
	FixedLongitude *float64 `json:"fixed_longitude,omitempty"` // required for the GEO branch
	Active         bool     `json:"is_active"`
}

// Position is a satellite's computed sub-satellite point at one instant.
type Position struct {
	SatelliteID string    `json:"satellite_id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	AltitudeKm  float64   `json:"altitude_km"`
	VelocityKmS float64   `json:"velocity_km_s"`
	Timestamp   time.Time `json:"timestamp"`
}

// Class is the altitude class of an orbit.
type Class string

const (
	ClassLEO Class = "LEO"
	ClassMEO Class = "MEO"
	ClassGEO Class = "GEO"
)
