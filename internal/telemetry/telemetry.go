// Package telemetry derives simulated telemetry, fusion metrics and pass
// predictions from the position model.
package telemetry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/star/satdash/internal/orbit"
)

// Telemetry is one satellite's simulated health and position readout.
type Telemetry struct {
	SatelliteID      string      `json:"satellite_id"`
	Name             string      `json:"name"`
	NORADID          int         `json:"norad_id"`
	Class            orbit.Class `json:"orbit_class"`
	Latitude         float64     `json:"latitude"`
	Longitude        float64     `json:"longitude"`
	AltitudeKm       float64     `json:"altitude_km"`
	VelocityKmH      float64     `json:"velocity_kmh"`
	SignalStrength   float64     `json:"signal_strength"`
	BatteryLevel     float64     `json:"battery_level"`
	TemperatureC     float64     `json:"temperature_c"`
	SolarPanelPowerW float64     `json:"solar_panel_power_w"`
	DataRateMbps     float64     `json:"data_rate_mbps"`
	OrbitNumber      int         `json:"orbit_number"`
	Timestamp        time.Time   `json:"timestamp"`
}

// Sample builds telemetry for s at pos. Health values are seeded by the
// NORAD id, so a satellite always reports the same readings.
func Sample(s orbit.Satellite, pos orbit.Position) Telemetry {
	rng := rand.New(rand.NewPCG(uint64(s.NORADID), 0x5a7d))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	return Telemetry{
		SatelliteID:      s.ID,
		Name:             s.Name,
		NORADID:          s.NORADID,
		Class:            orbit.ClassOf(s),
		Latitude:         round(pos.Lat, 6),
		Longitude:        round(pos.Lng, 6),
		AltitudeKm:       round(pos.AltitudeKm, 2),
		VelocityKmH:      round(pos.VelocityKmS*3600, 2),
		SignalStrength:   round(uniform(75, 98), 1),
		BatteryLevel:     round(uniform(85, 100), 1),
		TemperatureC:     round(uniform(-20, 45), 1),
		SolarPanelPowerW: round(uniform(200, 800), 1),
		DataRateMbps:     round(uniform(10, 150), 2),
		OrbitNumber:      10000 + rng.IntN(40001),
		Timestamp:        pos.Timestamp,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
