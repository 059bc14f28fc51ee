package catalog

import (
	"strings"

	"github.com/star/satdash/internal/orbit"
)

func longitude(v float64) *float64 { return &v }

// DefaultSatellites returns the satellites tracked at start-up.
func DefaultSatellites() []orbit.Satellite {
	return []orbit.Satellite{
		{ID: "sat-1", NORADID: 25544, Name: "ISS (ZARYA)", Color: "#00f0ff",
			OrbitOffset: 0, AltitudeKm: 408, InclinationDeg: 51.6, PeriodMin: 92.68, Active: true},
		{ID: "sat-2", NORADID: 20580, Name: "HUBBLE", Color: "#ff00f0",
			OrbitOffset: 60, AltitudeKm: 540, InclinationDeg: 28.5, PeriodMin: 95.4, Active: true},
		{ID: "sat-3", NORADID: 40697, Name: "Sentinel-2A", Color: "#60A5FA",
			OrbitOffset: 120, AltitudeKm: 786, InclinationDeg: 98.6, PeriodMin: 100.6, Active: true},
		{ID: "sat-4", NORADID: 49260, Name: "Landsat-9", Color: "#34D399",
			OrbitOffset: 180, AltitudeKm: 705, InclinationDeg: 98.2, PeriodMin: 98.9, Active: true},
		{ID: "sat-5", NORADID: 44804, Name: "CARTOSAT-3", Color: "#EC4899",
			OrbitOffset: 240, AltitudeKm: 509, InclinationDeg: 97.5, PeriodMin: 94.7, Active: true},
		{ID: "sat-6", NORADID: 41752, Name: "INSAT-3DR", Color: "#F59E0B",
			AltitudeKm: 35786, InclinationDeg: 0.1, Geostationary: true, FixedLongitude: longitude(74.0), Active: true},
	}
}

// ISROSatellite is an entry of the static ISRO earth-observation catalogue.
type ISROSatellite struct {
	Name       string `json:"name"`
	NORADID    string `json:"noradId"`
	Type       string `json:"type"`
	Resolution string `json:"resolution"`
	Swath      string `json:"swath"`
	Status     string `json:"status"`
}

// ISROSatellites returns the ISRO catalogue served by /api/isro/satellites.
func ISROSatellites() []ISROSatellite {
	return []ISROSatellite{
		{"CARTOSAT-3", "44804", "Earth Observation", "0.25m", "16 km", "Operational"},
		{"RESOURCESAT-2A", "42063", "Resource Monitoring", "5.8m", "70 km", "Operational"},
		{"RISAT-2B", "44237", "Radar Imaging", "1m", "10 km", "Operational"},
		{"OCEANSAT-3", "54210", "Ocean Monitoring", "250m", "1420 km", "Operational"},
		{"EOS-06", "54501", "Ocean Applications", "40m", "740 km", "Operational"},
	}
}

// FindISRO looks up an ISRO satellite by name, case-insensitively.
func FindISRO(name string) (ISROSatellite, bool) {
	for _, s := range ISROSatellites() {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return ISROSatellite{}, false
}
