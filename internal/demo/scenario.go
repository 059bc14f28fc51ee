package demo

import (
	"time"

	"github.com/star/satdash/internal/zones"
)

// Toast is a transient notification shown by the UI.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"` // info, warning, destructive, success
}

// Effect is the side-effect payload of a step. Nil or empty fields are
// no-ops; a non-nil Zones replaces the current risk zones.
type Effect struct {
	Toast *Toast           `json:"toast,omitempty"`
	Sound string           `json:"sound,omitempty"`
	Zones []zones.RiskZone `json:"zones,omitempty"`
}

// Step is one scripted moment of a scenario.
type Step struct {
	At          time.Duration `json:"at"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Effect      Effect        `json:"effect"`
}

// Scenario is a static, time-ordered script. Steps must be sorted by At.
type Scenario struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Steps    []Step        `json:"steps"`
}

func zone(id, name string, lat, lng, radius float64, sev zones.Severity) zones.RiskZone {
	return zones.RiskZone{ID: id, Name: name, Lat: lat, Lng: lng, RadiusKm: radius, Severity: sev}
}

// FloodScenario is the scripted Assam / Brahmaputra flood walkthrough.
func FloodScenario() Scenario {
	return Scenario{
		ID:       "assam-flood",
		Name:     "Assam Flood Response",
		Duration: 45 * time.Second,
		Steps: []Step{
			{
				At:          0,
				Title:       "Monitoring Active",
				Description: "Satellite constellation tracking the Brahmaputra basin.",
				Effect: Effect{
					Toast: &Toast{Title: "Demo Started", Description: "Monitoring the Brahmaputra basin", Variant: "info"},
					Sound: "ping",
				},
			},
			{
				At:          3 * time.Second,
				Title:       "Heavy Rainfall Detected",
				Description: "INSAT-3DR reports 180 mm of rainfall over 24 hours in upper Assam.",
				Effect: Effect{
					Toast: &Toast{Title: "Heavy Rainfall", Description: "180 mm in 24h over upper Assam", Variant: "warning"},
					Sound: "alert",
					Zones: []zones.RiskZone{
						zone("demo-dibrugarh", "Dibrugarh", 27.47, 94.91, 60, zones.SeverityMedium),
						zone("demo-jorhat", "Jorhat", 26.75, 94.20, 50, zones.SeverityLow),
					},
				},
			},
			{
				At:          7 * time.Second,
				Title:       "River Levels Rising",
				Description: "NDWI change shows the Brahmaputra spreading beyond its banks.",
				Effect: Effect{
					Toast: &Toast{Title: "Water Extent Increasing", Description: "Sentinel-2A NDWI change above threshold", Variant: "warning"},
					Sound: "alert",
					Zones: []zones.RiskZone{
						zone("demo-dibrugarh", "Dibrugarh", 27.47, 94.91, 75, zones.SeverityHigh),
						zone("demo-jorhat", "Jorhat", 26.75, 94.20, 60, zones.SeverityMedium),
						zone("demo-majuli", "Majuli", 26.95, 94.17, 40, zones.SeverityHigh),
					},
				},
			},
			{
				At:          12 * time.Second,
				Title:       "Flood Warning Issued",
				Description: "Critical inundation risk for Majuli and Dibrugarh districts.",
				Effect: Effect{
					Toast: &Toast{Title: "FLOOD WARNING", Description: "Critical risk for Majuli and Dibrugarh", Variant: "destructive"},
					Sound: "siren",
					Zones: []zones.RiskZone{
						zone("demo-dibrugarh", "Dibrugarh", 27.47, 94.91, 90, zones.SeverityCritical),
						zone("demo-jorhat", "Jorhat", 26.75, 94.20, 70, zones.SeverityHigh),
						zone("demo-majuli", "Majuli", 26.95, 94.17, 55, zones.SeverityCritical),
						zone("demo-guwahati", "Guwahati", 26.14, 91.74, 40, zones.SeverityMedium),
					},
				},
			},
			{
				At:          18 * time.Second,
				Title:       "Imaging Pass Scheduled",
				Description: "CARTOSAT-3 tasked for high-resolution imaging on its next pass.",
				Effect: Effect{
					Toast: &Toast{Title: "Satellite Tasked", Description: "CARTOSAT-3 0.25m imaging scheduled", Variant: "info"},
					Sound: "ping",
				},
			},
			{
				At:          24 * time.Second,
				Title:       "Evacuation Zones Identified",
				Description: "Risk analysis marks 12 villages for evacuation.",
				Effect: Effect{
					Toast: &Toast{Title: "Evacuation Advisory", Description: "12 villages in high-risk zones", Variant: "destructive"},
					Sound: "siren",
				},
			},
			{
				At:          32 * time.Second,
				Title:       "Relief Coordination",
				Description: "Fused satellite data shared with state disaster response teams.",
				Effect: Effect{
					Toast: &Toast{Title: "Data Shared", Description: "Fusion products delivered to SDRF", Variant: "success"},
					Sound: "success",
				},
			},
			{
				At:          40 * time.Second,
				Title:       "Situation Stabilizing",
				Description: "Water levels receding; risk downgraded across the basin.",
				Effect: Effect{
					Toast: &Toast{Title: "Risk Downgraded", Description: "Water levels receding", Variant: "success"},
					Sound: "success",
					Zones: []zones.RiskZone{
						zone("demo-dibrugarh", "Dibrugarh", 27.47, 94.91, 60, zones.SeverityMedium),
						zone("demo-majuli", "Majuli", 26.95, 94.17, 40, zones.SeverityMedium),
					},
				},
			},
		},
	}
}
