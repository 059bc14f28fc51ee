package environment

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/star/satdash/internal/zones"
)

// Location is a point in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Alert is a risk notification derived from one GeoJSON feature.
type Alert struct {
	ID          string    `json:"id"`
	Level       string    `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AreaKm2     float64   `json:"area_km2"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
	Location    Location  `json:"location"`
}

var alertTemplates = map[string]struct{ title, description string }{
	"HIGH":   {"Critical Erosion Risk Detected", "Significant water expansion detected in %s. Area: %.1fkm²."},
	"MEDIUM": {"Moderate Risk Area Identified", "Water level changes observed in %s. Area: %.1fkm²."},
	"LOW":    {"Low Risk Alert", "Minor changes detected in %s. Area: %.1fkm²."},
}

var levelOrder = map[string]int{"HIGH": 0, "MEDIUM": 1, "LOW": 2}

// Confidence maps a mean risk score to an alert confidence in [50, 95].
func Confidence(score float64) float64 {
	return clamp(60+(score-40)*0.7, 50, 95)
}

// Alerts builds one alert per feature, ordered by level then largest area.
// regionName replaces the generic "Region" location label when non-empty.
func Alerts(fc *geojson.FeatureCollection, regionName string, now time.Time) []Alert {
	alerts := make([]Alert, 0, len(fc.Features))
	for idx, f := range fc.Features {
		level := f.PropertyMustString("risk_level")
		tmpl, ok := alertTemplates[level]
		if !ok {
			continue
		}
		lat := f.PropertyMustFloat64("center_lat")
		lon := f.PropertyMustFloat64("center_lon")
		area := f.PropertyMustFloat64("area_km2")

		location := fmt.Sprintf("Region (%.2f°N, %.2f°E)", lat, lon)
		if regionName != "" {
			location = strings.Replace(location, "Region", regionName, 1)
		}

		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("ALERT-%s-%03d", now.Format("20060102"), idx),
			Level:       level,
			Title:       tmpl.title,
			Description: fmt.Sprintf(tmpl.description, location, area),
			AreaKm2:     area,
			Confidence:  Confidence(f.PropertyMustFloat64("risk_score")),
			Timestamp:   now,
			Location:    Location{Lat: lat, Lon: lon},
		})
	}
	SortAlerts(alerts)
	return alerts
}

// SortAlerts orders alerts by level (HIGH first) then by area, largest first.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		li, lj := levelOrder[alerts[i].Level], levelOrder[alerts[j].Level]
		if li != lj {
			return li < lj
		}
		return alerts[i].AreaKm2 > alerts[j].AreaKm2
	})
}

var levelSeverity = map[string]zones.Severity{
	"HIGH":   zones.SeverityHigh,
	"MEDIUM": zones.SeverityMedium,
	"LOW":    zones.SeverityLow,
}

// ToZones converts alerts into map risk zones. Each zone is a circle of the
// alert's area; HIGH alerts at the confidence cap become critical.
func ToZones(alerts []Alert) []zones.RiskZone {
	out := make([]zones.RiskZone, 0, len(alerts))
	for _, a := range alerts {
		sev, ok := levelSeverity[a.Level]
		if !ok {
			continue
		}
		if a.Level == "HIGH" && a.Confidence >= 95 {
			sev = zones.SeverityCritical
		}
		out = append(out, zones.RiskZone{
			ID:       strings.ToLower(a.ID),
			Name:     a.Title,
			Lat:      a.Location.Lat,
			Lng:      a.Location.Lon,
			RadiusKm: math.Max(1, math.Sqrt(a.AreaKm2/math.Pi)),
			Severity: sev,
		})
	}
	return out
}
