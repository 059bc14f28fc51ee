package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/satdash/internal/catalog"
	"github.com/star/satdash/internal/environment"
	"github.com/star/satdash/internal/telemetry"
)

// riskHandler runs the synthetic risk analysis.
// GET /api/environmental/risk?lat=26&lon=92&grid_size=50&apply=true
//
// apply=true also replaces the map's risk zones with the analysis alerts.
func riskHandler(d Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply, err := boolParam(r, "apply")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !apply && relay(w, r, d, "/api/environmental/risk", "risk", logger) {
			return
		}

		lat, err := floatParam(r, "lat", 26.0, -90, 90)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := floatParam(r, "lon", 92.0, -180, 180)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		size, err := intParam(r, "grid_size", environment.DefaultGridSize, environment.MinGridSize, environment.MaxGridSize)
		if err != nil {
			writeError(w, http.StatusBadRequest, environment.ErrGridSize.Error())
			return
		}

		analysis, err := environment.Analyze(lat, lon, size, d.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if apply {
			if _, err := d.Zones.Replace(environment.ToZones(analysis.Alerts), "analysis"); err != nil {
				logger.Warn("risk zones not applied", "error", err)
			}
		}
		writeJSON(w, http.StatusOK, analysis)
	}
}

func nationalRiskHandler(d Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if relay(w, r, d, "/api/environmental/risk/national", "risk_national", logger) {
			return
		}
		writeJSON(w, http.StatusOK, environment.National(d.Now()))
	}
}

func zonesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Zones.Current())
	}
}

func resetZonesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Zones.Reset())
	}
}

func fusionMetricsHandler(d Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if relay(w, r, d, "/api/fusion/metrics", "fusion", logger) {
			return
		}
		now := d.Now()
		entries := sampleAll(d, now)
		samples := make([]telemetry.Telemetry, len(entries))
		for i, e := range entries {
			samples[i] = e.Telemetry
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"metrics":   telemetry.Metrics(samples, now),
			"timestamp": now.UTC(),
		})
	}
}

type fuseRequest struct {
	Datasets []string `json:"datasets"`
	Seed     uint64   `json:"seed"`
}

// fuseHandler simulates fusing datasets. An empty body fuses the "test"
// dataset.
func fuseHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fuseRequest
		if r.ContentLength != 0 {
			err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
			if err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
				return
			}
		}
		result := telemetry.Fuse(req.Seed, req.Datasets, d.Now())
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"datasets":  result.Datasets,
			"fusedData": result.FusedData,
			"metrics":   result.Metrics,
			"timestamp": result.Timestamp,
		})
	}
}

// datasetsHandler lists stored datasets. None are stored yet.
func datasetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []any{})
}

func datasetHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
}

func isroSatellitesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sats := catalog.ISROSatellites()
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"satellites": sats,
			"count":      len(sats),
			"timestamp":  d.Now().UTC(),
		})
	}
}

// isroDataHandler simulates an acquisition. ?region= takes a JSON
// DataRegion; the default is Delhi NCR.
func isroDataHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		region := environment.DefaultDataRegion
		if raw := r.URL.Query().Get("region"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &region); err != nil {
				writeError(w, http.StatusBadRequest, "invalid region: "+err.Error())
				return
			}
			if err := region.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		resolution := "5.8m"
		if sat, ok := catalog.FindISRO(name); ok {
			resolution = sat.Resolution
		}

		data := environment.SimulateAcquisition(name, region, resolution, d.Now())
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"source":          data.Source,
			"region":          data.Region,
			"acquisitionDate": data.AcquisitionDate,
			"cloudCover":      data.CloudCover,
			"quality":         data.Quality,
			"dataPoints":      data.DataPoints,
			"note":            data.Note,
		})
	}
}

// stamped adds the response time and query location to a hazard layer.
type stamped[T any] struct {
	Layer     T
	Timestamp time.Time
	Location  environment.GeoPoint
}

// MarshalJSON flattens the layer fields next to timestamp and location.
func (s stamped[T]) MarshalJSON() ([]byte, error) {
	layer, err := json.Marshal(s.Layer)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(layer, &fields); err != nil {
		return nil, err
	}
	fields["timestamp"], _ = json.Marshal(s.Timestamp)
	fields["location"], _ = json.Marshal(s.Location)
	return json.Marshal(fields)
}

// disasterHandler serves one hazard layer.
// GET /api/disaster/{layer}?lat=26&lon=92
//
// The weather layer takes radius (degrees), fire and seismic take days.
// apply=true on polygon layers also replaces the map's risk zones.
func disasterHandler(d Deps, layer string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply, err := boolParam(r, "apply")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !apply && relay(w, r, d, r.URL.Path, "disaster", logger) {
			return
		}

		lat, err := floatParam(r, "lat", 26.0, -90, 90)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := floatParam(r, "lon", 92.0, -180, 180)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		now := d.Now().UTC()
		at := environment.GeoPoint{Latitude: lat, Longitude: lon}

		var zoneLayer *environment.ZoneLayer
		var body any
		switch layer {
		case "summary":
			body = environment.Hazards(lat, lon, now)
		case environment.LayerWeather:
			radius, err := floatParam(r, "radius", 2.0, 0.1, 20)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			body = stamped[environment.WeatherReport]{environment.Weather(lat, lon, radius, now), now, at}
		case environment.LayerFire:
			days, err := intParam(r, "days", 1, 1, environment.MaxFireDays)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			report, _ := environment.Fire(lat, lon, days, now)
			body = stamped[environment.FireReport]{report, now, at}
		case environment.LayerSeismic:
			days, err := intParam(r, "days", 7, 1, environment.MaxSeismicDays)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			report, _ := environment.Seismic(lat, lon, days, now)
			body = stamped[environment.SeismicReport]{report, now, at}
		case environment.LayerCyclone:
			body = stamped[environment.CycloneReport]{environment.Cyclones(lat, lon, now), now, at}
		case environment.LayerFlood:
			l := environment.Flood(lat, lon, now)
			zoneLayer = &l
		case environment.LayerDrought:
			l := environment.Drought(lat, lon, now)
			zoneLayer = &l
		case environment.LayerLandslide:
			l := environment.Landslide(lat, lon, now)
			zoneLayer = &l
		default:
			writeError(w, http.StatusNotFound, "unknown disaster layer: "+layer)
			return
		}

		if zoneLayer != nil {
			if apply {
				if _, err := d.Zones.Replace(zoneLayer.RiskZones(), "disaster"); err != nil {
					logger.Warn("disaster zones not applied", "layer", layer, "error", err)
				}
			}
			body = stamped[environment.ZoneLayer]{*zoneLayer, now, at}
		}
		writeJSON(w, http.StatusOK, body)
	}
}
