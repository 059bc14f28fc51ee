package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/satdash/internal/catalog"
	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/telemetry"
)

const maxBodyBytes = 1 << 20

func listSatellitesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sats := d.Catalog.List()
		writeJSON(w, http.StatusOK, map[string]any{
			"satellites": sats,
			"count":      len(sats),
			"timestamp":  d.Now().UTC(),
		})
	}
}

func addSatelliteHandler(d Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalog.NewSatellite
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		sat, err := d.Catalog.Add(req)
		switch {
		case errors.Is(err, catalog.ErrDuplicateNORAD):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, catalog.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logger.Error("add satellite failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("satellite added", "satellite_id", sat.ID, "norad_id", sat.NORADID, "name", sat.Name)
		writeJSON(w, http.StatusCreated, sat)
	}
}

func removeSatelliteHandler(d Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sat, err := d.Catalog.Remove(r.PathValue("id"))
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			logger.Error("remove satellite failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("satellite removed", "satellite_id", sat.ID, "name", sat.Name)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Satellite " + sat.Name + " removed",
		})
	}
}

// positionsHandler serves the latest published snapshot with trails.
func positionsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.Tracker.Latest()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "no positions published yet")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"seq":       snap.Seq,
			"timestamp": snap.Timestamp,
			"positions": snap.Positions,
			"trails":    d.Tracker.Trails(),
		})
	}
}

// positionHandler returns one satellite's position: the latest published one
// by default, or a computed one for ?at=.
func positionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sat, err := d.Catalog.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		at, err := timeParam(r, "at")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if at.IsZero() {
			if pos, ok := d.Tracker.Position(sat.ID); ok {
				writeJSON(w, http.StatusOK, pos)
				return
			}
			at = d.Now()
		}
		writeJSON(w, http.StatusOK, d.Tracker.PositionAt(at, sat))
	}
}

type telemetryEntry struct {
	Satellite orbit.Satellite     `json:"satellite"`
	Telemetry telemetry.Telemetry `json:"telemetry"`
}

func sampleAll(d Deps, now time.Time) []telemetryEntry {
	sats := d.Catalog.Active()
	out := make([]telemetryEntry, 0, len(sats))
	for _, s := range sats {
		out = append(out, telemetryEntry{
			Satellite: s,
			Telemetry: telemetry.Sample(s, d.Tracker.PositionAt(now, s)),
		})
	}
	return out
}

func allTelemetryHandler(d Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if relay(w, r, d, "/api/satellites/telemetry", "telemetry", logger) {
			return
		}
		entries := sampleAll(d, d.Now())
		writeJSON(w, http.StatusOK, map[string]any{
			"telemetry": entries,
			"count":     len(entries),
			"timestamp": d.Now().UTC(),
		})
	}
}

func telemetryHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sat, err := d.Catalog.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		now := d.Now()
		writeJSON(w, http.StatusOK, map[string]any{
			"satellite": sat,
			"telemetry": telemetry.Sample(sat, d.Tracker.PositionAt(now, sat)),
			"timestamp": now.UTC(),
		})
	}
}

// passesHandler predicts the next pass of every active satellite.
// GET /api/satellites/passes?observer_lat=26&observer_lon=92&hours=24&min_elevation=10
func passesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := floatParam(r, "observer_lat", d.Observer.LatDeg, -90, 90)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := floatParam(r, "observer_lon", d.Observer.LonDeg, -180, 180)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		hours, err := intParam(r, "hours", 24, 1, 72)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		minEl, err := floatParam(r, "min_elevation", 10, 0, 89)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		observer := telemetry.Observer{LatDeg: lat, LonDeg: lon, AltKm: d.Observer.AltKm}
		results := telemetry.PredictPasses(r.Context(), telemetry.PassRequest{
			Observer:     observer,
			Satellites:   d.Catalog.Active(),
			Start:        d.Now(),
			Horizon:      time.Duration(hours) * time.Hour,
			MinElevation: minEl,
			MaxPasses:    1,
		})
		passes := telemetry.NextPasses(results)

		writeJSON(w, http.StatusOK, map[string]any{
			"passes":    passes,
			"count":     len(passes),
			"observer":  map[string]float64{"lat": lat, "lon": lon},
			"timestamp": d.Now().UTC(),
		})
	}
}
