package api

import (
	"errors"
	"net/http"

	"github.com/star/satdash/internal/archive"
)

// historyHandler serves archived positions.
// GET /api/history/positions?satellite_id=sat-1&since=...&until=...&limit=500
func historyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Archive == nil {
			writeError(w, http.StatusServiceUnavailable, "position archive is disabled")
			return
		}

		q := archive.Query{SatelliteID: r.URL.Query().Get("satellite_id")}
		var err error
		if q.Since, err = timeParam(r, "since"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if q.Until, err = timeParam(r, "until"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if q.Limit, err = intParam(r, "limit", archive.DefaultLimit, 1, archive.MaxLimit); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		positions, err := d.Archive.History(r.Context(), q)
		if errors.Is(err, archive.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history query failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"positions": positions,
			"count":     len(positions),
		})
	}
}
