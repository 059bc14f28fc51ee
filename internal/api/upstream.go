package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/star/satdash/internal/metrics"
	"github.com/star/satdash/internal/upstream"
)

// relay serves path from the upstream backend when one is configured and
// online. It reports false when the caller should fall back to local
// simulated data.
func relay(w http.ResponseWriter, r *http.Request, d Deps, path, resource string, logger *slog.Logger) bool {
	if d.Upstream == nil || !d.Upstream.Enabled() || !d.Upstream.Online() {
		return false
	}

	var body json.RawMessage
	err := d.Upstream.GetJSON(r.Context(), path, r.URL.Query(), &body)
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return true
	}
	if !errors.Is(err, upstream.ErrDisabled) {
		metrics.IncUpstreamFallbacks(resource)
		logger.Warn("upstream fetch failed, using simulated data",
			"resource", resource,
			"error", err,
		)
	}
	return false
}
