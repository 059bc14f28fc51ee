package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/star/satdash/internal/demo"
)

func demoStatusHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Player.Status())
	}
}

// demoActionHandler drives the demo player.
// POST /api/demo/{start|pause|resume|toggle|restart|stop}
func demoActionHandler(d Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Step callbacks outlive the request.
		ctx := context.WithoutCancel(r.Context())

		var err error
		switch action := r.PathValue("action"); action {
		case "start":
			err = d.Player.Start(ctx)
		case "pause":
			err = d.Player.Pause()
		case "resume":
			err = d.Player.Resume()
		case "toggle":
			err = d.Player.TogglePause()
		case "restart":
			d.Player.Restart(ctx)
		case "stop":
			d.Player.Stop()
		default:
			writeError(w, http.StatusNotFound, "unknown demo action: "+action)
			return
		}

		switch {
		case errors.Is(err, demo.ErrAlreadyRunning),
			errors.Is(err, demo.ErrNotPlaying),
			errors.Is(err, demo.ErrNotPaused):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			logger.Error("demo action failed", "action", r.PathValue("action"), "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, d.Player.Status())
	}
}
