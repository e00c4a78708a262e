package handlers

import (
	"net/http"
	"time"
)

// Health reports liveness. It deliberately touches no dependency: a healthy
// process with a down database should still answer so orchestrators can tell
// "crashed" from "degraded".
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
