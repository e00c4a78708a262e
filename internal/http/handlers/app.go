package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/notify"
	"server/internal/pipeline"
	"server/internal/storage"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Coordinator *pipeline.Coordinator
	Broker      notify.Broker
	Store       *storage.FileStore
	Logger      infra.Logger
}

func NewApp(coordinator *pipeline.Coordinator, broker notify.Broker, store *storage.FileStore, logger infra.Logger) *App {
	return &App{Coordinator: coordinator, Broker: broker, Store: store, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

// domainError maps domain sentinels onto HTTP status codes.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownAsset):
		a.error(w, http.StatusNotFound, "unknown asset type")
	case errors.Is(err, domain.ErrNoAttemptsLeft):
		a.error(w, http.StatusConflict, "retry attempts exhausted")
	default:
		a.Logger.Error().Err(err).Msg("http: internal error")
		a.error(w, http.StatusInternalServerError, "internal error")
	}
}
