package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
)

type assetView struct {
	Status    domain.TargetStatus `json:"status"`
	URL       string              `json:"url,omitempty"`
	Error     string              `json:"error,omitempty"`
	Attempt   int                 `json:"attempt"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type targetView struct {
	ID        string                         `json:"id"`
	Kind      domain.TargetKind              `json:"kind"`
	Status    domain.TargetStatus            `json:"status"`
	Assets    map[domain.AssetType]assetView `json:"assets"`
	CreatedAt time.Time                      `json:"created_at"`
	UpdatedAt time.Time                      `json:"updated_at"`
}

func viewFromTarget(t *domain.Target) targetView {
	v := targetView{
		ID:        t.ID,
		Kind:      t.Kind,
		Status:    t.Status,
		Assets:    make(map[domain.AssetType]assetView, len(t.Assets)),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for at, a := range t.Assets {
		v.Assets[at] = assetView{
			Status:    a.Status,
			URL:       a.URL,
			Error:     a.Error,
			Attempt:   a.Attempt,
			UpdatedAt: a.UpdatedAt,
		}
	}
	return v
}

// CreateStory accepts a story brief and kicks off generation of the full
// asset set. It returns 202 immediately; clients follow progress via the
// status read or the change feed.
func (a *App) CreateStory(w http.ResponseWriter, r *http.Request) {
	var in domain.StoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		a.error(w, http.StatusBadRequest, "title is required")
		return
	}
	if in.Language == "" {
		in.Language = middleware.LocaleFromContext(r.Context())
	}

	input, err := json.Marshal(in)
	if err != nil {
		a.domainError(w, err)
		return
	}
	target, err := a.Coordinator.CreateTarget(r.Context(), domain.TargetKindStory, middleware.UserIDFromContext(r.Context()), input)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, viewFromTarget(target))
}

// CreateCharacter accepts a character brief and kicks off generation of the
// character asset set.
func (a *App) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var in domain.CharacterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		a.error(w, http.StatusBadRequest, "name is required")
		return
	}
	if in.Language == "" {
		in.Language = middleware.LocaleFromContext(r.Context())
	}

	input, err := json.Marshal(in)
	if err != nil {
		a.domainError(w, err)
		return
	}
	target, err := a.Coordinator.CreateTarget(r.Context(), domain.TargetKindCharacter, middleware.UserIDFromContext(r.Context()), input)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, viewFromTarget(target))
}

// GetTarget is the authoritative status read.
func (a *App) GetTarget(w http.ResponseWriter, r *http.Request) {
	target, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewFromTarget(target))
}

// RetryAsset re-enqueues a failed asset. While a job for the pair is still
// outstanding this is a no-op, which makes it safe to mash the retry button.
func (a *App) RetryAsset(w http.ResponseWriter, r *http.Request) {
	target, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	assetType := domain.AssetType(chi.URLParam(r, "type"))

	enqueued, err := a.Coordinator.RetryAsset(r.Context(), target.ID, assetType)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"enqueued": enqueued})
}

// loadOwned fetches the target from the URL and enforces ownership. Targets
// created without an owner are readable by any authenticated caller.
func (a *App) loadOwned(r *http.Request) (*domain.Target, error) {
	target, err := a.Coordinator.GetTarget(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if target.OwnerID != "" && target.OwnerID != middleware.UserIDFromContext(r.Context()) {
		return nil, domain.ErrUnauthorized
	}
	return target, nil
}
