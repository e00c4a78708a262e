package handlers

import (
	"fmt"
	"net/http"
	"path"

	"server/internal/domain"
	"server/pkg/zip"
)

// DownloadArchive bundles every ready asset of the target into a zip. Assets
// still generating or failed are simply absent from the archive.
func (a *App) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	target, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}

	var entries []zip.Entry
	for _, asset := range target.Assets {
		if asset.Status != domain.StatusReady || asset.URL == "" {
			continue
		}
		key := a.Store.KeyFromURL(asset.URL)
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("target_id", target.ID).Str("key", key).Msg("http: archive skipping unreadable asset")
			continue
		}
		entries = append(entries, zip.Entry{Filename: path.Base(key), Data: data})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusConflict, "no assets ready")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.domainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", target.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
