package qr

import (
	"context"
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/storage"
)

const Budget = 30 * time.Second

// Executor renders a QR code that links to the story's public share page.
type Executor struct {
	store        *storage.FileStore
	shareBaseURL string
}

func New(store *storage.FileStore, shareBaseURL string) *Executor {
	return &Executor{store: store, shareBaseURL: strings.TrimRight(shareBaseURL, "/")}
}

func (e *Executor) Budget() time.Duration { return Budget }

func (e *Executor) Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error) {
	if assetType != domain.AssetTypeQR {
		return "", executor.Terminalf("unsupported asset type %q", assetType)
	}

	shareURL := fmt.Sprintf("%s/%s", e.shareBaseURL, target.ID)
	data, err := qrcode.Encode(shareURL, qrcode.Medium, 512)
	if err != nil {
		return "", executor.Terminal(fmt.Errorf("encode qr: %w", err))
	}

	key := fmt.Sprintf("targets/%s/%s.png", target.ID, assetType)
	url, err := e.store.Write(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("store qr: %w", err)
	}
	return url, nil
}
