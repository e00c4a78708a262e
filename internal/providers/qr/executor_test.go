package qr

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/storage"
)

func TestGenerateQR(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	ex := New(store, "https://stories.example/share/")
	target := &domain.Target{ID: "t1", Kind: domain.TargetKindStory, Assets: domain.NewAssets(domain.TargetKindStory, time.Now().UTC())}

	url, err := ex.Generate(context.Background(), target, domain.AssetTypeQR)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasSuffix(url, "targets/t1/qr.png") {
		t.Fatalf("url: got %q", url)
	}

	data, err := store.Read(context.Background(), store.KeyFromURL(url))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("stored qr is not a png")
	}
}

func TestGenerateRejectsOtherTypes(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	ex := New(store, "https://stories.example/share")
	target := &domain.Target{ID: "t1", Kind: domain.TargetKindStory}

	_, err = ex.Generate(context.Background(), target, domain.AssetTypeCover)
	if err == nil || !executor.IsTerminal(err) {
		t.Fatalf("got %v, want terminal error", err)
	}
}
