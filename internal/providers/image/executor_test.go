package image

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/providers/genai"
	"server/internal/storage"
)

func testTarget(kind domain.TargetKind, input string) *domain.Target {
	return &domain.Target{
		ID:     "t1",
		Kind:   kind,
		Input:  json.RawMessage(input),
		Assets: domain.NewAssets(kind, time.Now().UTC()),
	}
}

func newExecutor(t *testing.T) (*Executor, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	client, err := genai.NewClient(genai.Options{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return New(client, store), store
}

func TestGenerateStoryCover(t *testing.T) {
	ex, store := newExecutor(t)
	target := testTarget(domain.TargetKindStory, `{"title":"The Brave Snail","synopsis":"A snail crosses a garden."}`)

	url, err := ex.Generate(context.Background(), target, domain.AssetTypeCover)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasSuffix(url, "targets/t1/cover.png") {
		t.Fatalf("url: got %q", url)
	}

	data, err := store.Read(context.Background(), store.KeyFromURL(url))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("stored asset is not a png")
	}
}

func TestGenerateCharacterPortraits(t *testing.T) {
	ex, _ := newExecutor(t)
	target := testTarget(domain.TargetKindCharacter, `{"name":"Pip","traits":"curious, green"}`)

	head, err := ex.Generate(context.Background(), target, domain.AssetTypeHeadshot)
	if err != nil {
		t.Fatalf("headshot: %v", err)
	}
	body, err := ex.Generate(context.Background(), target, domain.AssetTypeBodyshot)
	if err != nil {
		t.Fatalf("bodyshot: %v", err)
	}
	if head == body {
		t.Fatal("portrait slots must store under distinct keys")
	}
}

func TestGenerateUnknownKindIsTerminal(t *testing.T) {
	ex, _ := newExecutor(t)
	target := testTarget(domain.TargetKind("poem"), `{}`)

	_, err := ex.Generate(context.Background(), target, domain.AssetTypeCover)
	if err == nil {
		t.Fatal("expected error")
	}
	if !executor.IsTerminal(err) {
		t.Fatalf("unknown kind must be terminal, got %v", err)
	}
}
