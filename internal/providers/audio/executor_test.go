package audio

import (
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

func newAudioEnv(t *testing.T) (*Executor, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	client, err := genai.NewClient(genai.Options{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return New(client, store, "warm"), store
}

func TestGenerateNarration(t *testing.T) {
	ex, store := newAudioEnv(t)
	target := &domain.Target{
		ID:     "t1",
		Kind:   domain.TargetKindStory,
		Input:  json.RawMessage(`{"title":"The Brave Snail","synopsis":"A snail crosses a garden.","language":"id"}`),
		Assets: domain.NewAssets(domain.TargetKindStory, time.Now().UTC()),
	}

	url, err := ex.Generate(context.Background(), target, domain.AssetTypeAudio)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasSuffix(url, "targets/t1/audio.mp3") {
		t.Fatalf("url: got %q", url)
	}
	if _, err := store.Read(context.Background(), store.KeyFromURL(url)); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestGenerateRejectsCharacterKind(t *testing.T) {
	ex, _ := newAudioEnv(t)
	target := &domain.Target{
		ID:     "c1",
		Kind:   domain.TargetKindCharacter,
		Assets: domain.NewAssets(domain.TargetKindCharacter, time.Now().UTC()),
	}

	_, err := ex.Generate(context.Background(), target, domain.AssetTypeAudio)
	if err == nil || !executor.IsTerminal(err) {
		t.Fatalf("got %v, want terminal error", err)
	}
}
