package document

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/storage"
)

func newDocumentEnv(t *testing.T) (*Executor, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return New(store), store
}

func storyTarget() *domain.Target {
	return &domain.Target{
		ID:     "t1",
		Kind:   domain.TargetKindStory,
		Input:  json.RawMessage(`{"title":"the brave snail","synopsis":"A snail crosses a garden."}`),
		Assets: domain.NewAssets(domain.TargetKindStory, time.Now().UTC()),
	}
}

func TestGenerateBookletWithoutImages(t *testing.T) {
	ex, store := newDocumentEnv(t)
	target := storyTarget()

	url, err := ex.Generate(context.Background(), target, domain.AssetTypePDF)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasSuffix(url, "targets/t1/pdf.pdf") {
		t.Fatalf("url: got %q", url)
	}

	data, err := store.Read(context.Background(), store.KeyFromURL(url))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("stored booklet is not a pdf")
	}
}

func TestGenerateBookletEmbedsReadyCover(t *testing.T) {
	ex, store := newDocumentEnv(t)
	target := storyTarget()
	ctx := context.Background()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 140, B: 220, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	coverURL, err := store.Write(ctx, "targets/t1/cover.png", buf.Bytes())
	if err != nil {
		t.Fatalf("write cover: %v", err)
	}
	cover := target.Assets[domain.AssetTypeCover]
	cover.Status = domain.StatusReady
	cover.URL = coverURL
	target.Assets[domain.AssetTypeCover] = cover

	plainURL, err := ex.Generate(ctx, storyTarget(), domain.AssetTypePDF)
	if err != nil {
		t.Fatalf("generate plain: %v", err)
	}
	plain, err := store.Read(ctx, store.KeyFromURL(plainURL))
	if err != nil {
		t.Fatalf("read plain: %v", err)
	}

	withCoverURL, err := ex.Generate(ctx, target, domain.AssetTypePDF)
	if err != nil {
		t.Fatalf("generate with cover: %v", err)
	}
	withCover, err := store.Read(ctx, store.KeyFromURL(withCoverURL))
	if err != nil {
		t.Fatalf("read with cover: %v", err)
	}

	if len(withCover) <= len(plain) {
		t.Fatal("embedding the cover should grow the booklet")
	}
}

func TestGenerateRejectsNonPDF(t *testing.T) {
	ex, _ := newDocumentEnv(t)

	_, err := ex.Generate(context.Background(), storyTarget(), domain.AssetTypeCover)
	if err == nil || !executor.IsTerminal(err) {
		t.Fatalf("got %v, want terminal error", err)
	}
}

func TestGenerateRejectsCharacterKind(t *testing.T) {
	ex, _ := newDocumentEnv(t)
	target := &domain.Target{
		ID:     "c1",
		Kind:   domain.TargetKindCharacter,
		Assets: domain.NewAssets(domain.TargetKindCharacter, time.Now().UTC()),
	}

	_, err := ex.Generate(context.Background(), target, domain.AssetTypePDF)
	if err == nil || !executor.IsTerminal(err) {
		t.Fatalf("got %v, want terminal error", err)
	}
}
