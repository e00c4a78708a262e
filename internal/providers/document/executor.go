package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/providers/prompt"
	"server/internal/storage"
)

const Budget = 3 * time.Minute

// Executor composes the printable story booklet. Rendering is local, so the
// executor never talks to the model; it only reads previously stored images.
type Executor struct {
	store *storage.FileStore
}

func New(store *storage.FileStore) *Executor {
	return &Executor{store: store}
}

func (e *Executor) Budget() time.Duration { return Budget }

func (e *Executor) Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error) {
	if assetType != domain.AssetTypePDF {
		return "", executor.Terminalf("unsupported asset type %q", assetType)
	}
	if target.Kind != domain.TargetKindStory {
		return "", executor.Terminalf("booklet requires a story target, got %q", target.Kind)
	}

	in := prompt.Story(target.Input)
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(prompt.Title(in.Title), true)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 28)
	pdf.MultiCell(0, 14, prompt.Title(in.Title), "", "C", false)
	pdf.Ln(6)
	if img := e.pageImage(ctx, pdf, target, domain.AssetTypeCover); img != "" {
		pdf.ImageOptions(img, 35, pdf.GetY(), 140, 0, true, fpdf.ImageOptions{ReadDpi: true}, 0, "")
		pdf.Ln(6)
	}
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 6, in.Synopsis, "", "L", false)

	scenes := []domain.AssetType{
		domain.AssetTypeScene1,
		domain.AssetTypeScene2,
		domain.AssetTypeScene3,
		domain.AssetTypeScene4,
	}
	for i, scene := range scenes {
		img := e.pageImage(ctx, pdf, target, scene)
		if img == "" {
			continue
		}
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 9, fmt.Sprintf("Scene %d", i+1), "", "C", false)
		pdf.Ln(4)
		pdf.ImageOptions(img, 20, pdf.GetY(), 170, 0, true, fpdf.ImageOptions{ReadDpi: true}, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("render booklet: %w", err)
	}

	key := fmt.Sprintf("targets/%s/%s.pdf", target.ID, assetType)
	url, err := e.store.Write(ctx, key, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("store booklet: %w", err)
	}
	return url, nil
}

// pageImage registers a previously generated illustration with the PDF and
// returns its registration name, or "" when the illustration is not ready
// yet. Missing images degrade the booklet rather than failing it, since
// asset completion order is not guaranteed.
func (e *Executor) pageImage(ctx context.Context, pdf *fpdf.Fpdf, target *domain.Target, assetType domain.AssetType) string {
	asset, ok := target.Assets[assetType]
	if !ok || asset.Status != domain.StatusReady || asset.URL == "" {
		return ""
	}
	key := e.store.KeyFromURL(asset.URL)
	data, err := e.store.Read(ctx, key)
	if err != nil {
		return ""
	}
	name := string(assetType)
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageTypeFor(key)}, bytes.NewReader(data))
	if pdf.Err() {
		pdf.ClearError()
		return ""
	}
	return name
}

func imageTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "JPG"
	default:
		return "PNG"
	}
}
