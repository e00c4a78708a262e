package palette

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"time"

	"github.com/fogleman/gg"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/storage"
)

const Budget = time.Minute

const swatchCount = 5

// Executor renders a color palette card for a story. When the cover
// illustration is already available its dominant colors are sampled;
// otherwise the palette is derived deterministically from the story input so
// the asset never blocks on illustration order.
type Executor struct {
	store *storage.FileStore
}

func New(store *storage.FileStore) *Executor {
	return &Executor{store: store}
}

func (e *Executor) Budget() time.Duration { return Budget }

func (e *Executor) Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error) {
	if assetType != domain.AssetTypePalette {
		return "", executor.Terminalf("unsupported asset type %q", assetType)
	}

	colors := e.coverColors(ctx, target)
	if colors == nil {
		colors = seededColors(target.ID, target.Input)
	}

	data, err := renderCard(colors)
	if err != nil {
		return "", fmt.Errorf("render palette: %w", err)
	}

	key := fmt.Sprintf("targets/%s/%s.png", target.ID, assetType)
	url, err := e.store.Write(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("store palette: %w", err)
	}
	return url, nil
}

// coverColors samples the cover illustration in vertical bands and averages
// each band into one swatch. Returns nil when the cover is not ready.
func (e *Executor) coverColors(ctx context.Context, target *domain.Target) []color.RGBA {
	asset, ok := target.Assets[domain.AssetTypeCover]
	if !ok || asset.Status != domain.StatusReady || asset.URL == "" {
		return nil
	}
	data, err := e.store.Read(ctx, e.store.KeyFromURL(asset.URL))
	if err != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	bounds := img.Bounds()
	if bounds.Dx() < swatchCount || bounds.Dy() == 0 {
		return nil
	}
	bandWidth := bounds.Dx() / swatchCount
	colors := make([]color.RGBA, 0, swatchCount)
	for band := 0; band < swatchCount; band++ {
		var r, g, b, n uint64
		x0 := bounds.Min.X + band*bandWidth
		for x := x0; x < x0+bandWidth; x += 4 {
			for y := bounds.Min.Y; y < bounds.Max.Y; y += 4 {
				cr, cg, cb, _ := img.At(x, y).RGBA()
				r += uint64(cr >> 8)
				g += uint64(cg >> 8)
				b += uint64(cb >> 8)
				n++
			}
		}
		if n == 0 {
			return nil
		}
		colors = append(colors, color.RGBA{
			R: uint8(r / n),
			G: uint8(g / n),
			B: uint8(b / n),
			A: 255,
		})
	}
	return colors
}

// seededColors spreads hash bytes of the target across evenly spaced hues so
// repeated runs yield the same palette.
func seededColors(id string, input []byte) []color.RGBA {
	sum := sha256.Sum256(append([]byte(id), input...))
	colors := make([]color.RGBA, swatchCount)
	for i := range colors {
		h := float64((int(sum[i*3])*360/256 + i*72) % 360)
		s := 0.45 + float64(sum[i*3+1])/255*0.3
		v := 0.7 + float64(sum[i*3+2])/255*0.25
		colors[i] = hsv(h, s, v)
	}
	return colors
}

func renderCard(colors []color.RGBA) ([]byte, error) {
	const (
		width   = 1280
		height  = 320
		margin  = 24.0
		spacing = 16.0
	)
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	swatchWidth := (float64(width) - 2*margin - spacing*float64(len(colors)-1)) / float64(len(colors))
	for i, c := range colors {
		x := margin + float64(i)*(swatchWidth+spacing)
		dc.SetColor(c)
		dc.DrawRoundedRectangle(x, margin, swatchWidth, float64(height)-2*margin, 18)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hsv(h, s, v float64) color.RGBA {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8((r + m) * 255),
		G: uint8((g + m) * 255),
		B: uint8((b + m) * 255),
		A: 255,
	}
}
