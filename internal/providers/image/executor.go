package image

import (
	"context"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/providers/genai"
	"server/internal/providers/prompt"
	"server/internal/storage"
)

// Budget bounds a single illustration round trip; image generation is the
// slowest upstream call after speech.
const Budget = 5 * time.Minute

// Executor renders illustration assets (covers, scenes, character portraits)
// through the Gemini client and persists them to the file store.
type Executor struct {
	client *genai.Client
	store  *storage.FileStore
}

func New(client *genai.Client, store *storage.FileStore) *Executor {
	return &Executor{client: client, store: store}
}

func (e *Executor) Budget() time.Duration { return Budget }

// Generate produces the illustration for the requested slot and returns its
// public URL.
func (e *Executor) Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error) {
	req := genai.ImageRequest{RequestID: target.ID, AspectRatio: aspectFor(assetType)}

	switch target.Kind {
	case domain.TargetKindStory:
		in := prompt.Story(target.Input)
		req.Prompt = prompt.StoryImage(in, assetType)
	case domain.TargetKindCharacter:
		in := prompt.Character(target.Input)
		req.Prompt = prompt.CharacterImage(in, assetType)
	default:
		return "", executor.Terminalf("unsupported target kind %q", target.Kind)
	}

	blob, err := e.client.GenerateImage(ctx, req)
	if err != nil {
		if genai.IsInvalidRequest(err) {
			return "", executor.Terminal(err)
		}
		return "", fmt.Errorf("generate image: %w", err)
	}
	if len(blob.Data) == 0 {
		return "", fmt.Errorf("generate image: empty payload")
	}

	key := fmt.Sprintf("targets/%s/%s%s", target.ID, assetType, extensionFor(blob.Format))
	url, err := e.store.Write(ctx, key, blob.Data)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}

func aspectFor(assetType domain.AssetType) string {
	switch assetType {
	case domain.AssetTypeCover:
		return "3:4"
	case domain.AssetTypeBodyshot:
		return "9:16"
	case domain.AssetTypeHeadshot:
		return "1:1"
	default:
		return "16:9"
	}
}

func extensionFor(format string) string {
	switch format {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
