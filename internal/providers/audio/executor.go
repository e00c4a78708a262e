package audio

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

// Budget is generous because speech synthesis of a full story is the longest
// upstream call in the pipeline.
const Budget = 8 * time.Minute

// Executor narrates a story and stores the resulting audio.
type Executor struct {
	client *genai.Client
	store  *storage.FileStore
	voice  string
}

func New(client *genai.Client, store *storage.FileStore, voice string) *Executor {
	return &Executor{client: client, store: store, voice: voice}
}

func (e *Executor) Budget() time.Duration { return Budget }

func (e *Executor) Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error) {
	if assetType != domain.AssetTypeAudio {
		return "", executor.Terminalf("unsupported asset type %q", assetType)
	}
	if target.Kind != domain.TargetKindStory {
		return "", executor.Terminalf("narration requires a story target, got %q", target.Kind)
	}

	in := prompt.Story(target.Input)
	blob, err := e.client.GenerateSpeech(ctx, genai.SpeechRequest{
		Text:      prompt.Narration(in),
		Language:  in.Language,
		Voice:     e.voice,
		RequestID: target.ID,
	})
	if err != nil {
		if genai.IsInvalidRequest(err) {
			return "", executor.Terminal(err)
		}
		return "", fmt.Errorf("generate narration: %w", err)
	}
	if len(blob.Data) == 0 {
		return "", fmt.Errorf("generate narration: empty payload")
	}

	key := fmt.Sprintf("targets/%s/%s%s", target.ID, assetType, extensionFor(blob.Format))
	url, err := e.store.Write(ctx, key, blob.Data)
	if err != nil {
		return "", fmt.Errorf("store narration: %w", err)
	}
	return url, nil
}

func extensionFor(format string) string {
	switch format {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".mp3"
	}
}
