package text

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/executor"
	"server/internal/providers/genai"
	"server/internal/providers/prompt"
	"server/internal/storage"
)

const Budget = 2 * time.Minute

// Executor produces the written assets: a printable activity sheet for
// stories and an appearance profile for characters. Output is stored as a
// JSON document so clients can render it without further parsing.
type Executor struct {
	client *genai.Client
	store  *storage.FileStore
}

func New(client *genai.Client, store *storage.FileStore) *Executor {
	return &Executor{client: client, store: store}
}

func (e *Executor) Budget() time.Duration { return Budget }

func (e *Executor) Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error) {
	req := genai.TextRequest{RequestID: target.ID}

	switch assetType {
	case domain.AssetTypeActivities:
		in := prompt.Story(target.Input)
		req.Prompt = prompt.Activities(in)
		req.Language = in.Language
	case domain.AssetTypeAppearance:
		in := prompt.Character(target.Input)
		req.Prompt = prompt.Appearance(in)
		req.Language = in.Language
	default:
		return "", executor.Terminalf("unsupported asset type %q", assetType)
	}

	raw, err := e.client.GenerateText(ctx, req)
	if err != nil {
		if genai.IsInvalidRequest(err) {
			return "", executor.Terminal(err)
		}
		return "", fmt.Errorf("generate text: %w", err)
	}

	doc := normalizeDocument(raw)
	key := fmt.Sprintf("targets/%s/%s.json", target.ID, assetType)
	url, err := e.store.Write(ctx, key, doc)
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return url, nil
}

// normalizeDocument keeps model output usable even when it is not clean JSON:
// fenced code blocks are stripped, and anything still unparseable is wrapped
// into a {"text": ...} envelope.
func normalizeDocument(raw string) []byte {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if json.Valid([]byte(s)) {
		return []byte(s)
	}
	wrapped, err := json.Marshal(map[string]string{"text": s})
	if err != nil {
		return []byte(`{"text":""}`)
	}
	return wrapped
}
