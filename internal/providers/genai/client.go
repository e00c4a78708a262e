package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client provides a lightweight facade over Gemini so executors can focus on
// translating domain requests to API calls. When no API key is configured the
// client produces deterministic synthetic artifacts, which keeps the whole
// pipeline operational in local and CI environments while preserving the
// extension points for real API calls.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// TextRequest asks the model for structured or free-form text.
type TextRequest struct {
	Prompt    string
	Language  string
	RequestID string
}

// ImageRequest asks the model for a single illustration.
type ImageRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
}

// SpeechRequest asks the model to narrate text aloud.
type SpeechRequest struct {
	Text      string
	Language  string
	Voice     string
	RequestID string
}

// Blob is a generated binary artifact plus its MIME type.
type Blob struct {
	Data   []byte
	Format string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateText returns the model's text response for the prompt.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if c.apiKey == "" {
		return c.syntheticText(req), nil
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildTextPrompt(req)}},
		}},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return "", err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("no text content returned")
}

// GenerateImage returns one illustration for the prompt.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.apiKey == "" {
		return c.syntheticImage(req), nil
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildImagePrompt(req)}},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE"}},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			blob, err := decodeInlinePart(part)
			if err != nil || blob == nil {
				continue
			}
			if blob.Format == "" {
				blob.Format = "image/png"
			}
			return blob, nil
		}
	}
	return nil, fmt.Errorf("no image content returned")
}

// GenerateSpeech narrates the text and returns audio bytes.
func (c *Client) GenerateSpeech(ctx context.Context, req SpeechRequest) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.apiKey == "" {
		return c.syntheticSpeech(req), nil
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildSpeechPrompt(req)}},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"AUDIO"}},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			blob, err := decodeInlinePart(part)
			if err != nil || blob == nil {
				continue
			}
			if blob.Format == "" {
				blob.Format = "audio/mpeg"
			}
			return blob, nil
		}
	}
	return nil, fmt.Errorf("no audio content returned")
}

func (c *Client) syntheticText(req TextRequest) string {
	seed := deterministicSeed(req.RequestID, req.Prompt, req.Language)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Msg("genai: generated synthetic text")
	return fmt.Sprintf("[synthetic:%s] %s", seed, strings.TrimSpace(req.Prompt))
}

func (c *Client) syntheticImage(req ImageRequest) *Blob {
	seed := deterministicSeed(req.RequestID, req.Prompt, req.AspectRatio)
	width, height := normalizeAspect(req.AspectRatio)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Msg("genai: generated synthetic image")
	return &Blob{Data: renderSyntheticImage(width, height, seed), Format: "image/png"}
}

func (c *Client) syntheticSpeech(req SpeechRequest) *Blob {
	seed := deterministicSeed(req.RequestID, req.Text, req.Language, req.Voice)
	lines := []string{
		"Synthetic narration placeholder",
		fmt.Sprintf("Seed: %s", seed),
		fmt.Sprintf("Language: %s", req.Language),
		fmt.Sprintf("Text: %s", strings.TrimSpace(req.Text)),
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Msg("genai: generated synthetic narration")
	return &Blob{Data: []byte(strings.Join(lines, "\n")), Format: "audio/mpeg"}
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error.Message}
		}
		data, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// APIError carries the upstream HTTP status so executors can classify
// failures as retryable or terminal.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.Status)
	}
	return fmt.Sprintf("gemini status %d: %s", e.Status, e.Message)
}

// IsInvalidRequest reports whether err is a client-side rejection (invalid
// input, policy block) that will not succeed on retry.
func IsInvalidRequest(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest ||
		apiErr.Status == http.StatusUnprocessableEntity ||
		apiErr.Status == http.StatusForbidden
}

func decodeInlinePart(part geminiPart) (*Blob, error) {
	if part.InlineData == nil || part.InlineData.Data == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
	if err != nil {
		return nil, fmt.Errorf("decode inline data: %w", err)
	}
	return &Blob{Data: data, Format: part.InlineData.MimeType}, nil
}

func buildTextPrompt(req TextRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	if language := strings.TrimSpace(req.Language); language != "" {
		b.WriteString("\nRespond in language: ")
		b.WriteString(language)
	}
	return b.String()
}

func buildImagePrompt(req ImageRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		b.WriteString("\nAspect ratio: ")
		b.WriteString(aspect)
	}
	return b.String()
}

func buildSpeechPrompt(req SpeechRequest) string {
	var b strings.Builder
	b.WriteString("Narrate the following text")
	if voice := strings.TrimSpace(req.Voice); voice != "" {
		b.WriteString(" with voice ")
		b.WriteString(voice)
	}
	if language := strings.TrimSpace(req.Language); language != "" {
		b.WriteString(" in language ")
		b.WriteString(language)
	}
	b.WriteString(":\n")
	b.WriteString(strings.TrimSpace(req.Text))
	return b.String()
}

func renderSyntheticImage(width, height int, seed string) []byte {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := maxInt(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, minInt(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	r := mustParseHexByte(segment[0:2])
	g := mustParseHexByte(segment[2:4])
	b := mustParseHexByte(segment[4:6])
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func normalizeAspect(aspect string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(aspect)) {
	case "16:9":
		return 1920, 1080
	case "9:16":
		return 1080, 1920
	case "3:4", "portrait":
		return 768, 1024
	case "1:1", "square", "":
		return 1024, 1024
	default:
		return 1024, 1024
	}
}
