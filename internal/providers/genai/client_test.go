package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newSyntheticClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestSyntheticTextDeterministic(t *testing.T) {
	c := newSyntheticClient(t)
	req := TextRequest{Prompt: "Write a story", RequestID: "r1"}

	first, err := c.GenerateText(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := c.GenerateText(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first != second {
		t.Fatal("synthetic text must be deterministic per request")
	}
	if !strings.Contains(first, "Write a story") {
		t.Fatalf("synthetic text must echo the prompt, got %q", first)
	}
}

func TestSyntheticImageDeterministic(t *testing.T) {
	c := newSyntheticClient(t)
	req := ImageRequest{Prompt: "a snail", AspectRatio: "1:1", RequestID: "r1"}

	first, err := c.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := c.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("synthetic image must be deterministic per request")
	}
	if first.Format != "image/png" {
		t.Fatalf("format: got %q, want image/png", first.Format)
	}
	if !bytes.HasPrefix(first.Data, []byte("\x89PNG")) {
		t.Fatal("synthetic image is not a png")
	}

	other, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a whale", AspectRatio: "1:1", RequestID: "r1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if bytes.Equal(first.Data, other.Data) {
		t.Fatal("different prompts must yield different synthetic images")
	}
}

func TestSyntheticSpeechCarriesText(t *testing.T) {
	c := newSyntheticClient(t)
	blob, err := c.GenerateSpeech(context.Background(), SpeechRequest{Text: "Once upon a time", Language: "en"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(string(blob.Data), "Once upon a time") {
		t.Fatal("synthetic narration must embed the text")
	}
}

func TestGenerateTextAgainstAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "k" {
			t.Fatalf("api key: got %q, want %q", got, "k")
		}
		var req geminiGenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: "hello"}}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	text, err := c.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "hello" {
		t.Fatalf("got %q, want %q", text, "hello")
	}
}

func TestAPIErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"prompt blocked"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsInvalidRequest(err) {
		t.Fatalf("400 must classify as invalid request, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "prompt blocked" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsInvalidRequest(err) {
		t.Fatalf("503 must stay retryable, got %v", err)
	}
}

func TestNormalizeAspect(t *testing.T) {
	if w, h := normalizeAspect("16:9"); w != 1920 || h != 1080 {
		t.Fatalf("16:9: got %dx%d", w, h)
	}
	if w, h := normalizeAspect(""); w != 1024 || h != 1024 {
		t.Fatalf("default: got %dx%d", w, h)
	}
	if w, h := normalizeAspect("weird"); w != 1024 || h != 1024 {
		t.Fatalf("unknown: got %dx%d", w, h)
	}
}
