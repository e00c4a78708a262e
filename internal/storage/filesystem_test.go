package storage

import (
	"bytes"
	"context"
	"testing"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestWriteReadRoundtrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	url, err := s.Write(ctx, "targets/t1/cover.png", []byte("payload"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if url != "http://localhost:8080/static/targets/t1/cover.png" {
		t.Fatalf("url: got %q", url)
	}

	data, err := s.Read(ctx, "targets/t1/cover.png")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("got %q", data)
	}
}

func TestKeyFromURLInvertsURL(t *testing.T) {
	s := newStore(t)

	key := "targets/t1/audio.mp3"
	if got := s.KeyFromURL(s.URL(key)); got != key {
		t.Fatalf("got %q, want %q", got, key)
	}
	// Foreign URLs pass through untouched.
	foreign := "https://elsewhere.example/x.png"
	if got := s.KeyFromURL(foreign); got != foreign {
		t.Fatalf("got %q, want %q", got, foreign)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Write(ctx, "../outside.txt", []byte("x")); err == nil {
		t.Fatal("traversal key must be rejected")
	}
	if _, err := s.Write(ctx, "", []byte("x")); err == nil {
		t.Fatal("empty key must be rejected")
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("", "http://localhost"); err == nil {
		t.Fatal("empty base path must be rejected")
	}
}
