package preview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/levelbgm/previewd/internal/storage"
)

func TestContentHash(t *testing.T) {
	tests := map[string]string{
		"":    "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"abc": "a9993e364706816aba3e25717850c26c9cd0d89d",
	}
	for in, want := range tests {
		if got := ContentHash([]byte(in)); got != want {
			t.Errorf("ContentHash(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublish_SameBytesSameKey(t *testing.T) {
	store := newMemStore()
	p := NewPublisher(store)
	clip := []byte("faded mp3")

	h1, err := p.Publish(context.Background(), clip)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	h2, err := p.Publish(context.Background(), append([]byte(nil), clip...))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if h1 != h2 {
		t.Errorf("hashes differ: %q vs %q", h1, h2)
	}
	if len(store.uploads) != 2 {
		t.Fatalf("uploads = %d, want 2", len(store.uploads))
	}
	if store.uploads[0].key != store.uploads[1].key || store.uploads[0].key != storage.PreviewKey(h1) {
		t.Errorf("keys = %q, %q", store.uploads[0].key, store.uploads[1].key)
	}
}

func TestPublish_DifferentBytesDifferentKeys(t *testing.T) {
	store := newMemStore()
	p := NewPublisher(store)

	h1, _ := p.Publish(context.Background(), []byte("one"))
	h2, _ := p.Publish(context.Background(), []byte("two"))
	if h1 == h2 {
		t.Error("distinct clips share a hash")
	}
}

func TestPublish_StoreError(t *testing.T) {
	store := newMemStore()
	store.uploadErr = fmt.Errorf("put: %w", storage.ErrUnavailable)

	hash, err := NewPublisher(store).Publish(context.Background(), []byte("x"))
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Publish() error = %v, want ErrUnavailable", err)
	}
	if hash != "" {
		t.Errorf("Publish() hash = %q on failure", hash)
	}
}
