package preview

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"

	"github.com/levelbgm/previewd/internal/storage"
)

// ContentHash returns the lowercase hex SHA-1 of data.
func ContentHash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Publisher stores clips under their content hash. Identical bytes always land
// on the same key, so republishing is a harmless overwrite.
type Publisher struct {
	store storage.Store
}

func NewPublisher(store storage.Store) *Publisher {
	return &Publisher{store: store}
}

// Publish uploads data to LevelPreview/<hash> and returns the hash.
func (p *Publisher) Publish(ctx context.Context, data []byte) (string, error) {
	hash := ContentHash(data)
	err := p.store.Upload(ctx, storage.PreviewKey(hash), bytes.NewReader(data), int64(len(data)), storage.PreviewContentType)
	if err != nil {
		return "", err
	}
	return hash, nil
}
