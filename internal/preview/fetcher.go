package preview

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/levelbgm/previewd/internal/storage"
)

// Scratch is a request-scoped temporary file. Release removes it; calling
// Release more than once is a no-op.
type Scratch struct {
	path string
	once sync.Once
}

func (s *Scratch) Path() string {
	return s.path
}

func (s *Scratch) Release() {
	s.once.Do(func() {
		os.Remove(s.path)
	})
}

// Fetcher downloads source tracks into scratch files.
type Fetcher struct {
	store storage.Store
	dir   string
}

func NewFetcher(store storage.Store, scratchDir string) *Fetcher {
	return &Fetcher{store: store, dir: scratchDir}
}

// Fetch downloads the track stored under LevelBgm/<sourceHash>. On success the
// caller owns the returned Scratch; on failure nothing is left on disk.
func (f *Fetcher) Fetch(ctx context.Context, sourceHash string) (*Scratch, error) {
	file, err := os.CreateTemp(f.dir, "bgm-*")
	if err != nil {
		return nil, fmt.Errorf("create source scratch file: %w", err)
	}
	scratch := &Scratch{path: file.Name()}

	err = f.store.Download(ctx, storage.SourceKey(sourceHash), file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close source scratch file: %w", cerr)
	}
	if err != nil {
		scratch.Release()
		return nil, err
	}
	return scratch, nil
}
