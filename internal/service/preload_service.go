package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"wordwatch/internal/logger"
)

// ErrInvalidImagePath is returned for an empty image path
var ErrInvalidImagePath = errors.New("invalid image path")

// PreloadService reads stimulus images from the static directory into
// memory ahead of the frames being shown
type PreloadService struct {
	root        string
	concurrency int
	log         *logger.Logger

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewPreloadService creates an image cache rooted at the static directory
func NewPreloadService(root string, concurrency int, log *logger.Logger) *PreloadService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PreloadService{
		root:        root,
		concurrency: concurrency,
		log:         log.With("service", "PreloadService"),
		cache:       make(map[string][]byte),
	}
}

// Preload loads every image not yet cached. All images are attempted; the
// first error is returned.
func (s *PreloadService) Preload(ctx context.Context, images []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var (
		errMu    sync.Mutex
		firstErr error
	)
	for _, img := range images {
		if _, ok := s.Get(img); ok {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if _, err := s.Load(img); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return firstErr
}

// Get returns a cached image
func (s *PreloadService) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.cache[cleanImagePath(name)]
	return data, ok
}

// Load returns an image from the cache, reading it from disk on a miss
func (s *PreloadService) Load(name string) ([]byte, error) {
	key := cleanImagePath(name)
	if key == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidImagePath, name)
	}
	if data, ok := s.Get(key); ok {
		return data, nil
	}

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()
	s.log.Debug("image cached", "image", key, "bytes", len(data))
	return data, nil
}

// Len returns the number of cached images
func (s *PreloadService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// cleanImagePath normalizes a slash separated path relative to the static
// root. Parent references cannot climb above the root.
func cleanImagePath(name string) string {
	p := path.Clean("/" + strings.TrimSpace(name))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}
