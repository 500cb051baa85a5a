package services

import (
	"context"
	"image"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ImageSource returns the decoded image behind a URL, or nil
type ImageSource interface {
	Image(ctx context.Context, url string) image.Image
}

// PhotoHasher computes and memoises average hashes of listing photos.
// Failed photos are memoised as well so a run does not retry them per pair.
type PhotoHasher struct {
	images ImageSource

	mu     sync.Mutex
	hashes map[string]*goimagehash.ImageHash
}

func NewPhotoHasher(images ImageSource) *PhotoHasher {
	return &PhotoHasher{
		images: images,
		hashes: make(map[string]*goimagehash.ImageHash),
	}
}

// Hash returns the average hash of the photo at url, nil if unavailable
func (h *PhotoHasher) Hash(ctx context.Context, url string) *goimagehash.ImageHash {
	if h == nil || h.images == nil || url == "" {
		return nil
	}

	h.mu.Lock()
	hash, done := h.hashes[url]
	h.mu.Unlock()
	if done {
		return hash
	}

	if img := h.images.Image(ctx, url); img != nil {
		var err error
		hash, err = goimagehash.AverageHash(img)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("could not hash photo")
			hash = nil
		}
	}

	h.mu.Lock()
	h.hashes[url] = hash
	h.mu.Unlock()
	return hash
}

// Prefetch hashes every url with at most limit concurrent downloads
func (h *PhotoHasher) Prefetch(ctx context.Context, urls []string, limit int) {
	if h == nil || h.images == nil || len(urls) == 0 {
		return
	}
	if limit <= 0 {
		limit = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, url := range urls {
		url := url
		g.Go(func() error {
			h.Hash(ctx, url)
			return nil
		})
	}
	_ = g.Wait()
}

// Similar reports whether two photos hash within threshold of each other
func (h *PhotoHasher) Similar(ctx context.Context, urlA, urlB string, threshold int) bool {
	a := h.Hash(ctx, urlA)
	b := h.Hash(ctx, urlB)
	if a == nil || b == nil {
		return false
	}
	dist, err := a.Distance(b)
	if err != nil {
		return false
	}
	return dist < threshold
}
