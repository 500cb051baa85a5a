package cache

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"flatsift/identity"
)

const maxImageBytes = 50 * 1024 * 1024

// DefaultMaxImages bounds the decoded images kept in memory
const DefaultMaxImages = 200

// BlobStore persists raw image bytes between runs
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ImageCache maps photo URLs to decoded images. Misses look into the blob
// store first, then download; successful downloads are written back to the
// store, failures are not, so they get retried on the next run.
type ImageCache struct {
	*MemoryCache[image.Image]
	store      BlobStore
	httpClient *http.Client
}

// NewImageCache builds an image cache; store may be nil for a memory-only cache
func NewImageCache(maxItems int, store BlobStore, client *http.Client) *ImageCache {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	c := &ImageCache{store: store, httpClient: client}
	c.MemoryCache = NewMemoryCache[image.Image](maxItems, c.retrieve)
	return c
}

// KeyFor is the blob key an image URL is persisted under
func (c *ImageCache) KeyFor(url string) string {
	return identity.URLFingerprint(url)
}

// HasStore reports whether downloaded images are persisted
func (c *ImageCache) HasStore() bool {
	return c.store != nil
}

// Image returns the decoded image for url, or nil when it cannot be had
func (c *ImageCache) Image(ctx context.Context, url string) image.Image {
	img, ok := c.Get(ctx, url)
	if !ok {
		return nil
	}
	return img
}

func (c *ImageCache) retrieve(ctx context.Context, url string) (image.Image, bool) {
	key := c.KeyFor(url)

	if c.store != nil {
		if data, err := c.store.Get(ctx, key); err == nil {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err == nil {
				return img, true
			}
			log.Debug().Err(err).Str("url", url).Msg("stored image unreadable, downloading again")
		}
	}

	data, contentType, err := c.download(ctx, url)
	if err != nil {
		log.Info().Err(err).Str("url", url).Msg("image download failed")
		return nil, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Info().Err(err).Str("url", url).Msg("image decode failed")
		return nil, false
	}

	if c.store != nil {
		if err := c.store.Put(ctx, key, data, contentType); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("could not persist image")
		}
	}
	return img, true
}

func (c *ImageCache) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "download")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", eris.Wrap(err, "read body")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
