package workers

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flatsift/cache"
	"flatsift/models"
)

// DefaultPhotoWorkers bounds concurrent photo downloads
const DefaultPhotoWorkers = 8

// PhotoCache fetches images and names the blob they are kept under.
// HasStore is false for a memory-only cache, nothing is persisted then.
type PhotoCache interface {
	Image(ctx context.Context, url string) image.Image
	KeyFor(url string) string
	HasStore() bool
}

// PhotoWorker downloads the photos of listings so they survive the listing
// going offline, and records where each one was stored.
type PhotoWorker struct {
	cache     PhotoCache
	workers   int
	triggerCh chan struct{}

	mu      sync.Mutex
	pending []*models.Listing
}

// PhotoStats counts the outcome of one batch
type PhotoStats struct {
	Downloaded int
	Skipped    int
	Failed     int
}

func NewPhotoWorker(cache PhotoCache, workers int) *PhotoWorker {
	if workers <= 0 {
		workers = DefaultPhotoWorkers
	}
	return &PhotoWorker{
		cache:     cache,
		workers:   workers,
		triggerCh: make(chan struct{}, 1),
	}
}

// Process downloads every photo of the listings not downloaded yet. Photo.Local
// is set on success when the cache persists images; failures leave it empty
// and are retried next time.
func (w *PhotoWorker) Process(ctx context.Context, listings []*models.Listing) PhotoStats {
	var downloaded, skipped, failed atomic.Int64
	persisted := w.cache.HasStore()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for _, l := range listings {
		l := l
		for i := range l.Photos {
			photo := &l.Photos[i]
			if photo.Local != "" || photo.URL == "" {
				skipped.Add(1)
				continue
			}
			g.Go(func() error {
				if w.cache.Image(gctx, photo.URL) == nil {
					log.Debug().Str("listing", l.ID).Str("url", photo.URL).Msg("photo download failed")
					failed.Add(1)
					return nil
				}
				if persisted {
					photo.Local = w.cache.KeyFor(photo.URL)
				}
				downloaded.Add(1)
				return nil
			})
		}
	}
	g.Wait()

	return PhotoStats{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
}

// Enqueue schedules listings for the next batch and wakes the worker
func (w *PhotoWorker) Enqueue(listings ...*models.Listing) {
	w.mu.Lock()
	w.pending = append(w.pending, listings...)
	w.mu.Unlock()
	w.Trigger()
}

// Trigger wakes the worker without waiting for the next tick
func (w *PhotoWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *PhotoWorker) drain() []*models.Listing {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.pending
	w.pending = nil
	return batch
}

// Run processes queued listings on every trigger or tick until ctx is done
func (w *PhotoWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("photo worker stopping")
			return
		case <-ticker.C:
		case <-w.triggerCh:
		}

		batch := w.drain()
		if len(batch) == 0 {
			continue
		}
		start := time.Now()
		stats := w.Process(ctx, batch)
		log.Info().
			Int("listings", len(batch)).
			Int("downloaded", stats.Downloaded).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Dur("elapsed", time.Since(start)).
			Msg("photos processed")
		if rates, ok := w.cache.(cache.RateReporter); ok {
			cache.LogRates(rates, "photo worker")
		}
	}
}
