package scraper

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"flatsift/models"
)

// Collector runs the searches of every handler for a set of constraints
type Collector struct {
	registry *Registry
}

func NewCollector(registry *Registry) *Collector {
	return &Collector{registry: registry}
}

// CollectStats counts what one collection produced
type CollectStats struct {
	Found  int
	Errors int
}

// Collect returns the raw listings found for each constraint. A failing
// handler is logged and skipped; the others still contribute.
func (c *Collector) Collect(ctx context.Context, constraints map[string]*models.Constraint) (map[string][]*models.Listing, CollectStats) {
	var stats CollectStats
	out := make(map[string][]*models.Listing, len(constraints))

	names := make([]string, 0, len(constraints))
	for name := range constraints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		constraint := constraints[name]
		out[name] = nil
		for _, h := range c.registry.Handlers() {
			if err := ctx.Err(); err != nil {
				return out, stats
			}

			start := time.Now()
			listings, err := h.Search(ctx, constraint)
			if err != nil {
				log.Error().Err(err).Str("backend", h.ID()).Str("constraint", name).Msg("search failed")
				stats.Errors++
				continue
			}

			out[name] = append(out[name], listings...)
			stats.Found += len(listings)
			log.Info().
				Str("backend", h.ID()).
				Str("constraint", name).
				Int("listings", len(listings)).
				Dur("elapsed", time.Since(start)).
				Msg("search done")
		}
	}

	return out, stats
}
