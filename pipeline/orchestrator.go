// Package pipeline runs listings through the filtering passes of a
// constraint: exact deduplication, metadata guessing, constraint checks,
// detail fetching and deep duplicate detection.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"flatsift/models"
	"flatsift/services"
)

// DetailFetcher returns the full version of a listing, or nil if the
// backend has nothing more to say about it
type DetailFetcher interface {
	FetchDetails(ctx context.Context, id string) (*models.Listing, error)
}

// RunStore keeps run bookkeeping and already fetched details
type RunStore interface {
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run, res models.Result) error
	LoadDetails(ctx context.Context, id string) (*models.Listing, bool, error)
	SaveDetails(ctx context.Context, l *models.Listing) error
}

type Options struct {
	Passes             int
	Precedence         services.Precedence
	DuplicateThreshold int
	ImageHashThreshold int
	PhotoWorkers       int
	// Incremental reuses stored details instead of fetching them again
	Incremental bool
}

func DefaultOptions() Options {
	return Options{
		Passes:             3,
		Precedence:         services.DefaultPrecedence,
		DuplicateThreshold: services.DefaultDuplicateThreshold,
		ImageHashThreshold: services.DefaultImageHashThreshold,
		PhotoWorkers:       4,
		Incremental:        true,
	}
}

type Orchestrator struct {
	constraints map[string]*models.Constraint
	metadata    *services.MetadataService
	images      services.ImageSource
	fetcher     DetailFetcher
	store       RunStore
	opts        Options
}

func NewOrchestrator(constraints map[string]*models.Constraint, metadata *services.MetadataService, images services.ImageSource, opts Options) *Orchestrator {
	return &Orchestrator{
		constraints: constraints,
		metadata:    metadata,
		images:      images,
		opts:        opts,
	}
}

// SetFetcher plugs the backend used between the first and second pass
func (o *Orchestrator) SetFetcher(f DetailFetcher) {
	o.fetcher = f
}

// SetImages replaces the photo source used by deep detection. Callers set a
// fresh one before each run so cached photos do not outlive it.
func (o *Orchestrator) SetImages(images services.ImageSource) {
	o.images = images
}

// SetStore enables run bookkeeping and incremental detail fetching
func (o *Orchestrator) SetStore(s RunStore) {
	o.store = s
}

func (o *Orchestrator) Constraint(name string) (*models.Constraint, bool) {
	c, ok := o.constraints[name]
	return c, ok
}

func (o *Orchestrator) newDetector() *services.Detector {
	d := services.NewDetector(o.opts.Precedence, o.images)
	if o.opts.DuplicateThreshold > 0 {
		d.DuplicateThreshold = o.opts.DuplicateThreshold
	}
	if o.opts.ImageHashThreshold > 0 {
		d.ImageHashThreshold = o.opts.ImageHashThreshold
	}
	if o.opts.PhotoWorkers > 0 {
		d.PhotoWorkers = o.opts.PhotoWorkers
	}
	return d
}

// InitListings prepares raw listings for a constraint. Listings are copied,
// so several constraints can run on the same raw set.
func InitListings(listings []*models.Listing, constraintName string) []*models.Listing {
	out := make([]*models.Listing, 0, len(listings))
	for _, raw := range listings {
		if raw == nil {
			continue
		}
		out = append(out, initListing(raw.Clone(), constraintName))
	}
	return out
}

func initListing(l *models.Listing, constraintName string) *models.Listing {
	if len(l.URLs) == 0 && l.URL != "" {
		l.URLs = []string{l.URL}
	}
	if l.URLs == nil {
		l.URLs = []string{}
	}
	l.URL = ""
	if len(l.MergedIDs) == 0 {
		l.MergedIDs = []string{l.ID}
	}
	if l.Meta.Constraint == "" {
		l.Meta.Constraint = constraintName
	}
	return l
}

func timed(pass string, c *models.Constraint, start time.Time) {
	log.Info().Str("pass", pass).Str("constraint", c.Name).Dur("elapsed", time.Since(start)).Msg("pass done")
}

// FirstPass works on what backends return in their search results: obvious
// duplicates are folded and listings clearly off the constraint dropped
func (o *Orchestrator) FirstPass(ctx context.Context, listings []*models.Listing, c *models.Constraint) (models.Result, error) {
	defer timed("first", c, time.Now())
	log.Info().Str("constraint", c.Name).Int("listings", len(listings)).Msg("running first filtering pass")

	d := o.newDetector()
	// Same id means same object, nothing to merge
	listings, byID := d.Detect(listings, services.ByID, false, false)
	// Several backends may relay the same post
	listings, byURLs := d.Detect(listings, services.ByURLs, true, true)

	if err := o.metadata.GuessPostalCode(ctx, listings, c); err != nil {
		return models.Result{}, err
	}
	if err := o.metadata.GuessStations(ctx, listings, c); err != nil {
		return models.Result{}, err
	}

	kept, ignored := services.RefineWithHousingCriteria(listings, c)
	return models.Result{
		New:       kept,
		Ignored:   ignored,
		Duplicate: append(byID, byURLs...),
	}, nil
}

// SecondPass runs once details are fetched: metadata is confirmed, travel
// times computed and every constraint check applied
func (o *Orchestrator) SecondPass(ctx context.Context, listings []*models.Listing, c *models.Constraint) (models.Result, error) {
	defer timed("second", c, time.Now())
	log.Info().Str("constraint", c.Name).Int("listings", len(listings)).Msg("running second filtering pass")

	if err := o.metadata.GuessPostalCode(ctx, listings, c); err != nil {
		return models.Result{}, err
	}
	if err := o.metadata.GuessStations(ctx, listings, c); err != nil {
		return models.Result{}, err
	}
	o.metadata.ComputeTravelTimes(ctx, listings, c)

	kept, ignoredHousing := services.RefineWithHousingCriteria(listings, c)
	kept, ignoredDetails := services.RefineWithDetailsCriteria(kept, c)
	return models.Result{
		New:     kept,
		Ignored: append(ignoredHousing, ignoredDetails...),
	}, nil
}

// ThirdPass looks for duplicates using every available field
func (o *Orchestrator) ThirdPass(ctx context.Context, listings []*models.Listing, c *models.Constraint) models.Result {
	defer timed("third", c, time.Now())
	log.Info().Str("constraint", c.Name).Int("listings", len(listings)).Msg("running third filtering pass")

	survivors, duplicates := o.newDetector().DeepDetect(ctx, listings)
	return models.Result{New: survivors, Duplicate: duplicates}
}

// FilterListings runs the configured passes of a constraint on raw listings.
// An unknown constraint yields an empty result; an error is only returned
// when the reference data is missing.
func (o *Orchestrator) FilterListings(ctx context.Context, constraintName string, raw []*models.Listing, fetchDetails bool) (models.Result, error) {
	c, ok := o.constraints[constraintName]
	if !ok {
		log.Error().Str("constraint", constraintName).Msg("unknown constraint, skipping")
		return models.Result{}, nil
	}

	run := models.NewRun(constraintName, o.opts.Passes)
	if o.store != nil {
		if err := o.store.CreateRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("constraint", constraintName).Msg("could not record run")
		}
	}

	res := models.Result{New: InitListings(raw, constraintName)}

	if o.opts.Passes >= 1 {
		pass, err := o.FirstPass(ctx, res.New, c)
		if err != nil {
			return models.Result{}, err
		}
		res.New = pass.New
		res.Absorb(pass)
	}

	if fetchDetails && o.fetcher != nil {
		res.New = o.fetchDetails(ctx, res.New, constraintName)
	}

	if o.opts.Passes >= 2 {
		pass, err := o.SecondPass(ctx, res.New, c)
		if err != nil {
			return models.Result{}, err
		}
		res.New = pass.New
		res.Absorb(pass)
	}

	if o.opts.Passes >= 3 {
		pass := o.ThirdPass(ctx, res.New, c)
		res.New = pass.New
		res.Absorb(pass)
	}

	run.Finish(res)
	log.Info().
		Str("constraint", constraintName).
		Int("new", run.NewCount).
		Int("duplicate", run.DuplicateCount).
		Int("ignored", run.IgnoredCount).
		Msg("constraint filtered")

	if o.store != nil {
		if err := o.store.FinishRun(ctx, run, res); err != nil {
			log.Warn().Err(err).Str("constraint", constraintName).Msg("could not record run result")
		}
	}
	return res, nil
}

// FilterAll filters each constraint listing set in turn
func (o *Orchestrator) FilterAll(ctx context.Context, byConstraint map[string][]*models.Listing, fetchDetails bool) (map[string]models.Result, error) {
	out := make(map[string]models.Result, len(byConstraint))
	for name, listings := range byConstraint {
		res, err := o.FilterListings(ctx, name, listings, fetchDetails)
		if err != nil {
			return out, err
		}
		out[name] = res
	}
	return out, nil
}

// fetchDetails merges the full version of each listing into it, the details
// taking precedence. Listings whose details cannot be fetched are kept as is.
func (o *Orchestrator) fetchDetails(ctx context.Context, listings []*models.Listing, constraintName string) []*models.Listing {
	start := time.Now()
	out := make([]*models.Listing, 0, len(listings))
	for i, l := range listings {
		log.Debug().Str("listing", l.ID).Int("index", i+1).Int("total", len(listings)).Msg("fetching details")

		details := o.loadDetails(ctx, l.ID)
		if details == nil {
			out = append(out, l)
			continue
		}
		out = append(out, services.MergeListings(l, initListing(details, constraintName)))
	}
	log.Info().Int("listings", len(listings)).Dur("elapsed", time.Since(start)).Msg("details fetched")
	return out
}

func (o *Orchestrator) loadDetails(ctx context.Context, id string) *models.Listing {
	if o.opts.Incremental && o.store != nil {
		stored, ok, err := o.store.LoadDetails(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("listing", id).Msg("could not read stored details")
		} else if ok {
			return stored
		}
	}

	details, err := o.fetcher.FetchDetails(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("listing", id).Msg("could not fetch details")
		return nil
	}
	if details == nil {
		return nil
	}
	if details.ID == "" {
		details.ID = id
	}

	if o.store != nil {
		if err := o.store.SaveDetails(ctx, details); err != nil {
			log.Warn().Err(err).Str("listing", id).Msg("could not store details")
		}
	}
	return details
}
