package main

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"flatsift/cache"
	"flatsift/config"
	"flatsift/geo"
	"flatsift/httputil"
	"flatsift/logging"
	"flatsift/models"
	"flatsift/pipeline"
	"flatsift/scheduler"
	"flatsift/scraper"
	"flatsift/services"
	"flatsift/storage"
	"flatsift/workers"
)

type flags struct {
	importPath  string
	constraints []string
	passes      int
	noDetails   bool
	buildData   bool
	opendataDir string
	daemon      bool
	output      string
}

func parseFlags() flags {
	var f flags
	pflag.StringVar(&f.importPath, "import", "", "Filter the listings of a JSON dump instead of searching the backends")
	pflag.StringSliceVar(&f.constraints, "constraints", nil, "Only run these constraints (comma separated)")
	pflag.IntVar(&f.passes, "passes", -1, "Number of passes to run, 0 to 3 (overrides PASSES)")
	pflag.BoolVar(&f.noDetails, "no-details", false, "Do not fetch listing details between passes")
	pflag.BoolVar(&f.buildData, "build-data", false, "Load the opendata files into the store and exit")
	pflag.StringVar(&f.opendataDir, "opendata", "", "Directory holding the opendata files (default DATA_DIR/opendata)")
	pflag.BoolVar(&f.daemon, "daemon", false, "Run on SCHEDULE_CRON or SCHEDULE_INTERVAL until interrupted")
	pflag.StringVarP(&f.output, "output", "o", "", "Write the results as JSON to this file")
	pflag.Parse()
	return f
}

func main() {
	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logFile, err := logging.Setup(logging.Options{Path: cfg.Log.Path, Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Warn().Err(err).Msg("could not set up file logging")
	} else if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("cannot create data directory")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	if f.buildData {
		dir := f.opendataDir
		if dir == "" {
			dir = filepath.Join(cfg.DataDir, "opendata")
		}
		if err := buildData(ctx, store, dir); err != nil {
			log.Fatal().Err(err).Msg("failed to build reference data")
		}
		return
	}

	if f.passes >= 0 {
		cfg.Passes = f.passes
	}
	if err := selectConstraints(cfg, f.constraints); err != nil {
		log.Fatal().Err(err).Msg("invalid constraint selection")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.CheckPostalCodes(ctx, store); err != nil {
		if errors.Is(err, geo.ErrDataUnavailable) {
			log.Fatal().Err(err).Msg("reference data missing, run with --build-data first")
		}
		log.Warn().Err(err).Msg("constraint postal codes do not match the reference data")
	}

	clients := httputil.NewClients(cfg.ProxyURL)

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open image store")
	}
	newImageCache := func() *cache.ImageCache {
		return cache.NewImageCache(cfg.Images.MaxItems, blobs, clients.Scraping)
	}

	journey := services.NewJourneyClient(cfg.Journey.NavitiaKey, cfg.Journey.MapboxKey, clients.API)
	metadata := services.NewMetadataService(store, journey)
	metadata.PostalCodeDistance = cfg.PostalCodeDistance
	metadata.StationDistance = cfg.StationDistance

	opts := pipeline.DefaultOptions()
	opts.Passes = cfg.Passes
	opts.Precedence = services.ParsePrecedence(cfg.Precedence)
	opts.DuplicateThreshold = cfg.Duplicates.Threshold
	opts.ImageHashThreshold = cfg.Duplicates.ImageHashThreshold
	opts.PhotoWorkers = cfg.Duplicates.PhotoWorkers

	orchestrator := pipeline.NewOrchestrator(cfg.Constraints, metadata, nil, opts)
	orchestrator.SetStore(store)

	registry, err := buildRegistry(cfg, clients)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up backends")
	}

	var dump scraper.Dump
	if f.importPath != "" {
		dump, err = scraper.LoadDump(f.importPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to import listings")
		}
		registry.Add(scraper.NewDumpHandlerFrom("import", dump))
	}
	orchestrator.SetFetcher(registry)
	fetchDetails := !f.noDetails && registry.Len() > 0

	photos := workers.NewPhotoWorker(newImageCache(), cfg.Duplicates.PhotoWorkers)
	collector := scraper.NewCollector(registry)

	log.Info().
		Strs("constraints", cfg.ConstraintNames()).
		Int("passes", cfg.Passes).
		Int("backends", registry.Len()).
		Bool("details", fetchDetails).
		Msg("starting flatsift")

	run := func(ctx context.Context) (map[string]models.Result, error) {
		orchestrator.SetImages(newImageCache())

		var raw map[string][]*models.Listing
		if dump != nil {
			raw = dump.ByConstraint(cfg.ConstraintNames())
		} else {
			var stats scraper.CollectStats
			raw, stats = collector.Collect(ctx, cfg.Constraints)
			log.Info().Int("found", stats.Found).Int("errors", stats.Errors).Msg("backends searched")
		}
		return orchestrator.FilterAll(ctx, raw, fetchDetails)
	}

	if !f.daemon {
		results, err := run(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("run failed")
		}
		stats := photos.Process(ctx, newListings(results))
		log.Info().Int("downloaded", stats.Downloaded).Int("failed", stats.Failed).Msg("photos stored")
		renderSummary(results)
		if f.output != "" {
			if err := writeResults(f.output, results); err != nil {
				log.Fatal().Err(err).Msg("failed to write results")
			}
		}
		return
	}

	sched := scheduler.New(cfg.Scheduler.Cron, cfg.Scheduler.Interval, func(ctx context.Context) error {
		results, err := run(ctx)
		if err != nil {
			return err
		}
		photos.Enqueue(newListings(results)...)
		for name, res := range results {
			log.Info().
				Str("constraint", name).
				Int("new", len(res.New)).
				Int("duplicate", len(res.Duplicate)).
				Int("ignored", len(res.Ignored)).
				Msg("run summary")
		}
		if f.output != "" {
			return writeResults(f.output, results)
		}
		return nil
	})
	sched.SetWorkers(photos)

	go photos.Run(ctx, 10*time.Minute)

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	if err := sched.TriggerNow(ctx); err != nil {
		log.Error().Err(err).Msg("initial run failed")
	}

	log.Info().Msg("daemon running, press Ctrl+C to stop")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	sched.Stop()
}

// Store is what the pipeline needs from persistence
type Store interface {
	geo.Dataset
	pipeline.RunStore
	ReplaceReferenceData(ctx context.Context, pcs []models.PostalCode, stations []models.Station) error
}

func openStore(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("database", redact(cfg.DatabaseURL)).Msg("connected to Postgres")
		return pg, pg.Close, nil
	}

	sq, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("database", cfg.DBPath).Msg("using SQLite")
	return sq, func() { sq.Close() }, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (cache.BlobStore, error) {
	switch cfg.Images.Store {
	case "s3":
		s3cfg := cfg.Images.S3
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			Prefix:          s3cfg.Prefix,
		})
	case "none":
		return nil, nil
	default:
		return storage.NewDiskStore(filepath.Join(cfg.DataDir, "images"))
	}
}

func buildData(ctx context.Context, store Store, dir string) error {
	start := time.Now()
	dataset, err := geo.LoadOpendata(dir)
	if err != nil {
		return err
	}
	pcs, stations := dataset.All()
	if err := store.ReplaceReferenceData(ctx, pcs, stations); err != nil {
		return err
	}
	log.Info().
		Int("postal_codes", len(pcs)).
		Int("stations", len(stations)).
		Dur("elapsed", time.Since(start)).
		Msg("reference data built")
	return nil
}

func buildRegistry(cfg *config.Config, clients *httputil.Clients) (*scraper.Registry, error) {
	registry := scraper.NewRegistry()
	for _, id := range sortedKeys(cfg.Backends) {
		b := cfg.Backends[id]
		h, err := scraper.NewHandler(b.Handler, b.ID, b.Source, clients.Scraping)
		if err != nil {
			return nil, err
		}
		registry.Add(h)
	}
	return registry, nil
}

func selectConstraints(cfg *config.Config, names []string) error {
	if len(names) == 0 {
		return nil
	}
	selected := make(map[string]*models.Constraint, len(names))
	for _, name := range names {
		c, ok := cfg.Constraints[name]
		if !ok {
			return errors.New("unknown constraint " + name)
		}
		selected[name] = c
	}
	cfg.Constraints = selected
	return nil
}

// redact hides the password of a connection string
func redact(connString string) string {
	u, err := url.Parse(connString)
	if err != nil {
		return "(unparsable)"
	}
	return u.Redacted()
}
