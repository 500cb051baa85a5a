package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"flatsift/geo"
	"flatsift/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "parse config")
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, eris.Wrap(err, "create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping")
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "migrate")
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS postal_codes (
		id BIGSERIAL PRIMARY KEY,
		area TEXT NOT NULL,
		postal_code TEXT NOT NULL,
		insee_code TEXT,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS public_transports (
		id BIGSERIAL PRIMARY KEY,
		area TEXT NOT NULL,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS fetched_details (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		fetched_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		constraint_name TEXT NOT NULL,
		passes INTEGER,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		new INTEGER DEFAULT 0,
		duplicate INTEGER DEFAULT 0,
		ignored INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS listing_status (
		run_id UUID NOT NULL REFERENCES runs(id),
		listing_id TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (run_id, listing_id)
	);

	CREATE INDEX IF NOT EXISTS idx_postal_codes_area ON postal_codes(area);
	CREATE INDEX IF NOT EXISTS idx_public_transports_area ON public_transports(area);
	CREATE INDEX IF NOT EXISTS idx_runs_constraint ON runs(constraint_name, started_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func pgPlaceholder(i int) string { return fmt.Sprintf("$%d", i) }

// =============================================================================
// Reference data
// =============================================================================

func (s *PostgresStore) PostalCodes(ctx context.Context, areas []string) ([]models.PostalCode, error) {
	where, args := areaClause(areas, pgPlaceholder)
	rows, err := s.pool.Query(ctx, `
		SELECT area, postal_code, COALESCE(insee_code, ''), name, lat, lng
		FROM postal_codes`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query postal codes")
	}
	pcs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PostalCode, error) {
		var pc models.PostalCode
		err := row.Scan(&pc.Area, &pc.PostalCode, &pc.InseeCode, &pc.Name, &pc.Lat, &pc.Lng)
		return pc, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "collect postal codes")
	}
	if len(pcs) == 0 {
		return nil, s.emptyOrUnavailable(ctx, "postal_codes")
	}
	return pcs, nil
}

func (s *PostgresStore) Stations(ctx context.Context, areas []string) ([]models.Station, error) {
	where, args := areaClause(areas, pgPlaceholder)
	rows, err := s.pool.Query(ctx, `
		SELECT area, name, lat, lng FROM public_transports`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query stations")
	}
	stations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Station, error) {
		var st models.Station
		err := row.Scan(&st.Area, &st.Name, &st.Lat, &st.Lng)
		return st, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "collect stations")
	}
	if len(stations) == 0 {
		return nil, s.emptyOrUnavailable(ctx, "public_transports")
	}
	return stations, nil
}

func (s *PostgresStore) emptyOrUnavailable(ctx context.Context, table string) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return eris.Wrapf(err, "count %s", table)
	}
	if count == 0 {
		return geo.ErrDataUnavailable
	}
	return nil
}

// ReplaceReferenceData swaps the reference dataset using COPY for the bulk insert
func (s *PostgresStore) ReplaceReferenceData(ctx context.Context, pcs []models.PostalCode, stations []models.Station) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE postal_codes, public_transports`); err != nil {
		return eris.Wrap(err, "truncate")
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"postal_codes"},
		[]string{"area", "postal_code", "insee_code", "name", "lat", "lng"},
		pgx.CopyFromSlice(len(pcs), func(i int) ([]any, error) {
			pc := pcs[i]
			return []any{pc.Area, pc.PostalCode, pc.InseeCode, pc.Name, pc.Lat, pc.Lng}, nil
		}),
	)
	if err != nil {
		return eris.Wrap(err, "copy postal codes")
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"public_transports"},
		[]string{"area", "name", "lat", "lng"},
		pgx.CopyFromSlice(len(stations), func(i int) ([]any, error) {
			st := stations[i]
			return []any{st.Area, st.Name, st.Lat, st.Lng}, nil
		}),
	)
	if err != nil {
		return eris.Wrap(err, "copy stations")
	}

	return eris.Wrap(tx.Commit(ctx), "commit")
}

// =============================================================================
// Runs
// =============================================================================

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (id, constraint_name, passes, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.ConstraintName, run.Passes, run.StartedAt)
	return eris.Wrapf(err, "create run %s", run.ID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *models.Run, res models.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE runs SET finished_at = $2, new = $3, duplicate = $4, ignored = $5
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.NewCount, run.DuplicateCount, run.IgnoredCount)
	if err != nil {
		return eris.Wrapf(err, "update run %s", run.ID)
	}

	batch := &pgx.Batch{}
	for _, status := range []models.Status{models.StatusNew, models.StatusDuplicate, models.StatusIgnored} {
		for _, l := range res.Bucket(status) {
			batch.Queue(`
				INSERT INTO listing_status (run_id, listing_id, status) VALUES ($1, $2, $3)
				ON CONFLICT (run_id, listing_id) DO UPDATE SET status = EXCLUDED.status`,
				run.ID, l.ID, string(status))
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return eris.Wrap(err, "insert listing status")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "commit")
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var run models.Run
	err := s.pool.QueryRow(ctx, `
		SELECT id, constraint_name, passes, started_at, finished_at, new, duplicate, ignored
		FROM runs WHERE id = $1`, id).Scan(
		&run.ID, &run.ConstraintName, &run.Passes, &run.StartedAt, &run.FinishedAt,
		&run.NewCount, &run.DuplicateCount, &run.IgnoredCount)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get run %s", id)
	}
	return &run, nil
}

// =============================================================================
// Fetched details
// =============================================================================

func (s *PostgresStore) LoadDetails(ctx context.Context, id string) (*models.Listing, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM fetched_details WHERE id = $1`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "load details of %s", id)
	}
	var l models.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, false, eris.Wrapf(err, "decode details of %s", id)
	}
	return &l, true, nil
}

func (s *PostgresStore) SaveDetails(ctx context.Context, l *models.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return eris.Wrapf(err, "encode details of %s", l.ID)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fetched_details (id, data, fetched_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, fetched_at = EXCLUDED.fetched_at`,
		l.ID, data, time.Now())
	return eris.Wrapf(err, "save details of %s", l.ID)
}
