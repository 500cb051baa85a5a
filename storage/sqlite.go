package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"flatsift/geo"
	"flatsift/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", dbPath)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "migrate")
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS postal_codes (
		id INTEGER PRIMARY KEY,
		area TEXT NOT NULL,
		postal_code TEXT NOT NULL,
		insee_code TEXT,
		name TEXT NOT NULL,
		lat REAL,
		lng REAL
	);

	CREATE TABLE IF NOT EXISTS public_transports (
		id INTEGER PRIMARY KEY,
		area TEXT NOT NULL,
		name TEXT NOT NULL,
		lat REAL,
		lng REAL
	);

	CREATE TABLE IF NOT EXISTS fetched_details (
		id TEXT PRIMARY KEY,
		data JSON NOT NULL,
		fetched_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		constraint_name TEXT NOT NULL,
		passes INTEGER,
		started_at DATETIME,
		finished_at DATETIME,
		new INTEGER DEFAULT 0,
		duplicate INTEGER DEFAULT 0,
		ignored INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS listing_status (
		run_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (run_id, listing_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_postal_codes_area ON postal_codes(area);
	CREATE INDEX IF NOT EXISTS idx_public_transports_area ON public_transports(area);
	CREATE INDEX IF NOT EXISTS idx_runs_constraint ON runs(constraint_name, started_at);
	CREATE INDEX IF NOT EXISTS idx_listing_status_listing ON listing_status(listing_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// areaClause builds the optional "WHERE area IN (...)" filter
func areaClause(areas []string, placeholder func(i int) string) (string, []any) {
	if len(areas) == 0 {
		return "", nil
	}
	marks := make([]string, len(areas))
	args := make([]any, len(areas))
	for i, a := range areas {
		marks[i] = placeholder(i + 1)
		args[i] = a
	}
	return " WHERE area IN (" + strings.Join(marks, ", ") + ")", args
}

func sqlitePlaceholder(int) string { return "?" }

// =============================================================================
// Reference data
// =============================================================================

func (s *SQLiteStore) PostalCodes(ctx context.Context, areas []string) ([]models.PostalCode, error) {
	where, args := areaClause(areas, sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx, `
		SELECT area, postal_code, COALESCE(insee_code, ''), name, lat, lng
		FROM postal_codes`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query postal codes")
	}
	defer rows.Close()

	var pcs []models.PostalCode
	for rows.Next() {
		var pc models.PostalCode
		if err := rows.Scan(&pc.Area, &pc.PostalCode, &pc.InseeCode, &pc.Name, &pc.Lat, &pc.Lng); err != nil {
			return nil, eris.Wrap(err, "scan postal code")
		}
		pcs = append(pcs, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate postal codes")
	}
	if len(pcs) == 0 {
		return nil, s.emptyOrUnavailable(ctx, "postal_codes")
	}
	return pcs, nil
}

func (s *SQLiteStore) Stations(ctx context.Context, areas []string) ([]models.Station, error) {
	where, args := areaClause(areas, sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx, `
		SELECT area, name, lat, lng
		FROM public_transports`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query stations")
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.Area, &st.Name, &st.Lat, &st.Lng); err != nil {
			return nil, eris.Wrap(err, "scan station")
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate stations")
	}
	if len(stations) == 0 {
		return nil, s.emptyOrUnavailable(ctx, "public_transports")
	}
	return stations, nil
}

// emptyOrUnavailable tells an area with no rows apart from a table that was never filled
func (s *SQLiteStore) emptyOrUnavailable(ctx context.Context, table string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return eris.Wrapf(err, "count %s", table)
	}
	if count == 0 {
		return geo.ErrDataUnavailable
	}
	return nil
}

// ReplaceReferenceData swaps the whole reference dataset in one transaction
func (s *SQLiteStore) ReplaceReferenceData(ctx context.Context, pcs []models.PostalCode, stations []models.Station) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM postal_codes`); err != nil {
		return eris.Wrap(err, "clear postal codes")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM public_transports`); err != nil {
		return eris.Wrap(err, "clear stations")
	}

	pcStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO postal_codes (area, postal_code, insee_code, name, lat, lng)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "prepare postal codes")
	}
	defer pcStmt.Close()
	for _, pc := range pcs {
		if _, err := pcStmt.ExecContext(ctx, pc.Area, pc.PostalCode, pc.InseeCode, pc.Name, pc.Lat, pc.Lng); err != nil {
			return eris.Wrapf(err, "insert postal code %s", pc.PostalCode)
		}
	}

	stStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO public_transports (area, name, lat, lng) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "prepare stations")
	}
	defer stStmt.Close()
	for _, st := range stations {
		if _, err := stStmt.ExecContext(ctx, st.Area, st.Name, st.Lat, st.Lng); err != nil {
			return eris.Wrapf(err, "insert station %s", st.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "commit")
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, constraint_name, passes, started_at)
		VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.ConstraintName, run.Passes, run.StartedAt)
	return eris.Wrapf(err, "create run %s", run.ID)
}

// FinishRun stores the run counts and the status of every listing it produced
func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.Run, res models.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, new = ?, duplicate = ?, ignored = ?
		WHERE id = ?`,
		run.FinishedAt, run.NewCount, run.DuplicateCount, run.IgnoredCount, run.ID.String())
	if err != nil {
		return eris.Wrapf(err, "update run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO listing_status (run_id, listing_id, status) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "prepare listing status")
	}
	defer stmt.Close()
	for _, status := range []models.Status{models.StatusNew, models.StatusDuplicate, models.StatusIgnored} {
		for _, l := range res.Bucket(status) {
			if _, err := stmt.ExecContext(ctx, run.ID.String(), l.ID, string(status)); err != nil {
				return eris.Wrapf(err, "insert status of %s", l.ID)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "commit")
}

func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var run models.Run
	var rawID string
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, constraint_name, passes, started_at, finished_at, new, duplicate, ignored
		FROM runs WHERE id = ?`, id.String()).Scan(
		&rawID, &run.ConstraintName, &run.Passes, &run.StartedAt, &finished,
		&run.NewCount, &run.DuplicateCount, &run.IgnoredCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get run %s", id)
	}
	if run.ID, err = uuid.Parse(rawID); err != nil {
		return nil, eris.Wrapf(err, "parse run id %q", rawID)
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// ListingStatuses returns the status of each listing id of a run
func (s *SQLiteStore) ListingStatuses(ctx context.Context, runID uuid.UUID) (map[string]models.Status, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT listing_id, status FROM listing_status WHERE run_id = ?`, runID.String())
	if err != nil {
		return nil, eris.Wrap(err, "query listing status")
	}
	defer rows.Close()

	statuses := make(map[string]models.Status)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, eris.Wrap(err, "scan listing status")
		}
		status, err := models.ParseStatus(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "listing %s", id)
		}
		statuses[id] = status
	}
	return statuses, rows.Err()
}

// =============================================================================
// Fetched details
// =============================================================================

func (s *SQLiteStore) LoadDetails(ctx context.Context, id string) (*models.Listing, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM fetched_details WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "load details of %s", id)
	}
	var l models.Listing
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, false, eris.Wrapf(err, "decode details of %s", id)
	}
	return &l, true, nil
}

func (s *SQLiteStore) SaveDetails(ctx context.Context, l *models.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return eris.Wrapf(err, "encode details of %s", l.ID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fetched_details (id, data, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		l.ID, string(data), time.Now())
	return eris.Wrapf(err, "save details of %s", l.ID)
}
