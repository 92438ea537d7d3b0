package recorder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know; it uses '?' placeholders.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore persists rankings, scores and the watch list in SQLite or PostgreSQL.
type SQLStore struct {
	db      *sqlx.DB
	driver  string
	timeout time.Duration
	mu      sync.Mutex // serializes writes; SQLite allows one writer
}

// Open connects to the database and runs migrations.
func Open(driver, dsn string, timeout time.Duration) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &SQLStore{db: db, driver: driver, timeout: timeout}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("driver", driver).Msg("store opened")
	return s, nil
}

// sqliteDSN enables WAL so API reads do not block the batch writer.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Migrate creates the tables. It is idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			asset_id TEXT PRIMARY KEY,
			symbol   TEXT NOT NULL DEFAULT '',
			name     TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS rank_snapshots (
			asset_id   TEXT NOT NULL,
			ts         BIGINT NOT NULL,
			rank       INTEGER NOT NULL,
			price      DOUBLE PRECISION NOT NULL DEFAULT 0,
			market_cap DOUBLE PRECISION NOT NULL DEFAULT 0,
			volume_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (asset_id, ts)
		)`,

		`CREATE TABLE IF NOT EXISTS exchange_volumes (
			asset_id TEXT NOT NULL,
			ts       BIGINT NOT NULL,
			exchange TEXT NOT NULL,
			volume   DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (asset_id, ts, exchange)
		)`,

		`CREATE TABLE IF NOT EXISTS asset_metadata (
			asset_id              TEXT PRIMARY KEY,
			last_commit_at        BIGINT,
			exchanges             TEXT,
			pump_group_confidence DOUBLE PRECISION
		)`,

		`CREATE TABLE IF NOT EXISTS market_context (
			ts            BIGINT PRIMARY KEY,
			btc_dominance DOUBLE PRECISION NOT NULL,
			trend         TEXT NOT NULL DEFAULT 'flat',
			sentiment     TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS score_snapshots (
			asset_id                  TEXT NOT NULL,
			window_days               INTEGER NOT NULL,
			ts                        BIGINT NOT NULL,
			base_velocity             DOUBLE PRECISION NOT NULL,
			consistency_score         DOUBLE PRECISION NOT NULL,
			volume_score              DOUBLE PRECISION NOT NULL,
			persistence_score         DOUBLE PRECISION NOT NULL,
			red_flags_penalty         DOUBLE PRECISION NOT NULL,
			market_context_multiplier DOUBLE PRECISION NOT NULL,
			rr_score                  DOUBLE PRECISION NOT NULL,
			phase                     TEXT NOT NULL,
			tracking_phase            TEXT NOT NULL,
			days_tracking             INTEGER NOT NULL,
			start_rank                INTEGER NOT NULL,
			end_rank                  INTEGER NOT NULL,
			insufficient_data         INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (asset_id, window_days, ts)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_window_ts ON score_snapshots(window_days, ts)`,

		`CREATE TABLE IF NOT EXISTS watch_list (
			asset_id       TEXT PRIMARY KEY,
			symbol         TEXT NOT NULL DEFAULT '',
			name           TEXT NOT NULL DEFAULT '',
			detection_date BIGINT NOT NULL,
			initial_rank   INTEGER NOT NULL,
			initial_score  DOUBLE PRECISION NOT NULL,
			peak_rank      INTEGER NOT NULL,
			peak_date      BIGINT NOT NULL,
			current_rank   INTEGER NOT NULL,
			current_score  DOUBLE PRECISION NOT NULL,
			status         TEXT NOT NULL,
			notes          TEXT NOT NULL DEFAULT '',
			updated_at     BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS batch_runs (
			run_id          TEXT PRIMARY KEY,
			started_at      BIGINT NOT NULL,
			finished_at     BIGINT NOT NULL DEFAULT 0,
			scored          INTEGER NOT NULL DEFAULT 0,
			skipped         INTEGER NOT NULL DEFAULT 0,
			watch_mutations INTEGER NOT NULL DEFAULT 0,
			status          TEXT NOT NULL,
			error           TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON batch_runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i > 0 {
		return stmt[:i]
	}
	return stmt
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	log.Info().Str("driver", s.driver).Msg("closing store")
	return s.db.Close()
}

func (s *SQLStore) q(query string) string { return s.db.Rebind(query) }

func unix(t time.Time) int64 { return t.Unix() }

func fromUnix(ts int64) time.Time { return time.Unix(ts, 0).UTC() }
