package sink

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/discovery"
)

// Pool is the subset of pgxpool.Pool used by PostgresSink. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresSink stores leads in Postgres.
type PostgresSink struct {
	pool Pool
}

// NewPostgres connects a pool and pings it.
func NewPostgres(ctx context.Context, connString string) (*PostgresSink, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresSink{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	lead_id       TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	business_name TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	keyword       TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL,
	source        TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	domain        TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	place_id      TEXT NOT NULL DEFAULT '',
	rating        DOUBLE PRECISION,
	reviews       INTEGER,
	socials       TEXT NOT NULL DEFAULT '',
	discovered_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_run_id ON leads(run_id);

CREATE TABLE IF NOT EXISTS lead_runs (
	run_id  TEXT NOT NULL,
	lead_id TEXT NOT NULL REFERENCES leads(lead_id),
	PRIMARY KEY (run_id, lead_id)
);

INSERT INTO lead_runs (run_id, lead_id) SELECT run_id, lead_id FROM leads ON CONFLICT DO NOTHING;
`

// Migrate creates the leads and lead_runs tables.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresSink) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

const postgresUpsert = `INSERT INTO leads (
	lead_id, run_id, business_name, location, keyword, email, source, confidence, status,
	domain, website, phone, address, place_id, rating, reviews, socials, discovered_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (lead_id) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	business_name = EXCLUDED.business_name,
	location = EXCLUDED.location,
	keyword = EXCLUDED.keyword,
	email = EXCLUDED.email,
	source = EXCLUDED.source,
	confidence = EXCLUDED.confidence,
	status = EXCLUDED.status,
	domain = EXCLUDED.domain,
	website = EXCLUDED.website,
	phone = EXCLUDED.phone,
	address = EXCLUDED.address,
	place_id = EXCLUDED.place_id,
	rating = EXCLUDED.rating,
	reviews = EXCLUDED.reviews,
	socials = EXCLUDED.socials,
	discovered_at = EXCLUDED.discovered_at`

const postgresAddRun = `INSERT INTO lead_runs (run_id, lead_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

// Persist upserts the leads and records their run membership in one
// transaction.
func (s *PostgresSink) Persist(ctx context.Context, leads []*discovery.VerifiedLead) error {
	rows := uniqueRows(leads)
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range rows {
		if _, err := tx.Exec(ctx, postgresUpsert, rowArgs(r)...); err != nil {
			return eris.Wrapf(err, "postgres: upsert lead %s", r.LeadID)
		}
		if _, err := tx.Exec(ctx, postgresAddRun, r.RunID, r.LeadID); err != nil {
			return eris.Wrapf(err, "postgres: add lead %s to run %s", r.LeadID, r.RunID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

// ListByRunID returns every lead the run persisted, including leads an
// earlier run wrote first, ordered by discovery time.
func (s *PostgresSink) ListByRunID(ctx context.Context, runID string) ([]*discovery.VerifiedLead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM lead_runs m JOIN leads l ON l.lead_id = m.lead_id
		WHERE m.run_id = $1 ORDER BY l.discovered_at, l.lead_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leads for run %s", runID)
	}
	defer rows.Close()

	var out []*discovery.VerifiedLead
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, r.Lead())
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate leads")
}
