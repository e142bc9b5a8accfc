package sink

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/doernaz/brandlift/internal/discovery"
)

// SQLiteSink stores leads in a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSink{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	lead_id       TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	business_name TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	keyword       TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL,
	source        TEXT NOT NULL,
	confidence    REAL NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	domain        TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	place_id      TEXT NOT NULL DEFAULT '',
	rating        REAL,
	reviews       INTEGER,
	socials       TEXT NOT NULL DEFAULT '',
	discovered_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_run_id ON leads(run_id);

CREATE TABLE IF NOT EXISTS lead_runs (
	run_id  TEXT NOT NULL,
	lead_id TEXT NOT NULL REFERENCES leads(lead_id),
	PRIMARY KEY (run_id, lead_id)
);

INSERT OR IGNORE INTO lead_runs (run_id, lead_id) SELECT run_id, lead_id FROM leads;
`

// Migrate creates the leads and lead_runs tables.
func (s *SQLiteSink) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteSink) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

const sqliteUpsert = `INSERT INTO leads (
	lead_id, run_id, business_name, location, keyword, email, source, confidence, status,
	domain, website, phone, address, place_id, rating, reviews, socials, discovered_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(lead_id) DO UPDATE SET
	run_id = excluded.run_id,
	business_name = excluded.business_name,
	location = excluded.location,
	keyword = excluded.keyword,
	email = excluded.email,
	source = excluded.source,
	confidence = excluded.confidence,
	status = excluded.status,
	domain = excluded.domain,
	website = excluded.website,
	phone = excluded.phone,
	address = excluded.address,
	place_id = excluded.place_id,
	rating = excluded.rating,
	reviews = excluded.reviews,
	socials = excluded.socials,
	discovered_at = excluded.discovered_at`

const sqliteAddRun = `INSERT OR IGNORE INTO lead_runs (run_id, lead_id) VALUES (?, ?)`

// Persist upserts the leads and records their run membership in one
// transaction.
func (s *SQLiteSink) Persist(ctx context.Context, leads []*discovery.VerifiedLead) error {
	rows := uniqueRows(leads)
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	member, err := tx.PrepareContext(ctx, sqliteAddRun)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare run membership")
	}
	defer member.Close() //nolint:errcheck

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, rowArgs(r)...); err != nil {
			return eris.Wrapf(err, "sqlite: upsert lead %s", r.LeadID)
		}
		if _, err := member.ExecContext(ctx, r.RunID, r.LeadID); err != nil {
			return eris.Wrapf(err, "sqlite: add lead %s to run %s", r.LeadID, r.RunID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// ListByRunID returns every lead the run persisted, including leads an
// earlier run wrote first, ordered by discovery time.
func (s *SQLiteSink) ListByRunID(ctx context.Context, runID string) ([]*discovery.VerifiedLead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM lead_runs m JOIN leads l ON l.lead_id = m.lead_id
		WHERE m.run_id = ? ORDER BY l.discovered_at, l.lead_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list leads for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []*discovery.VerifiedLead
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, r.Lead())
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

// memberColumns selects a lead joined to one of its runs; the run id comes
// from the membership row so listings report the run that was asked for.
const memberColumns = `l.lead_id, m.run_id, l.business_name, l.location, l.keyword, l.email, l.source,
	l.confidence, l.status, l.domain, l.website, l.phone, l.address, l.place_id, l.rating, l.reviews,
	l.socials, l.discovered_at`

func rowArgs(r Row) []any {
	return []any{
		r.LeadID, r.RunID, r.BusinessName, r.Location, r.Keyword, r.Email, r.Source, r.Confidence, r.Status,
		r.Domain, r.Website, r.Phone, r.Address, r.PlaceID, r.Rating, r.Reviews, r.Socials, r.DiscoveredAt,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (Row, error) {
	var r Row
	err := sc.Scan(
		&r.LeadID, &r.RunID, &r.BusinessName, &r.Location, &r.Keyword, &r.Email, &r.Source, &r.Confidence, &r.Status,
		&r.Domain, &r.Website, &r.Phone, &r.Address, &r.PlaceID, &r.Rating, &r.Reviews, &r.Socials, &r.DiscoveredAt,
	)
	return r, err
}
