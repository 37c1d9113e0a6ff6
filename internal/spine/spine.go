// Package spine implements the Event Spine: the durable, append-only
// log that is the execution core's single source of truth (spec.md
// §4.B). It is deliberately thin — raw database/sql against either
// Postgres (lib/pq) or an embedded SQLite file (mattn/go-sqlite3),
// mirroring the hand-rolled SQL the rest of this codebase's storage
// layer uses rather than reaching for an ORM here: the Spine's access
// pattern is three statements (insert, select-range, max-seq) and an
// atomic dedup insert, not the kind of CRUD surface gorm earns its
// keep on.
package spine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/praxis-trading/core/internal/config"
	"github.com/praxis-trading/core/internal/domain"
)

// Driver identifies which SQL dialect a Spine was opened against, for
// the few statements (schema DDL, placeholder syntax) that differ.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite3"
)

// Open dials the Spine's backing store: Postgres when cfg.DatabaseURL
// is set, otherwise an embedded SQLite file at cfg.SQLitePath. The
// returned *sql.DB is caller-owned — the Spine never closes it.
func Open(cfg *config.Config) (*sql.DB, Driver, error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, "", fmt.Errorf("ping postgres: %w", err)
		}
		return db, DriverPostgres, nil
	}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return nil, "", fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, "", fmt.Errorf("ping sqlite: %w", err)
	}
	return db, DriverSQLite, nil
}

// Spine is the append-only event log. The *sql.DB is caller-owned and
// the Spine never closes it. Each Append begins and commits its own
// transaction; Append does not join a transaction of the caller's.
type Spine struct {
	db     *sql.DB
	driver Driver
}

func New(db *sql.DB, driver Driver) *Spine {
	return &Spine{db: db, driver: driver}
}

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS events (
	event_seq BIGSERIAL PRIMARY KEY,
	epoch_id BIGINT NOT NULL,
	timestamp TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_events_epoch_seq ON events (epoch_id, event_seq);
CREATE TABLE IF NOT EXISTS fill_dedup (
	epoch_id BIGINT NOT NULL,
	account_id TEXT NOT NULL,
	dedup_key TEXT NOT NULL,
	UNIQUE(epoch_id, account_id, dedup_key)
);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS events (
	event_seq INTEGER PRIMARY KEY AUTOINCREMENT,
	epoch_id INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_events_epoch_seq ON events (epoch_id, event_seq);
CREATE TABLE IF NOT EXISTS fill_dedup (
	epoch_id INTEGER NOT NULL,
	account_id TEXT NOT NULL,
	dedup_key TEXT NOT NULL,
	UNIQUE(epoch_id, account_id, dedup_key)
);
`

// EnsureSchema creates the events table, epoch index, and fill dedup
// table if they do not already exist.
func (s *Spine) EnsureSchema(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	for _, stmt := range strings.Split(schema, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Spine) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record pairs a hydrated event with the Spine sequence number it was
// assigned at append time.
type Record struct {
	EventSeq int64
	Event    domain.Event
}

// Append serializes and persists a domain event to the log. A
// FillReceived event is deduplicated by (epoch_id, account_id,
// dedup_key) atomically with its insertion into fill_dedup — the
// two statements run in one database transaction, so a duplicate
// fill never produces a partial write. Returns the assigned
// event_seq, or nil if the event was a duplicate fill and was
// dropped.
func (s *Spine) Append(ctx context.Context, event domain.Event, epochID int64) (*int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	if fill, ok := event.(*domain.FillReceived); ok {
		res, err := tx.ExecContext(ctx, s.bind(
			`INSERT INTO fill_dedup (epoch_id, account_id, dedup_key) VALUES (?, ?, ?)
			 ON CONFLICT DO NOTHING`,
		), epochID, fill.AccountID, fill.DedupKey())
		if err != nil {
			// SQLite's driver does not support "ON CONFLICT DO NOTHING"
			// uniformly across versions bundled as mattn/go-sqlite3; fall
			// back to INSERT OR IGNORE, the dialect it does support.
			res, err = tx.ExecContext(ctx, s.bind(
				`INSERT OR IGNORE INTO fill_dedup (epoch_id, account_id, dedup_key) VALUES (?, ?, ?)`,
			), epochID, fill.AccountID, fill.DedupKey())
			if err != nil {
				return nil, fmt.Errorf("fill dedup insert: %w", err)
			}
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("fill dedup rows affected: %w", err)
		}
		if rows == 0 {
			return nil, nil
		}
	}

	eventType := event.EventType()
	if _, known := registry[eventType]; !known {
		return nil, fmt.Errorf("unregistered event type %q cannot be appended", eventType)
	}
	payload, err := encode(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	var seq int64
	if s.driver == DriverPostgres {
		err = tx.QueryRowContext(ctx, s.bind(
			`INSERT INTO events (epoch_id, timestamp, event_type, payload) VALUES (?, ?, ?, ?) RETURNING event_seq`,
		), epochID, event.GetTimestamp().Format(rfc3339Offset), eventType, payload).Scan(&seq)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, s.bind(
			`INSERT INTO events (epoch_id, timestamp, event_type, payload) VALUES (?, ?, ?, ?)`,
		), epochID, event.GetTimestamp().Format(rfc3339Offset), eventType, payload)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		seq, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append tx: %w", err)
	}
	return &seq, nil
}

// Read returns events for an epoch with sequence numbers greater than
// afterSeq, ordered ascending. An event whose type is not in the
// registry is returned as a domain.UnknownEvent rather than causing
// the read to fail (spec.md §9 design notes): forward-incompatible
// history must be surfaced, not silently dropped.
func (s *Spine) Read(ctx context.Context, epochID int64, afterSeq int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(
		`SELECT event_seq, event_type, payload FROM events
		 WHERE epoch_id = ? AND event_seq > ? ORDER BY event_seq ASC`,
	), epochID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var seq int64
		var eventType string
		var payload []byte
		if err := rows.Scan(&seq, &eventType, &payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev, err := decode(eventType, payload)
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", seq, err)
		}
		out = append(out, Record{EventSeq: seq, Event: ev})
	}
	return out, rows.Err()
}

// CurrentEpoch returns the epoch this process should recover into and
// keep appending to: the highest epoch_id ever written, or 1 on an
// empty Spine (spec.md §3's Epoch definition — "a new epoch is opened
// per process lifetime or recovery boundary; replay is performed
// per-epoch"). A restart recovers by replaying this same epoch from
// its start and continues appending to it; operators advance to a
// genuinely new epoch explicitly (e.g. after an operational reset),
// not automatically on every process start.
func (s *Spine) CurrentEpoch(ctx context.Context) (int64, error) {
	var maxEpoch sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(epoch_id) FROM events`).Scan(&maxEpoch)
	if err != nil {
		return 0, fmt.Errorf("current epoch: %w", err)
	}
	if !maxEpoch.Valid {
		return 1, nil
	}
	return maxEpoch.Int64, nil
}

// LastEventSeq returns the highest event_seq for an epoch, or nil if
// the epoch has no events yet.
func (s *Spine) LastEventSeq(ctx context.Context, epochID int64) (*int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.bind(
		`SELECT MAX(event_seq) FROM events WHERE epoch_id = ?`,
	), epochID).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("last event seq: %w", err)
	}
	if !seq.Valid {
		return nil, nil
	}
	v := seq.Int64
	return &v, nil
}

// logWarn writes a warning with the given fields to the logger carried
// on ctx. It is unexported and nothing in this package calls it.
func logWarn(ctx context.Context, msg string, fields map[string]any) {
	ev := zerolog.Ctx(ctx).Warn()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
