package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/23016960-sys/honeypot/internal/event"
)

// appendTimeout bounds every datastore round trip. A slow store delays one
// capture step, never the response path.
const appendTimeout = 5 * time.Second

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	ts TEXT NOT NULL,
	src_ip TEXT NOT NULL,
	xff TEXT NOT NULL DEFAULT '',
	method TEXT NOT NULL,
	path TEXT NOT NULL,
	headers TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT ''
)`

const insertEvent = `
INSERT INTO events (ts, src_ip, xff, method, path, headers, body)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

// Postgres is the primary event sink: an append-only relational record of
// every captured request. Each Append acquires a connection, inserts, and
// releases on every exit path; no idle connections are retained, so worst
// case contention sits with the datastore rather than any in-process lock.
type Postgres struct {
	db *sql.DB
}

// NewPostgres prepares the primary sink. The datastore is not contacted here;
// an unreachable database surfaces on EnsureSchema or on the first Append.
func NewPostgres(dbURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(time.Minute)
	return &Postgres{db: db}, nil
}

func (p *Postgres) Name() string { return "postgres" }

// EnsureSchema creates the events table if it does not exist. Idempotent;
// called once at process start.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()
	if _, err := p.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("ensure events schema: %w", err)
	}
	return nil
}

// Append inserts the event and returns its assigned identity. Any failure is
// returned after a single attempt; the chain decides what happens next.
func (p *Postgres) Append(ctx context.Context, ev event.Event) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()
	var id int64
	err := p.db.QueryRowContext(ctx, insertEvent,
		ev.Timestamp, ev.SourceAddr, ev.ForwardedFor,
		ev.Method, ev.Path, ev.HeadersJSON(), ev.Body,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
