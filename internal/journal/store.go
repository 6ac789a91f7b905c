package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxelmind/go-perception/internal/belief"
	"github.com/voxelmind/go-perception/internal/evidence"
	"github.com/voxelmind/go-perception/internal/reflex"
	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tick_id     INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS envelopes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	bot_id      TEXT NOT NULL,
	stream_id   TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	tick_id     INTEGER NOT NULL,
	event_count INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reflex_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type      TEXT NOT NULL,
	reason          TEXT,
	tick_id         INTEGER NOT NULL,
	remaining_ticks INTEGER NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	detail      TEXT,
	tick_id     INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store

// Store is the append-only audit journal. It records input batches,
// envelopes, reflex events, and drop diagnostics for inspection, fixture
// export, and replay verification. The live
// pipeline never reads it back: belief state does not survive a restart.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite journal and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for ad hoc inspection queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region append

// AppendBatch records one input batch.
func (s *Store) AppendBatch(b evidence.Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO batches (tick_id, payload, created_at) VALUES (?, ?, ?)`,
		b.TickID, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append batch: %w", err)
	}
	return nil
}

// AppendEnvelope records one emitted envelope in canonical form.
func (s *Store) AppendEnvelope(env *belief.Envelope, tickID int64) error {
	canon, err := env.MarshalCanonical()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO envelopes (bot_id, stream_id, seq, tick_id, event_count, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		env.BotID, env.StreamID, env.Seq, tickID, len(env.SaliencyEvents),
		string(canon), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append envelope: %w", err)
	}
	return nil
}

// AppendReflexEvent records one arbitrator event.
func (s *Store) AppendReflexEvent(ev reflex.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO reflex_events (event_type, reason, tick_id, remaining_ticks, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(ev.Type), nullIfEmpty(ev.Reason), ev.Tick, ev.RemainingTicks,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append reflex event: %w", err)
	}
	return nil
}

// AppendDiagnostic records a drop or contract-violation diagnostic.
func (s *Store) AppendDiagnostic(kind, detail string, tickID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO diagnostics (kind, detail, tick_id, created_at) VALUES (?, ?, ?, ?)`,
		kind, nullIfEmpty(detail), tickID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append diagnostic: %w", err)
	}
	return nil
}

// #endregion append

// #region read

// EnvelopeRow is one journaled envelope.
type EnvelopeRow struct {
	BotID      string
	StreamID   string
	Seq        int64
	TickID     int64
	EventCount int
	Payload    string
	CreatedAt  string
}

// ListEnvelopes returns journaled envelopes in emission order.
func (s *Store) ListEnvelopes(limit int) ([]EnvelopeRow, error) {
	rows, err := s.db.Query(
		`SELECT bot_id, stream_id, seq, tick_id, event_count, payload, created_at
		 FROM envelopes ORDER BY id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	defer rows.Close()

	var out []EnvelopeRow
	for rows.Next() {
		var r EnvelopeRow
		if err := rows.Scan(&r.BotID, &r.StreamID, &r.Seq, &r.TickID, &r.EventCount, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan envelope: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListBatches returns journaled input batches in tick order.
func (s *Store) ListBatches() ([]evidence.Batch, error) {
	rows, err := s.db.Query(`SELECT payload FROM batches ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []evidence.Batch
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		var b evidence.Batch
		if err := json.Unmarshal([]byte(payload), &b); err != nil {
			return nil, fmt.Errorf("unmarshal batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReflexEventRow is one journaled arbitrator event.
type ReflexEventRow struct {
	EventType      string
	Reason         string
	TickID         int64
	RemainingTicks int64
	CreatedAt      string
}

// ListReflexEvents returns journaled arbitrator events in order.
func (s *Store) ListReflexEvents(limit int) ([]ReflexEventRow, error) {
	rows, err := s.db.Query(
		`SELECT event_type, reason, tick_id, remaining_ticks, created_at
		 FROM reflex_events ORDER BY id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reflex events: %w", err)
	}
	defer rows.Close()

	var out []ReflexEventRow
	for rows.Next() {
		var r ReflexEventRow
		var reason sql.NullString
		if err := rows.Scan(&r.EventType, &reason, &r.TickID, &r.RemainingTicks, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reflex event: %w", err)
		}
		if reason.Valid {
			r.Reason = reason.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion read

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
