package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/infra/metrics"
)

// stream is the in-memory handle for one registered stream.
type stream struct {
	name     string
	fields   []string
	layout   string
	rotation int
}

// StreamInfo is the inspectable shape of a registered stream.
type StreamInfo struct {
	Name     string   `json:"name"`
	Fields   []string `json:"fields"`
	Layout   string   `json:"layout"`
	Rotation int      `json:"rotation"`
	Records  int      `json:"records"`
}

// Frame is one decoded telemetry record.
type Frame struct {
	Tick   uint64    `json:"tick"`
	Fields []string  `json:"fields"`
	Values []float64 `json:"values"`
}

// Store persists telemetry streams in SQLite. WAL mode for crash-safe
// writes; a single connection because SQLite is single-writer and every
// append already funnels through the telemetry task.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	streams map[string]*stream
}

// Open creates or opens the telemetry database at dir/telemetry.db and
// reloads the streams registered by earlier boots.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "telemetry.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, streams: make(map[string]*stream)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.reload(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reload streams: %w", err)
	}
	return s, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS streams (
			name     TEXT PRIMARY KEY,
			fields   TEXT NOT NULL,
			layout   TEXT NOT NULL,
			rotation INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			stream     TEXT NOT NULL,
			tick       INTEGER NOT NULL,
			payload    BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_stream ON records(stream, id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// reload pulls stream declarations persisted by previous boots.
func (s *Store) reload() error {
	rows, err := s.db.Query(`SELECT name, fields, layout, rotation FROM streams`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var st stream
		var fields string
		if err := rows.Scan(&st.name, &fields, &st.layout, &st.rotation); err != nil {
			return err
		}
		st.fields = strings.Split(fields, ",")
		s.streams[st.name] = &st
	}
	return rows.Err()
}

// ─── Streams ────────────────────────────────────────────────────────────────

// RegisterStream declares a stream. Re-declaring with an identical shape
// is a no-op, so processes re-register on every boot; a conflicting shape
// is rejected rather than silently migrated.
func (s *Store) RegisterStream(name string, fields []string, layout string, rotation int) error {
	if len(fields) != len(layout) {
		return fmt.Errorf("stream %s: %d fields for %d-char layout: %w", name, len(fields), len(layout), domain.ErrLayoutMismatch)
	}
	if _, err := LayoutSize(layout); err != nil {
		return fmt.Errorf("stream %s: %w", name, err)
	}
	if rotation < 0 {
		rotation = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.streams[name]; ok {
		if existing.layout == layout && strings.Join(existing.fields, ",") == strings.Join(fields, ",") {
			return nil
		}
		return fmt.Errorf("stream %s redeclared with a different shape: %w", name, domain.ErrStreamExists)
	}

	_, err := s.db.Exec(
		`INSERT INTO streams (name, fields, layout, rotation) VALUES (?, ?, ?, ?)`,
		name, strings.Join(fields, ","), layout, rotation,
	)
	if err != nil {
		return fmt.Errorf("persist stream %s: %w", name, err)
	}
	s.streams[name] = &stream{name: name, fields: fields, layout: layout, rotation: rotation}
	return nil
}

// Streams returns every registered stream with its record count.
func (s *Store) Streams() ([]StreamInfo, error) {
	s.mu.Lock()
	names := make([]string, 0, len(s.streams))
	for name := range s.streams {
		names = append(names, name)
	}
	s.mu.Unlock()

	out := make([]StreamInfo, 0, len(names))
	for _, name := range names {
		s.mu.Lock()
		st := s.streams[name]
		info := StreamInfo{Name: st.name, Fields: st.fields, Layout: st.layout, Rotation: st.rotation}
		s.mu.Unlock()

		n, err := s.Count(name)
		if err != nil {
			return nil, err
		}
		info.Records = n
		out = append(out, info)
	}
	return out, nil
}

// ─── Records ────────────────────────────────────────────────────────────────

// Append packs one record onto a stream and applies rotation.
func (s *Store) Append(name string, tick uint64, values []float64) error {
	s.mu.Lock()
	st, ok := s.streams[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("append to %q: %w", name, domain.ErrStreamUnknown)
	}

	payload, err := Encode(st.layout, values)
	if err != nil {
		return fmt.Errorf("append to %s: %w", name, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO records (stream, tick, payload, created_at) VALUES (?, ?, ?, ?)`,
		name, int64(tick), payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("append to %s: %w", name, err)
	}
	metrics.TelemetryAppends.WithLabelValues(name).Inc()

	if st.rotation > 0 {
		_, err = s.db.Exec(
			`DELETE FROM records WHERE stream = ? AND id NOT IN
			 (SELECT id FROM records WHERE stream = ? ORDER BY id DESC LIMIT ?)`,
			name, name, st.rotation,
		)
		if err != nil {
			return fmt.Errorf("rotate %s: %w", name, err)
		}
	}
	return nil
}

// Latest returns the newest record on a stream, or ErrStreamUnknown /
// sql.ErrNoRows wrapped when the stream is empty.
func (s *Store) Latest(name string) (Frame, error) {
	s.mu.Lock()
	st, ok := s.streams[name]
	s.mu.Unlock()
	if !ok {
		return Frame{}, fmt.Errorf("latest of %q: %w", name, domain.ErrStreamUnknown)
	}

	var tick int64
	var payload []byte
	err := s.db.QueryRow(
		`SELECT tick, payload FROM records WHERE stream = ? ORDER BY id DESC LIMIT 1`,
		name,
	).Scan(&tick, &payload)
	if err != nil {
		return Frame{}, fmt.Errorf("latest of %s: %w", name, err)
	}

	values, err := Decode(st.layout, payload)
	if err != nil {
		return Frame{}, fmt.Errorf("latest of %s: %w", name, err)
	}
	return Frame{Tick: uint64(tick), Fields: st.fields, Values: values}, nil
}

// Count returns the number of records on a stream.
func (s *Store) Count(name string) (int, error) {
	s.mu.Lock()
	_, ok := s.streams[name]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("count of %q: %w", name, domain.ErrStreamUnknown)
	}

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE stream = ?`, name).Scan(&n)
	return n, err
}
