// Package chunkdb caches encoded chunk payloads in sqlite so a restarted
// server does not regenerate and recompress the whole visited world.
package chunkdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// Store is the payload cache. Reads query the database directly; writes go
// through a single writer goroutine so the serving path never blocks on
// sqlite.
type Store struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqPut reqKind = iota + 1
	reqInvalidate
)

type req struct {
	kind reqKind

	x, y, z int32
	lg      int
	payload string

	done chan struct{}
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			lg INTEGER NOT NULL,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (x, y, z, lg)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Get returns the cached payload for one chunk at one granularity, with
// ok=false on a cache miss.
func (s *Store) Get(x, y, z int32, lg int) (string, bool, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM chunks WHERE x=? AND y=? AND z=? AND lg=?`,
		x, y, z, lg,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return payload, true, nil
}

// Put caches a payload. The write is asynchronous and may be dropped under
// pressure; the cache is an optimization, not a source of truth.
func (s *Store) Put(x, y, z int32, lg int, payload string) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqPut, x: x, y: y, z: z, lg: lg, payload: payload}:
	default:
	}
}

// Invalidate drops every granularity cached for one chunk, after an edit
// changed its content. Unlike Put this must not be lost or reordered past
// queued writes, so it goes through the writer and waits for it.
func (s *Store) Invalidate(x, y, z int32) {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqInvalidate, x: x, y: y, z: z, done: done}
	<-done
}

// Stats reports cached row counts per granularity, for the admin tool.
func (s *Store) Stats() (map[int]int, error) {
	rows, err := s.db.Query(`SELECT lg, COUNT(*) FROM chunks GROUP BY lg ORDER BY lg`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var lg, n int
		if err := rows.Scan(&lg, &n); err != nil {
			return nil, err
		}
		out[lg] = n
	}
	return out, rows.Err()
}

func (s *Store) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqPut:
			_, _ = s.db.Exec(
				`INSERT INTO chunks (x, y, z, lg, payload) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (x, y, z, lg) DO UPDATE SET payload=excluded.payload, updated_at=datetime('now')`,
				r.x, r.y, r.z, r.lg, r.payload,
			)
		case reqInvalidate:
			_, _ = s.db.Exec(`DELETE FROM chunks WHERE x=? AND y=? AND z=?`, r.x, r.y, r.z)
			close(r.done)
		}
	}
}
