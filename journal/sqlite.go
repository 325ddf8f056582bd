package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite indexes sessions, ticks, role changes and events. A single writer
// goroutine owns the database; ticks are dropped when it falls behind, while
// session start and end rows always get through.
type SQLite struct {
	db *sql.DB

	ch   chan sqlReq
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

type sqlReq struct {
	start *Session
	tick  *Tick
	end   *End
}

const (
	commitEvery   = 500
	commitMaxWait = time.Second
)

func OpenSQLite(path string, queue int) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if queue <= 0 {
		queue = 1024
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

	s := &SQLite{db: db, ch: make(chan sqlReq, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			player TEXT NOT NULL,
			race TEXT NOT NULL,
			enemy_race TEXT NOT NULL,
			map TEXT NOT NULL,
			opening TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			result TEXT,
			end_tick INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			session TEXT NOT NULL,
			tick INTEGER NOT NULL,
			duration_ms REAL NOT NULL,
			commands INTEGER NOT NULL,
			violation TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS role_changes (
			session TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			tag INTEGER NOT NULL,
			from_role TEXT NOT NULL,
			to_role TEXT NOT NULL,
			PRIMARY KEY (session, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_role_changes_tag ON role_changes(session, tag, tick);`,
		`CREATE TABLE IF NOT EXISTS events (
			session TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL,
			PRIMARY KEY (session, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(session, kind);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Dropped is how many ticks were discarded because the queue was full.
func (s *SQLite) Dropped() int64 { return s.dropped.Load() }

func (s *SQLite) StartSession(sess Session) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.ch <- sqlReq{start: &sess}
	return nil
}

func (s *SQLite) RecordTick(t Tick) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- sqlReq{tick: &t}:
	default:
		// The JSONL log keeps the full record.
		s.dropped.Add(1)
	}
	return nil
}

func (s *SQLite) EndSession(e End) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.ch <- sqlReq{end: &e}
	return nil
}

// Close drains the queue, commits and closes the database.
func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLite) loop() {
	ctx := context.Background()

	var (
		tx         *sql.Tx
		opCount    int
		lastCommit = time.Now()
	)
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			slog.Warn("journal commit failed", "error", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				slog.Warn("journal begin failed", "error", err)
				continue
			}
			tx = txx
		}

		n, err := s.apply(tx, r)
		if err != nil {
			slog.Warn("journal write failed", "error", err)
			_ = tx.Rollback()
			tx = nil
			opCount = 0
			continue
		}
		opCount += n

		// Session boundaries are rare and worth making durable at once.
		if r.start != nil || r.end != nil || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func (s *SQLite) apply(tx *sql.Tx, r sqlReq) (int, error) {
	switch {
	case r.start != nil:
		ss := r.start
		_, err := tx.Exec(`INSERT OR REPLACE INTO sessions(id,player,race,enemy_race,map,opening,started_at) VALUES(?,?,?,?,?,?,?)`,
			ss.ID, ss.Player, ss.Race, ss.EnemyRace, ss.Map, ss.Opening, ss.StartedAt.UTC().Format(time.RFC3339Nano))
		return 1, err

	case r.end != nil:
		e := r.end
		_, err := tx.Exec(`UPDATE sessions SET ended_at=?, result=?, end_tick=? WHERE id=?`,
			e.EndedAt.UTC().Format(time.RFC3339Nano), e.Result, e.Tick, e.Session)
		return 1, err

	case r.tick != nil:
		t := r.tick
		raw, err := json.Marshal(t)
		if err != nil {
			return 0, err
		}
		var violation any
		if t.Violation != "" {
			violation = t.Violation
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO ticks(session,tick,duration_ms,commands,violation,raw_json) VALUES(?,?,?,?,?,?)`,
			t.Session, t.Tick, t.DurationMS, len(t.Commands), violation, string(raw)); err != nil {
			return 0, err
		}
		n := 1
		for i, c := range t.RoleChanges {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO role_changes(session,tick,seq,tag,from_role,to_role) VALUES(?,?,?,?,?,?)`,
				t.Session, t.Tick, i, int64(c.Tag), c.From, c.To); err != nil {
				return n, err
			}
			n++
		}
		for i, e := range t.Events {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO events(session,tick,seq,kind,detail) VALUES(?,?,?,?,?)`,
				t.Session, t.Tick, i, e.Kind, e.Detail); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}
	return 0, nil
}
