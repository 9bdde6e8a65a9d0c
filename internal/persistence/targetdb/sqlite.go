package targetdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"colony.ai/internal/colony"
)

// ErrClosed is returned by checkpoint writes after Close.
var ErrClosed = errors.New("targetdb: closed")

// Store keeps the target-store checkpoint and an index of cycle reports in
// SQLite. All writes go through a single writer goroutine that owns the only
// connection's transactions. Checkpoints wait for their commit; cycle rows are
// dropped if the writer falls behind (the journal remains the source of truth).
type Store struct {
	db *sql.DB

	mu   sync.RWMutex // guards sends on ch against Close
	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqCycle reqKind = iota + 1
	reqBarrier
	reqCheckpoint
)

type req struct {
	kind  reqKind
	cycle *colony.Report
	done  chan struct{}

	runID string
	tick  uint64
	recs  []colony.TargetRecord
	errc  chan error
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS targets (
			agent TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			target TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cycles (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			spawning INTEGER NOT NULL,
			idle INTEGER NOT NULL,
			assigned INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			goals INTEGER NOT NULL,
			cpu_used REAL NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS drops (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent TEXT NOT NULL,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			reason TEXT NOT NULL,
			code TEXT,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drops_agent_tick ON drops(agent, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// SaveTargets replaces the checkpoint with recs in one transaction. The writer
// commits any pending cycle rows first.
func (s *Store) SaveTargets(runID string, tick uint64, recs []colony.TargetRecord) error {
	errc := make(chan error, 1)
	r := req{kind: reqCheckpoint, runID: runID, tick: tick, recs: recs, errc: errc}
	if !s.send(context.Background(), r) {
		return ErrClosed
	}
	return <-errc
}

// send enqueues r, blocking until there is room. It reports false once the
// store is closed.
func (s *Store) send(ctx context.Context, r req) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Store) saveTargets(runID string, tick uint64, recs []colony.TargetRecord) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM targets`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO targets(agent,kind,target) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err := stmt.Exec(r.Agent, string(r.Kind), r.Target); err != nil {
			return err
		}
	}
	meta := map[string]string{
		"checkpoint_run":  runID,
		"checkpoint_tick": strconv.FormatUint(tick, 10),
		"checkpoint_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) LoadTargets() ([]colony.TargetRecord, error) {
	rows, err := s.db.Query(`SELECT agent,kind,target FROM targets ORDER BY agent`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []colony.TargetRecord
	for rows.Next() {
		var r colony.TargetRecord
		var kind string
		if err := rows.Scan(&r.Agent, &kind, &r.Target); err != nil {
			return nil, err
		}
		r.Kind = colony.GoalKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Checkpoint reports the run and tick of the last SaveTargets.
func (s *Store) Checkpoint() (runID string, tick uint64, ok bool, err error) {
	var run, tickStr sql.NullString
	err = s.db.QueryRow(`SELECT
		(SELECT value FROM meta WHERE key='checkpoint_run'),
		(SELECT value FROM meta WHERE key='checkpoint_tick')`).Scan(&run, &tickStr)
	if err != nil {
		return "", 0, false, err
	}
	if !run.Valid || !tickStr.Valid {
		return "", 0, false, nil
	}
	tick, err = strconv.ParseUint(tickStr.String, 10, 64)
	if err != nil {
		return "", 0, false, err
	}
	return run.String, tick, true, nil
}

// WriteCycle queues r for the cycle index.
func (s *Store) WriteCycle(r *colony.Report) error {
	if s == nil || r == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqCycle, cycle: r}:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Sync blocks until every queued cycle is committed.
func (s *Store) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !s.send(ctx, req{kind: reqBarrier, done: done}) {
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Dropped() uint64 { return s.dropped.Load() }

// CycleRow is one indexed cycle.
type CycleRow struct {
	RunID    string
	Tick     uint64
	Agents   int
	Idle     int
	Assigned int
	Dropped  int
	Spawned  int
	Goals    int
	CPUUsed  float64
}

func (s *Store) Cycles(runID string) ([]CycleRow, error) {
	rows, err := s.db.Query(`SELECT run_id,tick,agents,idle,assigned,dropped,spawned,goals,cpu_used
		FROM cycles WHERE run_id=? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CycleRow
	for rows.Next() {
		var c CycleRow
		var tick int64
		if err := rows.Scan(&c.RunID, &tick, &c.Agents, &c.Idle, &c.Assigned, &c.Dropped, &c.Spawned, &c.Goals, &c.CPUUsed); err != nil {
			return nil, err
		}
		c.Tick = uint64(tick)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DropCounts groups evictions of a run by reason.
func (s *Store) DropCounts(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT reason, COUNT(*) FROM drops WHERE run_id=? GROUP BY reason`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}

func (s *Store) loop() {
	ctx := context.Background()

	insertCycle, _ := s.db.Prepare(`INSERT OR REPLACE INTO cycles(run_id,tick,agents,spawning,idle,assigned,dropped,spawned,goals,cpu_used,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertDrop, _ := s.db.Prepare(`INSERT OR REPLACE INTO drops(run_id,tick,seq,agent,kind,target,reason,code) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertCycle != nil {
			_ = insertCycle.Close()
		}
		if insertDrop != nil {
			_ = insertDrop.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		switch r.kind {
		case reqBarrier:
			commit()
			close(r.done)
			continue
		case reqCheckpoint:
			commit()
			r.errc <- s.saveTargets(r.runID, r.tick, r.recs)
			continue
		}
		begin()
		if tx == nil || insertCycle == nil || insertDrop == nil {
			continue
		}
		c := r.cycle
		raw, _ := json.Marshal(c)
		if _, err := tx.Stmt(insertCycle).Exec(
			c.RunID,
			int64(c.Tick),
			c.Agents,
			c.Spawning,
			c.Idle,
			len(c.Assigned),
			len(c.Dropped),
			len(c.Spawned()),
			c.Goals,
			c.CPUUsed,
			string(raw),
		); err != nil {
			rollback()
			continue
		}
		opCount++
		for i, d := range c.Dropped {
			if _, err := tx.Stmt(insertDrop).Exec(c.RunID, int64(c.Tick), i, d.Agent, string(d.Kind), d.Target, d.Reason, d.Code); err != nil {
				rollback()
				break
			}
			opCount++
		}
		// Never leave a transaction open while idle: it holds the only connection.
		if tx != nil && (len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
