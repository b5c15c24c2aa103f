// Package audit keeps a history of accessibility checks in SQLite. It is a
// checker.Observer: every finished check becomes one record holding the
// outcome, input size and SHA-256 digest, per-rule violation counts and
// timing. The submitted HTML itself is never stored.
//
// Writes are buffered and flushed in batches by a background goroutine; when
// the buffer is full the record is written synchronously instead of dropped.
//
// Usage:
//
//	st, err := audit.Open("data/audit.db")
//	defer st.Close()
//	c := checker.New(cfg, reg, checker.WithObserver(st))
//	recent, err := st.Recent(ctx, 20)
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/dbopen"
	"github.com/hazyhaar/a11y/idgen"
	"github.com/hazyhaar/a11y/kit"
)

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("audit: record not found")

const schema = `
CREATE TABLE IF NOT EXISTS checks (
	id           TEXT PRIMARY KEY,
	created_at   INTEGER NOT NULL,
	trace_id     TEXT NOT NULL DEFAULT '',
	transport    TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL,
	input_bytes  INTEGER NOT NULL,
	input_sha256 TEXT NOT NULL,
	violations   INTEGER NOT NULL DEFAULT 0,
	rule_counts  TEXT NOT NULL DEFAULT '{}',
	failed_rules TEXT NOT NULL DEFAULT '[]',
	error        TEXT NOT NULL DEFAULT '',
	duration_us  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_checks_created ON checks(created_at);
CREATE INDEX IF NOT EXISTS idx_checks_outcome ON checks(outcome);
`

// Record is one stored check.
type Record struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"createdAt"`
	TraceID     string         `json:"traceId,omitempty"`
	Transport   string         `json:"transport,omitempty"`
	Outcome     string         `json:"outcome"`
	InputBytes  int            `json:"inputBytes"`
	InputSHA256 string         `json:"inputSha256"`
	Violations  int            `json:"violations"`
	RuleCounts  map[string]int `json:"ruleCounts"`
	FailedRules []string       `json:"failedRules,omitempty"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"-"`
	DurationMs  float64        `json:"durationMs"`
}

// Store persists check records.
type Store struct {
	db     *sql.DB
	ownsDB bool
	driver string
	newID  idgen.Generator
	logger *slog.Logger

	batchSize int
	interval  time.Duration

	// mu orders enqueue against Close: senders hold the read lock, Close
	// takes the write lock to set closed before stopping the flush loop.
	mu        sync.RWMutex
	closed    bool
	ch        chan *Record
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the record ID generator (default idgen.CheckID).
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBuffer sets the async queue capacity (default 1000).
func WithBuffer(n int) Option {
	return func(s *Store) { s.ch = make(chan *Record, n) }
}

// WithFlushInterval sets how often a partial batch is written (default 2s).
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) { s.interval = d }
}

// WithSQLTrace opens the database through dbopen.TraceDriver so that every
// statement is logged. Only Open honours it.
func WithSQLTrace() Option {
	return func(s *Store) { s.driver = dbopen.TraceDriver }
}

// Open opens or creates the database at path and starts the writer.
func Open(path string, opts ...Option) (*Store, error) {
	s := configure(opts)
	db, err := dbopen.Open(path, dbopen.WithDriver(s.driver), dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	s.db, s.ownsDB = db, true
	go s.flushLoop()
	return s, nil
}

// New uses an existing database, creating the schema if needed.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("audit: schema: %w", err)
	}
	s := configure(opts)
	s.db = db
	go s.flushLoop()
	return s, nil
}

func configure(opts []Option) *Store {
	s := &Store{
		driver:    "sqlite",
		newID:     idgen.CheckID,
		logger:    slog.Default(),
		batchSize: 100,
		interval:  2 * time.Second,
		ch:        make(chan *Record, 1000),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ObserveCheck implements checker.Observer.
func (s *Store) ObserveCheck(ctx context.Context, r checker.Report) {
	rec := &Record{
		ID:          s.newID(),
		CreatedAt:   time.Now(),
		TraceID:     kit.GetTraceID(ctx),
		Transport:   kit.GetTransport(ctx),
		Outcome:     string(r.Outcome),
		InputBytes:  r.InputBytes,
		InputSHA256: r.InputHash,
		RuleCounts:  map[string]int{},
		Duration:    r.Duration,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if r.Result != nil {
		rec.Violations = len(r.Result.Violations)
		for _, v := range r.Result.Violations {
			rec.RuleCounts[v.RuleID]++
		}
		rec.FailedRules = r.Result.FailedRules()
	}
	s.enqueue(rec)
}

func (s *Store) enqueue(rec *Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("audit: store closed, record dropped", "id", rec.ID)
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.logger.Warn("audit: buffer full, sync fallback", "id", rec.ID)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.write(ctx, []*Record{rec}); err != nil {
			s.logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, trace_id, transport, outcome,
		input_bytes, input_sha256, violations, rule_counts, failed_rules, error, duration_us
		FROM checks ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, trace_id, transport, outcome,
		input_bytes, input_sha256, violations, rule_counts, failed_rules, error, duration_us
		FROM checks WHERE id = ?`, id)
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Stats counts stored checks by outcome.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM checks GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("audit: stats: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("audit: stats: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// Cleanup deletes records older than maxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM checks WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes pending records and stops the writer. The database is closed
// only if Open created it.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stop)
		<-s.done
	})
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*Record, error) {
	var (
		rec          Record
		created, dur int64
		counts, fail string
	)
	if err := row.Scan(&rec.ID, &created, &rec.TraceID, &rec.Transport, &rec.Outcome,
		&rec.InputBytes, &rec.InputSHA256, &rec.Violations, &counts, &fail, &rec.Error, &dur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("audit: scan: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	rec.Duration = time.Duration(dur) * time.Microsecond
	rec.DurationMs = float64(dur) / 1000
	if err := json.Unmarshal([]byte(counts), &rec.RuleCounts); err != nil {
		return nil, fmt.Errorf("audit: rule_counts: %w", err)
	}
	if err := json.Unmarshal([]byte(fail), &rec.FailedRules); err != nil {
		return nil, fmt.Errorf("audit: failed_rules: %w", err)
	}
	return &rec, nil
}

func (s *Store) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	batch := make([]*Record, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.write(ctx, batch); err != nil {
			s.logger.Error("audit: batch write failed", "error", err, "records", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-s.stop:
			for {
				select {
				case rec := <-s.ch:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		case rec := <-s.ch:
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Store) write(ctx context.Context, recs []*Record) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO checks
			(id, created_at, trace_id, transport, outcome, input_bytes, input_sha256,
			 violations, rule_counts, failed_rules, error, duration_us)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range recs {
			rc := r.RuleCounts
			if rc == nil {
				rc = map[string]int{}
			}
			counts, _ := json.Marshal(rc)
			failed := r.FailedRules
			if failed == nil {
				failed = []string{}
			}
			fail, _ := json.Marshal(failed)
			if _, err := stmt.ExecContext(ctx,
				r.ID, r.CreatedAt.UnixMilli(), r.TraceID, r.Transport, r.Outcome,
				r.InputBytes, r.InputSHA256, r.Violations, string(counts), string(fail),
				r.Error, r.Duration.Microseconds(),
			); err != nil {
				return fmt.Errorf("insert %s: %w", r.ID, err)
			}
		}
		return nil
	})
}
