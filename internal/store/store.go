package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/ormlite/internal/metrics"
)

// Driver names accepted by Open.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options configures Open.
type Options struct {
	// Driver selects the database/sql driver. Defaults to DriverMattn.
	Driver string

	// BusyTimeout is how long SQLite waits on a lock. Defaults to 5s.
	BusyTimeout time.Duration

	// JournalMode defaults to WAL.
	JournalMode string

	// Retry bounds retries of transient failures.
	Retry RetryPolicy

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.Driver == "" {
		o.Driver = DriverMattn
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.JournalMode == "" {
		o.JournalMode = "WAL"
	}
	if o.Retry.MaxAttempts == 0 && o.Retry.InitialBackoff == 0 && o.Retry.MaxBackoff == 0 {
		sleep := o.Retry.Sleep
		o.Retry = DefaultRetryPolicy()
		o.Retry.Sleep = sleep
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Store is the single serialized connection to one database file.
type Store struct {
	db      *sql.DB
	path    string
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Collector

	queue     *jobQueue
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open creates or opens the database at path and starts the worker.
//
// This function is idempotent - safe to call multiple times on the same
// file, though each call returns an independent Store.
func Open(path string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	db, err := sql.Open(opts.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time; one connection also keeps
	// an in-memory database alive for the Store's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:      db,
		path:    path,
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		queue:   newJobQueue(),
		stopped: make(chan struct{}),
	}
	go s.run()

	s.logger.Debug("store opened", "path", path, "driver", opts.Driver)
	return s, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, opts Options) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", opts.JournalMode),
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.opts.Driver
}

// Pending returns the number of queued jobs not yet started.
func (s *Store) Pending() int {
	return s.queue.Len()
}

type connKey struct{}

// Do runs fn on the worker and waits for its result.
//
// Jobs run one at a time in FIFO order. When ctx already carries a Conn of
// this store (fn was called from inside another job), fn runs inline on
// that Conn. A job whose context is done before it starts is skipped.
// After Close, Do returns an UNAVAILABLE error.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, c *Conn) error) error {
	if c, ok := ctx.Value(connKey{}).(*Conn); ok && c.store == s {
		return fn(ctx, c)
	}

	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	if !s.queue.Enqueue(j) {
		return Unavailable("do")
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drains the job queue until it is closed and empty.
func (s *Store) run() {
	defer close(s.stopped)

	for {
		if j, ok := s.queue.TryDequeue(); ok {
			s.execute(j)
			continue
		}
		if s.queue.Drained() {
			return
		}
		<-s.queue.Wait()
	}
}

func (s *Store) execute(j job) {
	if err := j.ctx.Err(); err != nil {
		j.done <- err
		return
	}

	conn := &Conn{store: s}
	ctx := context.WithValue(j.ctx, connKey{}, conn)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("store job panicked", "panic", r)
			j.done <- fmt.Errorf("store job panicked: %v", r)
		}
	}()

	j.done <- j.fn(ctx, conn)
}

// Close stops accepting jobs, waits for queued jobs to finish and closes
// the database. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.queue.Close()
		<-s.stopped
		s.closeErr = s.db.Close()
		s.logger.Debug("store closed", "path", s.path)
	})
	return s.closeErr
}
