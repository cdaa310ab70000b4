package store

import (
	"context"
	"fmt"

	"github.com/roach88/ormlite/internal/stored"
)

// Result reports the effect of an Exec.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Conn issues statements on behalf of one job. It is only valid for the
// duration of the job it was handed to.
type Conn struct {
	store *Store
}

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	s := c.store
	s.metrics.Statement("exec")
	s.logger.Debug("exec", "sql", query, "args", len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		err = wrapDriver("exec", err)
		s.metrics.StatementError(string(CodeOf(err)))
		return Result{}, err
	}

	var out Result
	// Both drivers support these; errors only come from exotic drivers.
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

// Query runs a statement and returns every row. The cursor is closed before
// Query returns, so callers may issue further statements while decoding.
func (c *Conn) Query(ctx context.Context, query string, args ...any) ([][]stored.Value, error) {
	s := c.store
	s.metrics.Statement("query")
	s.logger.Debug("query", "sql", query, "args", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		err = wrapDriver("query", err)
		s.metrics.StatementError(string(CodeOf(err)))
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapDriver("query", err)
	}

	var result [][]stored.Value
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapDriver("scan", err)
		}
		row := make([]stored.Value, len(cols))
		for i, v := range raw {
			row[i] = stored.FromDriver(v)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		err = wrapDriver("query", err)
		s.metrics.StatementError(string(CodeOf(err)))
		return nil, err
	}
	return result, nil
}

// QueryInt runs a single-value query and reads the first column of the
// first row. ok is false when there are no rows or the value is NULL.
func (c *Conn) QueryInt(ctx context.Context, query string, args ...any) (n int64, ok bool, err error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, false, nil
	}
	n, ok = stored.AsInt64(rows[0][0])
	return n, ok, nil
}

// Pragma reads a single-valued pragma such as journal_mode.
func (c *Conn) Pragma(ctx context.Context, name string) (string, error) {
	rows, err := c.Query(ctx, "PRAGMA "+name)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", fmt.Errorf("pragma %s returned no value", name)
	}
	v, _ := stored.AsString(rows[0][0])
	return v, nil
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// store's retry policy is exhausted. Exhaustion yields RETRIES_EXHAUSTED
// wrapping the last error.
func (c *Conn) Retry(ctx context.Context, op string, fn func() error) error {
	s := c.store
	policy := s.opts.Retry
	attempts := policy.attempts()

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt >= attempts {
			s.logger.Warn("retries exhausted", "op", op, "attempts", attempt, "error", err)
			return &Error{Code: CodeRetriesExhausted, Op: op, Err: err}
		}

		delay := policy.Backoff(attempt)
		s.metrics.Retry()
		s.logger.Warn("transient failure, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
		if err := policy.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: retry interrupted: %w", op, err)
		}
	}
}
