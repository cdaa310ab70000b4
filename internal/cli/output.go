package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/ormlite/internal/store"
)

// Exit codes returned by ormlite.
const (
	ExitSuccess      = 0 // command completed
	ExitFailure      = 1 // store operation failed (not found, constraint, decode)
	ExitCommandError = 2 // bad arguments, unreadable config or schema
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int    // ExitFailure or ExitCommandError
	Op   string // failed step, e.g. "get" or "failed to load config"
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, op string, err error) *ExitError {
	return &ExitError{Code: code, Op: op, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that carry none
// exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode reports the store error code carried by err, or "ERROR".
func ErrorCode(err error) string {
	var se *store.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return "ERROR"
}

// Response is the envelope written by every command in json mode.
type Response struct {
	Status string   `json:"status"` // "ok" or "error"
	Data   any      `json:"data,omitempty"`
	Error  *Failure `json:"error,omitempty"`
}

// Failure describes a failed command. Entity and Key name the row the
// failure concerns, when there is one.
type Failure struct {
	Code    string `json:"code"`
	Op      string `json:"op"`
	Message string `json:"message"`
	Entity  string `json:"entity,omitempty"`
	Key     int64  `json:"key,omitempty"`
}

func failureOf(op string, err error) Failure {
	f := Failure{Code: ErrorCode(err), Op: op, Message: err.Error()}
	var se *store.Error
	if errors.As(err, &se) {
		f.Entity, f.Key = se.Entity, se.Key
	}
	return f
}

// target renders the affected row as "Type#key", or just the type.
func (f Failure) target() string {
	switch {
	case f.Entity != "" && f.Key != 0:
		return fmt.Sprintf("%s#%d", f.Entity, f.Key)
	default:
		return f.Entity
	}
}

// Printer writes command results to Out and progress notes to Diag.
type Printer struct {
	Format  string // "json" or "text"
	Out     io.Writer
	Diag    io.Writer // defaults to Out
	Verbose bool
}

// Success prints a result. In text mode entity lists print one row per
// line followed by a row count; other results use their String method.
func (p *Printer) Success(data any) error {
	if p.Format == "json" {
		return p.encode(Response{Status: "ok", Data: data})
	}
	if list, ok := data.(EntityList); ok {
		return p.rows(list)
	}
	_, err := fmt.Fprintln(p.Out, data)
	return err
}

func (p *Printer) rows(list EntityList) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(p.Out, list)
		return err
	}
	for _, v := range list {
		if _, err := fmt.Fprintln(p.Out, v); err != nil {
			return err
		}
	}
	noun := "rows"
	if len(list) == 1 {
		noun = "row"
	}
	_, err := fmt.Fprintf(p.Out, "(%d %s)\n", len(list), noun)
	return err
}

// Report prints f. Text mode names the affected row after the code.
func (p *Printer) Report(f Failure) error {
	if p.Format == "json" {
		return p.encode(Response{Status: "error", Error: &f})
	}
	if t := f.target(); t != "" {
		_, err := fmt.Fprintf(p.Out, "Error [%s] %s: %s\n", f.Code, t, f.Message)
		return err
	}
	_, err := fmt.Fprintf(p.Out, "Error [%s]: %s\n", f.Code, f.Message)
	return err
}

// Fail reports err and returns it wrapped with the exit code.
func (p *Printer) Fail(code int, op string, err error) error {
	_ = p.Report(failureOf(op, err))
	return WrapExitError(code, op, err)
}

// Notef writes a progress note when verbose output is enabled. Notes go to
// Diag so json output on Out stays parseable.
func (p *Printer) Notef(format string, args ...any) {
	if !p.Verbose {
		return
	}
	w := p.Diag
	if w == nil {
		w = p.Out
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func (p *Printer) encode(r Response) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
