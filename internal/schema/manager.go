// Package schema derives table structure from entity descriptors and
// evolves existing tables when descriptors change.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/metrics"
	"github.com/roach88/ormlite/internal/store"
	"github.com/roach88/ormlite/internal/stored"
)

// Executor runs statements. *store.Conn implements it.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (store.Result, error)
	Query(ctx context.Context, query string, args ...any) ([][]stored.Value, error)
}

// Column is one live column as reported by SQLite.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// Changes summarizes a migration of one table.
type Changes struct {
	Added   []string
	Dropped []string
}

// Empty reports whether the migration changed nothing.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Dropped) == 0
}

// Manager applies schema operations.
type Manager struct {
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewManager returns a manager. Both arguments may be nil.
func NewManager(logger *slog.Logger, m *metrics.Collector) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, metrics: m}
}

// CreateTable creates the table for typeName if it does not exist.
func (m *Manager) CreateTable(ctx context.Context, exec Executor, typeName string, fields []entity.Field) error {
	if _, err := exec.Exec(ctx, CreateTableSQL(typeName, fields)); err != nil {
		return schemaError("create table", typeName, err)
	}
	m.metrics.Migration("create")
	return nil
}

// TableExists reports whether a table named table exists.
func (m *Manager) TableExists(ctx context.Context, exec Executor, table string) (bool, error) {
	rows, err := exec.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		return false, schemaError("table exists", table, err)
	}
	return len(rows) > 0, nil
}

// Columns lists the live columns of table in declaration order. An
// introspection failure is logged and reported as no columns.
func (m *Manager) Columns(ctx context.Context, exec Executor, table string) []Column {
	if !entity.ValidIdentifier(table) {
		m.logger.Warn("cannot inspect table with invalid name", "table", table)
		return nil
	}
	rows, err := exec.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		m.logger.Warn("table introspection failed", "table", table, "error", err)
		return nil
	}

	// table_info rows: cid, name, type, notnull, dflt_value, pk
	cols := make([]Column, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		name, _ := stored.AsString(row[1])
		typ, _ := stored.AsString(row[2])
		pk, _ := stored.AsInt64(row[5])
		cols = append(cols, Column{Name: name, Type: typ, PrimaryKey: pk > 0})
	}
	return cols
}

// ColumnNames lists the live column names of table.
func (m *Manager) ColumnNames(ctx context.Context, exec Executor, table string) []string {
	cols := m.Columns(ctx, exec, table)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// AddMissingColumns adds a column for every field absent from the table and
// returns the added names.
func (m *Manager) AddMissingColumns(ctx context.Context, exec Executor, typeName string, fields []entity.Field) ([]string, error) {
	live := m.ColumnNames(ctx, exec, typeName)

	var added []string
	for _, f := range fields {
		if slices.Contains(live, f.Name) {
			continue
		}
		if _, err := exec.Exec(ctx, AddColumnSQL(typeName, f)); err != nil {
			return added, schemaError("add column "+f.Name, typeName, err)
		}
		m.metrics.Migration("add_column")
		m.logger.Info("column added", "table", typeName, "column", f.Name, "type", f.Type.SQLType())
		added = append(added, f.Name)
	}
	return added, nil
}

// DropObsoleteColumns rebuilds the table without columns that no longer
// correspond to a field and returns the dropped names. If the scratch table
// cannot be created or filled, the original table is left intact.
func (m *Manager) DropObsoleteColumns(ctx context.Context, exec Executor, typeName string, fields []entity.Field) ([]string, error) {
	live := m.ColumnNames(ctx, exec, typeName)
	if len(live) == 0 {
		return nil, nil
	}

	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f.Name] = true
	}

	var obsolete []string
	for _, name := range live {
		if name != entity.PrimaryKeyColumn && !wanted[name] {
			obsolete = append(obsolete, name)
		}
	}
	if len(obsolete) == 0 {
		return nil, nil
	}

	var retained []entity.Field
	for _, f := range fields {
		if slices.Contains(live, f.Name) {
			retained = append(retained, f)
		}
	}

	stmts := RebuildSQL(typeName, retained)
	// Statements before the DROP of the original table are recoverable.
	const dropIndex = 3
	for i, stmt := range stmts {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			if i < dropIndex {
				m.cleanupTemp(ctx, exec, typeName)
				return nil, schemaError("rebuild (table left intact)", typeName, err)
			}
			return nil, schemaError("rebuild", typeName, err)
		}
	}

	m.metrics.Migration("drop_columns")
	m.logger.Info("columns dropped", "table", typeName, "columns", obsolete)
	return obsolete, nil
}

func (m *Manager) cleanupTemp(ctx context.Context, exec Executor, typeName string) {
	if _, err := exec.Exec(ctx, "DROP TABLE IF EXISTS "+typeName+TempSuffix); err != nil {
		m.logger.Warn("failed to remove scratch table", "table", typeName+TempSuffix, "error", err)
	}
}

// Migrate brings the table for typeName in line with fields: missing
// columns are added first, then obsolete columns are dropped. A missing
// table is created.
func (m *Manager) Migrate(ctx context.Context, exec Executor, typeName string, fields []entity.Field) (Changes, error) {
	exists, err := m.TableExists(ctx, exec, typeName)
	if err != nil {
		return Changes{}, err
	}
	if !exists {
		if err := m.CreateTable(ctx, exec, typeName, fields); err != nil {
			return Changes{}, err
		}
		return Changes{}, nil
	}

	var changes Changes
	changes.Added, err = m.AddMissingColumns(ctx, exec, typeName, fields)
	if err != nil {
		return changes, err
	}
	changes.Dropped, err = m.DropObsoleteColumns(ctx, exec, typeName, fields)
	if err != nil {
		return changes, err
	}
	return changes, nil
}

func schemaError(op, table string, err error) error {
	return &store.Error{Code: store.CodeSchema, Op: op, Entity: table, Err: err}
}
