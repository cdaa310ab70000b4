package schema

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/metrics"
	"github.com/roach88/ormlite/internal/store"
	"github.com/roach88/ormlite/internal/stored"
	ormtest "github.com/roach88/ormlite/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "schema.sqlite"), store.Options{Logger: ormtest.QuietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// run executes fn as one store job.
func run(t *testing.T, s *store.Store, fn func(ctx context.Context, c *store.Conn)) {
	t.Helper()
	require.NoError(t, s.Do(context.Background(), func(ctx context.Context, c *store.Conn) error {
		fn(ctx, c)
		return nil
	}))
}

func fields(names ...string) []entity.Field {
	out := make([]entity.Field, len(names))
	for i, n := range names {
		out[i] = entity.RecordField(n, entity.Int64)
	}
	return out
}

func TestCreateTable_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	m := NewManager(ormtest.QuietLogger(), nil)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		require.NoError(t, m.CreateTable(ctx, c, "Item", itemFields()))
		require.NoError(t, m.CreateTable(ctx, c, "Item", itemFields()))

		exists, err := m.TableExists(ctx, c, "Item")
		require.NoError(t, err)
		assert.True(t, exists)

		cols := m.Columns(ctx, c, "Item")
		assert.Equal(t, []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "TEXT"},
			{Name: "price", Type: "INTEGER"},
		}, cols)
	})
}

func TestTableExists_Missing(t *testing.T) {
	s := setupTestStore(t)
	m := NewManager(ormtest.QuietLogger(), nil)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		exists, err := m.TableExists(ctx, c, "Nope")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Empty(t, m.Columns(ctx, c, "Nope"))
	})
}

func TestColumns_IntrospectionFailure(t *testing.T) {
	var logs ormtest.LogBuffer
	m := NewManager(logs.Logger(), nil)

	cols := m.Columns(context.Background(), failingExecutor{}, "Item")
	assert.Empty(t, cols)
	assert.Contains(t, logs.String(), "table introspection failed")

	assert.Empty(t, m.Columns(context.Background(), failingExecutor{}, "bad name"))
}

func TestAddMissingColumns(t *testing.T) {
	s := setupTestStore(t)
	mc := metrics.New(nil)
	m := NewManager(ormtest.QuietLogger(), mc)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		require.NoError(t, m.CreateTable(ctx, c, "T", fields("a")))

		added, err := m.AddMissingColumns(ctx, c, "T", fields("a", "b", "c"))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, added)
		assert.Equal(t, []string{"id", "a", "b", "c"}, m.ColumnNames(ctx, c, "T"))

		added, err = m.AddMissingColumns(ctx, c, "T", fields("a", "b", "c"))
		require.NoError(t, err)
		assert.Empty(t, added)
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(mc.Migrations.WithLabelValues("add_column")))
}

func TestDropObsoleteColumns_PreservesData(t *testing.T) {
	s := setupTestStore(t)
	m := NewManager(ormtest.QuietLogger(), nil)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		require.NoError(t, m.CreateTable(ctx, c, "T", fields("a", "b")))
		_, err := c.Exec(ctx, "INSERT INTO T(id, a, b) VALUES (1, 10, 20), (2, 11, 21)")
		require.NoError(t, err)

		dropped, err := m.DropObsoleteColumns(ctx, c, "T", fields("a"))
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dropped)
		assert.Equal(t, []string{"id", "a"}, m.ColumnNames(ctx, c, "T"))

		rows, err := c.Query(ctx, "SELECT id, a FROM T ORDER BY id")
		require.NoError(t, err)
		assert.Equal(t, [][]stored.Value{
			{stored.Integer(1), stored.Integer(10)},
			{stored.Integer(2), stored.Integer(11)},
		}, rows)

		exists, err := m.TableExists(ctx, c, "T"+TempSuffix)
		require.NoError(t, err)
		assert.False(t, exists, "scratch table must not survive")
	})
}

func TestDropObsoleteColumns_NothingToDrop(t *testing.T) {
	s := setupTestStore(t)
	m := NewManager(ormtest.QuietLogger(), nil)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		require.NoError(t, m.CreateTable(ctx, c, "T", fields("a")))
		dropped, err := m.DropObsoleteColumns(ctx, c, "T", fields("a"))
		require.NoError(t, err)
		assert.Empty(t, dropped)
	})
}

func TestDropObsoleteColumns_LeftoverTempTable(t *testing.T) {
	s := setupTestStore(t)
	m := NewManager(ormtest.QuietLogger(), nil)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		require.NoError(t, m.CreateTable(ctx, c, "T", fields("a", "b")))
		// A scratch table left behind by an interrupted rebuild.
		_, err := c.Exec(ctx, "CREATE TABLE T_temp(junk TEXT)")
		require.NoError(t, err)

		_, err = m.DropObsoleteColumns(ctx, c, "T", fields("a"))
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "a"}, m.ColumnNames(ctx, c, "T"))
	})
}

func TestDropObsoleteColumns_FailureLeavesTableIntact(t *testing.T) {
	s := setupTestStore(t)
	m := NewManager(ormtest.QuietLogger(), nil)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		require.NoError(t, m.CreateTable(ctx, c, "T", fields("a", "b")))
		_, err := c.Exec(ctx, "INSERT INTO T(id, a, b) VALUES (1, 10, 20)")
		require.NoError(t, err)

		failing := &failOnPrefix{Executor: c, prefix: "INSERT INTO T_temp"}
		_, err = m.DropObsoleteColumns(ctx, failing, "T", fields("a"))
		require.Error(t, err)
		assert.Equal(t, store.CodeSchema, store.CodeOf(err))
		assert.Contains(t, err.Error(), "table left intact")

		assert.Equal(t, []string{"id", "a", "b"}, m.ColumnNames(ctx, c, "T"))
		rows, err := c.Query(ctx, "SELECT a, b FROM T")
		require.NoError(t, err)
		assert.Equal(t, [][]stored.Value{{stored.Integer(10), stored.Integer(20)}}, rows)

		exists, err := m.TableExists(ctx, c, "T_temp")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestMigrate_AddThenDrop(t *testing.T) {
	s := setupTestStore(t)
	mc := metrics.New(nil)
	m := NewManager(ormtest.QuietLogger(), mc)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		require.NoError(t, m.CreateTable(ctx, c, "T", fields("a", "b")))
		_, err := c.Exec(ctx, "INSERT INTO T(id, a, b) VALUES (1, 5, 6)")
		require.NoError(t, err)

		changes, err := m.Migrate(ctx, c, "T", fields("a", "c"))
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, changes.Added)
		assert.Equal(t, []string{"b"}, changes.Dropped)
		assert.False(t, changes.Empty())

		assert.Equal(t, []string{"id", "a", "c"}, m.ColumnNames(ctx, c, "T"))

		rows, err := c.Query(ctx, "SELECT id, a, c FROM T")
		require.NoError(t, err)
		assert.Equal(t, [][]stored.Value{{stored.Integer(1), stored.Integer(5), stored.Null{}}}, rows)

		changes, err = m.Migrate(ctx, c, "T", fields("a", "c"))
		require.NoError(t, err)
		assert.True(t, changes.Empty())
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.Migrations.WithLabelValues("drop_columns")))
}

func TestMigrate_CreatesMissingTable(t *testing.T) {
	s := setupTestStore(t)
	m := NewManager(ormtest.QuietLogger(), nil)

	run(t, s, func(ctx context.Context, c *store.Conn) {
		changes, err := m.Migrate(ctx, c, "Fresh", fields("x"))
		require.NoError(t, err)
		assert.True(t, changes.Empty())
		assert.Equal(t, []string{"id", "x"}, m.ColumnNames(ctx, c, "Fresh"))
	})
}

type failingExecutor struct{}

func (failingExecutor) Exec(context.Context, string, ...any) (store.Result, error) {
	return store.Result{}, errors.New("exec failed")
}

func (failingExecutor) Query(context.Context, string, ...any) ([][]stored.Value, error) {
	return nil, errors.New("query failed")
}

// failOnPrefix fails statements starting with prefix.
type failOnPrefix struct {
	Executor
	prefix string
}

func (f *failOnPrefix) Exec(ctx context.Context, query string, args ...any) (store.Result, error) {
	if strings.HasPrefix(query, f.prefix) {
		return store.Result{}, errors.New("injected failure")
	}
	return f.Executor.Exec(ctx, query, args...)
}
