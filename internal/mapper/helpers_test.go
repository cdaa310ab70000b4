package mapper

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ormlite/internal/catalog"
	"github.com/roach88/ormlite/internal/codec"
	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/identity"
	"github.com/roach88/ormlite/internal/schema"
	"github.com/roach88/ormlite/internal/store"
	ormtest "github.com/roach88/ormlite/internal/testutil"
)

// fixture wires tables for a set of descriptors against a temp store.
type fixture struct {
	catalog *catalog.Catalog
	cache   *identity.Cache
	store   *store.Store
	tables  map[string]*Table
	logs    *ormtest.LogBuffer
}

func (f *fixture) Table(typeName string) (*Table, bool) {
	t, ok := f.tables[typeName]
	return t, ok
}

func (f *fixture) table(t *testing.T, typeName string) *Table {
	t.Helper()
	tbl, ok := f.tables[typeName]
	require.True(t, ok, "table %s not registered", typeName)
	return tbl
}

func setup(t *testing.T, descs ...entity.Descriptor) *fixture {
	t.Helper()

	logs := &ormtest.LogBuffer{}
	logger := logs.Logger()

	s, err := store.Open(filepath.Join(t.TempDir(), "mapper.sqlite"), store.Options{Logger: ormtest.QuietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		catalog: catalog.New(),
		cache:   identity.NewCache(nil),
		store:   s,
		tables:  make(map[string]*Table),
		logs:    logs,
	}
	deps := Deps{
		Catalog: f.catalog,
		Cache:   f.cache,
		Codec:   codec.New(logger, false),
		Schema:  schema.NewManager(logger, nil),
		Store:   s,
		Lookup:  f,
		Logger:  logger,
	}
	for _, d := range descs {
		require.NoError(t, f.catalog.Register(d))
		tbl := NewTable(d.Type, deps)
		f.tables[d.Type] = tbl
		require.NoError(t, tbl.CreateTable(context.Background()))
	}
	return f
}

// rowCount counts rows of a table directly.
func (f *fixture) rowCount(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	err := f.store.Do(context.Background(), func(ctx context.Context, c *store.Conn) error {
		var err error
		n, _, err = c.QueryInt(ctx, "SELECT COUNT(*) FROM "+table)
		return err
	})
	require.NoError(t, err)
	return n
}

func nodeDescriptor() entity.Descriptor {
	return entity.RecordDescriptor("Node",
		entity.RecordField("label", entity.Text),
		entity.RecordField("next", entity.Reference),
	)
}
