package mapper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/query"
	"github.com/roach88/ormlite/internal/sample"
)

func TestFor_TypeMismatch(t *testing.T) {
	f := setup(t, sample.ItemDescriptor())

	_, err := For[*sample.Customer](f.table(t, "Item"))
	require.Error(t, err)

	m, err := For[*sample.Item](f.table(t, "Item"))
	require.NoError(t, err)
	assert.Same(t, f.table(t, "Item"), m.Table())
}

func TestMapper_TypedOperations(t *testing.T) {
	f := setup(t, sample.ItemDescriptor())
	m, err := For[*sample.Item](f.table(t, "Item"))
	require.NoError(t, err)
	ctx := context.Background()

	key, err := m.NextKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)

	item := &sample.Item{Name: "typed", Price: 7}
	require.NoError(t, m.Insert(ctx, item))
	assert.Equal(t, int64(2), item.PrimaryKey(), "key 1 was reserved above")

	item.Price = 8
	require.NoError(t, m.Update(ctx, item))

	got, err := m.GetByKey(ctx, 2)
	require.NoError(t, err)
	assert.Same(t, item, got)

	list, err := m.Get(ctx, query.Eq("name", "typed"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 8.0, list[0].Price)

	n, err := m.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, m.Delete(ctx, item))
	_, err = m.GetByKey(ctx, 2)
	require.Error(t, err)
}

func TestCast(t *testing.T) {
	items, err := Cast[*sample.Item]([]entity.Entity{&sample.Item{}, &sample.Item{}})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = Cast[*sample.Item]([]entity.Entity{&sample.Customer{}})
	require.Error(t, err)
}
