package mapper

import (
	"context"
	"fmt"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/query"
)

// Mapper is a typed view over the table of entity type T.
type Mapper[T entity.Entity] struct {
	table *Table
}

// For returns the typed view of t. It fails when T does not name t's type.
func For[T entity.Entity](t *Table) (*Mapper[T], error) {
	if name := entity.TypeOf[T](); name != t.Type() {
		return nil, fmt.Errorf("mapper for %s cannot serve %s", t.Type(), name)
	}
	return &Mapper[T]{table: t}, nil
}

// Table returns the untyped engine.
func (m *Mapper[T]) Table() *Table {
	return m.table
}

// Insert saves e (insert or update).
func (m *Mapper[T]) Insert(ctx context.Context, e T) error {
	return m.table.Insert(ctx, e)
}

// Update writes the fields of a persisted e.
func (m *Mapper[T]) Update(ctx context.Context, e T) error {
	return m.table.Update(ctx, e)
}

// Delete removes e.
func (m *Mapper[T]) Delete(ctx context.Context, e T) error {
	return m.table.Delete(ctx, e)
}

// Get returns the entities matching pred in ascending key order.
func (m *Mapper[T]) Get(ctx context.Context, pred query.Predicate) ([]T, error) {
	found, err := m.table.Get(ctx, pred)
	if err != nil {
		return nil, err
	}
	return Cast[T](found)
}

// GetByKey returns the entity with the given key.
func (m *Mapper[T]) GetByKey(ctx context.Context, key int64) (T, error) {
	var zero T
	e, err := m.table.GetByKey(ctx, key)
	if err != nil {
		return zero, err
	}
	typed, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("%s#%d is %T", m.table.Type(), key, e)
	}
	return typed, nil
}

// Count returns the number of rows matching pred.
func (m *Mapper[T]) Count(ctx context.Context, pred query.Predicate) (int64, error) {
	return m.table.Count(ctx, pred)
}

// NextKey reserves a fresh primary key.
func (m *Mapper[T]) NextKey(ctx context.Context) (int64, error) {
	return m.table.NextKey(ctx)
}

// Cast converts untyped entities to T.
func Cast[T entity.Entity](found []entity.Entity) ([]T, error) {
	out := make([]T, 0, len(found))
	for _, e := range found {
		typed, ok := e.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("entity %T is not %T", e, zero)
		}
		out = append(out, typed)
	}
	return out, nil
}
