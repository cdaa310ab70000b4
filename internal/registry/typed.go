package registry

import (
	"context"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/mapper"
	"github.com/roach88/ormlite/internal/query"
)

// Mapper returns the typed mapper of T.
func Mapper[T entity.Entity](r *Registry) (*mapper.Mapper[T], error) {
	t, err := r.Table(entity.TypeOf[T]())
	if err != nil {
		return nil, err
	}
	return mapper.For[T](t)
}

// Get returns the entities of type T matching pred.
func Get[T entity.Entity](ctx context.Context, r *Registry, pred query.Predicate) ([]T, error) {
	m, err := Mapper[T](r)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, pred)
}

// GetByKey returns the entity of type T with the given key.
func GetByKey[T entity.Entity](ctx context.Context, r *Registry, key int64) (T, error) {
	m, err := Mapper[T](r)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.GetByKey(ctx, key)
}

// Count counts the rows of type T matching pred.
func Count[T entity.Entity](ctx context.Context, r *Registry, pred query.Predicate) (int64, error) {
	m, err := Mapper[T](r)
	if err != nil {
		return 0, err
	}
	return m.Count(ctx, pred)
}

// NextKey reserves a fresh key for type T.
func NextKey[T entity.Entity](ctx context.Context, r *Registry) (int64, error) {
	m, err := Mapper[T](r)
	if err != nil {
		return 0, err
	}
	return m.NextKey(ctx)
}
