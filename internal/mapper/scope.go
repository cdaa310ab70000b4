package mapper

import (
	"context"
	"fmt"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/identity"
	"github.com/roach88/ormlite/internal/store"
)

type visitedKey struct{}

// visit records e in the save scope carried by ctx, creating the scope on
// first use. first is false when e was already saved in this scope.
func visit(ctx context.Context, e entity.Entity) (context.Context, bool) {
	seen, ok := ctx.Value(visitedKey{}).(map[identity.Key]bool)
	if !ok {
		seen = make(map[identity.Key]bool)
		ctx = context.WithValue(ctx, visitedKey{}, seen)
	}
	k := identity.KeyOf(e)
	if seen[k] {
		return ctx, false
	}
	seen[k] = true
	return ctx, true
}

// allocator reserves keys for unsaved entities referenced during binding.
type allocator struct {
	table *Table
	conn  *store.Conn
}

func (a *allocator) AssignKey(ctx context.Context, e entity.Entity) error {
	target, ok := a.table.deps.Lookup.Table(e.EntityType())
	if !ok {
		return fmt.Errorf("referenced type %s is not registered", e.EntityType())
	}
	return target.assignKey(ctx, a.conn, e)
}

// resolver loads referenced entities during decoding.
type resolver struct {
	table *Table
	conn  *store.Conn
}

func (r *resolver) Resolve(ctx context.Context, typeName string, key int64) (entity.Entity, error) {
	target, ok := r.table.deps.Lookup.Table(typeName)
	if !ok {
		return nil, store.NotFound("resolve", typeName, key)
	}
	return target.getByKey(ctx, r.conn, key)
}
