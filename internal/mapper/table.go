package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/ormlite/internal/catalog"
	"github.com/roach88/ormlite/internal/codec"
	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/identity"
	"github.com/roach88/ormlite/internal/query"
	"github.com/roach88/ormlite/internal/schema"
	"github.com/roach88/ormlite/internal/store"
	"github.com/roach88/ormlite/internal/stored"
)

// Lookup finds the table of another entity type.
type Lookup interface {
	Table(typeName string) (*Table, bool)
}

// Deps are the collaborators shared by every table of one registry.
type Deps struct {
	Catalog *catalog.Catalog
	Cache   *identity.Cache
	Codec   *codec.Codec
	Schema  *schema.Manager
	Store   *store.Store
	Lookup  Lookup
	Logger  *slog.Logger
}

// Table maps one entity type to its table.
type Table struct {
	typeName string
	deps     Deps
	logger   *slog.Logger

	mu   sync.Mutex
	next int64 // next key to hand out; 0 until read from the store
}

// NewTable returns the mapper engine for typeName.
func NewTable(typeName string, deps Deps) *Table {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		typeName: typeName,
		deps:     deps,
		logger:   logger.With("entity", typeName),
	}
}

// Type returns the entity type name, which is also the table name.
func (t *Table) Type() string {
	return t.typeName
}

func (t *Table) fields() []entity.Field {
	return t.deps.Catalog.Describe(t.typeName)
}

// do runs fn as a store job, or inline when called from inside one.
func (t *Table) do(ctx context.Context, fn func(ctx context.Context, c *store.Conn) error) error {
	if t.deps.Store == nil {
		return store.Unavailable(t.typeName)
	}
	return t.deps.Store.Do(ctx, fn)
}

// CreateTable creates the table if it does not exist.
func (t *Table) CreateTable(ctx context.Context) error {
	return t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		return t.deps.Schema.CreateTable(ctx, c, t.typeName, t.fields())
	})
}

// Migrate adds missing columns and drops obsolete ones.
func (t *Table) Migrate(ctx context.Context) (schema.Changes, error) {
	var changes schema.Changes
	err := t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		var err error
		changes, err = t.deps.Schema.Migrate(ctx, c, t.typeName, t.fields())
		return err
	})
	return changes, err
}

// Insert saves e: a row that already exists is updated, otherwise a new
// row is inserted. Entities referenced by e are saved afterwards.
func (t *Table) Insert(ctx context.Context, e entity.Entity) error {
	if err := t.check(e); err != nil {
		return err
	}
	return t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		return t.insert(ctx, c, e)
	})
}

// Update writes the fields of a persisted e. Entities referenced by e are
// saved afterwards.
func (t *Table) Update(ctx context.Context, e entity.Entity) error {
	if err := t.check(e); err != nil {
		return err
	}
	return t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		if !entity.IsAssigned(e) {
			t.logger.Warn("update of unsaved entity ignored")
			return nil
		}
		ctx, first := visit(ctx, e)
		if !first {
			return nil
		}
		return t.update(ctx, c, e)
	})
}

// Get returns the entities matching pred in ascending key order. A nil
// pred matches every row.
func (t *Table) Get(ctx context.Context, pred query.Predicate) ([]entity.Entity, error) {
	var out []entity.Entity
	err := t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		var err error
		out, err = t.get(ctx, c, pred)
		return err
	})
	return out, err
}

// GetByKey returns the entity with the given key, consulting the identity
// cache first. A missing row yields a NOT_FOUND error.
func (t *Table) GetByKey(ctx context.Context, key int64) (entity.Entity, error) {
	if e, ok := t.deps.Cache.Get(identity.Key{Type: t.typeName, ID: key}); ok {
		return e, nil
	}
	var out entity.Entity
	err := t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		var err error
		out, err = t.getByKey(ctx, c, key)
		return err
	})
	return out, err
}

// Delete evicts e from the identity cache and removes its row.
func (t *Table) Delete(ctx context.Context, e entity.Entity) error {
	if err := t.check(e); err != nil {
		return err
	}
	return t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		return t.delete(ctx, c, e)
	})
}

// NextKey reserves a fresh primary key. Keys are never reused within the
// life of the table object; gaps are allowed.
func (t *Table) NextKey(ctx context.Context) (int64, error) {
	var key int64
	err := t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		var err error
		key, err = t.nextKey(ctx, c)
		return err
	})
	return key, err
}

// Count returns the number of rows matching pred.
func (t *Table) Count(ctx context.Context, pred query.Predicate) (int64, error) {
	var n int64
	err := t.do(ctx, func(ctx context.Context, c *store.Conn) error {
		where, args, err := t.where(pred)
		if err != nil {
			return err
		}
		n, _, err = c.QueryInt(ctx, "SELECT COUNT(*) FROM "+t.typeName+where, args...)
		if err != nil {
			return store.WithEntity(err, t.typeName, 0)
		}
		return nil
	})
	return n, err
}

func (t *Table) check(e entity.Entity) error {
	if entity.IsNil(e) {
		return fmt.Errorf("%s: nil entity", t.typeName)
	}
	if got := e.EntityType(); got != t.typeName {
		return fmt.Errorf("%s: cannot persist entity of type %s", t.typeName, got)
	}
	return nil
}

func (t *Table) insert(ctx context.Context, c *store.Conn, e entity.Entity) error {
	if !entity.IsAssigned(e) {
		if err := t.assignKey(ctx, c, e); err != nil {
			return err
		}
	}

	ctx, first := visit(ctx, e)
	if !first {
		return nil
	}

	key := e.PrimaryKey()
	rows, err := c.Query(ctx, "SELECT 1 FROM "+t.typeName+" WHERE "+entity.PrimaryKeyColumn+" = ?", key)
	if err != nil {
		return store.WithEntity(err, t.typeName, key)
	}
	if len(rows) > 0 {
		return t.update(ctx, c, e)
	}

	fields := t.fields()
	args, nested, err := t.bind(ctx, c, e, fields)
	if err != nil {
		return err
	}

	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, entity.PrimaryKeyColumn)
	for _, f := range fields {
		cols = append(cols, f.Name)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s)", t.typeName, strings.Join(cols, ", "), marks)
	args = append([]any{key}, args...)

	var res store.Result
	err = c.Retry(ctx, "insert", func() error {
		var err error
		res, err = c.Exec(ctx, stmt, args...)
		return err
	})
	if err != nil {
		return store.WithEntity(err, t.typeName, key)
	}
	if res.LastInsertID != 0 && res.LastInsertID != key {
		e.SetPrimaryKey(res.LastInsertID)
	}
	t.observeKey(e.PrimaryKey())

	t.deps.Cache.Put(e)
	return t.cascade(ctx, c, nested)
}

func (t *Table) update(ctx context.Context, c *store.Conn, e entity.Entity) error {
	key := e.PrimaryKey()
	fields := t.fields()

	args, nested, err := t.bind(ctx, c, e, fields)
	if err != nil {
		return err
	}

	if len(fields) > 0 {
		sets := make([]string, len(fields))
		for i, f := range fields {
			sets[i] = f.Name + " = ?"
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.typeName, strings.Join(sets, ", "), entity.PrimaryKeyColumn)
		args = append(args, key)

		var res store.Result
		err = c.Retry(ctx, "update", func() error {
			var err error
			res, err = c.Exec(ctx, stmt, args...)
			return err
		})
		if err != nil {
			return store.WithEntity(err, t.typeName, key)
		}
		if res.RowsAffected == 0 {
			t.logger.Info("update affected no rows", "key", key)
		}
	}

	t.deps.Cache.Put(e)
	return t.cascade(ctx, c, nested)
}

// bind encodes every field of e into positional arguments and collects the
// entities it references.
func (t *Table) bind(ctx context.Context, c *store.Conn, e entity.Entity, fields []entity.Field) ([]any, []entity.Entity, error) {
	alloc := &allocator{table: t, conn: c}
	args := make([]any, 0, len(fields)+1)
	var nested []entity.Entity

	for _, f := range fields {
		v, refs, err := t.deps.Codec.Encode(ctx, f, f.Get(e), alloc)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", t.typeName, err)
		}
		args = append(args, stored.Arg(v))
		nested = append(nested, refs...)
	}
	return args, nested, nil
}

// cascade saves referenced entities through their own tables.
func (t *Table) cascade(ctx context.Context, c *store.Conn, nested []entity.Entity) error {
	for _, n := range nested {
		target, ok := t.deps.Lookup.Table(n.EntityType())
		if !ok {
			return fmt.Errorf("%s: referenced type %s is not registered", t.typeName, n.EntityType())
		}
		if err := target.insert(ctx, c, n); err != nil {
			return fmt.Errorf("%s: cascade save of %s: %w", t.typeName, n.EntityType(), err)
		}
	}
	return nil
}

func (t *Table) where(pred query.Predicate) (string, []any, error) {
	if pred == nil {
		return "", nil, nil
	}
	if err := t.validate(pred); err != nil {
		return "", nil, err
	}
	cond, args, err := query.Compile(pred)
	if err != nil {
		return "", nil, &store.Error{Code: store.CodeStatement, Op: "compile filter", Entity: t.typeName, Err: err}
	}
	if cond == "" {
		return "", args, nil
	}
	return " WHERE " + cond, args, nil
}

// validate rejects typed predicates on columns the type does not have.
func (t *Table) validate(pred query.Predicate) error {
	names := []string{entity.PrimaryKeyColumn}
	for _, f := range t.fields() {
		names = append(names, f.Name)
	}
	for _, name := range query.Fields(pred) {
		if !slices.Contains(names, name) {
			return &store.Error{
				Code:   store.CodeStatement,
				Op:     "compile filter",
				Entity: t.typeName,
				Err:    fmt.Errorf("unknown field %q", name),
			}
		}
	}
	return nil
}

func (t *Table) get(ctx context.Context, c *store.Conn, pred query.Predicate) ([]entity.Entity, error) {
	fields := t.fields()
	where, args, err := t.where(pred)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, entity.PrimaryKeyColumn)
	for _, f := range fields {
		cols = append(cols, f.Name)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC",
		strings.Join(cols, ", "), t.typeName, where, entity.PrimaryKeyColumn)

	rows, err := c.Query(ctx, stmt, args...)
	if err != nil {
		return nil, store.WithEntity(err, t.typeName, 0)
	}

	out := make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := t.materialize(ctx, c, fields, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// materialize returns the live instance for one row.
func (t *Table) materialize(ctx context.Context, c *store.Conn, fields []entity.Field, row []stored.Value) (entity.Entity, error) {
	key, ok := stored.AsInt64(row[0])
	if !ok {
		return nil, &store.Error{Code: store.CodeDecode, Op: "get", Entity: t.typeName, Err: errors.New("row without primary key")}
	}
	k := identity.Key{Type: t.typeName, ID: key}
	if cached, ok := t.deps.Cache.Get(k); ok {
		return cached, nil
	}

	inst, err := t.deps.Catalog.New(t.typeName)
	if err != nil {
		return nil, err
	}
	inst.SetPrimaryKey(key)
	canonical, loaded := t.deps.Cache.Adopt(inst)
	if loaded {
		return canonical, nil
	}

	res := &resolver{table: t, conn: c}
	for i, f := range fields {
		if i+1 >= len(row) {
			break
		}
		v, err := t.deps.Codec.Decode(ctx, f, row[i+1], res)
		if err != nil {
			t.deps.Cache.RemoveIf(k, inst)
			return nil, store.WithEntity(err, t.typeName, key)
		}
		if err := f.Set(inst, v); err != nil {
			t.logger.Warn("field value could not be assigned", "key", key, "field", f.Name, "error", err)
		}
	}
	return inst, nil
}

func (t *Table) getByKey(ctx context.Context, c *store.Conn, key int64) (entity.Entity, error) {
	if e, ok := t.deps.Cache.Get(identity.Key{Type: t.typeName, ID: key}); ok {
		return e, nil
	}
	found, err := t.get(ctx, c, query.ByKey(key))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, store.NotFound("get", t.typeName, key)
	}
	return found[0], nil
}

func (t *Table) delete(ctx context.Context, c *store.Conn, e entity.Entity) error {
	if !entity.IsAssigned(e) {
		t.logger.Info("delete of unsaved entity ignored")
		return nil
	}
	key := e.PrimaryKey()
	t.deps.Cache.Remove(identity.KeyOf(e))

	var res store.Result
	err := c.Retry(ctx, "delete", func() error {
		var err error
		res, err = c.Exec(ctx, "DELETE FROM "+t.typeName+" WHERE "+entity.PrimaryKeyColumn+" = ?", key)
		return err
	})
	if err != nil {
		return store.WithEntity(err, t.typeName, key)
	}
	if res.RowsAffected == 0 {
		t.logger.Info("delete affected no rows", "key", key)
	}
	return nil
}

func (t *Table) nextKey(ctx context.Context, c *store.Conn) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.next == 0 {
		maxKey, ok, err := c.QueryInt(ctx, "SELECT MAX("+entity.PrimaryKeyColumn+") FROM "+t.typeName)
		if err != nil {
			return 0, store.WithEntity(err, t.typeName, 0)
		}
		if !ok || maxKey < 0 {
			maxKey = 0
		}
		t.next = maxKey + 1
	}
	key := t.next
	t.next++
	return key, nil
}

// observeKey moves the key counter past a key written by an insert, so keys
// set explicitly are never handed out again.
func (t *Table) observeKey(key int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.next != 0 && key >= t.next {
		t.next = key + 1
	}
}

func (t *Table) assignKey(ctx context.Context, c *store.Conn, e entity.Entity) error {
	key, err := t.nextKey(ctx, c)
	if err != nil {
		return err
	}
	e.SetPrimaryKey(key)
	return nil
}

// ResetKeys forgets the cached next key so the next reservation reads the
// store again.
func (t *Table) ResetKeys() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = 0
}
