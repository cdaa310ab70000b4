package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/ormlite/internal/catalog"
	"github.com/roach88/ormlite/internal/codec"
	"github.com/roach88/ormlite/internal/config"
	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/identity"
	"github.com/roach88/ormlite/internal/mapper"
	"github.com/roach88/ormlite/internal/metrics"
	"github.com/roach88/ormlite/internal/query"
	"github.com/roach88/ormlite/internal/schema"
	"github.com/roach88/ormlite/internal/store"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records statement, retry, cache and migration counters.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithSleep replaces the wait between retry attempts. Tests use it to
// observe backoff without sleeping.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Registry) {
		r.sleep = sleep
	}
}

// Registry owns the entity tables of one named store.
type Registry struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	sleep   func(ctx context.Context, d time.Duration) error

	catalog *catalog.Catalog
	cache   *identity.Cache
	codec   *codec.Codec
	schema  *schema.Manager

	// lifecycle serializes Initialize and Close; mu guards the fields below.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	tables  map[string]*mapper.Table
	store   *store.Store
	started bool
	name    string
	path    string
	version int32
}

// New creates an unstarted registry. The SchemaInfo type is registered
// automatically.
func New(cfg config.Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:    cfg,
		tables: make(map[string]*mapper.Table),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	r.catalog = catalog.New()
	r.cache = identity.NewCache(r.metrics)
	r.codec = codec.New(r.logger, cfg.LegacyInt32Sentinel)
	r.schema = schema.NewManager(r.logger, r.metrics)

	if err := r.Register(schemaInfoDescriptor()); err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return r
}

// Register adds an entity type. Types registered after Initialize get
// their table created immediately; registering an existing type name
// replaces its descriptor and, once started, migrates its table to the new
// field set.
func (r *Registry) Register(desc entity.Descriptor) error {
	if err := r.catalog.Register(desc); err != nil {
		return err
	}

	r.mu.Lock()
	t, ok := r.tables[desc.Type]
	if !ok {
		t = mapper.NewTable(desc.Type, r.deps())
		r.tables[desc.Type] = t
	}
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}
	ctx := context.Background()
	if err := t.CreateTable(ctx); err != nil {
		return err
	}
	if ok {
		if _, err := t.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// deps must be called with mu held or before the registry is shared.
func (r *Registry) deps() mapper.Deps {
	return mapper.Deps{
		Catalog: r.catalog,
		Cache:   r.cache,
		Codec:   r.codec,
		Schema:  r.schema,
		Store:   r.store,
		Lookup:  lookup{r},
		Logger:  r.logger,
	}
}

// lookup resolves tables for cascades. It ignores the started flag so
// bootstrap can save through it.
type lookup struct{ r *Registry }

func (l lookup) Table(typeName string) (*mapper.Table, bool) {
	l.r.mu.RLock()
	defer l.r.mu.RUnlock()
	t, ok := l.r.tables[typeName]
	return t, ok
}

// Initialize opens the store called name and brings its schema to version.
// Calling it again with the same name is a no-op.
func (r *Registry) Initialize(ctx context.Context, name string, version int32) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.Started() {
		if current := r.Name(); name != current {
			return fmt.Errorf("registry already initialized as %q", current)
		}
		return nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid store name %q", name)
	}

	path, err := r.storePath(name)
	if err != nil {
		return err
	}

	opts := r.cfg.StoreOptions(r.logger, r.metrics)
	opts.Retry.Sleep = r.sleep
	s, err := store.Open(path, opts)
	if err != nil {
		return fmt.Errorf("open store %q: %w", name, err)
	}

	r.mu.Lock()
	r.store = s
	r.rebuildTables()
	tables := maps.Clone(r.tables)
	r.mu.Unlock()

	if err := r.bootstrap(ctx, s, tables, version); err != nil {
		s.Close()
		r.mu.Lock()
		r.store = nil
		r.rebuildTables()
		r.mu.Unlock()
		return fmt.Errorf("initialize %q: %w", name, err)
	}

	r.mu.Lock()
	r.started = true
	r.name = name
	r.path = path
	r.version = version
	r.mu.Unlock()

	r.logger.Info("registry initialized", "name", name, "path", path, "version", version)
	return nil
}

// rebuildTables points every table at the current store. Called with mu
// held.
func (r *Registry) rebuildTables() {
	for typeName := range r.tables {
		r.tables[typeName] = mapper.NewTable(typeName, r.deps())
	}
}

func (r *Registry) storePath(name string) (string, error) {
	if r.cfg.Dir == store.MemoryPath {
		return store.MemoryPath, nil
	}
	dir := filepath.Join(r.cfg.Dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create store directory: %w", err)
	}
	return filepath.Join(dir, name+".sqlite"), nil
}

// bootstrap runs in one store job: it detects a fresh store, creates every
// table, migrates when the plan says so and stamps the version.
func (r *Registry) bootstrap(ctx context.Context, s *store.Store, tables map[string]*mapper.Table, version int32) error {
	names := slices.Sorted(maps.Keys(tables))
	return s.Do(ctx, func(ctx context.Context, c *store.Conn) error {
		storedVersion, fresh, err := r.readVersion(ctx, c)
		if err != nil {
			return err
		}
		action := schema.Plan(storedVersion, fresh, version, r.cfg.Policy())
		r.logger.Debug("schema plan", "action", action.String(), "stored", storedVersion, "fresh", fresh, "requested", version)

		for _, typeName := range names {
			if err := tables[typeName].CreateTable(ctx); err != nil {
				return err
			}
		}

		if action == schema.ActionMigrate {
			for _, typeName := range names {
				changes, err := tables[typeName].Migrate(ctx)
				if err != nil {
					return err
				}
				if !changes.Empty() {
					r.logger.Info("table migrated", "entity", typeName, "added", changes.Added, "dropped", changes.Dropped)
				}
			}
		}

		if !fresh && storedVersion == version {
			return nil
		}
		row := &SchemaInfo{Version: version}
		row.SetPrimaryKey(1)
		return tables[SchemaInfoType].Insert(ctx, row)
	})
}

// readVersion returns the recorded version. fresh is true when the store
// has no SchemaInfo table or row yet.
func (r *Registry) readVersion(ctx context.Context, c *store.Conn) (int32, bool, error) {
	exists, err := r.schema.TableExists(ctx, c, SchemaInfoType)
	if err != nil {
		return 0, false, err
	}
	if !exists {
		return 0, true, nil
	}
	v, ok, err := c.QueryInt(ctx, "SELECT version FROM "+SchemaInfoType+" ORDER BY id ASC LIMIT 1")
	if err != nil {
		var serr *store.Error
		if errors.As(err, &serr) && serr.Code == store.CodeStatement {
			r.logger.Warn("schema version unreadable, treating store as fresh", "error", err)
			return 0, true, nil
		}
		return 0, false, err
	}
	if !ok {
		return 0, true, nil
	}
	return int32(v), false, nil
}

// Close releases the store. The registry may be initialized again.
func (r *Registry) Close() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	s, name := r.store, r.name
	r.started = false
	r.store = nil
	r.name = ""
	r.path = ""
	r.rebuildTables()
	r.mu.Unlock()

	err := s.Close()
	r.cache.Clear()
	r.logger.Info("registry closed", "name", name)
	return err
}

// Table returns the mapper engine of typeName.
func (r *Registry) Table(typeName string) (*mapper.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started {
		return nil, store.Unavailable(typeName)
	}
	t, ok := r.tables[typeName]
	if !ok {
		return nil, fmt.Errorf("entity type %q is not registered", typeName)
	}
	return t, nil
}

// Save inserts or updates e and every entity it references.
func (r *Registry) Save(ctx context.Context, e entity.Entity) error {
	if entity.IsNil(e) {
		return errors.New("save: nil entity")
	}
	t, err := r.Table(e.EntityType())
	if err != nil {
		return err
	}
	return t.Insert(ctx, e)
}

// Delete removes e.
func (r *Registry) Delete(ctx context.Context, e entity.Entity) error {
	if entity.IsNil(e) {
		return errors.New("delete: nil entity")
	}
	t, err := r.Table(e.EntityType())
	if err != nil {
		return err
	}
	return t.Delete(ctx, e)
}

// Query returns the entities of typeName matching pred.
func (r *Registry) Query(ctx context.Context, typeName string, pred query.Predicate) ([]entity.Entity, error) {
	t, err := r.Table(typeName)
	if err != nil {
		return nil, err
	}
	return t.Get(ctx, pred)
}

// Load returns the entity of typeName with the given key.
func (r *Registry) Load(ctx context.Context, typeName string, key int64) (entity.Entity, error) {
	t, err := r.Table(typeName)
	if err != nil {
		return nil, err
	}
	return t.GetByKey(ctx, key)
}

// CountOf counts the rows of typeName matching pred.
func (r *Registry) CountOf(ctx context.Context, typeName string, pred query.Predicate) (int64, error) {
	t, err := r.Table(typeName)
	if err != nil {
		return 0, err
	}
	return t.Count(ctx, pred)
}

// NewEntity instantiates a registered type with an unassigned key.
func (r *Registry) NewEntity(typeName string) (entity.Entity, error) {
	return r.catalog.New(typeName)
}

// Describe returns the registered descriptor of typeName.
func (r *Registry) Describe(typeName string) (entity.Descriptor, bool) {
	return r.catalog.Lookup(typeName)
}

// Tables lists the registered entity types, SchemaInfo included.
func (r *Registry) Tables() []string {
	return r.catalog.Types()
}

// Columns reports the live columns of typeName's table.
func (r *Registry) Columns(ctx context.Context, typeName string) ([]schema.Column, error) {
	r.mu.RLock()
	s, started := r.store, r.started
	r.mu.RUnlock()
	if !started {
		return nil, store.Unavailable("columns")
	}

	var cols []schema.Column
	err := s.Do(ctx, func(ctx context.Context, c *store.Conn) error {
		cols = r.schema.Columns(ctx, c, typeName)
		return nil
	})
	return cols, err
}

// Version returns the schema version passed to Initialize.
func (r *Registry) Version() int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Name returns the store name, empty before Initialize.
func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// Path returns the database path, empty before Initialize.
func (r *Registry) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// Started reports whether Initialize succeeded and Close has not run.
func (r *Registry) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}
