// Package catalog caches the persistent field list of every registered
// entity type and creates blank instances by type name.
package catalog

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/ormlite/internal/entity"
)

// Catalog is a thread-safe map from entity type name to descriptor.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]entity.Descriptor
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{types: make(map[string]entity.Descriptor)}
}

// Register validates and caches desc. Registering a type again replaces its
// descriptor. A field named after the primary key column is dropped.
func (c *Catalog) Register(desc entity.Descriptor) error {
	if !entity.ValidIdentifier(desc.Type) {
		return fmt.Errorf("invalid entity type name %q", desc.Type)
	}
	if desc.New == nil {
		return fmt.Errorf("entity type %q: missing factory", desc.Type)
	}

	fields := make([]entity.Field, 0, len(desc.Fields))
	seen := make(map[string]bool, len(desc.Fields))
	for _, f := range desc.Fields {
		if f.Name == entity.PrimaryKeyColumn {
			continue
		}
		if !entity.ValidIdentifier(f.Name) {
			return fmt.Errorf("entity type %q: invalid field name %q", desc.Type, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("entity type %q: duplicate field %q", desc.Type, f.Name)
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}
	desc.Fields = fields

	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[desc.Type] = desc
	return nil
}

// Describe returns the ordered persistent fields of typeName, excluding the
// primary key. Unknown and field-less types yield an empty list.
func (c *Catalog) Describe(typeName string) []entity.Field {
	c.mu.RLock()
	defer c.mu.RUnlock()

	desc, ok := c.types[typeName]
	if !ok {
		return nil
	}
	return slices.Clone(desc.Fields)
}

// Lookup returns the descriptor for typeName.
func (c *Catalog) Lookup(typeName string) (entity.Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	desc, ok := c.types[typeName]
	if ok {
		desc.Fields = slices.Clone(desc.Fields)
	}
	return desc, ok
}

// New creates a blank instance of typeName.
func (c *Catalog) New(typeName string) (entity.Entity, error) {
	desc, ok := c.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", typeName)
	}
	return desc.Instantiate()
}

// Types lists the registered type names, sorted.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
