// Package codec converts field values to stored column values and back.
//
// Scalars map directly onto the column storage classes. Entity references
// and heterogeneous collections are stored as canonical JSON wrapper
// documents (see Wrapper) and resolved back into live entities through a
// Resolver when rows are decoded.
package codec

import (
	"context"
	"encoding"
	"fmt"
	"log/slog"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/store"
	"github.com/roach88/ormlite/internal/stored"
)

// LegacyInt32Sentinel is stored for an absent optional int32 when the
// legacy sentinel mode is enabled.
const LegacyInt32Sentinel = -1

// KeyAllocator assigns a key to an entity that has never been persisted,
// so that a parent row can reference it before it is saved.
type KeyAllocator interface {
	AssignKey(ctx context.Context, e entity.Entity) error
}

// Resolver loads the entity referenced by a wrapper. Implementations return
// a NOT_FOUND store error when the row or its type does not exist.
type Resolver interface {
	Resolve(ctx context.Context, typeName string, key int64) (entity.Entity, error)
}

// Codec encodes and decodes field values.
type Codec struct {
	legacySentinel bool
	logger         *slog.Logger
}

// New returns a codec. With legacySentinel set, absent optional int32
// values are stored as -1 instead of NULL and read back as absent.
func New(logger *slog.Logger, legacySentinel bool) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{legacySentinel: legacySentinel, logger: logger}
}

// Encode converts the value v of field f into a column value. Entities
// referenced by v are returned so the caller can cascade their saves;
// unsaved ones are given a key through alloc first.
func (c *Codec) Encode(ctx context.Context, f entity.Field, v any, alloc KeyAllocator) (stored.Value, []entity.Entity, error) {
	switch val := v.(type) {
	case nil:
		if c.legacySentinel && f.Type == entity.Int32 && f.Optional {
			return stored.Integer(LegacyInt32Sentinel), nil, nil
		}
		return stored.Null{}, nil, nil

	case entity.Entity:
		if entity.IsNil(val) {
			return stored.Null{}, nil, nil
		}
		if err := c.ensureKey(ctx, val, alloc); err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		text, err := RefWrapper(val.EntityType(), val.PrimaryKey()).Marshal()
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return stored.Text(text), []entity.Entity{val}, nil

	case []any:
		if val == nil {
			return stored.Null{}, nil, nil
		}
		return c.encodeCollection(ctx, f, val, alloc)

	case string:
		return stored.Text(val), nil, nil
	case int32:
		return stored.Integer(int64(val)), nil, nil
	case int64:
		return stored.Integer(val), nil, nil
	case int:
		return stored.Integer(int64(val)), nil, nil
	case bool:
		if val {
			return stored.Integer(1), nil, nil
		}
		return stored.Integer(0), nil, nil
	case float64:
		return stored.Real(val), nil, nil
	case float32:
		return stored.Real(float64(val)), nil, nil

	case encoding.TextMarshaler:
		text, err := val.MarshalText()
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return stored.Text(string(text)), nil, nil

	default:
		c.logger.Warn("unsupported field value stored as NULL", "field", f.Name, "type", fmt.Sprintf("%T", v))
		return stored.Null{}, nil, nil
	}
}

func (c *Codec) encodeCollection(ctx context.Context, f entity.Field, list []any, alloc KeyAllocator) (stored.Value, []entity.Entity, error) {
	wrappers := make([]Wrapper, 0, len(list))
	var nested []entity.Entity

	for i, item := range list {
		if e, ok := item.(entity.Entity); ok && !entity.IsNil(e) {
			if err := c.ensureKey(ctx, e, alloc); err != nil {
				return nil, nil, fmt.Errorf("field %s element %d: %w", f.Name, i, err)
			}
		}
		w, ent, ok := wrapperFor(item)
		if !ok {
			c.logger.Warn("unsupported collection element skipped", "field", f.Name, "index", i, "type", fmt.Sprintf("%T", item))
			continue
		}
		wrappers = append(wrappers, w)
		if ent != nil {
			nested = append(nested, ent)
		}
	}

	text, err := MarshalWrappers(wrappers)
	if err != nil {
		return nil, nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return stored.Text(text), nested, nil
}

func (c *Codec) ensureKey(ctx context.Context, e entity.Entity, alloc KeyAllocator) error {
	if e.PrimaryKey() != entity.Unassigned {
		return nil
	}
	if alloc == nil {
		return fmt.Errorf("cannot reference unsaved %s without a key allocator", e.EntityType())
	}
	return alloc.AssignKey(ctx, e)
}

// Decode converts the column value v back into the canonical Go form for
// field f (see entity.Field). NULL decodes to nil.
func (c *Codec) Decode(ctx context.Context, f entity.Field, v stored.Value, r Resolver) (any, error) {
	if stored.IsNull(v) {
		return nil, nil
	}

	switch f.Type {
	case entity.Int32:
		n, ok := stored.AsInt32(v)
		if !ok {
			return nil, decodeError(f, v)
		}
		if c.legacySentinel && f.Optional && n == LegacyInt32Sentinel {
			return nil, nil
		}
		return n, nil

	case entity.Int64:
		n, ok := stored.AsInt64(v)
		if !ok {
			return nil, decodeError(f, v)
		}
		return n, nil

	case entity.Float:
		x, ok := stored.AsFloat64(v)
		if !ok {
			return nil, decodeError(f, v)
		}
		return x, nil

	case entity.Bool:
		n, ok := stored.AsInt64(v)
		if !ok {
			return nil, decodeError(f, v)
		}
		return n != 0, nil

	case entity.Text, entity.Opaque:
		s, _ := stored.AsString(v)
		return s, nil

	case entity.Reference:
		return c.decodeReference(ctx, f, v, r)

	case entity.Collection:
		return c.decodeCollection(ctx, f, v, r)

	default:
		return nil, &store.Error{Code: store.CodeDecode, Op: "decode " + f.Name, Err: fmt.Errorf("unknown field type %s", f.Type)}
	}
}

func (c *Codec) decodeReference(ctx context.Context, f entity.Field, v stored.Value, r Resolver) (any, error) {
	text, _ := stored.AsString(v)
	w, err := ParseWrapper(text)
	if err != nil {
		c.logger.Warn("reference column is not a wrapper document, using raw text", "field", f.Name, "error", err)
		return text, nil
	}
	return c.unwrap(ctx, f, w, r)
}

func (c *Codec) decodeCollection(ctx context.Context, f entity.Field, v stored.Value, r Resolver) (any, error) {
	text, _ := stored.AsString(v)
	ws, err := ParseWrappers(text)
	if err != nil {
		c.logger.Warn("collection column could not be decoded, using empty list", "field", f.Name, "error", err)
		return []any{}, nil
	}

	out := make([]any, 0, len(ws))
	for _, w := range ws {
		item, err := c.unwrap(ctx, f, w, r)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// unwrap resolves one wrapper. A reference whose target is gone yields nil.
func (c *Codec) unwrap(ctx context.Context, f entity.Field, w Wrapper, r Resolver) (any, error) {
	switch {
	case w.String != nil:
		return *w.String, nil
	case w.Int != nil:
		return *w.Int, nil
	}

	if r == nil {
		return nil, &store.Error{Code: store.CodeDecode, Op: "decode " + f.Name, Err: fmt.Errorf("no resolver for reference to %s", *w.Type)}
	}
	e, err := r.Resolve(ctx, *w.Type, *w.Key)
	if err != nil {
		if store.IsNotFound(err) {
			c.logger.Warn("referenced entity not found", "field", f.Name, "type", *w.Type, "key", *w.Key)
			return nil, nil
		}
		return nil, fmt.Errorf("resolve %s#%d: %w", *w.Type, *w.Key, err)
	}
	return e, nil
}

func decodeError(f entity.Field, v stored.Value) error {
	return &store.Error{
		Code: store.CodeDecode,
		Op:   "decode " + f.Name,
		Err:  fmt.Errorf("cannot read %s value as %s", stored.Kind(v), f.Type),
	}
}
