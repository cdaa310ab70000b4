package entity

import (
	"encoding"
	"fmt"
)

// FieldType tags the semantic type of a persistent field.
type FieldType int

const (
	// Int32 is a 32-bit integer, optionally nullable.
	Int32 FieldType = iota + 1
	// Int64 is a 64-bit integer.
	Int64
	// Float is a 64-bit floating point number.
	Float
	// Bool is stored as INTEGER 1/0.
	Bool
	// Text is a string.
	Text
	// Reference points at another entity, stored as a wrapper document.
	Reference
	// Collection is a heterogeneous list of scalars and entity references.
	Collection
	// Opaque is any value round-tripped through its text encoding.
	Opaque
)

var fieldTypeNames = map[FieldType]string{
	Int32:      "int32",
	Int64:      "int64",
	Float:      "float",
	Bool:       "bool",
	Text:       "text",
	Reference:  "ref",
	Collection: "list",
	Opaque:     "opaque",
}

// String returns the lowercase tag name.
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// ParseFieldType resolves a tag name as produced by String.
func ParseFieldType(name string) (FieldType, error) {
	for t, n := range fieldTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", name)
}

// SQLType is the declared column type. Reference, collection, opaque and
// text fields are TEXT columns; everything else is INTEGER.
func (t FieldType) SQLType() string {
	switch t {
	case Text, Reference, Collection, Opaque:
		return "TEXT"
	default:
		return "INTEGER"
	}
}

// Field describes one persistent field of an entity type.
//
// Get returns the field's current value in its canonical Go form:
//
//	Int32      int32, or nil when Optional and absent
//	Int64      int64
//	Float      float64
//	Bool       bool
//	Text       string
//	Reference  Entity (possibly nil)
//	Collection []any of scalars and Entity values
//	Opaque     encoding.TextMarshaler
//
// Set accepts the same forms. Opaque fields additionally accept a string,
// which is handed to the field's encoding.TextUnmarshaler.
type Field struct {
	Name     string
	Type     FieldType
	Optional bool
	// Target is the referenced entity type for Reference fields, or "" when
	// the field may point at any type.
	Target string

	get func(Entity) any
	set func(Entity, any) error
}

// Get reads the field from e.
func (f Field) Get(e Entity) any {
	if f.get == nil {
		return nil
	}
	return f.get(e)
}

// Set writes v into the field of e.
func (f Field) Set(e Entity, v any) error {
	if f.set == nil {
		return fmt.Errorf("field %q is read-only", f.Name)
	}
	if err := f.set(e, v); err != nil {
		return fmt.Errorf("set field %q: %w", f.Name, err)
	}
	return nil
}

// Accessors builds a field with caller-supplied accessors. Use it for shapes
// the typed constructors do not cover.
func Accessors(name string, typ FieldType, get func(Entity) any, set func(Entity, any) error) Field {
	return Field{Name: name, Type: typ, get: get, set: set}
}

func typed[T any](e Entity) (T, error) {
	t, ok := e.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("entity %T is not %T", e, zero)
	}
	return t, nil
}

func mismatch(want string, got any) error {
	return fmt.Errorf("expected %s, got %T", want, got)
}

// Int32Field declares a non-null 32-bit integer field.
func Int32Field[T Entity](name string, ptr func(T) *int32) Field {
	return Field{
		Name: name,
		Type: Int32,
		get: func(e Entity) any {
			t, err := typed[T](e)
			if err != nil {
				return nil
			}
			return *ptr(t)
		},
		set: func(e Entity, v any) error {
			t, err := typed[T](e)
			if err != nil {
				return err
			}
			switch n := v.(type) {
			case int32:
				*ptr(t) = n
			case nil:
				*ptr(t) = 0
			default:
				return mismatch("int32", v)
			}
			return nil
		},
	}
}

// OptionalInt32Field declares a nullable 32-bit integer field.
func OptionalInt32Field[T Entity](name string, ptr func(T) **int32) Field {
	return Field{
		Name:     name,
		Type:     Int32,
		Optional: true,
		get: func(e Entity) any {
			t, err := typed[T](e)
			if err != nil {
				return nil
			}
			if p := *ptr(t); p != nil {
				return *p
			}
			return nil
		},
		set: func(e Entity, v any) error {
			t, err := typed[T](e)
			if err != nil {
				return err
			}
			switch n := v.(type) {
			case int32:
				*ptr(t) = &n
			case nil:
				*ptr(t) = nil
			default:
				return mismatch("int32", v)
			}
			return nil
		},
	}
}

// Int64Field declares a 64-bit integer field.
func Int64Field[T Entity](name string, ptr func(T) *int64) Field {
	return scalarField(name, Int64, ptr)
}

// FloatField declares a floating point field.
func FloatField[T Entity](name string, ptr func(T) *float64) Field {
	return scalarField(name, Float, ptr)
}

// BoolField declares a boolean field.
func BoolField[T Entity](name string, ptr func(T) *bool) Field {
	return scalarField(name, Bool, ptr)
}

// TextField declares a string field.
func TextField[T Entity](name string, ptr func(T) *string) Field {
	return scalarField(name, Text, ptr)
}

func scalarField[T Entity, V any](name string, typ FieldType, ptr func(T) *V) Field {
	return Field{
		Name: name,
		Type: typ,
		get: func(e Entity) any {
			t, err := typed[T](e)
			if err != nil {
				return nil
			}
			return *ptr(t)
		},
		set: func(e Entity, v any) error {
			t, err := typed[T](e)
			if err != nil {
				return err
			}
			if v == nil {
				var zero V
				*ptr(t) = zero
				return nil
			}
			val, ok := v.(V)
			if !ok {
				var zero V
				return mismatch(fmt.Sprintf("%T", zero), v)
			}
			*ptr(t) = val
			return nil
		},
	}
}

// OpaqueField declares a field persisted through its text encoding, such as
// uuid.UUID or time.Time.
func OpaqueField[T Entity, V any, PV interface {
	*V
	encoding.TextMarshaler
	encoding.TextUnmarshaler
}](name string, ptr func(T) *V) Field {
	return Field{
		Name: name,
		Type: Opaque,
		get: func(e Entity) any {
			t, err := typed[T](e)
			if err != nil {
				return nil
			}
			return PV(ptr(t))
		},
		set: func(e Entity, v any) error {
			t, err := typed[T](e)
			if err != nil {
				return err
			}
			switch val := v.(type) {
			case nil:
				var zero V
				*ptr(t) = zero
			case string:
				return PV(ptr(t)).UnmarshalText([]byte(val))
			case V:
				*ptr(t) = val
			case PV:
				*ptr(t) = *val
			default:
				return mismatch("text-encoded value", v)
			}
			return nil
		},
	}
}

// ReferenceField declares a field pointing at a single entity of type R.
func ReferenceField[T Entity, R Entity](name string, ptr func(T) *R) Field {
	target := TypeOf[R]()
	return Field{
		Name:   name,
		Type:   Reference,
		Target: target,
		get: func(e Entity) any {
			t, err := typed[T](e)
			if err != nil {
				return nil
			}
			ref := *ptr(t)
			if IsNil(ref) {
				return nil
			}
			return Entity(ref)
		},
		set: func(e Entity, v any) error {
			t, err := typed[T](e)
			if err != nil {
				return err
			}
			if v == nil {
				var none R
				*ptr(t) = none
				return nil
			}
			ref, ok := v.(R)
			if !ok {
				return mismatch(target, v)
			}
			*ptr(t) = ref
			return nil
		},
	}
}

// CollectionField declares a heterogeneous list of scalars and entities.
func CollectionField[T Entity](name string, ptr func(T) *[]any) Field {
	return Field{
		Name: name,
		Type: Collection,
		get: func(e Entity) any {
			t, err := typed[T](e)
			if err != nil {
				return nil
			}
			return *ptr(t)
		},
		set: func(e Entity, v any) error {
			t, err := typed[T](e)
			if err != nil {
				return err
			}
			switch list := v.(type) {
			case nil:
				*ptr(t) = nil
			case []any:
				*ptr(t) = list
			default:
				return mismatch("[]any", v)
			}
			return nil
		},
	}
}

// ReferencesField declares a homogeneous list of entities of type R,
// persisted as a collection.
func ReferencesField[T Entity, R Entity](name string, ptr func(T) *[]R) Field {
	target := TypeOf[R]()
	return Field{
		Name:   name,
		Type:   Collection,
		Target: target,
		get: func(e Entity) any {
			t, err := typed[T](e)
			if err != nil {
				return nil
			}
			refs := *ptr(t)
			if refs == nil {
				return nil
			}
			out := make([]any, 0, len(refs))
			for _, r := range refs {
				if !IsNil(r) {
					out = append(out, Entity(r))
				}
			}
			return out
		},
		set: func(e Entity, v any) error {
			t, err := typed[T](e)
			if err != nil {
				return err
			}
			if v == nil {
				*ptr(t) = nil
				return nil
			}
			list, ok := v.([]any)
			if !ok {
				return mismatch("[]any", v)
			}
			refs := make([]R, 0, len(list))
			for i, item := range list {
				r, ok := item.(R)
				if !ok {
					return fmt.Errorf("element %d: %w", i, mismatch(target, item))
				}
				refs = append(refs, r)
			}
			*ptr(t) = refs
			return nil
		},
	}
}
