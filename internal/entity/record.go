package entity

import (
	"encoding"
	"fmt"
	"maps"
	"slices"
)

// Record is a dynamically typed entity whose fields live in a map. It backs
// entity types declared at runtime.
type Record struct {
	Model
	typ    string
	values map[string]any
}

// NewRecord returns an empty record of the given type.
func NewRecord(typ string) *Record {
	return &Record{typ: typ, values: make(map[string]any)}
}

// EntityType returns the record's type name.
func (r *Record) EntityType() string {
	if r == nil {
		return ""
	}
	return r.typ
}

// Value returns the stored value of a field.
func (r *Record) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// SetValue stores a field value; nil removes it.
func (r *Record) SetValue(name string, v any) {
	if v == nil {
		delete(r.values, name)
		return
	}
	r.values[name] = v
}

// Values returns a copy of the record's field values.
func (r *Record) Values() map[string]any {
	return maps.Clone(r.values)
}

// Keys lists the populated field names, sorted.
func (r *Record) Keys() []string {
	return slices.Sorted(maps.Keys(r.values))
}

// String renders the record for diagnostics.
func (r *Record) String() string {
	return fmt.Sprintf("%s#%d%v", r.typ, r.ID, r.values)
}

// RecordField declares a field of a dynamic record. Opaque record fields
// hold their text form.
func RecordField(name string, typ FieldType) Field {
	return Field{
		Name:     name,
		Type:     typ,
		Optional: typ == Int32,
		get: func(e Entity) any {
			r, err := typed[*Record](e)
			if err != nil {
				return nil
			}
			v, ok := r.values[name]
			if !ok {
				return nil
			}
			if typ == Opaque {
				if s, ok := v.(string); ok {
					return textValue(s)
				}
			}
			return v
		},
		set: func(e Entity, v any) error {
			r, err := typed[*Record](e)
			if err != nil {
				return err
			}
			if typ == Opaque {
				if m, ok := v.(encoding.TextMarshaler); ok {
					text, err := m.MarshalText()
					if err != nil {
						return err
					}
					v = string(text)
				}
			}
			r.SetValue(name, v)
			return nil
		},
	}
}

// RecordDescriptor describes a dynamic record type.
func RecordDescriptor(typ string, fields ...Field) Descriptor {
	return Descriptor{
		Type:   typ,
		New:    func() Entity { return NewRecord(typ) },
		Fields: fields,
	}
}

// textValue adapts a plain string to encoding.TextMarshaler.
type textValue string

func (t textValue) MarshalText() ([]byte, error) { return []byte(t), nil }
