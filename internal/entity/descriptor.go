package entity

import "fmt"

// Descriptor is the persistent shape of one entity type: its table name, a
// factory for blank instances and its ordered fields.
type Descriptor struct {
	Type   string
	New    func() Entity
	Fields []Field
}

// Describe builds the descriptor for struct type T, whose pointer implements
// Entity.
func Describe[T any, PT interface {
	*T
	Entity
}](fields ...Field) Descriptor {
	return Descriptor{
		Type:   PT(nil).EntityType(),
		New:    func() Entity { return PT(new(T)) },
		Fields: fields,
	}
}

// Field returns the field named name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names lists the field names in declaration order.
func (d Descriptor) Names() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Instantiate returns a blank instance of the described type.
func (d Descriptor) Instantiate() (Entity, error) {
	if d.New == nil {
		return nil, fmt.Errorf("entity type %q has no factory", d.Type)
	}
	e := d.New()
	if IsNil(e) {
		return nil, fmt.Errorf("entity type %q factory returned nil", d.Type)
	}
	return e, nil
}
