package entity

import (
	"reflect"
	"regexp"
)

// PrimaryKeyColumn is the column holding an entity's key in every table.
const PrimaryKeyColumn = "id"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used unquoted as a table or
// column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Unassigned is the key of an entity that has never been persisted.
// Store-assigned keys start at 1.
const Unassigned int64 = 0

// Entity is implemented by every persistable type.
//
// EntityType names the table the entity lives in. It must be safe to call on
// a nil pointer receiver because generic helpers derive the type name from
// the zero value of a pointer type.
type Entity interface {
	EntityType() string
	PrimaryKey() int64
	SetPrimaryKey(key int64)
}

// Model supplies key storage for struct entities through embedding.
type Model struct {
	ID int64 `json:"id"`
}

// PrimaryKey returns the stored key, or Unassigned.
func (m *Model) PrimaryKey() int64 {
	if m == nil {
		return Unassigned
	}
	return m.ID
}

// SetPrimaryKey assigns the key. Keys are never changed once assigned; the
// mapper only calls this for entities whose key is Unassigned or when
// materializing rows.
func (m *Model) SetPrimaryKey(key int64) {
	m.ID = key
}

// TypeOf names the entity type T through its zero value, or "" when T is
// an interface type.
func TypeOf[T Entity]() string {
	if reflect.TypeFor[T]().Kind() == reflect.Interface {
		return ""
	}
	var zero T
	return zero.EntityType()
}

// IsNil reports whether e is nil or a typed nil pointer.
func IsNil(e Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// IsAssigned reports whether e carries a store key.
func IsAssigned(e Entity) bool {
	return !IsNil(e) && e.PrimaryKey() != Unassigned
}
