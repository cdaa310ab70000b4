// Package schemafile declares dynamic entity types in CUE.
//
// A schema file lists entity types under the top-level "entity" struct. Each
// field is either a type name or a struct with a type and, for references,
// a target:
//
//	package shop
//
//	entity: Item: fields: {
//		name:  "text"
//		price: "float"
//	}
//
//	entity: Order: fields: {
//		item:  {type: "ref", target: "Item"}
//		token: "uuid"
//	}
//
// Field order follows declaration order. Types are the entity field type
// names (int32, int64, float, bool, text, ref, list, opaque) plus "uuid",
// an opaque field whose values must parse as UUIDs.
package schemafile

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ormlite/internal/entity"
)

// KindUUID is the schema type name for UUID-valued opaque fields.
const KindUUID = "uuid"

// Field is one declared field.
type Field struct {
	Name string

	// Kind is the type name as written in the file.
	Kind string

	Type   entity.FieldType
	Target string
}

// Entity is one declared entity type.
type Entity struct {
	Name   string
	Fields []Field
}

// Schema is the compiled content of one or more schema files.
type Schema struct {
	Entities []Entity
	Files    int
}

// SchemaError reports an invalid declaration with its CUE position.
type SchemaError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LoadDir loads every CUE file of the package in dir.
func LoadDir(dir string) (*Schema, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	s, err := Compile(value)
	if err != nil {
		return nil, err
	}
	s.Files = len(files)
	return s, nil
}

// CompileString compiles schema source held in memory.
func CompileString(src string) (*Schema, error) {
	value := cuecontext.New().CompileString(src, cue.Filename("schema.cue"))
	s, err := Compile(value)
	if err != nil {
		return nil, err
	}
	s.Files = 1
	return s, nil
}

// Compile extracts entity declarations from a built CUE value.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{}
	entities := v.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return s, nil
	}

	iter, err := entities.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		e, err := compileEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		s.Entities = append(s.Entities, e)
	}
	return s, nil
}

func compileEntity(name string, v cue.Value) (Entity, error) {
	path := "entity." + name
	if !entity.ValidIdentifier(name) {
		return Entity{}, &SchemaError{Path: path, Message: "entity name must be an identifier", Pos: v.Pos()}
	}

	e := Entity{Name: name}
	fields := v.LookupPath(cue.ParsePath("fields"))
	if !fields.Exists() {
		return e, nil
	}

	iter, err := fields.Fields()
	if err != nil {
		return Entity{}, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(path+".fields."+iter.Label(), iter.Label(), iter.Value())
		if err != nil {
			return Entity{}, err
		}
		e.Fields = append(e.Fields, f)
	}
	return e, nil
}

func compileField(path, name string, v cue.Value) (Field, error) {
	if !entity.ValidIdentifier(name) || name == entity.PrimaryKeyColumn {
		return Field{}, &SchemaError{Path: path, Message: fmt.Sprintf("invalid field name %q", name), Pos: v.Pos()}
	}

	f := Field{Name: name}
	kindVal := v
	if v.IncompleteKind() == cue.StructKind {
		kindVal = v.LookupPath(cue.ParsePath("type"))
		if !kindVal.Exists() {
			return Field{}, &SchemaError{Path: path, Message: "type is required", Pos: v.Pos()}
		}
		if target := v.LookupPath(cue.ParsePath("target")); target.Exists() {
			t, err := target.String()
			if err != nil {
				return Field{}, formatCUEError(err)
			}
			if !entity.ValidIdentifier(t) {
				return Field{}, &SchemaError{Path: path, Message: fmt.Sprintf("invalid target %q", t), Pos: target.Pos()}
			}
			f.Target = t
		}
	}

	kind, err := kindVal.String()
	if err != nil {
		return Field{}, &SchemaError{Path: path, Message: "type must be a string", Pos: kindVal.Pos()}
	}
	f.Kind = kind

	if kind == KindUUID {
		f.Type = entity.Opaque
	} else {
		f.Type, err = entity.ParseFieldType(kind)
		if err != nil {
			return Field{}, &SchemaError{Path: path, Message: err.Error(), Pos: kindVal.Pos()}
		}
	}
	if f.Target != "" && f.Type != entity.Reference && f.Type != entity.Collection {
		return Field{}, &SchemaError{Path: path, Message: "target is only allowed on ref and list fields", Pos: v.Pos()}
	}
	return f, nil
}

// Entity returns the declaration of name.
func (s *Schema) Entity(name string) (Entity, bool) {
	for _, e := range s.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// Descriptor builds the record descriptor of e.
func (e Entity) Descriptor() entity.Descriptor {
	fields := make([]entity.Field, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = entity.RecordField(f.Name, f.Type)
		fields[i].Target = f.Target
	}
	return entity.RecordDescriptor(e.Name, fields...)
}

// Field returns the declaration of the named field.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Descriptors builds record descriptors for every declared entity.
func (s *Schema) Descriptors() []entity.Descriptor {
	out := make([]entity.Descriptor, len(s.Entities))
	for i, e := range s.Entities {
		out[i] = e.Descriptor()
	}
	return out
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SchemaError{Path: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
