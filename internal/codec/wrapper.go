package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/stored"
)

// Wrapper is the tagged document stored in reference and collection
// columns. Exactly one of String, Int or the (Type, Key) pair is set.
//
//	{"dbString":"text"}
//	{"dbInt":42}
//	{"dbClassType":"Item","dbId":7}
type Wrapper struct {
	String *string `json:"dbString,omitempty"`
	Int    *int64  `json:"dbInt,omitempty"`
	Key    *int64  `json:"dbId,omitempty"`
	Type   *string `json:"dbClassType,omitempty"`
}

// StringWrapper wraps a string scalar.
func StringWrapper(s string) Wrapper {
	return Wrapper{String: &s}
}

// IntWrapper wraps an integer scalar.
func IntWrapper(n int64) Wrapper {
	return Wrapper{Int: &n}
}

// RefWrapper wraps a reference to a persisted entity.
func RefWrapper(typeName string, key int64) Wrapper {
	return Wrapper{Type: &typeName, Key: &key}
}

// IsReference reports whether w points at an entity.
func (w Wrapper) IsReference() bool {
	return w.Type != nil && w.Key != nil
}

// Validate checks that exactly one payload is populated.
func (w Wrapper) Validate() error {
	n := 0
	if w.String != nil {
		n++
	}
	if w.Int != nil {
		n++
	}
	if w.Key != nil || w.Type != nil {
		if !w.IsReference() {
			return errors.New("reference wrapper needs both dbClassType and dbId")
		}
		n++
	}
	switch n {
	case 0:
		return errors.New("empty wrapper")
	case 1:
		return nil
	default:
		return errors.New("wrapper holds more than one value")
	}
}

func (w Wrapper) document() map[string]any {
	doc := make(map[string]any, 2)
	if w.String != nil {
		doc["dbString"] = *w.String
	}
	if w.Int != nil {
		doc["dbInt"] = *w.Int
	}
	if w.Key != nil {
		doc["dbId"] = *w.Key
	}
	if w.Type != nil {
		doc["dbClassType"] = *w.Type
	}
	return doc
}

// Marshal renders w as canonical JSON.
func (w Wrapper) Marshal() (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}
	out, err := stored.MarshalCanonical(w.document())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// MarshalWrappers renders a list of wrappers as a canonical JSON array.
func MarshalWrappers(ws []Wrapper) (string, error) {
	docs := make([]any, len(ws))
	for i, w := range ws {
		if err := w.Validate(); err != nil {
			return "", fmt.Errorf("element %d: %w", i, err)
		}
		docs[i] = w.document()
	}
	out, err := stored.MarshalCanonical(docs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseWrapper decodes and validates a single wrapper document.
func ParseWrapper(text string) (Wrapper, error) {
	var w Wrapper
	if err := decodeStrict(text, &w); err != nil {
		return Wrapper{}, err
	}
	if err := w.Validate(); err != nil {
		return Wrapper{}, err
	}
	return w, nil
}

// ParseWrappers decodes an array of wrapper documents. Invalid elements are
// reported by index in the error.
func ParseWrappers(text string) ([]Wrapper, error) {
	var ws []Wrapper
	if err := decodeStrict(text, &ws); err != nil {
		return nil, err
	}
	for i, w := range ws {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return ws, nil
}

func decodeStrict(text string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid wrapper document: %w", err)
	}
	if dec.More() {
		return errors.New("invalid wrapper document: trailing data")
	}
	return nil
}

// wrapperFor converts a collection element or reference target into a
// wrapper. ok is false for values that have no wrapper form.
func wrapperFor(v any) (w Wrapper, ent entity.Entity, ok bool) {
	switch val := v.(type) {
	case entity.Entity:
		if entity.IsNil(val) {
			return Wrapper{}, nil, false
		}
		return RefWrapper(val.EntityType(), val.PrimaryKey()), val, true
	case string:
		return StringWrapper(val), nil, true
	case int:
		return IntWrapper(int64(val)), nil, true
	case int32:
		return IntWrapper(int64(val)), nil, true
	case int64:
		return IntWrapper(val), nil, true
	default:
		return Wrapper{}, nil, false
	}
}
