package cli

import (
	"context"
	"encoding"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/schemafile"
)

// Loader finds persisted entities named on the command line.
type Loader interface {
	Load(ctx context.Context, typeName string, key int64) (entity.Entity, error)
}

// splitAssignment splits "field=value".
func splitAssignment(arg string) (string, string, error) {
	name, value, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected field=value, got %q", arg)
	}
	return name, value, nil
}

// parseRef reads "Type#key", or a bare key when target is known.
func parseRef(raw, target string) (string, int64, error) {
	typeName, keyText, ok := strings.Cut(raw, "#")
	if !ok {
		typeName, keyText = target, raw
	}
	if typeName == "" {
		return "", 0, fmt.Errorf("reference %q needs the form Type#key", raw)
	}
	key, err := strconv.ParseInt(keyText, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("reference %q: invalid key", raw)
	}
	return typeName, key, nil
}

// parseScalar converts command-line text for scalar field types. An empty
// value means absent for every type but text.
func parseScalar(f entity.Field, kind, raw string) (any, error) {
	if raw == "" && f.Type != entity.Text {
		return nil, nil
	}
	switch f.Type {
	case entity.Int32:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return int32(n), nil
	case entity.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return n, nil
	case entity.Float:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return x, nil
	case entity.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return b, nil
	case entity.Text:
		return raw, nil
	case entity.Opaque:
		if kind == schemafile.KindUUID {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return id.String(), nil
		}
		return raw, nil
	}
	return nil, fmt.Errorf("field %s: %s values cannot be used here", f.Name, f.Type)
}

// parseValue converts command-line text into the canonical value of f,
// loading referenced entities through l.
func parseValue(ctx context.Context, l Loader, f entity.Field, kind, raw string) (any, error) {
	switch f.Type {
	case entity.Reference:
		if raw == "" {
			return nil, nil
		}
		typeName, key, err := parseRef(raw, f.Target)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return l.Load(ctx, typeName, key)

	case entity.Collection:
		list := []any{}
		if raw == "" {
			return list, nil
		}
		for _, part := range strings.Split(raw, ",") {
			item, err := parseElement(ctx, l, f, part)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	}
	return parseScalar(f, kind, raw)
}

// parseElement reads one collection element: a reference, an integer or a
// string. Bare integers are references when the field has a target.
func parseElement(ctx context.Context, l Loader, f entity.Field, part string) (any, error) {
	part = strings.TrimSpace(part)
	if strings.Contains(part, "#") {
		typeName, key, err := parseRef(part, f.Target)
		if err == nil {
			return l.Load(ctx, typeName, key)
		}
	}
	if n, err := strconv.ParseInt(part, 10, 64); err == nil {
		if f.Target != "" {
			return l.Load(ctx, f.Target, n)
		}
		return n, nil
	}
	return part, nil
}

// EntityView is the printable form of one entity.
type EntityView struct {
	Type   string         `json:"type"`
	Key    int64          `json:"key"`
	Fields map[string]any `json:"fields"`

	order []string
}

// View renders e with the fields of desc.
func View(e entity.Entity, desc entity.Descriptor) EntityView {
	v := EntityView{
		Type:   e.EntityType(),
		Key:    e.PrimaryKey(),
		Fields: make(map[string]any, len(desc.Fields)),
		order:  desc.Names(),
	}
	for _, f := range desc.Fields {
		v.Fields[f.Name] = renderValue(f.Get(e))
	}
	return v
}

func (v EntityView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s#%d", v.Type, v.Key)
	names := v.order
	if names == nil {
		for name := range v.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%s", name, formatValue(v.Fields[name]))
	}
	return b.String()
}

// renderValue turns field values into JSON-friendly data. References print
// as "Type#key".
func renderValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case entity.Entity:
		if entity.IsNil(val) {
			return nil
		}
		return fmt.Sprintf("%s#%d", val.EntityType(), val.PrimaryKey())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = renderValue(item)
		}
		return out
	case encoding.TextMarshaler:
		text, err := val.MarshalText()
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		return string(text)
	default:
		return val
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(val)
	}
}

// EntityList prints one entity per line in text mode.
type EntityList []EntityView

func (l EntityList) String() string {
	if len(l) == 0 {
		return "(no entities)"
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}
