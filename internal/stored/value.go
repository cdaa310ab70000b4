package stored

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Value is a sealed interface representing one column-level value.
// Only Null, Integer, Real, and Text implement it, mirroring SQLite's
// storage classes (BLOB is never produced by the mapper).
type Value interface {
	storedValue() // Sealed - only these types implement it
}

// Null represents SQL NULL.
type Null struct{}

func (Null) storedValue() {}

// Integer represents a 64-bit signed INTEGER column value.
type Integer int64

func (Integer) storedValue() {}

// Real represents a floating point REAL column value.
type Real float64

func (Real) storedValue() {}

// Text represents a TEXT column value.
type Text string

func (Text) storedValue() {}

// Kind returns the storage class name of v ("null", "integer", "real", "text").
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("unknown(%T)", v)
	}
}

// IsNull reports whether v is absent or Null.
func IsNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	}
	return false
}

// FromDriver converts a value scanned by database/sql into a Value.
// Drivers disagree on TEXT (string vs []byte) and may hand back bool or
// time.Time for declared column types; all of them collapse onto the four
// storage classes here.
func FromDriver(src any) Value {
	switch v := src.(type) {
	case nil:
		return Null{}
	case int64:
		return Integer(v)
	case int:
		return Integer(int64(v))
	case int32:
		return Integer(int64(v))
	case float64:
		return Real(v)
	case float32:
		return Real(float64(v))
	case bool:
		if v {
			return Integer(1)
		}
		return Integer(0)
	case []byte:
		return Text(string(v))
	case string:
		return Text(v)
	case time.Time:
		return Text(v.Format(time.RFC3339Nano))
	default:
		return Text(fmt.Sprint(v))
	}
}

// Arg converts a Value into a positional argument for database/sql.
func Arg(v Value) any {
	switch val := v.(type) {
	case Integer:
		return int64(val)
	case Real:
		return float64(val)
	case Text:
		return string(val)
	default:
		return nil
	}
}

// AsInt64 reads v as an integer. REAL values are truncated; TEXT is parsed.
func AsInt64(v Value) (int64, bool) {
	switch val := v.(type) {
	case Integer:
		return int64(val), true
	case Real:
		return int64(val), true
	case Text:
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsInt32 reads v as a 32-bit integer, failing when the value overflows.
func AsInt32(v Value) (int32, bool) {
	n, ok := AsInt64(v)
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, false
	}
	return int32(n), true
}

// AsFloat64 reads v as a float. INTEGER values are widened, which matters
// because SQLite stores integral REALs as INTEGER in INTEGER-affinity columns.
func AsFloat64(v Value) (float64, bool) {
	switch val := v.(type) {
	case Real:
		return float64(val), true
	case Integer:
		return float64(val), true
	case Text:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsString renders v as text. Null yields ("", false).
func AsString(v Value) (string, bool) {
	switch val := v.(type) {
	case Text:
		return string(val), true
	case Integer:
		return strconv.FormatInt(int64(val), 10), true
	case Real:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), true
	default:
		return "", false
	}
}
