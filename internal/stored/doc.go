// Package stored defines the column-level value model used between the
// entity mapper and the database driver.
//
// Every field value the mapper persists is reduced to exactly one of four
// storage classes:
//   - Null: SQL NULL
//   - Integer: int64
//   - Real: float64
//   - Text: string
//
// Documents embedded in TEXT columns (reference wrappers, collections) are
// serialized with MarshalCanonical so that the same logical document always
// produces byte-identical column text.
package stored
