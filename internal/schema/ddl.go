package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/ormlite/internal/entity"
)

// TempSuffix names the scratch table used while dropping columns.
const TempSuffix = "_temp"

// CreateTableSQL renders the table for an entity type: the primary key
// column followed by one column per field, in field order.
func CreateTableSQL(typeName string, fields []entity.Field) string {
	return createSQL(typeName, fields, true)
}

func createSQL(table string, fields []entity.Field, ifNotExists bool) string {
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, entity.PrimaryKeyColumn+" INTEGER PRIMARY KEY NOT NULL")
	for _, f := range fields {
		cols = append(cols, columnDef(f))
	}

	guard := ""
	if ifNotExists {
		guard = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s(%s)", guard, table, strings.Join(cols, ", "))
}

func columnDef(f entity.Field) string {
	return f.Name + " " + f.Type.SQLType()
}

// AddColumnSQL renders the statement adding one field's column.
func AddColumnSQL(typeName string, f entity.Field) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", typeName, columnDef(f))
}

// RebuildSQL renders the statements that rebuild typeName keeping only the
// primary key and the retained fields. The original table is dropped only
// after the copy statement.
func RebuildSQL(typeName string, retained []entity.Field) []string {
	temp := typeName + TempSuffix

	names := make([]string, 0, len(retained)+1)
	names = append(names, entity.PrimaryKeyColumn)
	for _, f := range retained {
		names = append(names, f.Name)
	}
	list := strings.Join(names, ", ")

	return []string{
		"DROP TABLE IF EXISTS " + temp,
		createSQL(temp, retained, false),
		fmt.Sprintf("INSERT INTO %s(%s) SELECT %s FROM %s", temp, list, list, typeName),
		"DROP TABLE " + typeName,
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", temp, typeName),
	}
}
