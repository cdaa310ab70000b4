package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeData unmarshals the data of a successful JSON response into v.
func decodeData(t *testing.T, stdout string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status, stdout)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// storeArgs returns args prefixed with the store flags for dir.
func storeArgs(dir string, args ...string) []string {
	return append([]string{"--db-dir", dir, "--db-name", "shop"}, args...)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, storeArgs(dir, "init", "--format", "json")...)
	require.NoError(t, err)

	var result InitResult
	decodeData(t, stdout, &result)
	assert.Equal(t, filepath.Join(dir, "shop", "shop.sqlite"), result.Path)
	assert.Equal(t, int32(1), result.Version)
	assert.Equal(t, []string{"Customer", "Item", "Purchase", "SchemaInfo"}, result.Tables)

	_, err = os.Stat(result.Path)
	require.NoError(t, err)
}

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()

	for _, args := range [][]string{
		{"put", "Item", "name=a", "price=3"},
		{"put", "Item", "name=b", "price=9"},
		{"put", "Item", "name=c", "price=5"},
	} {
		_, _, err := execute(t, storeArgs(dir, args...)...)
		require.NoError(t, err, args)
	}

	stdout, _, err := execute(t, storeArgs(dir, "get", "Item", "--where", "price > 5", "--format", "json")...)
	require.NoError(t, err)
	var found []EntityView
	decodeData(t, stdout, &found)
	require.Len(t, found, 1)
	assert.Equal(t, int64(2), found[0].Key)
	assert.Equal(t, "b", found[0].Fields["name"])

	stdout, _, err = execute(t, storeArgs(dir, "get", "Item", "2")...)
	require.NoError(t, err)
	assert.Equal(t, "Item#2 name=\"b\" price=9\n", stdout)

	stdout, _, err = execute(t, storeArgs(dir, "get", "Item", "--eq", "name=c", "--count")...)
	require.NoError(t, err)
	assert.Equal(t, "Item: 1\n", stdout)

	stdout, _, err = execute(t, storeArgs(dir, "put", "Item", "--key", "2", "price=11")...)
	require.NoError(t, err)
	assert.Equal(t, "Item#2 name=\"b\" price=11\n", stdout)

	stdout, _, err = execute(t, storeArgs(dir, "delete", "Item", "3")...)
	require.NoError(t, err)
	assert.Equal(t, "deleted Item#3\n", stdout)

	stdout, _, err = execute(t, storeArgs(dir, "get", "Item", "3", "--format", "json")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestPut_ObjectGraph(t *testing.T) {
	dir := t.TempDir()

	for _, args := range [][]string{
		{"put", "Customer", "name=Ada", "active=true"},
		{"put", "Item", "name=hammer", "price=9"},
		{"put", "Item", "name=nails", "price=1"},
		{"put", "Purchase", "number=7", "customer=1", "items=Item#1,2", "notes=rush,3", "priority=2"},
	} {
		_, _, err := execute(t, storeArgs(dir, args...)...)
		require.NoError(t, err, args)
	}

	stdout, _, err := execute(t, storeArgs(dir, "get", "Purchase", "1", "--format", "json")...)
	require.NoError(t, err)
	var view EntityView
	decodeData(t, stdout, &view)
	assert.Equal(t, "Customer#1", view.Fields["customer"])
	assert.Equal(t, []any{"Item#1", "Item#2"}, view.Fields["items"])
	assert.Equal(t, []any{"rush", 3.0}, view.Fields["notes"])
	assert.Equal(t, 2.0, view.Fields["priority"])
}

func TestPut_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown type", []string{"put", "Widget", "a=1"}, ExitCommandError},
		{"unknown field", []string{"put", "Item", "colour=red"}, ExitCommandError},
		{"bad assignment", []string{"put", "Item", "name"}, ExitCommandError},
		{"bad value", []string{"put", "Item", "price=cheap"}, ExitCommandError},
		{"missing reference", []string{"put", "Purchase", "customer=Customer#5"}, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, storeArgs(dir, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestGet_UnknownFilterField(t *testing.T) {
	_, _, err := execute(t, storeArgs(t.TempDir(), "get", "Item", "--eq", "colour=red")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, storeArgs(dir, "put", "Item", "name=a")...)
	require.NoError(t, err)

	stdout, _, err := execute(t, storeArgs(dir, "inspect", "Item", "--format", "json")...)
	require.NoError(t, err)

	var result InspectResult
	decodeData(t, stdout, &result)
	require.Len(t, result.Tables, 1)
	item := result.Tables[0]
	assert.Equal(t, "Item", item.Name)
	assert.Equal(t, int64(1), item.Rows)
	assert.Equal(t, []ColumnInfo{
		{Name: "id", Type: "INTEGER", PrimaryKey: true},
		{Name: "name", Type: "TEXT"},
		{Name: "price", Type: "INTEGER"},
	}, item.Columns)

	_, _, err = execute(t, storeArgs(dir, "inspect", "Widget")...)
	require.Error(t, err)
}

func writeSchema(t *testing.T, dir, src string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(src), 0o644))
}

func TestSchemaTypes(t *testing.T) {
	dir := t.TempDir()
	schemaDir := filepath.Join(t.TempDir(), "schema")
	writeSchema(t, schemaDir, `
package notes

entity: Note: fields: {
	title: "text"
	token: "uuid"
	item:  {type: "ref", target: "Item"}
}
`)
	args := func(extra ...string) []string {
		return storeArgs(dir, append([]string{"--schema", schemaDir}, extra...)...)
	}

	_, _, err := execute(t, args("put", "Item", "name=hammer")...)
	require.NoError(t, err)

	stdout, _, err := execute(t, args("put", "Note", "title=first", "token=5b7c1a4e-3f2d-4e6a-9b8c-7d6e5f4a3b2c", "item=1", "--format", "json")...)
	require.NoError(t, err)
	var view EntityView
	decodeData(t, stdout, &view)
	assert.Equal(t, "Note", view.Type)
	assert.Equal(t, "5b7c1a4e-3f2d-4e6a-9b8c-7d6e5f4a3b2c", view.Fields["token"])
	assert.Equal(t, "Item#1", view.Fields["item"])

	_, _, err = execute(t, args("put", "Note", "token=nope")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, storeArgs(dir, "--schema", filepath.Join(dir, "missing"), "init")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSchemaMigration(t *testing.T) {
	dir := t.TempDir()
	schemaDir := filepath.Join(t.TempDir(), "schema")

	writeSchema(t, schemaDir, "package m\n\nentity: T: fields: {\n\ta: \"int64\"\n\tb: \"int64\"\n}\n")
	_, _, err := execute(t, storeArgs(dir, "--schema", schemaDir, "put", "T", "a=1", "b=2")...)
	require.NoError(t, err)

	writeSchema(t, schemaDir, "package m\n\nentity: T: fields: {\n\ta: \"int64\"\n\tc: \"text\"\n}\n")
	stdout, _, err := execute(t, storeArgs(dir, "--schema", schemaDir, "--schema-version", "2", "inspect", "T", "--format", "json")...)
	require.NoError(t, err)

	var result InspectResult
	decodeData(t, stdout, &result)
	assert.Equal(t, int32(2), result.Version)
	require.Len(t, result.Tables, 1)
	names := []string{}
	for _, c := range result.Tables[0].Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "a", "c"}, names)

	stdout, _, err = execute(t, storeArgs(dir, "--schema", schemaDir, "--schema-version", "2", "get", "T", "1")...)
	require.NoError(t, err)
	assert.Equal(t, "T#1 a=1 c=null\n", stdout)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "ormlite.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("dir: "+dir+"\ndriver: sqlite\nlog_level: warn\n"), 0o644))

	stdout, _, err := execute(t, "--config", cfgPath, "--db-name", "pure", "init", "--format", "json")
	require.NoError(t, err)
	var result InitResult
	decodeData(t, stdout, &result)
	assert.Equal(t, filepath.Join(dir, "pure", "pure.sqlite"), result.Path)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("driver: oracle\n"), 0o644))
	_, _, err = execute(t, "--config", bad, "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDemo(t *testing.T) {
	stdout, _, err := execute(t, storeArgs(t.TempDir(), "demo", "--format", "json")...)
	require.NoError(t, err)

	var result DemoResult
	decodeData(t, stdout, &result)
	assert.Equal(t, "Purchase", result.Purchase.Type)
	assert.Equal(t, "Customer#1", result.Purchase.Fields["customer"])
	assert.Equal(t, []any{"Item#1", "Item#2", "Item#3"}, result.Purchase.Fields["items"])

	require.Len(t, result.Expensive, 1)
	assert.Equal(t, "hammer", result.Expensive[0].Fields["name"])

	assert.Greater(t, result.Metrics["ormlite_statements_total"], 0.0)
	assert.Greater(t, result.Metrics["ormlite_identity_cache_hits_total"], 0.0)
}

func TestDemo_Text(t *testing.T) {
	stdout, _, err := execute(t, storeArgs(t.TempDir(), "demo")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "saved Purchase#1")
	assert.Contains(t, stdout, `Item#2 name="hammer" price=9`)
	assert.Contains(t, stdout, "ormlite_statements_total")
}
