package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormlite/internal/store"
)

func TestPrinter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	p := &Printer{Format: "json", Out: buf}

	require.NoError(t, p.Success(DeleteResult{Type: "Item", Key: 3}))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestPrinter_JSONFailureNamesRow(t *testing.T) {
	buf := &bytes.Buffer{}
	p := &Printer{Format: "json", Out: buf}

	err := p.Fail(ExitFailure, "get", store.NotFound("get", "Item", 4))
	require.Error(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "get", resp.Error.Op)
	assert.Equal(t, "Item", resp.Error.Entity)
	assert.Equal(t, int64(4), resp.Error.Key)
}

func TestPrinter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	p := &Printer{Format: "text", Out: buf}

	require.NoError(t, p.Success(DeleteResult{Type: "Item", Key: 3}))
	assert.Equal(t, "deleted Item#3\n", buf.String())
}

func TestPrinter_TextRows(t *testing.T) {
	tests := []struct {
		name string
		list EntityList
		want string
	}{
		{"empty", nil, "(no entities)\n"},
		{
			"one",
			EntityList{{Type: "Item", Key: 1, Fields: map[string]any{"name": "a"}}},
			"Item#1 name=\"a\"\n(1 row)\n",
		},
		{
			"two",
			EntityList{
				{Type: "Item", Key: 1, Fields: map[string]any{"name": "a"}},
				{Type: "Item", Key: 2, Fields: map[string]any{"name": "b"}},
			},
			"Item#1 name=\"a\"\nItem#2 name=\"b\"\n(2 rows)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			p := &Printer{Format: "text", Out: buf}
			require.NoError(t, p.Success(tt.list))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPrinter_TextFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	p := &Printer{Format: "text", Out: buf}

	err := p.Fail(ExitFailure, "get", store.NotFound("get", "Item", 9))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, store.IsNotFound(err))
	assert.Contains(t, buf.String(), "Error [NOT_FOUND] Item#9: ")

	buf.Reset()
	require.NoError(t, p.Report(Failure{Code: "SCHEMA", Op: "inspect", Message: "rebuild failed"}))
	assert.Equal(t, "Error [SCHEMA]: rebuild failed\n", buf.String())
}

func TestPrinter_Notef(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	p := &Printer{Format: "json", Out: out, Diag: diag}

	p.Notef("hidden %d", 1)
	assert.Empty(t, diag.String())

	p.Verbose = true
	p.Notef("shown %d", 2)
	assert.Equal(t, "shown 2\n", diag.String())
	assert.Empty(t, out.String())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad flag", errors.New("x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "ERROR", ErrorCode(errors.New("plain")))
	assert.Equal(t, "UNAVAILABLE", ErrorCode(store.Unavailable("do")))
	assert.Equal(t, "bad flag", (&ExitError{Code: ExitFailure, Op: "bad flag"}).Error())
}
