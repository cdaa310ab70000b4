package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ColumnInfo is one live column.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

// TableInfo summarizes one table.
type TableInfo struct {
	Name    string       `json:"name"`
	Rows    int64        `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// InspectResult lists the tables of a store.
type InspectResult struct {
	Path    string      `json:"path"`
	Version int32       `json:"version"`
	Tables  []TableInfo `json:"tables"`
}

func (r InspectResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (version %d)", r.Path, r.Version)
	for _, t := range r.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name + " " + c.Type
		}
		fmt.Fprintf(&b, "\n  %s [%d rows]: %s", t.Name, t.Rows, strings.Join(cols, ", "))
	}
	return b.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [type...]",
		Short: "Show tables, columns and row counts",
		Long: `Show the live columns and row count of each table.

With no arguments every registered type is listed.

Example:
  ormlite inspect --db-dir ./data --db-name shop
  ormlite inspect Item Purchase --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			types := args
			if len(types) == 0 {
				types = s.reg.Tables()
			}

			result := InspectResult{Path: s.reg.Path(), Version: s.reg.Version()}
			for _, typeName := range types {
				if _, ok := s.reg.Describe(typeName); !ok {
					return s.out.Fail(ExitCommandError, "inspect", fmt.Errorf("entity type %q is not registered", typeName))
				}
				rows, err := s.reg.CountOf(ctx, typeName, nil)
				if err != nil {
					return s.out.Fail(ExitFailure, "count "+typeName, err)
				}
				cols, err := s.reg.Columns(ctx, typeName)
				if err != nil {
					return s.out.Fail(ExitFailure, "columns "+typeName, err)
				}
				info := TableInfo{Name: typeName, Rows: rows}
				for _, c := range cols {
					info.Columns = append(info.Columns, ColumnInfo{Name: c.Name, Type: c.Type, PrimaryKey: c.PrimaryKey})
				}
				result.Tables = append(result.Tables, info)
			}
			return s.out.Success(result)
		},
	}
}
