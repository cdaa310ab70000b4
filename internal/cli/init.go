package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// InitResult describes an opened store.
type InitResult struct {
	Path    string   `json:"path"`
	Version int32    `json:"version"`
	Tables  []string `json:"tables"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("store %s at version %d\ntables: %s", r.Path, r.Version, strings.Join(r.Tables, ", "))
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the store",
		Long: `Open the named store, creating its directory and tables when missing.

When --schema-version differs from the version recorded in the store, every
table gains the columns of newly declared fields and loses the columns of
removed ones.

Example:
  ormlite init --db-dir ./data --db-name shop
  ormlite init --db-dir ./data --db-name shop --schema ./schemas --schema-version 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.out.Success(InitResult{
				Path:    s.reg.Path(),
				Version: s.reg.Version(),
				Tables:  s.reg.Tables(),
			})
		},
	}
}
