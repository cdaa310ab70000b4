package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// DeleteResult confirms a deletion.
type DeleteResult struct {
	Type string `json:"type"`
	Key  int64  `json:"key"`
}

func (r DeleteResult) String() string {
	return fmt.Sprintf("deleted %s#%d", r.Type, r.Key)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <key>",
		Short: "Delete an entity",
		Long: `Delete the entity with the given key. Entities that reference it keep
their stored reference and read it back as empty.

Example:
  ormlite delete Item 3`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			typeName := args[0]
			key, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return s.out.Fail(ExitCommandError, "delete", fmt.Errorf("invalid key %q", args[1]))
			}

			e, err := s.reg.Load(ctx, typeName, key)
			if err != nil {
				return s.out.Fail(ExitFailure, "delete", err)
			}
			if err := s.reg.Delete(ctx, e); err != nil {
				return s.out.Fail(ExitFailure, "delete", err)
			}
			return s.out.Success(DeleteResult{Type: typeName, Key: key})
		},
	}
}
