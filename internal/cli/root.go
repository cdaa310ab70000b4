package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// ConfigPath is an optional YAML config file.
	ConfigPath string

	// Dir overrides the config's store directory.
	Dir string

	Name      string
	Version   int32
	SchemaDir string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ormlite CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ormlite",
		Short: "ormlite - embedded entity store",
		Long: `Persist entity graphs in a local SQLite file.

Entity types come from the built-in sample model (Item, Customer, Purchase)
and from CUE schema files passed with --schema. Tables are created and
migrated from the declared fields whenever --schema-version changes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Version < 0 {
				return fmt.Errorf("schema version must not be negative")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Dir, "db-dir", "", "directory holding stores (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Name, "db-name", "ormlite", "store name")
	cmd.PersistentFlags().Int32Var(&opts.Version, "schema-version", 1, "schema version; a change triggers migration")
	cmd.PersistentFlags().StringVar(&opts.SchemaDir, "schema", "", "directory of CUE entity schemas")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))

	return cmd
}
