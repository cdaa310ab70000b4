package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/store"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Key int64
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <type> [field=value...]",
		Short: "Insert or update an entity",
		Long: `Save an entity built from field=value assignments.

Without --key a new entity is inserted. With --key the stored entity is
loaded, the assignments are applied and it is saved again; a missing key is
inserted under that key.

References are written Type#key (or just key when the field declares a
target). Lists are comma separated; elements are references, integers or
strings. An empty value clears the field.

Example:
  ormlite put Item name=hammer price=12.5
  ormlite put Purchase number=7 customer=Customer#1 items=Item#1,Item#2
  ormlite put Item --key 1 price=10`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.put(ctx, args[0], opts.Key, args[1:])
			if err != nil {
				return err
			}
			desc, _ := s.reg.Describe(args[0])
			return s.out.Success(View(e, desc))
		},
	}

	cmd.Flags().Int64Var(&opts.Key, "key", 0, "key of the entity to update")

	return cmd
}

func (s *session) put(ctx context.Context, typeName string, key int64, assignments []string) (entity.Entity, error) {
	desc, ok := s.reg.Describe(typeName)
	if !ok {
		return nil, s.out.Fail(ExitCommandError, "put", fmt.Errorf("entity type %q is not registered", typeName))
	}

	var e entity.Entity
	if key != entity.Unassigned {
		loaded, err := s.reg.Load(ctx, typeName, key)
		switch {
		case err == nil:
			e = loaded
		case store.IsNotFound(err):
		default:
			return nil, s.out.Fail(ExitFailure, "load", err)
		}
	}
	if e == nil {
		created, err := s.reg.NewEntity(typeName)
		if err != nil {
			return nil, s.out.Fail(ExitCommandError, "put", err)
		}
		created.SetPrimaryKey(key)
		e = created
	}

	for _, arg := range assignments {
		name, raw, err := splitAssignment(arg)
		if err != nil {
			return nil, s.out.Fail(ExitCommandError, "put", err)
		}
		f, ok := desc.Field(name)
		if !ok {
			return nil, s.out.Fail(ExitCommandError, "put", fmt.Errorf("%s has no field %q", typeName, name))
		}
		v, err := parseValue(ctx, s.reg, f, s.kind(typeName, name), raw)
		if err != nil {
			return nil, s.out.Fail(ExitCommandError, "put", err)
		}
		if err := f.Set(e, v); err != nil {
			return nil, s.out.Fail(ExitCommandError, "put", err)
		}
	}

	if err := s.reg.Save(ctx, e); err != nil {
		return nil, s.out.Fail(ExitFailure, "save", err)
	}
	s.out.Notef("saved %s#%d", typeName, e.PrimaryKey())
	return e, nil
}
