package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/query"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Where string
	Eq    []string
	Count bool
}

// CountResult is the output of get --count.
type CountResult struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

func (r CountResult) String() string {
	return fmt.Sprintf("%s: %d", r.Type, r.Count)
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <type> [key]",
		Short: "Fetch entities by key or filter",
		Long: `Fetch one entity by key, or every entity matching the filters in
ascending key order.

--eq field=value filters are typed and combined with AND. --where passes a
raw SQL condition through unchanged and is combined with the --eq filters.

Example:
  ormlite get Item 2
  ormlite get Item --where "price > 5"
  ormlite get Customer --eq active=true --count`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			typeName := args[0]
			desc, ok := s.reg.Describe(typeName)
			if !ok {
				return s.out.Fail(ExitCommandError, "get", fmt.Errorf("entity type %q is not registered", typeName))
			}

			if len(args) == 2 {
				key, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return s.out.Fail(ExitCommandError, "get", fmt.Errorf("invalid key %q", args[1]))
				}
				e, err := s.reg.Load(ctx, typeName, key)
				if err != nil {
					return s.out.Fail(ExitFailure, "get", err)
				}
				return s.out.Success(View(e, desc))
			}

			pred, err := s.filter(typeName, desc, opts)
			if err != nil {
				return s.out.Fail(ExitCommandError, "get", err)
			}

			if opts.Count {
				n, err := s.reg.CountOf(ctx, typeName, pred)
				if err != nil {
					return s.out.Fail(ExitFailure, "count", err)
				}
				return s.out.Success(CountResult{Type: typeName, Count: n})
			}

			found, err := s.reg.Query(ctx, typeName, pred)
			if err != nil {
				return s.out.Fail(ExitFailure, "get", err)
			}
			list := make(EntityList, len(found))
			for i, e := range found {
				list[i] = View(e, desc)
			}
			return s.out.Success(list)
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "raw SQL condition")
	cmd.Flags().StringArrayVar(&opts.Eq, "eq", nil, "field=value equality filter (repeatable)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matches")

	return cmd
}

// filter builds the predicate for --eq and --where.
func (s *session) filter(typeName string, desc entity.Descriptor, opts *GetOptions) (query.Predicate, error) {
	var preds []query.Predicate
	for _, arg := range opts.Eq {
		name, raw, err := splitAssignment(arg)
		if err != nil {
			return nil, err
		}
		if name == entity.PrimaryKeyColumn {
			key, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid key %q", raw)
			}
			preds = append(preds, query.ByKey(key))
			continue
		}
		f, ok := desc.Field(name)
		if !ok {
			return nil, fmt.Errorf("%s has no field %q", typeName, name)
		}
		v, err := parseScalar(f, s.kind(typeName, name), raw)
		if err != nil {
			return nil, err
		}
		preds = append(preds, query.Eq(name, v))
	}
	if opts.Where != "" {
		preds = append(preds, query.Where(opts.Where))
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	}
	return query.AllOf(preds...), nil
}
