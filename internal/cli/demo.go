package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/ormlite/internal/query"
	"github.com/roach88/ormlite/internal/registry"
	"github.com/roach88/ormlite/internal/sample"
)

// DemoResult is the output of the demo command.
type DemoResult struct {
	Purchase  EntityView         `json:"purchase"`
	Expensive EntityList         `json:"expensive"`
	Metrics   map[string]float64 `json:"metrics"`
}

func (r DemoResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saved %s\n", r.Purchase)
	fmt.Fprintf(&b, "items with price > 5:\n%s\n", r.Expensive)
	b.WriteString("metrics:")
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %s %g", name, r.Metrics[name])
	}
	return b.String()
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Save and query a sample object graph",
		Long: `Save a purchase with its customer and items in one call, query the
items priced above 5 and print the store counters.

Example:
  ormlite demo --db-dir /tmp/ormlite
  ormlite demo --db-dir /tmp/ormlite --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := runDemo(ctx, s.reg)
			if err != nil {
				return s.out.Fail(ExitFailure, "demo", err)
			}
			result.Metrics = counterTotals(s.gatherer)
			return s.out.Success(result)
		},
	}
}

func runDemo(ctx context.Context, reg *registry.Registry) (DemoResult, error) {
	priority := int32(1)
	anvil := &sample.Item{Name: "anvil", Price: 3}
	hammer := &sample.Item{Name: "hammer", Price: 9}
	tongs := &sample.Item{Name: "tongs", Price: 5}
	purchase := &sample.Purchase{
		Number:   1,
		Customer: &sample.Customer{Name: "Ada", Email: "ada@example.com", Active: true},
		Items:    []*sample.Item{anvil, hammer, tongs},
		Notes:    []any{"deliver to workshop", int64(2), hammer},
		Token:    uuid.New(),
		Priority: &priority,
		Total:    17,
	}
	if err := reg.Save(ctx, purchase); err != nil {
		return DemoResult{}, err
	}

	reloaded, err := registry.GetByKey[*sample.Purchase](ctx, reg, purchase.PrimaryKey())
	if err != nil {
		return DemoResult{}, err
	}

	expensive, err := registry.Get[*sample.Item](ctx, reg, query.Gt("price", 5))
	if err != nil {
		return DemoResult{}, err
	}

	itemDesc, _ := reg.Describe("Item")
	purchaseDesc, _ := reg.Describe("Purchase")
	result := DemoResult{Purchase: View(reloaded, purchaseDesc)}
	for _, it := range expensive {
		result.Expensive = append(result.Expensive, View(it, itemDesc))
	}
	return result, nil
}

// counterTotals sums every counter family by name.
func counterTotals(g prometheus.Gatherer) map[string]float64 {
	totals := make(map[string]float64)
	families, err := g.Gather()
	if err != nil {
		return totals
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				totals[mf.GetName()] += c.GetValue()
			}
		}
	}
	return totals
}
