package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hybridgraph/hybridgraph/internal/changedir"
	"github.com/hybridgraph/hybridgraph/internal/engine"
)

func (c *CLI) newExplainCmd() *cobra.Command {
	var dsl bool
	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Rewrite a query and report the plan without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var explanation *engine.Explanation
			var err error
			if dsl {
				explanation, err = c.engine.ExplainDSLQuery(cmd.Context(), args[0])
			} else {
				explanation, err = c.engine.ExplainHybridQuery(cmd.Context(), args[0])
			}
			if err != nil {
				c.errorf("explain failed: %v\n", err)
				return err
			}
			c.renderExplanation(explanation)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dsl, "dsl", false, "treat <query> as a DSL YAML document")
	return cmd
}

func (c *CLI) renderExplanation(e *engine.Explanation) {
	if c.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(e)
		return
	}

	fmt.Printf("Static query:\n%s\n\n", e.StaticQuery)
	fmt.Printf("Time-series queries: %d\n", e.TimeSeriesQueryCount)
	fmt.Printf("Pushdowns admitted: %d, refused: %d\n", e.PushdownsAdmitted, e.PushdownsRefused)
	fmt.Printf("Change direction: %s\n", c.colorizeDirection(e.Direction))
}

// colorizeDirection maps a changedir.Direction's name to the CLI's
// traffic-light convention: green when the rewrite left satisfaction
// unchanged, yellow when it loosened the query, red when it had to tighten
// it to stay sound.
func (c *CLI) colorizeDirection(direction string) string {
	switch direction {
	case changedir.NoChange.String():
		return color.GreenString(direction)
	case changedir.Relaxed.String():
		return color.YellowString(direction)
	case changedir.Constrained.String():
		return color.RedString(direction)
	default:
		return direction
	}
}
