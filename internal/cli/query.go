package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hybridgraph/hybridgraph/internal/engine"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sparql>",
		Short: "Execute a hybrid SPARQL query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := c.engine.ExecuteHybridQuery(cmd.Context(), args[0])
			if err != nil {
				c.errorf("query failed: %v\n", err)
				return err
			}
			c.renderTable(os.Stdout, table)
			return nil
		},
	}
}

func (c *CLI) newDSLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dsl <yaml>",
		Short: "Execute a DSL query, given as a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := c.engine.ExecuteDSLQuery(cmd.Context(), args[0])
			if err != nil {
				c.errorf("query failed: %v\n", err)
				return err
			}
			c.renderTable(os.Stdout, table)
			return nil
		},
	}
}

func (c *CLI) renderTable(w io.Writer, table *engine.Table) {
	if c.jsonOutput {
		c.renderTableJSON(w, table)
		return
	}

	columns := make([]string, len(table.Schema.Columns))
	for i, col := range table.Schema.Columns {
		columns[i] = col.Name
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(columns)
	for _, row := range table.Rows {
		rendered := make([]string, len(columns))
		for i, col := range columns {
			rendered[i] = fmt.Sprintf("%v", row[col])
		}
		tw.Append(rendered)
	}
	tw.Render()

	if !c.quiet {
		fmt.Fprintf(w, "(%d rows)\n", len(table.Rows))
	}
}

func (c *CLI) renderTableJSON(w io.Writer, table *engine.Table) {
	columns := make([]string, len(table.Schema.Columns))
	for i, col := range table.Schema.Columns {
		columns[i] = col.Name
	}
	out := struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}{Columns: columns}
	for _, row := range table.Rows {
		out.Rows = append(out.Rows, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
