package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity to the SPARQL endpoint and time-series backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := c.engine.Doctor(cmd.Context())

			ok := true
			if report.SPARQLError != nil {
				ok = false
				fmt.Printf("%s SPARQL endpoint %s: %v\n", color.RedString("FAIL"), report.SPARQLEndpoint, report.SPARQLError)
			} else {
				fmt.Printf("%s SPARQL endpoint %s\n", color.GreenString(" OK "), report.SPARQLEndpoint)
			}

			if report.TimeSeriesBackend == "" {
				fmt.Printf("%s no time-series backend configured\n", color.YellowString("WARN"))
			} else if report.TimeSeriesError != nil {
				ok = false
				fmt.Printf("%s time-series backend %s: %v\n", color.RedString("FAIL"), report.TimeSeriesBackend, report.TimeSeriesError)
			} else {
				fmt.Printf("%s time-series backend %s\n", color.GreenString(" OK "), report.TimeSeriesBackend)
			}

			if !ok {
				return fmt.Errorf("doctor: one or more dependencies unreachable")
			}
			return nil
		},
	}
}
