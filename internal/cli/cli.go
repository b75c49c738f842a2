// Package cli provides the command-line interface for hybridgraph. Unlike
// a control-plane client, the CLI embeds an *engine.Engine directly: spec
// §6 defines the engine as a standalone embeddable component with no
// mandatory control-plane database behind it, so there is nothing to be a
// client of.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/engine"
	"github.com/hybridgraph/hybridgraph/internal/observability"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend/memframe"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitEngine     = 3
	ExitInternal   = 4
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config
	engine  *engine.Engine

	configPath string
	endpoint   string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance.
func New() *CLI {
	c := &CLI{}
	c.rootCmd = c.newRootCmd()
	return c
}

// Execute runs the CLI.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		return ExitInternal
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hybridgraph",
		Short: "hybridgraph - hybrid SPARQL and time-series query engine",
		Long: `hybridgraph joins static RDF graph patterns with time-series backends.

It provides:
  • SPARQL 1.1 SELECT over graphs that reference external time series
  • Static rewriting that pushes filters and aggregates into the backend
  • A small DSL for the common "entity and its series" query shape

This CLI embeds the engine directly; there is no control plane to log into.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: config.yaml in ~/.hybridgraph or the current directory)")
	cmd.PersistentFlags().StringVar(&c.endpoint, "endpoint", "", "SPARQL endpoint (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	cmd.AddCommand(c.newQueryCmd())
	cmd.AddCommand(c.newDSLCmd())
	cmd.AddCommand(c.newExplainCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.endpoint != "" {
		c.cfg.SPARQLEndpoint = c.endpoint
	}

	eng := engine.NewWithConfig(c.cfg, c.cfg.SPARQLEndpoint)
	eng.SetLogger(observability.NewJSONLogger(os.Stderr))

	backend, err := memframe.Open(memframe.Options{Concurrency: c.cfg.TimeSeries.Concurrency})
	if err != nil {
		return err
	}
	if err := eng.SetTimeSeriesBackend(backend); err != nil {
		return err
	}

	c.engine = eng
	return nil
}

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Printf("[DEBUG] "+format, args...)
	}
}
