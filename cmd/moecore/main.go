// Command moecore routes queries to expert descriptors and dispatches prompts
// across a pool of expert backends.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Strob0t/moecore/internal/config"
	"github.com/Strob0t/moecore/internal/logger"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	jsonOut    bool

	cfg       *config.Config
	logCloser logger.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "moecore",
		Short:         "Mixture-of-experts routing and orchestration engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logCloser != nil {
				c.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", config.DefaultConfigFile, "YAML configuration file")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON even on a terminal")

	root.AddCommand(
		newServeCmd(c),
		newWorkerCmd(c),
		newRouteCmd(c),
		newSuggestCmd(c),
		newQueryCmd(c),
		newRunCmd(c),
		newExportCmd(c),
		newDomainsCmd(c),
		newExamplesCmd(c),
		newBackendsCmd(c),
	)
	return root
}

// setup loads configuration and installs the default logger. Long-running
// commands log to stdout; one-shot commands keep stdout for their output.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadFrom(c.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.cfg = cfg

	var w io.Writer = cmd.ErrOrStderr()
	if cmd.Annotations["daemon"] == "true" {
		w = cmd.OutOrStdout()
	}
	log, closer := logger.NewWithWriter(cfg.Logging, w)
	slog.SetDefault(log)
	c.logCloser = closer
	return nil
}
