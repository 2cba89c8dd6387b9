// Command auditvaultd runs the audit log archival daemon and exposes
// administrative commands over the same stores.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dray-io/auditvault/internal/config"
	"github.com/dray-io/auditvault/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd(newApp(os.Stdout)).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by all commands.
type app struct {
	configPath string
	out        io.Writer
	open       openFunc

	cfg    *config.Config
	logger *logging.Logger
}

func newApp(out io.Writer) *app {
	return &app{out: out, open: openBackends}
}

// loadConfig loads the configuration and configures the global logger.
func (a *app) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Observability.LogLevel),
		Format: logging.ParseFormat(cfg.Observability.LogFormat),
	})
	logging.SetGlobal(a.logger)
	return nil
}

// withServices loads the configuration, opens the backends without metrics
// and runs fn. The backends are closed afterwards.
func (a *app) withServices(ctx context.Context, fn func(*services) error) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	b, err := a.open(ctx, a.cfg, a.logger, nil)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.logger.Warnf("failed to close stores", map[string]any{"error": err.Error()})
		}
	}()
	return fn(newServices(a.cfg, b, a.logger, nil))
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "auditvaultd",
		Short:         "Immutable audit log retention and archival daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to configuration file (default $"+config.PathEnvVar+")")

	root.AddCommand(
		newServeCmd(a),
		newWriteCmd(a),
		newVerifyCmd(a),
		newArchiveCmd(a),
		newUsageCmd(a),
		newRetrieveCmd(a),
		newJobCmd(a),
		newPolicyCmd(a),
		newValidateDeletionCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.out, "auditvaultd version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
			return err
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			out, err := a.cfg.Dump()
			if err != nil {
				return err
			}
			_, err = a.out.Write(out)
			return err
		},
	})
	return cmd
}
