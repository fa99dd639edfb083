// vlansync reconciles VLANs on network switches against a YAML description.
//
// Usage:
//
//	vlansync apply [--target T] [--write]   Reconcile switches (dry-run without --write)
//	vlansync show --target T --vlan N       Print the device state of one VLAN
//	vlansync watch [--write]                Reconcile on SNMP traps
//
// Global flags select the configuration file, verbosity (0..3), log format
// and JSON output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlansync/infrastructure/config"
	"github.com/carlosrabelo/vlansync/infrastructure/logging"
)

// errNotConverged makes the process exit non-zero after a report was printed.
var errNotConverged = errors.New("one or more VLANs failed to converge")

type rootOptions struct {
	configPath string
	verbosity  int
	logLevel   string
	logFormat  string
	jsonOutput bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:               "vlansync",
		Short:             "Declarative VLAN reconciliation for network switches",
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		Long: `vlansync reads the desired VLANs of each switch from a YAML file,
compares them with the device and sends only the commands needed to converge.

Without --write, apply and watch only report what they would change.

  vlansync apply --target 10.0.0.1 --write`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.verbosity < 0 || opts.verbosity > 3 {
				return fmt.Errorf("invalid verbosity level %d, must be between 0 and 3", opts.verbosity)
			}
			logging.SetLogOutput(cmd.ErrOrStderr())
			logging.SetVerbosity(opts.verbosity)
			if opts.logLevel != "" {
				if err := logging.SetLogLevel(opts.logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			switch opts.logFormat {
			case "text":
				logging.SetTextFormat()
			case "json":
				logging.SetJSONFormat()
			default:
				return fmt.Errorf("invalid log format %q, must be text or json", opts.logFormat)
			}
			return nil
		},
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (default: search ./, user config dir, /etc/vlansync)")
	cmd.PersistentFlags().IntVarP(&opts.verbosity, "verbose", "v", 0, "verbosity level: 0 info, 1 debug, 2 raw device output, 3 both")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides --verbose")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "JSON output")

	cmd.AddCommand(
		newApplyCmd(opts),
		newShowCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// loadConfig resolves the configuration file and loads it. Unless write is
// set every switch runs in sandbox mode.
func (o *rootOptions) loadConfig(write bool) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		found, err := config.FindFile(config.DefaultFileName)
		if err != nil {
			return nil, err
		}
		path = found
	}
	logging.Logger.Debugf("Using configuration %s", path)
	return config.Load(path, write)
}
