package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/policygraph/internal/config"
	"github.com/roach88/policygraph/internal/nodes"
)

// RootOptions holds global flags for all commands, plus the configuration
// they resolve to.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the policygraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "policygraph",
		Short: "policygraph - visual spending policies",
		Long: `Compile graphs of typed nodes into miniscript policy expressions.

Graphs are defined in CUE or HCL. Keys, numbers and timelocks feed
and/or/thresh combinators; the terminal node's expression is the policy.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (yaml)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// resolve loads configuration and builds the logger. Config warnings are
// logged, not fatal.
func (o *RootOptions) resolve(stderr io.Writer) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}
	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	o.Config = cfg
	o.Logger = config.NewLogger(level, cfg.Log.Format, stderr)
	for _, w := range cfg.Validate() {
		o.Logger.Warn("config", "warning", w)
	}
	return nil
}

// config returns the resolved configuration, or defaults when the command
// runs without the root (as in tests).
func (o *RootOptions) config() *config.Config {
	if o.Config == nil {
		return config.Default()
	}
	return o.Config
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// registry builds the node registry with the configured threshold limit.
func (o *RootOptions) registry() *nodes.Registry {
	cfg := o.config()
	if cfg.Engine.MaxThreshold < 1 {
		return nodes.NewRegistry()
	}
	return nodes.NewRegistry(nodes.WithMaxThreshold(cfg.Engine.MaxThreshold))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
