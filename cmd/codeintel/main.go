// Package main is the codeintel command: it inspects and edits the
// layered settings the code-intelligence addon resolves per language.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prymatex/codeintel/internal/config"
	"github.com/prymatex/codeintel/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// cli holds the global flags shared by every subcommand.
type cli struct {
	configDir string
	project   string
	logLevel  string
	logFormat string
	payload   string
	noColor   bool

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "codeintel",
		Short:         "Inspect and edit code-intelligence settings",
		Long:          "codeintel loads the layered settings (defaults, user, project, host payload, environment) and shows what the addon resolves for each language.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	_, noColor := os.LookupEnv("CODEINTEL_NO_COLOR")
	flags := root.PersistentFlags()
	flags.StringVar(&c.configDir, "config-dir", config.DefaultUserConfigDir(), "user settings directory")
	flags.StringVar(&c.project, "project", os.Getenv("CODEINTEL_PROJECT"), "project root (settings in <project>/.codeintel)")
	flags.StringVar(&c.logLevel, "log-level", envOr("CODEINTEL_LOG_LEVEL", "warn"), "log level: debug|info|warn|error")
	flags.StringVar(&c.logFormat, "log-format", envOr("CODEINTEL_LOG_FORMAT", "text"), "log format: text|json")
	flags.StringVar(&c.payload, "payload", os.Getenv("CODEINTEL_PAYLOAD"), "JSON file applied as the host payload")
	flags.BoolVar(&c.noColor, "no-color", noColor, "disable colored output")

	root.AddCommand(
		c.resolveCmd(),
		c.excludeCmd(),
		c.triggerCmd(),
		c.languagesCmd(),
		c.getCmd(),
		c.setCmd(),
		c.validateCmd(),
		c.shortcutsCmd(),
		c.watchCmd(),
	)
	return root
}

func (c *cli) setup() error {
	var format logging.Format
	switch c.logFormat {
	case "text", "":
		format = logging.FormatText
	case "json":
		format = logging.FormatJSON
	default:
		return errors.Newf("invalid log format %q (must be text or json)", c.logFormat)
	}

	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf("invalid log level %q (must be debug, info, warn, or error)", c.logLevel)
	}

	cfg := logging.DefaultLoggerConfig()
	cfg.Level = logging.ParseLogLevel(c.logLevel)
	cfg.Format = format
	cfg.Output = c.errOut
	logging.SetLogger(logging.NewLogger(cfg))

	if c.noColor {
		color.NoColor = true
	}
	return nil
}

// openConfig loads every settings layer.
func (c *cli) openConfig(ctx context.Context, watch bool) (*config.Config, error) {
	cfg, err := config.New(
		config.WithUserConfigDir(c.configDir),
		config.WithProjectDir(c.project),
		config.WithWatcher(watch),
		config.WithLogger(logging.GetLogger()),
	)
	if err != nil {
		return nil, err
	}

	if err := cfg.Load(ctx); err != nil {
		_ = cfg.Close()
		return nil, err
	}

	if c.payload != "" {
		data, err := os.ReadFile(c.payload)
		if err != nil {
			_ = cfg.Close()
			return nil, errors.Wrap(err, "reading host payload")
		}
		if err := cfg.ApplyPayloadJSON(data); err != nil {
			_ = cfg.Close()
			return nil, err
		}
	}
	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
