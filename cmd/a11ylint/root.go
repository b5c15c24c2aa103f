package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hazyhaar/a11y/config"
)

// cli holds the state shared by the subcommands. Flags are bound to v so that
// A11YLINT_* environment variables can stand in for them.
type cli struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "a11ylint",
		Short: "Check HTML files for accessibility violations",
		Long: `a11ylint runs the accessibility rule engine over local HTML files or
stdin and prints a report. Rules are tuned with the same YAML file the
a11y service reads (--config).`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			c.setupLogging()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().String("config", "", "rule configuration file (YAML)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	_ = c.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = c.v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	c.v.SetEnvPrefix("A11YLINT")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(c.newCheckCmd(), c.newRulesCmd(), c.newVersionCmd())
	return root
}

func (c *cli) setupLogging() {
	level := slog.LevelWarn
	if c.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)
}

// loadConfig reads --config when given, defaults otherwise.
func (c *cli) loadConfig() (*config.Config, error) {
	path := c.v.GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	slog.Debug("using config file", "file", path)
	return config.LoadFile(path)
}
