package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/kit"
	"github.com/hazyhaar/a11y/report"
	"github.com/hazyhaar/a11y/safeio"
)

// errViolations makes the process exit non-zero under --fail-on-violation.
var errViolations = errors.New("violations found")

func (c *cli) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [file...|-]",
		Short: "Check HTML files (or stdin) and print a report",
		Long: `Check each file and print one combined report. With no file, or "-",
the document is read from stdin.

Formats: table (default), json, sarif, html, markdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"-"}
			}
			return c.runCheck(cmd, args)
		},
	}
	cmd.Flags().StringP("format", "f", "table", "output format: table, json, sarif, html, markdown")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("fail-on-violation", false, "exit with status 1 when any violation is found")
	_ = c.v.BindPFlag("format", cmd.Flags().Lookup("format"))
	_ = c.v.BindPFlag("output", cmd.Flags().Lookup("output"))
	_ = c.v.BindPFlag("fail-on-violation", cmd.Flags().Lookup("fail-on-violation"))
	return cmd
}

func (c *cli) runCheck(cmd *cobra.Command, paths []string) error {
	format := c.v.GetString("format")
	f, err := report.New(format)
	if err != nil {
		return err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	chk := checker.New(cfg.Checker(), reg, checker.WithLogger(c.logger))

	ctx := kit.WithTransport(cmd.Context(), kit.TransportCLI)
	rep := &report.Report{Rules: reg.Describe()}
	var failed []error
	for _, path := range paths {
		data, err := safeio.ReadFile(path, int64(cfg.Limits.MaxInputBytes))
		if err != nil {
			failed = append(failed, err)
			continue
		}
		res, err := chk.Check(ctx, string(data))
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", path, err))
			continue
		}
		slog.Debug("checked", "source", path, "violations", len(res.Violations), "duration", res.Duration)
		rep.Add(path, res)
	}

	var out io.Writer = c.out
	if name := c.v.GetString("output"); name != "" {
		file, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		out = file
	}
	if len(rep.Documents) > 0 {
		if err := f.Format(out, rep); err != nil {
			return fmt.Errorf("format %s: %w", format, err)
		}
	}

	for _, err := range failed {
		fmt.Fprintf(c.errOut, "a11ylint: %v\n", err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d input(s) could not be checked", len(failed), len(paths))
	}
	if n := rep.Violations(); n > 0 && c.v.GetBool("fail-on-violation") {
		return fmt.Errorf("%w: %d", errViolations, n)
	}
	return nil
}
