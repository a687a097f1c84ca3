// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AleutianAI/flightload/cmd/flightload/config"
	"github.com/AleutianAI/flightload/pkg/logging"
	"github.com/AleutianAI/flightload/pkg/ux"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// skipSetup marks commands that run without config or logging.
const skipSetup = "flightload/skip-setup"

// cli holds the global flags and the state built from them. One cli
// serves one Execute call.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// --- Global flags ---
	configPath       string
	jsonOut          bool
	quiet            bool
	logLevel         string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	cfg     config.FlightloadConfig
	logger  *logging.Logger
	command string
	started time.Time
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "flightload",
		Short: "Statistical analysis of flight crew physiological workload",
		Long: `flightload compares SpO2, heart rate and fatigue across flight phases
and between pilots and copilots, renders charts and keeps a run history.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default $FLIGHTLOAD_CONFIG or ~/.flightload/config.yaml)")
	pf.BoolVar(&c.jsonOut, "json", false, "write a JSON result envelope to stdout")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "no console output; exit code only")
	pf.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	pf.StringVar(&c.personalityLevel, "personality", "", "output style: full, standard, minimal or machine")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored analysis runs",
	}
	historyCmd.AddCommand(newHistoryListCmd(c), newHistoryShowCmd(c), newHistoryDeleteCmd(c))

	root.AddCommand(
		newAnalyzeCmd(c),
		newWatchCmd(c),
		historyCmd,
		newVersionCmd(c),
	)
	return root
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the flightload version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return OutputResult(c.output(), c.stdout, "version", c.started,
				map[string]string{"version": version},
				func() { fmt.Fprintf(c.stdout, "flightload %s\n", version) })
		},
	}
}

// setup initialises personality, config and logging before any command.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	c.command = cmd.Name()
	if c.jsonOut {
		ux.SetPersonalityLevel(ux.PersonalityMachine)
	} else {
		ux.InitPersonality(c.personalityLevel)
	}
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	path, err := config.Path(c.configPath)
	if err != nil {
		return NewCommandError("config", err)
	}
	cfg, created, err := config.Load(path)
	if err != nil {
		return NewCommandError("config", err)
	}
	c.cfg = cfg

	level := cfg.Logging.Level
	if c.logLevel != "" {
		level = c.logLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return NewCommandError("config", err)
	}
	logger, err := logging.New(logging.Config{
		Level:   lvl,
		LogDir:  cfg.Logging.Dir,
		Service: "flightload",
		JSON:    cfg.Logging.JSON,
		Quiet:   c.quiet,
		Console: c.stderr,
	})
	if err != nil {
		return NewCommandError("config", err)
	}
	c.logger = logger
	slog.SetDefault(logger.Slog())

	if created && !c.quiet && !c.jsonOut {
		c.printer().Muted("Created default configuration at " + path)
	}
	return nil
}

// close releases what setup opened.
func (c *cli) close() {
	if c.logger != nil {
		_ = c.logger.Close()
	}
}

func (c *cli) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger.Slog()
}

func (c *cli) output() OutputConfig {
	return OutputConfig{JSON: c.jsonOut, Quiet: c.quiet}
}

func (c *cli) printer() *ux.Printer {
	return ux.NewPrinter(c.stdout, c.stderr)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr, started: time.Now()}
	defer c.close()

	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return CLIExitSuccess
	}
	cmd := c.command
	if cmd == "" {
		cmd = root.Name()
	}
	OutputError(c.output(), stdout, stderr, cmd, c.started, err)
	return ExitCode(err)
}
