package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"logreduce/internal/app"
	"logreduce/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

type envKey struct{}

// env is what PersistentPreRunE hands to subcommands.
type env struct {
	file config.File
	log  *zap.Logger
}

func envFrom(ctx context.Context) (env, error) {
	e, ok := ctx.Value(envKey{}).(env)
	if !ok {
		return env{}, errors.New("configuration not loaded")
	}
	return e, nil
}

// skipsConfig lists commands that run without a job file.
var skipsConfig = map[string]bool{
	"help":       true,
	"completion": true,
	"__complete": true,
	"kinds":      true,
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "logreduce",
		Short: "Reduce query-log tables into a processed dataset",
		Long: `logreduce reads every date-partitioned query-log table of a source
dataset that the target dataset does not have yet, runs the configured
prefilters and stages over its rows and bulk-loads the reduced rows into a
table of the same name in the target.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig[cmd.Name()] {
				return nil
			}
			if cfgFile == "" {
				return errors.New("--config is required")
			}
			f, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := app.NewLogger(f.Log)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, env{file: f, log: log}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, err := envFrom(cmd.Context()); err == nil {
				_ = e.log.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "job file (YAML)")
	pf.String("source-dsn", "", "source store DSN")
	pf.String("target-dsn", "", "target store DSN")
	pf.Int("workers", 1, "tables processed concurrently")
	pf.String("staging-dir", "", "directory for staged artifacts (default: system temp dir)")
	pf.Bool("per-table-commit", false, "commit each table on its own instead of one transaction per run")
	pf.String("metrics-backend", "none", "metrics backend (none|prometheus|datadog)")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "console", "log format (console|json)")

	_ = root.RegisterFlagCompletionFunc("metrics-backend", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"none", "prometheus", "datadog"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newTablesCmd())
	root.AddCommand(newKindsCmd())
	return root
}
