package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"logreduce/internal/app"
	"logreduce/internal/config"
	"logreduce/internal/runner"
	"logreduce/internal/stages"
	"logreduce/internal/storage"
)

func newRunCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every source table missing from the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFrom(cmd.Context())
			if err != nil {
				return err
			}
			issues := app.Validate(e.file)
			printIssues(cmd, issues)
			if config.HasErrors(issues) {
				return fmt.Errorf("job file has %d error(s)", countErrors(issues))
			}
			rep, err := app.Run(cmd.Context(), e.file, e.log, app.RunOptions{DryRun: dryRun})
			printReport(cmd, rep)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and process without writing to the target")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the job file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFrom(cmd.Context())
			if err != nil {
				return err
			}
			issues := app.Validate(e.file)
			printIssues(cmd, issues)
			if config.HasErrors(issues) {
				return fmt.Errorf("job file has %d error(s)", countErrors(issues))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s is valid\n", e.file.Job)
			return nil
		},
	}
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the source tables the next run would process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFrom(cmd.Context())
			if err != nil {
				return err
			}
			work, present, err := app.Tables(cmd.Context(), e.file, e.log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range work {
				fmt.Fprintln(out, t)
			}
			fmt.Fprintf(out, "%d to process, %d already present\n", len(work), present)
			return nil
		},
	}
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List registered stage, prefilter and store kinds",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			stageKinds, prefilterKinds := stages.Kinds()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stages:     %s\n", strings.Join(stageKinds, ", "))
			fmt.Fprintf(out, "prefilters: %s\n", strings.Join(prefilterKinds, ", "))
			fmt.Fprintf(out, "stores:     %s\n", strings.Join(storage.ListKinds(), ", "))
		},
	}
}

func printIssues(cmd *cobra.Command, issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
}

func countErrors(issues []config.Issue) int {
	n := 0
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			n++
		}
	}
	return n
}

func printReport(cmd *cobra.Command, rep runner.Report) {
	if len(rep.Tables) == 0 && rep.RunID == "" {
		return
	}
	out := cmd.OutOrStdout()
	mode := "run"
	if rep.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(out, "%s %s: %d table(s) processed, %d already present\n", mode, rep.RunID, len(rep.Tables), rep.AlreadyPresent)
	if len(rep.Tables) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tFETCHED\tPREFILTERED\tSKIPPED\tLOADED\tDURATION")
	for _, t := range rep.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", t.Table, t.Fetched, t.Prefiltered, t.Skipped, t.Loaded, t.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
}
