package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/delegation-deployments/pkg/client"
)

func createRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and trigger validation runs on a server",
	}

	cmd.AddCommand(createRunsListCmd())
	cmd.AddCommand(createRunsShowCmd())
	cmd.AddCommand(createRunsLatestCmd())
	cmd.AddCommand(createRunsTriggerCmd())

	return cmd
}

func newClient() *client.Client {
	return client.New(getServer(), getAPIKey())
}

func createRunsListCmd() *cobra.Command {
	var (
		version    string
		passed     string
		limit      int
		cursor     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.ListRunsOptions{Version: version, Limit: limit, Cursor: cursor}
			if passed != "" {
				b, err := strconv.ParseBool(passed)
				if err != nil {
					return fmt.Errorf("invalid --passed value %q", passed)
				}
				opts.Passed = &b
			}

			resp, err := newClient().ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, resp)
			}

			if len(resp.Data) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tRESULT\tFAILED\tTRIGGER\tSTARTED")
			for _, r := range resp.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					r.ID, r.Version, result(r.Passed), r.ChainsFailed, r.ContractsFailed,
					r.TriggeredBy, r.StartedAt.Local().Format(time.DateTime))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if resp.Pagination.HasMore {
				fmt.Fprintf(out, "\nMore runs: --cursor %s\n", resp.Pagination.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "only runs of this version")
	cmd.Flags().StringVar(&passed, "passed", "", "only passed (true) or failed (false) runs")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after a previous page")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func createRunsShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a run with its chain results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := newClient().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRun(cmd.OutOrStdout(), run, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func createRunsLatestCmd() *cobra.Command {
	var version string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := newClient().LatestRun(cmd.Context(), version)
			if err != nil {
				if client.IsNotFound(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				return err
			}
			return printRun(cmd.OutOrStdout(), run, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "newest run of this version")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func createRunsTriggerCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "trigger [version]",
		Short: "Run a validation on the server and wait for it",
		Long: `Ask the server to validate a version and print the recorded run. Requires
an API key when the server has authentication enabled.

The command exits with status 1 if the run failed.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var version string
			if len(args) == 1 {
				version = args[0]
			}

			run, err := newClient().TriggerRun(cmd.Context(), version)
			if err != nil {
				return err
			}
			if err := printRun(cmd.OutOrStdout(), run, jsonOutput); err != nil {
				return err
			}
			if !run.Passed {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printRun(out io.Writer, run *client.Run, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(out, run)
	}

	fmt.Fprintf(out, "Run:       %s\n", run.ID)
	fmt.Fprintf(out, "Version:   %s\n", run.Version)
	fmt.Fprintf(out, "Result:    %s\n", result(run.Passed))
	fmt.Fprintf(out, "Trigger:   %s\n", run.TriggeredBy)
	fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Duration:  %s\n", time.Duration(run.DurationMS)*time.Millisecond)

	if len(run.Chains) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	for _, c := range run.Chains {
		fmt.Fprintf(out, "%s (%d): %s\n", c.Name, c.ChainID, c.Status)
		if c.Error != "" {
			fmt.Fprintf(out, "  %s\n", c.Error)
		}
		for _, ct := range c.Contracts {
			if ct.Error != "" {
				fmt.Fprintf(out, "  %s %s: %s\n", ct.Name, ct.Address, ct.Error)
			}
		}
	}
	return nil
}

func result(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
