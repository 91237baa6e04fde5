package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage enrichment jobs",
	Long:  "Commands for listing jobs, reviewing permanent failures, and re-arming failed jobs.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrichment jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		status, _ := cmd.Flags().GetString("status")
		leadID, _ := cmd.Flags().GetString("lead")
		jobType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.JobFilter{
			LeadID: leadID,
			Type:   model.JobType(jobType),
			Limit:  limit,
		}
		if status != "" {
			filter.Statuses = []model.JobStatus{model.JobStatus(status)}
		}

		jobs, err := e.Store.ListJobs(ctx, filter)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

// -- jobs failures --

var jobsFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List permanently failed jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		jobs, err := e.Queue.Failures(ctx, limit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No failed jobs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLEAD\tTYPE\tRETRIES\tLAST ERROR")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				j.ID, j.LeadID, j.Type, j.RetryCount, j.LastError)
		}
		return w.Flush()
	},
}

// -- jobs retry --

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Re-arm a permanently failed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		ok, err := e.Queue.Retry(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Job is not in the failure state; nothing to retry.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "job %s requeued\n", args[0])
		return nil
	},
}

// -- jobs pending --

var jobsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show the count of queued and running jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := e.Queue.PendingCount(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d\n", n)
		return nil
	},
}

func formatJobsList(w io.Writer, jobs []model.EnrichmentJob) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLEAD\tTYPE\tSTATUS\tRETRIES\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			j.ID, j.LeadID, j.Type, j.Status, j.RetryCount,
			j.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by status (queued|running|success|failure)")
	jobsListCmd.Flags().String("lead", "", "filter by lead id")
	jobsListCmd.Flags().String("type", "", "filter by job type")
	jobsListCmd.Flags().Int("limit", 100, "max jobs to list")
	jobsFailuresCmd.Flags().Int("limit", 50, "max failures to list")

	jobsCmd.AddCommand(jobsListCmd, jobsFailuresCmd, jobsRetryCmd, jobsPendingCmd)
	rootCmd.AddCommand(jobsCmd)
}
