package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/enrich"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Claim and process a batch of queued jobs",
	Long:  "Polls the job queue and processes up to --max-jobs jobs within --budget seconds, then exits. Intended to be invoked from cron or on demand.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		maxJobs, _ := cmd.Flags().GetInt("max-jobs")
		budgetSecs, _ := cmd.Flags().GetInt("budget")

		runner := e.Runner
		if maxJobs > 0 || budgetSecs > 0 {
			if maxJobs <= 0 {
				maxJobs = cfg.Worker.BatchSize
			}
			if budgetSecs <= 0 {
				budgetSecs = cfg.Worker.BudgetSecs
			}
			runner = enrich.NewRunner(e.Queue, e.Processor, maxJobs,
				time.Duration(budgetSecs)*time.Second)
		}

		report, err := runner.RunBatch(ctx)
		if err != nil {
			return err
		}

		pending, err := e.Queue.PendingCount(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "processed %d (succeeded %d, failed %d), %d pending\n",
			report.Processed, report.Succeeded, report.Failed, pending)
		return nil
	},
}

func init() {
	workCmd.Flags().Int("max-jobs", 0, "max jobs to process this invocation (default from config)")
	workCmd.Flags().Int("budget", 0, "wall-clock budget in seconds (default from config)")
	rootCmd.AddCommand(workCmd)
}
