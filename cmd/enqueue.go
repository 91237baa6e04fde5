package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/model"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <lead-id>",
	Short: "Queue enrichment jobs for a lead",
	Long:  "Queues one job per requested type for the lead. Enqueue is idempotent: an already queued or running job of the same type is reused.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		leadID := args[0]

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		lead, err := e.Store.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead == nil {
			return eris.Errorf("lead not found: %s", leadID)
		}

		types, _ := cmd.Flags().GetStringSlice("type")
		jobTypes := model.JobTypes
		if len(types) > 0 {
			jobTypes = nil
			for _, t := range types {
				jobTypes = append(jobTypes, model.JobType(t))
			}
		}

		for _, jt := range jobTypes {
			job, err := e.Queue.Enqueue(ctx, leadID, jt)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", job.ID, job.Type, job.Status)
		}
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringSlice("type", nil,
		"job types to enqueue (default: all of website_validation, email_scraping, social_scraping)")
	rootCmd.AddCommand(enqueueCmd)
}
