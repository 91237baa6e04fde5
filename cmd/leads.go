package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/lifecycle"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage leads and their lifecycle",
	Long:  "Commands for adding, listing, and moving leads through the outreach funnel, and for converting approved leads to clients.",
}

// -- leads add --

var leadsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		website, _ := cmd.Flags().GetString("website")
		lead, err := e.Store.CreateLead(ctx, model.Lead{Name: args[0], Website: website})
		if err != nil {
			return err
		}

		enqueueJobs, _ := cmd.Flags().GetBool("enqueue")
		if enqueueJobs {
			for _, jt := range model.JobTypes {
				if _, err := e.Queue.Enqueue(ctx, lead.ID, jt); err != nil {
					return err
				}
			}
		}

		fmt.Fprintln(os.Stdout, lead.ID)
		return nil
	},
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		leads, err := e.Store.ListLeads(ctx, store.LeadFilter{
			Status: model.LeadStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show a lead with its contacts and jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		lead, err := e.Store.GetLead(ctx, args[0])
		if err != nil {
			return err
		}
		if lead == nil {
			return eris.Errorf("lead not found: %s", args[0])
		}

		fmt.Fprintf(os.Stdout, "ID:             %s\n", lead.ID)
		fmt.Fprintf(os.Stdout, "Name:           %s\n", lead.Name)
		fmt.Fprintf(os.Stdout, "Website:        %s\n", lead.Website)
		fmt.Fprintf(os.Stdout, "Website status: %s\n", lead.WebsiteStatus)
		fmt.Fprintf(os.Stdout, "Status:         %s\n", lead.Status)
		if lead.Converted {
			fmt.Fprintf(os.Stdout, "Converted:      by %s at %s\n",
				lead.ConvertedBy, lead.ConvertedAt.Format(time.RFC3339))
		}

		contacts, err := e.Store.ListContacts(ctx, lead.ID)
		if err != nil {
			return err
		}
		for _, c := range contacts {
			fmt.Fprintf(os.Stdout, "Contact:        email=%s (conf %d) fb=%s ig=%s li=%s\n",
				c.Email, c.EmailConfidence, c.FacebookURL, c.InstagramURL, c.LinkedInURL)
		}

		jobs, err := e.Store.ListJobs(ctx, store.JobFilter{LeadID: lead.ID})
		if err != nil {
			return err
		}
		for _, j := range jobs {
			fmt.Fprintf(os.Stdout, "Job:            %s %s retries=%d\n", j.Type, j.Status, j.RetryCount)
		}
		return nil
	},
}

// -- leads advance --

var leadsAdvanceCmd = &cobra.Command{
	Use:   "advance <lead-id> <status>",
	Short: "Move a lead to a new lifecycle status",
	Long:  "Applies a lifecycle transition (pending, approved, rejected, contacted, responded, inactive). Illegal transitions are rejected with the list of valid alternatives.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return advanceLead(cmd, args[0], model.LeadStatus(args[1]))
	},
}

var leadsApproveCmd = &cobra.Command{
	Use:   "approve <lead-id>",
	Short: "Approve a pending lead for outreach",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return advanceLead(cmd, args[0], model.LeadStatusApproved)
	},
}

var leadsRejectCmd = &cobra.Command{
	Use:   "reject <lead-id>",
	Short: "Reject a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return advanceLead(cmd, args[0], model.LeadStatusRejected)
	},
}

func advanceLead(cmd *cobra.Command, leadID string, to model.LeadStatus) error {
	ctx := cmd.Context()

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

	if err := lifecycle.AssertTransition(lead.Status, to); err != nil {
		return err
	}
	lead.Status = to
	if err := e.Store.UpdateLead(ctx, lead); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s -> %s\n", leadID, to)
	return nil
}

// -- leads convert --

var leadsConvertCmd = &cobra.Command{
	Use:   "convert <lead-id>",
	Short: "Convert an approved lead to a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		lead, err := e.Store.GetLead(ctx, args[0])
		if err != nil {
			return err
		}
		if lead == nil {
			return eris.Errorf("lead not found: %s", args[0])
		}

		convertedBy, _ := cmd.Flags().GetString("by")
		if err := lifecycle.Convert(lead, convertedBy, time.Now().UTC()); err != nil {
			return err
		}
		if err := e.Store.UpdateLead(ctx, lead); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "%s converted to client\n", lead.ID)
		return nil
	},
}

func formatLeadsList(w io.Writer, leads []model.Lead) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tWEBSITE STATUS\tSTATUS\tCONVERTED")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n",
			l.ID, l.Name, l.WebsiteStatus, l.Status, l.Converted)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	leadsAddCmd.Flags().String("website", "", "lead website URL")
	leadsAddCmd.Flags().Bool("enqueue", false, "queue all enrichment jobs after creating")
	leadsListCmd.Flags().String("status", "", "filter by lifecycle status")
	leadsListCmd.Flags().Int("limit", 100, "max leads to list")
	leadsConvertCmd.Flags().String("by", "", "id of the converting user")

	leadsCmd.AddCommand(leadsAddCmd, leadsListCmd, leadsShowCmd,
		leadsAdvanceCmd, leadsApproveCmd, leadsRejectCmd, leadsConvertCmd)
	rootCmd.AddCommand(leadsCmd)
}
