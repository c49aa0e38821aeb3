/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mautops/submission-workflow/internal/container"
	"github.com/mautops/submission-workflow/internal/integration"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/service"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/spf13/cobra"
)

// workflowCmd 工作流操作命令组
var workflowCmd = &cobra.Command{
	Use:     "workflow",
	Aliases: []string{"wf"},
	Short:   "Operate on workflow items",
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create a submission and start its workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		submitter, _ := cmd.Flags().GetString("submitter")
		title, _ := cmd.Flags().GetString("title")
		multipleTitles, _ := cmd.Flags().GetBool("multiple-titles")
		publishedBefore, _ := cmd.Flags().GetBool("published-before")
		multipleFiles, _ := cmd.Flags().GetBool("multiple-files")

		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			sub, err := ctr.ContentStore().CreateWorkspaceItem(ctx, integration.NewSubmission{
				CollectionID:    collection,
				SubmitterID:     submitter,
				Title:           title,
				MultipleTitles:  multipleTitles,
				PublishedBefore: publishedBefore,
				MultipleFiles:   multipleFiles,
			})
			if err != nil {
				return fmt.Errorf("failed to create submission: %w", err)
			}
			result, err := ctr.WorkflowService().Start(ctx, sub.WorkspaceItemID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Archived {
				fmt.Fprintf(out, "item %s archived as %s\n", result.ItemID, result.Handle)
				return nil
			}
			fmt.Fprintf(out, "item %s entered workflow as %s (%s)\n", result.ItemID, result.Item.ID, result.Item.State)
			return nil
		})
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool <person>",
	Short: "List pooled tasks the person may claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			items, err := ctr.WorkflowService().GetPooledTasks(ctx, args[0])
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

var ownedCmd = &cobra.Command{
	Use:   "owned <person>",
	Short: "List tasks claimed by the person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			items, err := ctr.WorkflowService().GetOwnedTasks(ctx, args[0])
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim <workflow-item-id> <person>",
	Short: "Claim a pooled task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			item, err := ctr.WorkflowService().Claim(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s claimed by %s (%s)\n", item.ID, item.Owner, item.State)
			return nil
		})
	},
}

var unclaimCmd = &cobra.Command{
	Use:   "unclaim <workflow-item-id> <person>",
	Short: "Return a claimed task to its pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			item, err := ctr.WorkflowService().Unclaim(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s returned to pool (%s)\n", item.ID, item.State)
			return nil
		})
	},
}

var advanceCmd = &cobra.Command{
	Use:   "advance <workflow-item-id> <person>",
	Short: "Approve or reject a claimed task",
	Long: `Record the reviewer's decision on a claimed task.
Edits use field=value and are only accepted with --outcome approve_with_edit.
Prefix the field with ! to replace existing values, e.g. --edit '!dc.title=New title'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome, _ := cmd.Flags().GetString("outcome")
		reason, _ := cmd.Flags().GetString("reason")
		rawEdits, _ := cmd.Flags().GetStringArray("edit")

		edits, err := parseEdits(rawEdits)
		if err != nil {
			return err
		}
		req := service.AdvanceRequest{
			WorkflowItemID: args[0],
			Person:         args[1],
			Outcome:        workflow.Outcome(outcome),
			Edits:          edits,
			Reason:         reason,
		}
		if cmd.Flags().Changed("provenance") {
			record, _ := cmd.Flags().GetBool("provenance")
			req.RecordProvenance = &record
		}

		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			archived, err := ctr.WorkflowService().Advance(ctx, req)
			if err != nil {
				return err
			}
			if archived {
				fmt.Fprintf(cmd.OutOrStdout(), "%s archived\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s advanced (%s)\n", args[0], outcome)
			}
			return nil
		})
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort <workflow-item-id> <admin>",
	Short: "Abort a workflow and return the submission to its submitter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			if err := ctr.WorkflowService().Abort(ctx, args[0], args[1], reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s aborted\n", args[0])
			return nil
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report workflow items whose state no longer matches the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			orphans, err := ctr.WorkflowService().VerifyStates(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCOLLECTION\tSTATE\tREASON")
			for _, o := range orphans {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Item.ID, o.Item.CollectionID, o.Item.State, o.Reason)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if len(orphans) > 0 {
				return fmt.Errorf("%d inconsistent workflow items", len(orphans))
			}
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <item-id>",
	Short: "Show the state history of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			rows, err := ctr.WorkflowService().History(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tFROM\tTO\tOPERATOR\tREASON")
			for _, h := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					h.CreatedAt.UTC().Format(time.RFC3339), h.Action, h.FromState, h.ToState, h.Operator, h.Reason)
			}
			return w.Flush()
		})
	},
}

// notificationsCmd 查看条目的通知投递状态,pending 的事件会在下次启动时重新推送
var notificationsCmd = &cobra.Command{
	Use:   "notifications <item-id>",
	Short: "Show webhook notification events of an item and their delivery status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			events, err := ctr.Events().FindByItemID(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTEMPLATE\tRECIPIENT\tSTATUS\tRETRIES")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s:%s\t%s\t%d\n",
					e.CreatedAt.UTC().Format(time.RFC3339), e.Template, e.RecipientType, e.Recipient, e.Status, e.RetryCount)
			}
			return w.Flush()
		})
	},
}

// parseEdits 解析 field=value 形式的元数据修改
func parseEdits(raw []string) ([]workflow.MetadataEdit, error) {
	edits := make([]workflow.MetadataEdit, 0, len(raw))
	for _, r := range raw {
		field, value, ok := strings.Cut(r, "=")
		if !ok || strings.TrimPrefix(field, "!") == "" {
			return nil, fmt.Errorf("invalid edit %q, expected field=value", r)
		}
		replace := strings.HasPrefix(field, "!")
		edits = append(edits, workflow.MetadataEdit{
			Field:   strings.TrimPrefix(field, "!"),
			Value:   value,
			Replace: replace,
		})
	}
	return edits, nil
}

func printItems(out io.Writer, items []*model.WorkflowItemModel) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tITEM\tCOLLECTION\tSTATE\tOWNER\tSUBMITTER")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", it.ID, it.ItemID, it.CollectionID, it.State, it.Owner, it.SubmitterID)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(submitCmd, poolCmd, ownedCmd, claimCmd, unclaimCmd, advanceCmd, abortCmd, verifyCmd, historyCmd, notificationsCmd)

	submitCmd.Flags().String("collection", "", "Target collection ID")
	submitCmd.Flags().String("submitter", "", "Submitter ID")
	submitCmd.Flags().String("title", "", "Item title")
	submitCmd.Flags().Bool("multiple-titles", false, "Item has alternative titles")
	submitCmd.Flags().Bool("published-before", false, "Item was published before")
	submitCmd.Flags().Bool("multiple-files", false, "Item has more than one file")
	_ = submitCmd.MarkFlagRequired("collection")
	_ = submitCmd.MarkFlagRequired("submitter")

	advanceCmd.Flags().String("outcome", string(workflow.OutcomeApprove), "approve, reject or approve_with_edit")
	advanceCmd.Flags().String("reason", "", "Rejection reason")
	advanceCmd.Flags().StringArray("edit", nil, "Metadata edit as field=value (repeatable)")
	advanceCmd.Flags().Bool("provenance", true, "Record a provenance statement")

	abortCmd.Flags().String("reason", "", "Reason recorded in provenance")
}
