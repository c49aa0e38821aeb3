/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/mautops/submission-workflow/internal/auth"
	"github.com/mautops/submission-workflow/internal/container"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/spf13/cobra"
)

// groupCmd 用户组管理命令组
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage reviewer groups",
}

var addMemberCmd = &cobra.Command{
	Use:   "add-member <group> <person>",
	Short: "Add a person to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			return ctr.Groups().AddMember(ctx, args[0], args[1])
		})
	},
}

var removeMemberCmd = &cobra.Command{
	Use:   "remove-member <group> <person>",
	Short: "Remove a person from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			return ctr.Groups().RemoveMember(ctx, args[0], args[1])
		})
	},
}

var addChildCmd = &cobra.Command{
	Use:   "add-child <parent> <child>",
	Short: "Nest a group inside another group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			return ctr.Groups().AddChild(ctx, args[0], args[1])
		})
	},
}

var membersCmd = &cobra.Command{
	Use:   "members <group>",
	Short: "List effective members of a group, including nested groups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, ctr *container.Container) error {
			lister, ok := ctr.GroupResolver().(workflow.GroupLister)
			if !ok {
				return errors.New("configured group resolver cannot list members")
			}
			members, err := lister.ListMembers(ctx, args[0])
			if err != nil {
				return err
			}
			for _, m := range members {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		})
	},
}

// groupModelCmd 输出 OpenFGA 授权模型,用于初始化 store
var groupModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Print the OpenFGA authorization model for groups",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), auth.GetGroupModel())
	},
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(addMemberCmd, removeMemberCmd, addChildCmd, membersCmd, groupModelCmd)
}
