package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xela07ax/vintrade-console/internal/dashboard"
	"github.com/xela07ax/vintrade-console/internal/domain"
)

var autonomyCmd = &cobra.Command{
	Use:   "autonomy",
	Short: "Trading agent autonomy level",
}

var autonomyGetCmd = &cobra.Command{
	Use:   "get [agent-id]",
	Short: "Show the autonomy level of an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		setting, err := svc.GetAutonomy(ctx, args[0])
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (updated %s)\n", setting.AgentID, setting.Level, formatTime(setting.UpdatedAt))
		return nil
	},
}

var autonomySetCmd = &cobra.Command{
	Use:   "set [agent-id] [MANUAL|SUPERVISED|AUTONOMOUS]",
	Short: "Change the autonomy level of an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := domain.ParseAutonomyLevel(args[1])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		p := dashboard.NewAutonomyPanel(svc, logger, nil)
		if err := p.Select(ctx, args[0]); err != nil {
			return explain(err)
		}
		if err := p.SetLevel(ctx, level); err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], p.State().Data.Level)
		return nil
	},
}

func init() {
	autonomyCmd.AddCommand(autonomyGetCmd)
	autonomyCmd.AddCommand(autonomySetCmd)
}
