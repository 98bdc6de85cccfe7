package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/dashboard"
)

var unreadOnly bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and acknowledge alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		alerts, err := svc.ListAlerts(ctx)
		if err != nil {
			return explain(err)
		}
		if unreadOnly {
			filtered := alerts[:0]
			for _, a := range alerts {
				if !a.Read {
					filtered = append(filtered, a)
				}
			}
			alerts = filtered
		}
		printAlerts(cmd.OutOrStdout(), alerts)
		return nil
	},
}

var alertsReadCmd = &cobra.Command{
	Use:   "read [alert-id...]",
	Short: "Mark alerts as read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		// через панель, чтобы отметка шла тем же путем, что и в консоли (с откатом)
		p := dashboard.NewAlertsPanel(svc, logger, nil, func(id string) {
			logger.Debug("alert marked read", zap.String("alert_id", id))
		})
		if err := p.Refresh(ctx); err != nil {
			return explain(err)
		}

		for _, id := range args {
			if err := p.MarkRead(ctx, id); err != nil {
				return fmt.Errorf("alert %s: %w", id, explain(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s marked read\n", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d unread left\n", p.Unread())
		return nil
	},
}

func init() {
	alertsListCmd.Flags().BoolVar(&unreadOnly, "unread", false, "Show unread alerts only")
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsReadCmd)
}
