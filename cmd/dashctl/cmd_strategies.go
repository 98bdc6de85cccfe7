package main

import (
	"github.com/spf13/cobra"

	"github.com/xela07ax/vintrade-console/internal/dashboard"
)

var topN int

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Strategy performance, best ROI first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		p := dashboard.NewStrategiesPanel(svc, logger, nil)
		if err := p.Refresh(ctx); err != nil {
			return explain(err)
		}
		printStrategies(cmd.OutOrStdout(), p.Top(topN))
		return nil
	},
}

func init() {
	strategiesCmd.Flags().IntVarP(&topN, "top", "n", 0, "Show only the N best strategies")
}
