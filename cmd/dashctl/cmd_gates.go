package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/dashboard"
	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "Execution gates (KYC, AML, TAX)",
}

var gatesWatchCmd = &cobra.Command{
	Use:   "watch [execution-id]",
	Short: "Poll the gates of an execution until Ctrl+C",
	Long: `Polls GET /api/gates/{execution_id} every poll.gates and prints the gate
table whenever it changes. Exposes /metrics when metrics.addr is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		defer serveMetrics()()

		g := dashboard.NewGatesPanel(svc, cfg.Poll.Gates, emptyGateStatus(), logger, panel.NewMetrics(registry))
		defer g.Stop()
		g.Watch(ctx, args[0])

		refresh := cfg.Poll.Gates
		if refresh <= 0 {
			refresh = time.Second
		}
		ticker := time.NewTicker(refresh / 2)
		defer ticker.Stop()

		var shown time.Time
		var shownErr string
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				st := g.State()
				if st.Err != "" && st.Err != shownErr {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", st.Err)
				}
				shownErr = st.Err
				if st.UpdatedAt.After(shown) {
					shown = st.UpdatedAt
					fmt.Fprintf(cmd.OutOrStdout(), "\n[%s] execution %s\n", shown.Format(time.TimeOnly), args[0])
					printGates(cmd.OutOrStdout(), st.Data, g.Overall())
				}
			}
		}
	},
}

var gatesDecideCmd = &cobra.Command{
	Use:   "decide [execution-id] [gate-id] [PASSED|BLOCKED]",
	Short: "Record an operator decision on a pending gate",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := domain.ParseGateStatus(args[2])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		g := dashboard.NewGatesPanel(svc, 0, emptyGateStatus(), logger, nil)
		defer g.Stop()
		if err := g.Load(ctx, args[0]); err != nil {
			return explain(err)
		}

		if err := g.Decide(ctx, args[1], status); err != nil {
			return explain(err)
		}
		logger.Info("gate decided", zap.String("execution_id", args[0]), zap.String("gate_id", args[1]))
		printGates(cmd.OutOrStdout(), g.State().Data, g.Overall())
		return nil
	},
}

func emptyGateStatus() domain.GateStatus {
	st, err := domain.ParseGateStatus(cfg.Gates.EmptyStatus)
	if err != nil {
		return domain.GatePassed
	}
	return st
}

func init() {
	gatesCmd.AddCommand(gatesWatchCmd)
	gatesCmd.AddCommand(gatesDecideCmd)
}
