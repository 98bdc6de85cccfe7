package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/xela07ax/vintrade-console/internal/dashboard"
)

var watchExecution string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the whole dashboard and print a summary until Ctrl+C",
	Long: `Starts the alerts and strategies pollers (poll.alerts, poll.strategies) and,
with --execution, the gates poller. Prints a one-line summary every poll.gates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		defer serveMetrics()()

		d := dashboard.New(client, *cfg, registry, logger)
		defer d.Close()
		d.Start(ctx)
		if watchExecution != "" {
			d.WatchExecution(ctx, watchExecution)
		}

		every := cfg.Poll.Gates
		if every <= 0 {
			every = 5 * time.Second
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				printSummary(cmd.OutOrStdout(), time.Now(), d, watchExecution)
			}
		}
	},
}

// printSummary: одна строка сводки. executionID пустой, если гейты не отслеживаются.
func printSummary(w io.Writer, now time.Time, d *dashboard.Dashboard, executionID string) {
	line := fmt.Sprintf("[%s] unread alerts: %d", now.Format(time.TimeOnly), d.Alerts.Unread())
	if top := d.Strategies.Top(1); len(top) > 0 {
		line += fmt.Sprintf(" | best: %s %+.2f%%", top[0].Name, top[0].ROI*100)
	}
	if executionID != "" {
		line += fmt.Sprintf(" | %s: %s", executionID, d.Overall())
	}
	for _, msg := range []string{d.Alerts.State().Err, d.Strategies.State().Err, d.Gates.State().Err} {
		if msg != "" {
			line += " | error: " + msg
		}
	}
	fmt.Fprintln(w, line)
}

func init() {
	watchCmd.Flags().StringVarP(&watchExecution, "execution", "e", "", "Also poll the gates of this execution")
}
