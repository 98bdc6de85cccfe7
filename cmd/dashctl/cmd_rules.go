package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xela07ax/vintrade-console/internal/dashboard"
	"github.com/xela07ax/vintrade-console/internal/domain"
)

var (
	ruleMetric    string
	ruleThreshold float64
	ruleSeverity  string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Alert rules",
}

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an alert rule",
	Long: `Creates a rule that raises an alert when the metric goes above the threshold.

Example:
  dashctl rules create --metric drawdown --threshold 0.1 --severity CRITICAL`,
	RunE: func(cmd *cobra.Command, args []string) error {
		severity, err := domain.ParseSeverity(ruleSeverity)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		form := dashboard.NewRulesForm(svc, logger)
		rule, err := form.Create(ctx, domain.AlertRule{Metric: ruleMetric, Threshold: ruleThreshold, Severity: severity})
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rule %s created: %s > %g (%s)\n", rule.ID, rule.Metric, rule.Threshold, rule.Severity)
		return nil
	},
}

func init() {
	rulesCreateCmd.Flags().StringVar(&ruleMetric, "metric", "", "Metric name (required)")
	rulesCreateCmd.Flags().Float64Var(&ruleThreshold, "threshold", 0, "Threshold that triggers the alert")
	rulesCreateCmd.Flags().StringVar(&ruleSeverity, "severity", string(domain.SeverityWarning), "INFO, WARNING or CRITICAL")
	_ = rulesCreateCmd.MarkFlagRequired("metric")
	rulesCmd.AddCommand(rulesCreateCmd)
}
