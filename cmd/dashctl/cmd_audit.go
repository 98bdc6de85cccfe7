package main

import (
	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Recent operator actions recorded by the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		entries, err := svc.AuditLog(ctx, auditLimit)
		if err != nil {
			return explain(err)
		}
		printAudit(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "How many entries to show")
}
