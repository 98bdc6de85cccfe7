package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printAlerts(w io.Writer, alerts []domain.Alert) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSEVERITY\tMETRIC\tREAD\tCREATED\tMESSAGE")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n", a.ID, a.Severity, a.Metric, a.Read, formatTime(a.CreatedAt), a.Message)
	}
	_ = tw.Flush()
}

func printGates(w io.Writer, gates []domain.Gate, overall domain.GateStatus) {
	tw := newTable(w)
	fmt.Fprintln(tw, "GATE\tNAME\tSTATUS\tRELIABILITY\tREASON")
	for _, g := range gates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, g.Status, g.ReliabilityLevel, g.Reason)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "overall: %s\n", overall)
}

func printStrategies(w io.Writer, items []domain.StrategyPerformance) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tROI\tRELIABILITY")
	for _, s := range items {
		fmt.Fprintf(tw, "%s\t%s\t%+.2f%%\t%s\n", s.ID, s.Name, s.ROI*100, s.ReliabilityLevel)
	}
	_ = tw.Flush()
}

func printAudit(w io.Writer, entries []domain.AuditEntry) {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tTARGET\tTRACE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", formatTime(e.Timestamp), e.Actor, e.Action, e.Target, e.TraceID)
	}
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
