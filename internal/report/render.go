// Package report renders a reconciliation summary for human consumption.
// Presentation only; all numbers come from the aggregator as-is.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"booking-recon/pkg/api"
)

// Render writes the summary in the requested format (table, json, markdown).
func Render(w io.Writer, s *api.ReconciliationSummary, format string) error {
	switch format {
	case "json":
		return RenderJSON(w, s)
	case "markdown":
		return RenderMarkdown(w, s)
	default:
		return RenderTable(w, s)
	}
}

// RenderJSON writes the summary as indented JSON.
func RenderJSON(w io.Writer, s *api.ReconciliationSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// RenderTable writes a plain-text stakeholder report.
func RenderTable(w io.Writer, s *api.ReconciliationSummary) error {
	line := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	line("================================================================")
	line("BOOKING RECONCILIATION SUMMARY (%d rows)", s.TotalRows)
	line("================================================================")

	line("")
	line("Match status:")
	for _, sc := range s.StatusDistribution {
		line("  %-18s %6d  %6.2f%%", sc.Status, sc.Count, sc.Percentage)
	}

	line("")
	line("Attribution (matched rows):")
	for _, ac := range s.AttributionDistribution {
		line("  %-26s %6d  %6.2f%%", ac.Status, ac.Count, ac.Percentage)
	}

	line("")
	line("Analytics-only bookings by likely reason:")
	for _, rc := range s.AnalyticsOnlyReasons {
		line("  %-18s %6d", rc.Reason, rc.Count)
	}

	line("")
	line("CRM-only opportunities by channel:")
	for _, cc := range s.CrmOnlyChannels {
		line("  %-18s %6d", cc.Channel, cc.Count)
	}

	line("")
	line("Daily match-rate trend:")
	for _, d := range s.DailyTrend {
		line("  %s  total=%-5d matched=%-5d rate=%6.2f%%",
			d.Date.Format("2006-01-02"), d.TotalRows, d.MatchedRows, d.MatchRatePct)
	}

	line("")
	line("Revenue reconciliation (matched rows):")
	line("  analytics total   $%s", s.Revenue.AnalyticsTotal.StringFixed(2))
	line("  crm total         $%s", s.Revenue.CrmTotal.StringFixed(2))
	line("  difference        $%s", s.Revenue.Difference.StringFixed(2))
	if s.Revenue.Defined {
		line("  diff percentage   %s%%", s.Revenue.DiffPct.StringFixed(2))
	} else {
		line("  diff percentage   undefined (no matched revenue)")
	}
	line("================================================================")

	return nil
}

// RenderMarkdown writes the summary as markdown tables.
func RenderMarkdown(w io.Writer, s *api.ReconciliationSummary) error {
	line := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	line("## Booking Reconciliation Report")
	line("")
	line("Total rows: **%d**", s.TotalRows)
	line("")
	line("### Match Status")
	line("")
	line("| Status | Count | %% |")
	line("|--------|-------|---|")
	for _, sc := range s.StatusDistribution {
		line("| %s | %d | %.2f |", sc.Status, sc.Count, sc.Percentage)
	}

	line("")
	line("### Attribution (matched rows)")
	line("")
	line("| Status | Count | %% |")
	line("|--------|-------|---|")
	for _, ac := range s.AttributionDistribution {
		line("| %s | %d | %.2f |", ac.Status, ac.Count, ac.Percentage)
	}

	line("")
	line("### Analytics-Only Reasons")
	line("")
	line("| Reason | Count |")
	line("|--------|-------|")
	for _, rc := range s.AnalyticsOnlyReasons {
		line("| %s | %d |", rc.Reason, rc.Count)
	}

	line("")
	line("### CRM-Only Channels")
	line("")
	line("| Channel | Count |")
	line("|---------|-------|")
	for _, cc := range s.CrmOnlyChannels {
		line("| %s | %d |", cc.Channel, cc.Count)
	}

	line("")
	line("### Daily Trend")
	line("")
	line("| Date | Total | Matched | Rate %% |")
	line("|------|-------|---------|--------|")
	for _, d := range s.DailyTrend {
		line("| %s | %d | %d | %.2f |", d.Date.Format("2006-01-02"), d.TotalRows, d.MatchedRows, d.MatchRatePct)
	}

	line("")
	line("### Revenue (matched rows)")
	line("")
	line("| Metric | Value |")
	line("|--------|-------|")
	line("| Analytics total | $%s |", s.Revenue.AnalyticsTotal.StringFixed(2))
	line("| CRM total | $%s |", s.Revenue.CrmTotal.StringFixed(2))
	line("| Difference | $%s |", s.Revenue.Difference.StringFixed(2))
	if s.Revenue.Defined {
		line("| Difference %% | %s |", s.Revenue.DiffPct.StringFixed(2))
	} else {
		line("| Difference %% | undefined |")
	}

	return nil
}
