// Package aggregate reduces classified rows into the reconciliation summary.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"booking-recon/pkg/api"
	recerrors "booking-recon/pkg/errors"
)

// DefaultTrendDays caps the daily trend to the most recent days.
const DefaultTrendDays = 10

var hundred = decimal.NewFromInt(100)

// Options controls aggregation.
type Options struct {
	// TrendDays caps the daily trend; defaults to DefaultTrendDays.
	TrendDays int
}

// Aggregate computes summary statistics over the classified rows. Read-only
// reduction: the input is never mutated, and identical input yields an
// identical summary.
func Aggregate(rows []api.ReconciledRow, opts Options) (*api.ReconciliationSummary, error) {
	if rows == nil {
		return nil, recerrors.NewInvalidInput("aggregate", "nil row sequence")
	}
	trendDays := opts.TrendDays
	if trendDays <= 0 {
		trendDays = DefaultTrendDays
	}

	statusCounts := make(map[api.MatchStatus]int)
	attrCounts := make(map[api.AttributionStatus]int)
	reasonCounts := make(map[api.LikelyReason]int)
	channelCounts := make(map[string]int)

	type dayAgg struct{ total, matched int }
	days := make(map[time.Time]*dayAgg)

	analyticsTotal := decimal.Zero
	crmTotal := decimal.Zero
	matched := 0

	for i := range rows {
		row := &rows[i]
		statusCounts[row.MatchStatus]++

		switch row.MatchStatus {
		case api.MatchStatusMatched:
			matched++
			attrCounts[row.AttributionStatus]++
			if row.Analytics != nil {
				analyticsTotal = analyticsTotal.Add(row.Analytics.Amount)
			}
			if row.Crm != nil {
				crmTotal = crmTotal.Add(row.Crm.Amount)
			}
		case api.MatchStatusAnalyticsOnly:
			reasonCounts[row.LikelyReason]++
		case api.MatchStatusCrmOnly:
			channelCounts[row.Channel]++
		}

		agg := days[row.Date]
		if agg == nil {
			agg = &dayAgg{}
			days[row.Date] = agg
		}
		agg.total++
		if row.MatchStatus == api.MatchStatusMatched {
			agg.matched++
		}
	}

	s := &api.ReconciliationSummary{
		TotalRows:               len(rows),
		StatusDistribution:      make([]api.StatusCount, 0, len(statusCounts)),
		AttributionDistribution: make([]api.AttributionCount, 0, len(attrCounts)),
		AnalyticsOnlyReasons:    make([]api.ReasonCount, 0, len(reasonCounts)),
		CrmOnlyChannels:         make([]api.ChannelCount, 0, len(channelCounts)),
		DailyTrend:              make([]api.DailyTrendRow, 0, len(days)),
	}

	for status, n := range statusCounts {
		s.StatusDistribution = append(s.StatusDistribution, api.StatusCount{
			Status: status, Count: n, Percentage: pct(n, len(rows)),
		})
	}
	sort.Slice(s.StatusDistribution, func(i, j int) bool {
		a, b := s.StatusDistribution[i], s.StatusDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Status < b.Status
	})

	for status, n := range attrCounts {
		s.AttributionDistribution = append(s.AttributionDistribution, api.AttributionCount{
			Status: status, Count: n, Percentage: pct(n, matched),
		})
	}
	sort.Slice(s.AttributionDistribution, func(i, j int) bool {
		a, b := s.AttributionDistribution[i], s.AttributionDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Status < b.Status
	})

	for reason, n := range reasonCounts {
		s.AnalyticsOnlyReasons = append(s.AnalyticsOnlyReasons, api.ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(s.AnalyticsOnlyReasons, func(i, j int) bool {
		a, b := s.AnalyticsOnlyReasons[i], s.AnalyticsOnlyReasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})

	for ch, n := range channelCounts {
		s.CrmOnlyChannels = append(s.CrmOnlyChannels, api.ChannelCount{Channel: ch, Count: n})
	}
	sort.Slice(s.CrmOnlyChannels, func(i, j int) bool {
		a, b := s.CrmOnlyChannels[i], s.CrmOnlyChannels[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Channel < b.Channel
	})

	dates := make([]time.Time, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if len(dates) > trendDays {
		dates = dates[:trendDays]
	}
	for _, d := range dates {
		agg := days[d]
		s.DailyTrend = append(s.DailyTrend, api.DailyTrendRow{
			Date:         d,
			TotalRows:    agg.total,
			MatchedRows:  agg.matched,
			MatchRatePct: pct(agg.matched, agg.total),
		})
	}

	s.Revenue = api.RevenueSummary{
		MatchedRows:    matched,
		AnalyticsTotal: analyticsTotal,
		CrmTotal:       crmTotal,
		Difference:     analyticsTotal.Sub(crmTotal),
	}
	// Division by zero yields an explicit undefined result, never an error.
	if matched > 0 && !analyticsTotal.IsZero() {
		s.Revenue.DiffPct = s.Revenue.Difference.Div(analyticsTotal).Mul(hundred).Round(2)
		s.Revenue.Defined = true
	}

	return s, nil
}

// pct rounds a share to two decimals; zero denominator yields zero.
func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}
