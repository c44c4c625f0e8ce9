package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusCount is one line of the match-status distribution.
type StatusCount struct {
	Status     MatchStatus `json:"status"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
}

// AttributionCount is one line of the attribution distribution over
// matched rows.
type AttributionCount struct {
	Status     AttributionStatus `json:"status"`
	Count      int               `json:"count"`
	Percentage float64           `json:"percentage"`
}

// ReasonCount groups analytics-only rows by derived likely reason.
type ReasonCount struct {
	Reason LikelyReason `json:"reason"`
	Count  int          `json:"count"`
}

// ChannelCount groups CRM-only rows by booking channel.
type ChannelCount struct {
	Channel string `json:"channel"`
	Count   int    `json:"count"`
}

// DailyTrendRow is one day of the match-rate trend.
type DailyTrendRow struct {
	Date         time.Time `json:"date"`
	TotalRows    int       `json:"total_rows"`
	MatchedRows  int       `json:"matched_rows"`
	MatchRatePct float64   `json:"match_rate_pct"`
}

// RevenueSummary reconciles monetary totals over matched rows. DiffPct is
// meaningful only when Defined is true; it is left at zero when there are no
// matched rows or the analytics total is zero.
type RevenueSummary struct {
	MatchedRows    int             `json:"matched_rows"`
	AnalyticsTotal decimal.Decimal `json:"analytics_total"`
	CrmTotal       decimal.Decimal `json:"crm_total"`
	Difference     decimal.Decimal `json:"difference"`
	DiffPct        decimal.Decimal `json:"diff_pct"`
	Defined        bool            `json:"diff_pct_defined"`
}

// ReconciliationSummary is the aggregate output consumed by reporting.
// It carries no timestamps so identical input produces an identical summary.
type ReconciliationSummary struct {
	TotalRows               int                `json:"total_rows"`
	StatusDistribution      []StatusCount      `json:"status_distribution"`
	AttributionDistribution []AttributionCount `json:"attribution_distribution"`
	AnalyticsOnlyReasons    []ReasonCount      `json:"analytics_only_reasons"`
	CrmOnlyChannels         []ChannelCount     `json:"crm_only_channels"`
	DailyTrend              []DailyTrendRow    `json:"daily_trend"`
	Revenue                 RevenueSummary     `json:"revenue"`
}
