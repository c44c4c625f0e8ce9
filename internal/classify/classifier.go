// Package classify derives attribution agreement, timing skew, and
// secondary discrepancy labels for reconciled rows.
package classify

import (
	"time"

	"github.com/shopspring/decimal"

	"booking-recon/pkg/api"
)

// DefaultLowValueThreshold flags analytics-only bookings below this amount
// as possible fraud or card-testing traffic.
var DefaultLowValueThreshold = decimal.NewFromInt(100)

// Options controls classification thresholds.
type Options struct {
	LowValueThreshold decimal.Decimal
}

func (o Options) threshold() decimal.Decimal {
	if o.LowValueThreshold.IsZero() {
		return DefaultLowValueThreshold
	}
	return o.LowValueThreshold
}

// Classify populates the derived fields of one joined row. Pure and total:
// never fails, never touches the contributing records. Attribution status is
// computed for all rows; for one-sided rows it degenerates to the
// single-side or no-token cases, so consumers gate on match status before
// interpreting attribution breakdowns.
func Classify(row api.ReconciledRow, opts Options) api.ReconciledRow {
	row.AttributionStatus = attributionStatus(row.Analytics, row.Crm)
	row.TimeSkewMinutes = timeSkew(row.Analytics, row.Crm)

	switch row.MatchStatus {
	case api.MatchStatusAnalyticsOnly:
		row.LikelyReason = likelyReason(row.Analytics, opts.threshold())
	case api.MatchStatusCrmOnly:
		row.Channel = channel(row.Crm)
	case api.MatchStatusMatched:
		// matched rows carry no secondary label
	}
	return row
}

// ClassifyAll classifies every row, returning a new slice.
func ClassifyAll(rows []api.ReconciledRow, opts Options) []api.ReconciledRow {
	out := make([]api.ReconciledRow, len(rows))
	for i, row := range rows {
		out[i] = Classify(row, opts)
	}
	return out
}

func attributionStatus(a, c *api.SourceRecord) api.AttributionStatus {
	switch {
	case a.HasToken() && c.HasToken() && a.AttributionToken == c.AttributionToken:
		return api.AttributionTokenMatched
	case a.HasToken() && c.HasToken():
		return api.AttributionTokenMismatch
	case a.HasToken():
		return api.AttributionTokenAnalyticsOnly
	case c.HasToken():
		return api.AttributionTokenCrmOnly
	default:
		return api.AttributionNoToken
	}
}

// timeSkew is the signed minute difference, CRM minus analytics, present
// only when both sides carry a timestamp. Truncated toward zero.
func timeSkew(a, c *api.SourceRecord) *int64 {
	if !a.HasTimestamp() || !c.HasTimestamp() {
		return nil
	}
	skew := int64(c.OccurredAt.Sub(a.OccurredAt) / time.Minute)
	return &skew
}

func likelyReason(a *api.SourceRecord, threshold decimal.Decimal) api.LikelyReason {
	switch {
	case a == nil:
		return api.ReasonUnexplained
	case a.IsSyntheticTest:
		return api.ReasonTestBooking
	case a.Amount.LessThan(threshold):
		return api.ReasonLowValue
	default:
		return api.ReasonUnexplained
	}
}

func channel(c *api.SourceRecord) string {
	if c == nil || c.SourceTag == "" {
		return api.ChannelUnknown
	}
	return c.SourceTag
}
