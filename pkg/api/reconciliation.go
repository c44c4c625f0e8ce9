package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus classifies a reconciled row by which sources contain its key.
type MatchStatus string

const (
	MatchStatusMatched       MatchStatus = "matched"
	MatchStatusAnalyticsOnly MatchStatus = "analytics_only"
	MatchStatusCrmOnly       MatchStatus = "crm_only"
)

// AttributionStatus classifies agreement of the attribution click token
// between the two sides of a row.
type AttributionStatus string

const (
	AttributionTokenMatched       AttributionStatus = "token_matched"
	AttributionTokenAnalyticsOnly AttributionStatus = "token_in_analytics_only"
	AttributionTokenCrmOnly       AttributionStatus = "token_in_crm_only"
	AttributionTokenMismatch      AttributionStatus = "token_mismatch"
	AttributionNoToken            AttributionStatus = "no_token"
)

// LikelyReason explains why an analytics-only row has no CRM counterpart.
type LikelyReason string

const (
	ReasonTestBooking LikelyReason = "test_booking"
	ReasonLowValue    LikelyReason = "low_value"
	ReasonUnexplained LikelyReason = "unexplained"
)

// ChannelUnknown groups CRM-only rows that carry no source tag.
const ChannelUnknown = "unknown"

// SourceRecord is the common minimal schema both sources normalize into.
type SourceRecord struct {
	Key              string          `json:"key"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Amount           decimal.Decimal `json:"amount"`
	AttributionToken string          `json:"attribution_token,omitempty"`
	SourceTag        string          `json:"source_tag,omitempty"`
	IsSyntheticTest  bool            `json:"is_synthetic_test"`
	Status           string          `json:"status,omitempty"` // CRM lifecycle stage

	// Source-specific passthrough fields.
	ActorID       string `json:"actor_id,omitempty"`
	Campaign      string `json:"campaign,omitempty"`
	OpportunityID string `json:"opportunity_id,omitempty"`
	PropertyName  string `json:"property_name,omitempty"`
	Nights        int    `json:"nights,omitempty"`
}

// HasToken reports whether the record carries a non-empty attribution token.
func (r *SourceRecord) HasToken() bool {
	return r != nil && r.AttributionToken != ""
}

// HasTimestamp reports whether the record carries an event timestamp.
func (r *SourceRecord) HasTimestamp() bool {
	return r != nil && !r.OccurredAt.IsZero()
}

// ReconciledRow is one joined row per distinct business key. The Matcher
// creates it, the Classifier fills the derived fields, and it is immutable
// afterwards.
type ReconciledRow struct {
	Date        time.Time   `json:"date"`
	Key         string      `json:"key"`
	MatchStatus MatchStatus `json:"match_status"`

	Analytics *SourceRecord `json:"analytics,omitempty"`
	Crm       *SourceRecord `json:"crm,omitempty"`

	AttributionStatus AttributionStatus `json:"attribution_status,omitempty"`
	TimeSkewMinutes   *int64            `json:"time_skew_minutes,omitempty"`
	LikelyReason      LikelyReason      `json:"likely_reason,omitempty"`
	Channel           string            `json:"channel,omitempty"`
}
