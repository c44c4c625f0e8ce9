// Package api defines the shared contracts between the reconciliation
// engine stages and their collaborators (ingestion, storage, reporting).
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Parameter keys recognized when flattening analytics event params.
const (
	ParamTransactionID = "transaction_id"
	ParamValue         = "value"
	ParamClickID       = "click_id"
	ParamUTMSource     = "utm_source"
	ParamUTMCampaign   = "utm_campaign"
)

// SyntheticActorID marks internal test traffic in the analytics export.
const SyntheticActorID = "test_user_internal"

// StageCancelled is the terminal CRM stage excluded from matching.
const StageCancelled = "Cancelled"

// ParamValueVariant holds one typed value of an analytics event parameter.
// Exactly one variant is set on a well-formed parameter.
type ParamValueVariant struct {
	StringValue *string  `json:"string_value,omitempty"`
	DoubleValue *float64 `json:"double_value,omitempty"`
}

// EventParam is a single key/value pair from the nested analytics
// event_params list.
type EventParam struct {
	Key   string            `json:"key"`
	Value ParamValueVariant `json:"value"`
}

// AnalyticsRawEvent mirrors the export shape of an analytics purchase event,
// with attributes carried as a nested parameter list.
type AnalyticsRawEvent struct {
	EventDate            string       `json:"event_date"` // YYYYMMDD
	EventTimestampMicros int64        `json:"event_timestamp"`
	EventName            string       `json:"event_name"`
	UserPseudoID         string       `json:"user_pseudo_id"`
	EventParams          []EventParam `json:"event_params"`
}

// CrmRawOpportunity mirrors a CRM opportunity record as delivered by the
// upstream extract (flat typed fields).
type CrmRawOpportunity struct {
	OpportunityID      uuid.UUID       `json:"opportunity_id"`
	ConfirmationNumber string          `json:"confirmation_number"`
	CreatedDate        time.Time       `json:"created_date"`
	PropertyName       string          `json:"property_name"`
	CheckInDate        time.Time       `json:"check_in_date"`
	CheckOutDate       time.Time       `json:"check_out_date"`
	Nights             int             `json:"nights"`
	Amount             decimal.Decimal `json:"amount"`
	StageName          string          `json:"stage_name"`
	BookingSource      string          `json:"booking_source"`
	ClickID            string          `json:"click_id,omitempty"`
	UTMSource          string          `json:"utm_source,omitempty"`
	UTMCampaign        string          `json:"utm_campaign,omitempty"`
}
