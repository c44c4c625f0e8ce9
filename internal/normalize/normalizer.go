// Package normalize maps each source's native record shape into the common
// SourceRecord schema consumed by the matcher.
package normalize

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"booking-recon/pkg/api"
	recerrors "booking-recon/pkg/errors"
)

// Options controls normalization behavior.
type Options struct {
	// Strict aborts the whole call on the first malformed record instead of
	// skipping it.
	Strict bool
}

// QualityReport counts data-quality anomalies observed during normalization.
// Anomalies are recorded, never raised.
type QualityReport struct {
	AnalyticsMissingKey int                     `json:"analytics_missing_key"`
	CrmMissingKey       int                     `json:"crm_missing_key"`
	CancelledExcluded   int                     `json:"cancelled_excluded"`
	SyntheticTests      int                     `json:"synthetic_tests"`
	Malformed           []*recerrors.ReconError `json:"malformed,omitempty"`
}

// Result holds both normalized record sets plus the quality report.
type Result struct {
	Analytics []api.SourceRecord `json:"analytics"`
	Crm       []api.SourceRecord `json:"crm"`
	Quality   QualityReport      `json:"quality"`
}

// Normalize maps both raw record sets into the common schema. Records with a
// missing business key are dropped and counted; CRM records in the terminal
// cancelled stage are excluded from matching entirely. Deterministic, no
// side effects.
func Normalize(analytics []api.AnalyticsRawEvent, crm []api.CrmRawOpportunity, opts Options) (*Result, error) {
	if analytics == nil {
		return nil, recerrors.NewInvalidInput("normalize", "nil analytics record sequence")
	}
	if crm == nil {
		return nil, recerrors.NewInvalidInput("normalize", "nil crm record sequence")
	}

	res := &Result{
		Analytics: make([]api.SourceRecord, 0, len(analytics)),
		Crm:       make([]api.SourceRecord, 0, len(crm)),
	}

	for i, ev := range analytics {
		rec, err := flattenEvent(i, ev)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			if re, ok := err.(*recerrors.ReconError); ok {
				res.Quality.Malformed = append(res.Quality.Malformed, re)
			}
			continue
		}
		if rec.Key == "" {
			res.Quality.AnalyticsMissingKey++
			continue
		}
		if rec.IsSyntheticTest {
			res.Quality.SyntheticTests++
		}
		res.Analytics = append(res.Analytics, rec)
	}

	for _, opp := range crm {
		if opp.StageName == api.StageCancelled {
			res.Quality.CancelledExcluded++
			continue
		}
		if opp.ConfirmationNumber == "" {
			res.Quality.CrmMissingKey++
			continue
		}
		res.Crm = append(res.Crm, normalizeOpportunity(opp))
	}

	return res, nil
}

func normalizeOpportunity(opp api.CrmRawOpportunity) api.SourceRecord {
	rec := api.SourceRecord{
		Key:              opp.ConfirmationNumber,
		OccurredAt:       opp.CreatedDate,
		Amount:           opp.Amount,
		AttributionToken: opp.ClickID,
		SourceTag:        opp.BookingSource,
		Status:           opp.StageName,
		PropertyName:     opp.PropertyName,
		Nights:           opp.Nights,
		Campaign:         opp.UTMCampaign,
	}
	if opp.OpportunityID != uuid.Nil {
		rec.OpportunityID = opp.OpportunityID.String()
	}
	return rec
}

// flattenEvent collapses the nested event-parameter list into the fixed
// attribute set. Unknown parameter keys are ignored.
func flattenEvent(idx int, ev api.AnalyticsRawEvent) (api.SourceRecord, error) {
	rec := api.SourceRecord{
		ActorID:         ev.UserPseudoID,
		IsSyntheticTest: ev.UserPseudoID == api.SyntheticActorID,
	}
	if ev.EventTimestampMicros > 0 {
		rec.OccurredAt = time.UnixMicro(ev.EventTimestampMicros).UTC()
	}

	for _, p := range ev.EventParams {
		v := p.Value
		if v.StringValue == nil && v.DoubleValue == nil {
			return api.SourceRecord{}, recerrors.NewMalformedRecord(eventRef(idx, ev),
				fmt.Sprintf("param %q carries no value variant", p.Key))
		}

		switch p.Key {
		case api.ParamTransactionID:
			if v.StringValue == nil {
				return api.SourceRecord{}, recerrors.NewMalformedRecord(eventRef(idx, ev),
					"transaction_id must be a string value")
			}
			rec.Key = *v.StringValue
		case api.ParamValue:
			if v.DoubleValue != nil {
				rec.Amount = decimal.NewFromFloat(*v.DoubleValue)
				break
			}
			amt, err := decimal.NewFromString(*v.StringValue)
			if err != nil {
				return api.SourceRecord{}, recerrors.NewMalformedRecord(eventRef(idx, ev),
					fmt.Sprintf("unparseable monetary value %q", *v.StringValue))
			}
			rec.Amount = amt
		case api.ParamClickID:
			if v.StringValue != nil {
				rec.AttributionToken = *v.StringValue
			}
		case api.ParamUTMSource:
			if v.StringValue != nil {
				rec.SourceTag = *v.StringValue
			}
		case api.ParamUTMCampaign:
			if v.StringValue != nil {
				rec.Campaign = *v.StringValue
			}
		}
	}

	return rec, nil
}

func eventRef(idx int, ev api.AnalyticsRawEvent) string {
	return fmt.Sprintf("analytics[%d] actor=%s ts=%d", idx, ev.UserPseudoID, ev.EventTimestampMicros)
}
