// Package match joins the two normalized record sets on the business key.
//
// The join is an explicit hash join: each side is bucketed by key and the
// union of key sets is iterated, emitting exactly one row per distinct key.
package match

import (
	"sort"
	"time"

	"booking-recon/pkg/api"
	recerrors "booking-recon/pkg/errors"
)

// Match performs a full outer join of the two sides on the business key.
// When a side holds duplicate records for a key, the earliest record by
// (occurred_at ascending, original input position) wins; the tie-break is
// total and stable so repeated runs produce identical output. Match status
// and derived classifications are populated by the classifier.
func Match(analytics, crm []api.SourceRecord) ([]api.ReconciledRow, error) {
	if analytics == nil {
		return nil, recerrors.NewInvalidInput("match", "nil analytics record sequence")
	}
	if crm == nil {
		return nil, recerrors.NewInvalidInput("match", "nil crm record sequence")
	}

	left := bucket(analytics)
	right := bucket(crm)

	keys := make([]string, 0, len(left)+len(right))
	for k := range left {
		keys = append(keys, k)
	}
	for k := range right {
		if _, ok := left[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	rows := make([]api.ReconciledRow, 0, len(keys))
	for _, k := range keys {
		row := api.ReconciledRow{Key: k}
		if rec, ok := left[k]; ok {
			row.Analytics = rec
		}
		if rec, ok := right[k]; ok {
			row.Crm = rec
		}
		switch {
		case row.Analytics != nil && row.Crm != nil:
			row.MatchStatus = api.MatchStatusMatched
		case row.Analytics != nil:
			row.MatchStatus = api.MatchStatusAnalyticsOnly
		default:
			row.MatchStatus = api.MatchStatusCrmOnly
		}
		row.Date = rowDate(&row)
		rows = append(rows, row)
	}

	return rows, nil
}

// bucket groups records by key and resolves duplicates to the winning
// record. Records with an empty key are unmatchable and skipped; the
// normalizer drops and counts them upstream.
func bucket(recs []api.SourceRecord) map[string]*api.SourceRecord {
	type indexed struct {
		rec *api.SourceRecord
		pos int
	}

	groups := make(map[string][]indexed)
	for i := range recs {
		r := &recs[i]
		if r.Key == "" {
			continue
		}
		groups[r.Key] = append(groups[r.Key], indexed{rec: r, pos: i})
	}

	out := make(map[string]*api.SourceRecord, len(groups))
	for k, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].rec.OccurredAt.Equal(group[j].rec.OccurredAt) {
				return group[i].rec.OccurredAt.Before(group[j].rec.OccurredAt)
			}
			return group[i].pos < group[j].pos
		})
		winner := *group[0].rec // copy so rows never alias caller memory
		out[k] = &winner
	}
	return out
}

// rowDate coalesces the row date from whichever side is present.
func rowDate(row *api.ReconciledRow) time.Time {
	var ts time.Time
	switch {
	case row.Analytics.HasTimestamp():
		ts = row.Analytics.OccurredAt
	case row.Crm.HasTimestamp():
		ts = row.Crm.OccurredAt
	default:
		return time.Time{}
	}
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
