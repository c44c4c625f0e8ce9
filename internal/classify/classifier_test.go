package classify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"booking-recon/pkg/api"
)

func matchedRow(leftToken, rightToken string) api.ReconciledRow {
	return api.ReconciledRow{
		Key:         "BK1",
		MatchStatus: api.MatchStatusMatched,
		Analytics:   &api.SourceRecord{Key: "BK1", AttributionToken: leftToken},
		Crm:         &api.SourceRecord{Key: "BK1", AttributionToken: rightToken},
	}
}

func TestClassify_AttributionStatus(t *testing.T) {
	cases := []struct {
		name string
		row  api.ReconciledRow
		want api.AttributionStatus
	}{
		{"equal tokens", matchedRow("g1", "g1"), api.AttributionTokenMatched},
		{"unequal tokens", matchedRow("t1", "t2"), api.AttributionTokenMismatch},
		{"analytics only token", matchedRow("g1", ""), api.AttributionTokenAnalyticsOnly},
		{"crm only token", matchedRow("", "g1"), api.AttributionTokenCrmOnly},
		{"no tokens", matchedRow("", ""), api.AttributionNoToken},
		{
			"one-sided row degenerates",
			api.ReconciledRow{
				MatchStatus: api.MatchStatusAnalyticsOnly,
				Analytics:   &api.SourceRecord{AttributionToken: "g1"},
			},
			api.AttributionTokenAnalyticsOnly,
		},
		{
			"one-sided row without token",
			api.ReconciledRow{
				MatchStatus: api.MatchStatusCrmOnly,
				Crm:         &api.SourceRecord{},
			},
			api.AttributionNoToken,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.row, Options{})
			require.Equal(t, tc.want, got.AttributionStatus)
		})
	}
}

func TestClassify_TimeSkew(t *testing.T) {
	leftAt := time.Date(2025, 10, 10, 10, 0, 0, 0, time.UTC)

	t.Run("crm minus analytics", func(t *testing.T) {
		row := matchedRow("", "")
		row.Analytics.OccurredAt = leftAt
		row.Crm.OccurredAt = leftAt.Add(7 * time.Minute)

		got := Classify(row, Options{})
		require.NotNil(t, got.TimeSkewMinutes)
		require.EqualValues(t, 7, *got.TimeSkewMinutes)
	})

	t.Run("may be negative", func(t *testing.T) {
		row := matchedRow("", "")
		row.Analytics.OccurredAt = leftAt
		row.Crm.OccurredAt = leftAt.Add(-12 * time.Minute)

		got := Classify(row, Options{})
		require.EqualValues(t, -12, *got.TimeSkewMinutes)
	})

	t.Run("absent when a timestamp is missing", func(t *testing.T) {
		row := matchedRow("", "")
		row.Analytics.OccurredAt = leftAt

		got := Classify(row, Options{})
		require.Nil(t, got.TimeSkewMinutes)
	})
}

func TestClassify_AnalyticsOnlyLikelyReason(t *testing.T) {
	base := func(amount int64, synthetic bool) api.ReconciledRow {
		return api.ReconciledRow{
			MatchStatus: api.MatchStatusAnalyticsOnly,
			Analytics: &api.SourceRecord{
				Amount:          decimal.NewFromInt(amount),
				IsSyntheticTest: synthetic,
			},
		}
	}

	t.Run("synthetic traffic", func(t *testing.T) {
		got := Classify(base(500, true), Options{})
		require.Equal(t, api.ReasonTestBooking, got.LikelyReason)
	})

	t.Run("below default threshold", func(t *testing.T) {
		got := Classify(base(50, false), Options{})
		require.Equal(t, api.ReasonLowValue, got.LikelyReason)
	})

	t.Run("otherwise unexplained", func(t *testing.T) {
		got := Classify(base(500, false), Options{})
		require.Equal(t, api.ReasonUnexplained, got.LikelyReason)
	})

	t.Run("custom threshold", func(t *testing.T) {
		got := Classify(base(500, false), Options{LowValueThreshold: decimal.NewFromInt(600)})
		require.Equal(t, api.ReasonLowValue, got.LikelyReason)
	})
}

func TestClassify_CrmOnlyChannel(t *testing.T) {
	row := api.ReconciledRow{
		MatchStatus: api.MatchStatusCrmOnly,
		Crm:         &api.SourceRecord{SourceTag: "phone"},
	}
	got := Classify(row, Options{})
	require.Equal(t, "phone", got.Channel)

	row.Crm.SourceTag = ""
	got = Classify(row, Options{})
	require.Equal(t, api.ChannelUnknown, got.Channel)
}

func TestClassify_MatchedRowsCarryNoSecondaryLabel(t *testing.T) {
	got := Classify(matchedRow("g1", "g1"), Options{})
	require.Empty(t, got.LikelyReason)
	require.Empty(t, got.Channel)
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	row := matchedRow("g1", "g1")
	_ = Classify(row, Options{})
	require.Empty(t, row.AttributionStatus)
	require.Nil(t, row.TimeSkewMinutes)
}
