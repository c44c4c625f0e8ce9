package fixtures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"booking-recon/internal/aggregate"
	"booking-recon/internal/classify"
	"booking-recon/internal/match"
	"booking-recon/internal/normalize"
	"booking-recon/pkg/api"
)

func TestGenerate_Deterministic(t *testing.T) {
	first := NewGenerator(Config{Seed: 42}).Generate()
	second := NewGenerator(Config{Seed: 42}).Generate()
	require.Equal(t, first, second)

	other := NewGenerator(Config{Seed: 43}).Generate()
	require.NotEqual(t, first.Analytics, other.Analytics)
}

func TestGenerate_InjectedDiscrepancies(t *testing.T) {
	ds := NewGenerator(Config{Seed: 42}).Generate()

	require.Equal(t, DefaultBookings, ds.BaseBookings)

	// capture loss keeps both exports strictly below the base population
	require.Less(t, len(ds.Analytics), ds.BaseBookings+DefaultTestBookings)
	require.Greater(t, len(ds.Analytics), ds.BaseBookings/2)
	require.Less(t, len(ds.Crm), ds.BaseBookings+DefaultPhoneBookings)
	require.Greater(t, len(ds.Crm), ds.BaseBookings/2)

	synthetic := 0
	for _, ev := range ds.Analytics {
		if ev.UserPseudoID == api.SyntheticActorID {
			synthetic++
		}
	}
	require.Equal(t, DefaultTestBookings, synthetic)

	phone := 0
	for _, op := range ds.Crm {
		require.NotEqual(t, "", op.ConfirmationNumber)
		if op.BookingSource == "phone" {
			phone++
		}
	}
	require.Equal(t, DefaultPhoneBookings, phone)
}

func TestGenerate_SmallConfig(t *testing.T) {
	ds := NewGenerator(Config{Seed: 7, Bookings: 20, TestBookings: 2, PhoneBookings: 3}).Generate()
	require.Equal(t, 20, ds.BaseBookings)
	require.LessOrEqual(t, len(ds.Analytics), 22)
	require.LessOrEqual(t, len(ds.Crm), 23)
}

// The generated dataset must flow through the whole engine and surface
// every discrepancy class it injects.
func TestGenerate_EndToEnd(t *testing.T) {
	ds := NewGenerator(Config{Seed: 42}).Generate()

	normalized, err := normalize.Normalize(ds.Analytics, ds.Crm, normalize.Options{})
	require.NoError(t, err)
	require.Equal(t, DefaultTestBookings, normalized.Quality.SyntheticTests)
	require.Empty(t, normalized.Quality.Malformed)

	rows, err := match.Match(normalized.Analytics, normalized.Crm)
	require.NoError(t, err)

	classified := classify.ClassifyAll(rows, classify.Options{})
	summary, err := aggregate.Aggregate(classified, aggregate.Options{})
	require.NoError(t, err)

	statuses := make(map[api.MatchStatus]int)
	for _, sc := range summary.StatusDistribution {
		statuses[sc.Status] = sc.Count
	}
	require.Greater(t, statuses[api.MatchStatusMatched], 0)
	require.Greater(t, statuses[api.MatchStatusAnalyticsOnly], 0)
	require.Greater(t, statuses[api.MatchStatusCrmOnly], 0)

	reasons := make(map[api.LikelyReason]int)
	for _, rc := range summary.AnalyticsOnlyReasons {
		reasons[rc.Reason] = rc.Count
	}
	require.Greater(t, reasons[api.ReasonTestBooking], 0)

	channels := make(map[string]int)
	for _, cc := range summary.CrmOnlyChannels {
		channels[cc.Channel] = cc.Count
	}
	require.Greater(t, channels["phone"], 0)

	require.True(t, summary.Revenue.Defined)
}
