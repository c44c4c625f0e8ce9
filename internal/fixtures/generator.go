// Package fixtures produces synthetic source datasets with known injected
// discrepancy patterns: capture loss on both sides, attribution-token decay,
// quick cancellations, internal test traffic, and offline phone bookings.
package fixtures

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"booking-recon/pkg/api"
)

// Default generation parameters, chosen to reproduce the discrepancy rates
// observed in production.
const (
	DefaultBookings      = 500
	DefaultTestBookings  = 10
	DefaultPhoneBookings = 30

	analyticsCaptureRate = 0.95 // share of bookings that reach the analytics export
	analyticsTokenRate   = 0.90 // share of click tokens that survive into analytics
	quickCancelRate      = 0.10 // bookings cancelled before reaching the CRM
	crmCaptureRate       = 0.92 // share of surviving bookings that reach the CRM
	crmTokenRate         = 0.85 // share of click tokens that survive into the CRM
)

var (
	hotels = []string{
		"Grand Plaza Hotel NYC",
		"Sunset Resort Miami",
		"Mountain View Lodge Denver",
		"Coastal Inn San Diego",
	}
	utmSources   = []string{"google", "facebook", "instagram", "email", "direct", ""}
	utmCampaigns = []string{"summer_sale", "last_minute", "premium_rooms", "family_package", ""}
	crmStages    = []string{"Booked", "Confirmed", "Confirmed", "Confirmed"}
)

// Config controls dataset generation. Zero values take defaults.
type Config struct {
	Seed          int64
	Bookings      int
	TestBookings  int
	PhoneBookings int
	Start         time.Time
	End           time.Time
}

func (c Config) withDefaults() Config {
	if c.Bookings == 0 {
		c.Bookings = DefaultBookings
	}
	if c.TestBookings == 0 {
		c.TestBookings = DefaultTestBookings
	}
	if c.PhoneBookings == 0 {
		c.PhoneBookings = DefaultPhoneBookings
	}
	if c.Start.IsZero() {
		c.Start = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	}
	if c.End.IsZero() {
		c.End = time.Date(2025, 10, 24, 0, 0, 0, 0, time.UTC)
	}
	return c
}

// Dataset holds both raw source record sets.
type Dataset struct {
	Analytics    []api.AnalyticsRawEvent
	Crm          []api.CrmRawOpportunity
	BaseBookings int
}

// booking is one ground-truth transaction both sources derive from.
type booking struct {
	txID      string
	at        time.Time
	userID    string
	hotel     string
	nights    int
	checkIn   time.Time
	checkOut  time.Time
	value     decimal.Decimal
	utmSource string
	campaign  string
	clickID   string
}

// Generator produces datasets deterministically for a given seed.
type Generator struct {
	rng *rand.Rand
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{rng: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}
}

// Generate produces the two raw record sets with injected discrepancies.
func (g *Generator) Generate() *Dataset {
	base := make([]booking, 0, g.cfg.Bookings)
	for i := 0; i < g.cfg.Bookings; i++ {
		base = append(base, g.newBooking())
	}

	ds := &Dataset{BaseBookings: len(base)}

	for _, b := range base {
		if g.rng.Float64() < analyticsCaptureRate {
			ds.Analytics = append(ds.Analytics, g.analyticsEvent(b))
		}
	}
	for i := 0; i < g.cfg.TestBookings; i++ {
		ds.Analytics = append(ds.Analytics, g.testEvent())
	}

	for _, b := range base {
		if g.rng.Float64() < quickCancelRate {
			continue
		}
		if g.rng.Float64() < crmCaptureRate {
			ds.Crm = append(ds.Crm, g.opportunity(b))
		}
	}
	for i := 0; i < g.cfg.PhoneBookings; i++ {
		ds.Crm = append(ds.Crm, g.phoneOpportunity())
	}

	return ds
}

func (g *Generator) newBooking() booking {
	at := g.randomTime()
	nights := 1 + g.rng.Intn(7)
	checkIn := at.AddDate(0, 0, 7+g.rng.Intn(54))
	rate := 150 + g.rng.Intn(351)

	source := utmSources[g.rng.Intn(len(utmSources))]
	var campaign, clickID string
	if source != "" {
		campaign = utmCampaigns[g.rng.Intn(len(utmCampaigns))]
		if source == "google" {
			clickID = g.clickToken()
		}
	}

	return booking{
		txID:      g.transactionID(),
		at:        at,
		userID:    fmt.Sprintf("user_%d", 1000+g.rng.Intn(9000)),
		hotel:     hotels[g.rng.Intn(len(hotels))],
		nights:    nights,
		checkIn:   checkIn,
		checkOut:  checkIn.AddDate(0, 0, nights),
		value:     decimal.NewFromInt(int64(rate * nights)),
		utmSource: source,
		campaign:  campaign,
		clickID:   clickID,
	}
}

func (g *Generator) analyticsEvent(b booking) api.AnalyticsRawEvent {
	params := []api.EventParam{
		stringParam(api.ParamTransactionID, b.txID),
		doubleParam(api.ParamValue, b.value.InexactFloat64()),
	}
	if b.clickID != "" && g.rng.Float64() < analyticsTokenRate {
		params = append(params, stringParam(api.ParamClickID, b.clickID))
	}
	if b.utmSource != "" {
		params = append(params, stringParam(api.ParamUTMSource, b.utmSource))
	}
	if b.campaign != "" {
		params = append(params, stringParam(api.ParamUTMCampaign, b.campaign))
	}

	return api.AnalyticsRawEvent{
		EventDate:            b.at.Format("20060102"),
		EventTimestampMicros: b.at.UnixMicro(),
		EventName:            "purchase",
		UserPseudoID:         b.userID,
		EventParams:          params,
	}
}

func (g *Generator) testEvent() api.AnalyticsRawEvent {
	at := g.randomTime()
	return api.AnalyticsRawEvent{
		EventDate:            at.Format("20060102"),
		EventTimestampMicros: at.UnixMicro(),
		EventName:            "purchase",
		UserPseudoID:         api.SyntheticActorID,
		EventParams: []api.EventParam{
			stringParam(api.ParamTransactionID, fmt.Sprintf("TEST%d", 1000+g.rng.Intn(9000))),
			doubleParam(api.ParamValue, 99.99),
		},
	}
}

func (g *Generator) opportunity(b booking) api.CrmRawOpportunity {
	// CRM records the opportunity 5-15 minutes after the booking.
	created := b.at.Add(time.Duration(5+g.rng.Intn(11)) * time.Minute)

	clickID := ""
	if b.clickID != "" && g.rng.Float64() < crmTokenRate {
		clickID = b.clickID
	}
	source := b.utmSource
	if source == "" {
		source = "direct"
	}

	return api.CrmRawOpportunity{
		OpportunityID:      g.uuid(),
		ConfirmationNumber: b.txID,
		CreatedDate:        created,
		PropertyName:       b.hotel,
		CheckInDate:        b.checkIn,
		CheckOutDate:       b.checkOut,
		Nights:             b.nights,
		Amount:             b.value,
		StageName:          crmStages[g.rng.Intn(len(crmStages))],
		BookingSource:      source,
		ClickID:            clickID,
		UTMSource:          b.utmSource,
		UTMCampaign:        b.campaign,
	}
}

func (g *Generator) phoneOpportunity() api.CrmRawOpportunity {
	at := g.randomTime()
	nights := 1 + g.rng.Intn(5)
	checkIn := at.AddDate(0, 0, 7+g.rng.Intn(24))

	return api.CrmRawOpportunity{
		OpportunityID:      g.uuid(),
		ConfirmationNumber: g.transactionID(),
		CreatedDate:        at,
		PropertyName:       hotels[g.rng.Intn(len(hotels))],
		CheckInDate:        checkIn,
		CheckOutDate:       checkIn.AddDate(0, 0, nights),
		Nights:             nights,
		Amount:             decimal.NewFromInt(int64(300 + g.rng.Intn(1201))),
		StageName:          "Confirmed",
		BookingSource:      "phone",
	}
}

func (g *Generator) randomTime() time.Time {
	window := int(g.cfg.End.Sub(g.cfg.Start) / (24 * time.Hour))
	day := g.rng.Intn(window + 1)
	secs := g.rng.Intn(86400)
	return g.cfg.Start.AddDate(0, 0, day).Add(time.Duration(secs) * time.Second)
}

func (g *Generator) clickToken() string {
	return fmt.Sprintf("Cj0KCQjw%dQAvD_BwE", 1000+g.rng.Intn(9000))
}

func (g *Generator) transactionID() string {
	return fmt.Sprintf("BK%d", 100000+g.rng.Intn(900000))
}

// uuid derives opportunity ids from the seeded stream so datasets are
// reproducible byte for byte.
func (g *Generator) uuid() uuid.UUID {
	var b [16]byte
	g.rng.Read(b[:])
	id, _ := uuid.FromBytes(b[:])
	return id
}

func stringParam(key, val string) api.EventParam {
	return api.EventParam{Key: key, Value: api.ParamValueVariant{StringValue: &val}}
}

func doubleParam(key string, val float64) api.EventParam {
	return api.EventParam{Key: key, Value: api.ParamValueVariant{DoubleValue: &val}}
}
