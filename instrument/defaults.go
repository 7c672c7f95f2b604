package instrument

import "time"

const (
	BankNifty  = "BANK_NIFTY"
	GoldMini   = "GOLD_MINI"
	SilverMini = "SILVER_MINI"
)

// ist is the exchange clock; lot-size circulars take effect at the start of
// the trading day in India.
var ist = time.FixedZone("IST", 5*60*60+30*60)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ist)
}

// BankNiftyDefaultLotSize answers dates older than the first revision.
const BankNiftyDefaultLotSize = 100

// bankNiftyTimeline lists index-futures lot-size revisions, newest first.
var bankNiftyTimeline = []LotSizeStep{
	{EffectiveFrom: day(2025, time.April, 25), LotSize: 35},
	{EffectiveFrom: day(2024, time.November, 20), LotSize: 30},
	{EffectiveFrom: day(2023, time.July, 1), LotSize: 15},
	{EffectiveFrom: day(2020, time.May, 4), LotSize: 25},
	{EffectiveFrom: day(2018, time.October, 26), LotSize: 20},
	{EffectiveFrom: day(2016, time.April, 29), LotSize: 40},
	{EffectiveFrom: day(2015, time.August, 28), LotSize: 30},
	{EffectiveFrom: day(2013, time.January, 25), LotSize: 25},
	{EffectiveFrom: day(2010, time.February, 26), LotSize: 50},
	{EffectiveFrom: day(2007, time.September, 28), LotSize: 75},
}

// Defaults returns the instruments the system trades out of the box.
func Defaults() []Config {
	return []Config{
		{
			ID:                  BankNifty,
			PointValuePerUnit:   1,
			MarginPerLot:        270_000,
			Timeline:            append([]LotSizeStep(nil), bankNiftyTimeline...),
			DefaultLotSize:      BankNiftyDefaultLotSize,
			ATRPyramidThreshold: 0.75,
		},
		{
			// quoted per 10 g, 100 g lot
			ID:                  GoldMini,
			LotSize:             100,
			PointValuePerUnit:   0.1,
			MarginPerLot:        105_000,
			ATRPyramidThreshold: 0.5,
		},
		{
			// quoted per kg, 5 kg lot
			ID:                  SilverMini,
			LotSize:             5,
			PointValuePerUnit:   1,
			MarginPerLot:        110_000,
			ATRPyramidThreshold: 0.5,
		},
	}
}

// DefaultRegistry is NewRegistry(Defaults()...). The defaults are static and
// valid, so it cannot fail.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults()...)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseEffectiveDate reads a circular's effective date. Bare dates are taken
// at the start of the IST trading day; RFC 3339 timestamps keep their zone.
func ParseEffectiveDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, ist); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
