package payload

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code accepted by the ingestion endpoint.
type Currency string

const (
	USD Currency = "USD"
	VND Currency = "VND"
	EUR Currency = "EUR"
	JPY Currency = "JPY"
)

// Currencies is the set drawn from, uniformly.
var Currencies = []Currency{USD, VND, EUR, JPY}

// Static currency-per-USD multipliers. Not live FX.
var ratesPerUSD = map[Currency]decimal.Decimal{
	USD: decimal.NewFromInt(1),
	VND: decimal.NewFromInt(24000),
	EUR: decimal.RequireFromString("0.92"),
	JPY: decimal.NewFromInt(150),
}

// RatePerUSD returns the multiplier for c; unknown codes convert 1:1.
func RatePerUSD(c Currency) decimal.Decimal {
	if r, ok := ratesPerUSD[c]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// Convert turns a USD amount into whole units of c, rounding half away from zero.
func Convert(usd float64, c Currency) int64 {
	return decimal.NewFromFloat(usd).Mul(RatePerUSD(c)).Round(0).IntPart()
}

// Tier is one band of the piecewise amount distribution, in USD.
type Tier struct {
	Weight float64
	Min    float64
	Max    float64
}

// AmountTiers is sampled by weight, then uniformly in [Min, Max).
var AmountTiers = []Tier{
	{Weight: 0.3, Min: 1, Max: 20},
	{Weight: 0.4, Min: 20, Max: 300},
	{Weight: 0.3, Min: 300, Max: 2000},
}

// PickTier maps a uniform draw in [0,1) onto a tier index.
func PickTier(u float64) int {
	acc := 0.0
	for i, t := range AmountTiers {
		acc += t.Weight
		if u < acc {
			return i
		}
	}
	return len(AmountTiers) - 1
}

// PickAmountUSD draws a base USD amount and reports which tier produced it.
func PickAmountUSD(rng *rand.Rand) (usd float64, tier int) {
	tier = PickTier(rng.Float64())
	t := AmountTiers[tier]
	return t.Min + rng.Float64()*(t.Max-t.Min), tier
}

// PickCurrency draws uniformly from Currencies.
func PickCurrency(rng *rand.Rand) Currency {
	return Currencies[rng.Intn(len(Currencies))]
}
