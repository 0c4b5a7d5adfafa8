package tariff

import (
	"github.com/shopspring/decimal"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// billedDecimals is the precision of billed amounts.
const billedDecimals = 4

var (
	sixty   = decimal.NewFromInt(60)
	hundred = decimal.NewFromInt(100)
)

// Bill computes the amount of a call of duration seconds at pricePerMinute.
// Per-second billing charges pricePerMinute/60 per second; otherwise every
// started minute is charged. The VAT gross-up applies unless the rate
// already includes VAT. The result is rounded half-up to four decimals.
func Bill(pricePerMinute decimal.Decimal, vatIncluded bool, vatRate decimal.Decimal, perSecond bool, duration int) decimal.Decimal {
	if duration <= 0 || pricePerMinute.IsZero() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	if perSecond {
		amount = pricePerMinute.Mul(decimal.NewFromInt(int64(duration))).Div(sixty)
	} else {
		minutes := (int64(duration) + 59) / 60
		amount = pricePerMinute.Mul(decimal.NewFromInt(minutes))
	}

	if !vatIncluded && !vatRate.IsZero() {
		amount = amount.Mul(decimal.NewFromInt(1).Add(vatRate.Div(hundred)))
	}
	return amount.Round(billedDecimals)
}

// WithoutVAT returns the VAT-exclusive part of value.
func WithoutVAT(value decimal.Decimal, vatIncluded bool, vatRate decimal.Decimal) decimal.Decimal {
	if !vatIncluded || vatRate.IsZero() {
		return value
	}
	return value.Div(decimal.NewFromInt(1).Add(vatRate.Div(hundred)))
}

// applyBilling writes the price fields of rec and computes its amount.
func applyBilling(rec *models.CallRecord, p pricing) {
	rec.PricePerMinute = p.current.Value
	rec.InitialPricePerMinute = p.initial()
	rec.VATIncluded = p.current.VATIncluded
	rec.VATRate = p.current.VATRate
	rec.ChargeBySecond = p.perSecond
	rec.BilledAmount = Bill(p.current.Value, p.current.VATIncluded, p.current.VATRate, p.perSecond, rec.Duration)
}

// pricing tracks a rate through its override layers.
type pricing struct {
	current    models.TariffValue
	first      decimal.Decimal
	overridden bool
	perSecond  bool
}

func newPricing(base models.TariffValue) pricing {
	return pricing{current: base}
}

// set replaces the current rate, remembering the value it had before the
// first change.
func (p *pricing) set(value decimal.Decimal, vatIncluded bool) {
	if !p.overridden && !value.Equal(p.current.Value) {
		p.first = p.current.Value
		p.overridden = true
	}
	p.current.Value = value
	p.current.VATIncluded = vatIncluded
}

func (p *pricing) initial() decimal.Decimal {
	if p.overridden {
		return p.first
	}
	return p.current.Value
}
