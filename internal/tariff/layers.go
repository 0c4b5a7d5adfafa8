package tariff

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// price layers the rate overrides over the prefix's base value and bills
// rec. Each layer replaces the current rate: band, trunk rate, special rate,
// trunk rule.
func (r *Resolver) price(loc models.Location, rec *models.CallRecord, a attempt, trunk *models.Trunk) {
	typeID := a.prefix.TelephonyTypeID
	operatorID := a.match.OperatorID
	if operatorID == 0 {
		operatorID = a.prefix.OperatorID
	}

	p := newPricing(models.TariffValue{
		Value:       a.prefix.BaseValue,
		VATIncluded: a.prefix.VATIncluded,
		VATRate:     a.prefix.VATRate,
	})

	bandID := int64(0)
	if a.prefix.BandCount > 0 {
		band, ok := r.ref.Band(a.match.BandID)
		if !ok || a.match.BandID == 0 {
			band, ok = r.ref.BandFor(a.prefix.ID, a.match.IndicatorID, loc.IndicatorID)
		}
		if ok {
			bandID = band.ID
			p.set(band.Value, band.VATIncluded)
		}
	}

	if trunk != nil {
		if trunk.Celufijo && typeID == models.TypeCellular {
			typeID = models.TypeCelufijo
		}
		if rate, ok := trunkRate(trunk, typeID, operatorID); ok {
			p.set(rate.Value, rate.VATIncluded)
			p.perSecond = rate.SecondsBilling
		}
	}

	if s, ok := matchSpecialRate(r.ref.SpecialRates(), rec.StartTime, loc.IndicatorID, typeID, operatorID, bandID); ok {
		if s.Percentage {
			base := WithoutVAT(p.current.Value, p.current.VATIncluded, p.current.VATRate)
			discount := base.Mul(s.Value).Div(hundred)
			p.set(zeroIfNegative(base.Sub(discount)), false)
		} else {
			p.set(s.Value, s.VATIncluded)
		}
	}

	if trunk != nil {
		if rule, ok := matchTrunkRule(r.ref.TrunkRules(trunk.ID), typeID, a.match.IndicatorID, loc.IndicatorID); ok {
			if rule.NewTelephonyTypeID != 0 {
				typeID = rule.NewTelephonyTypeID
			}
			if rule.NewOperatorID != 0 {
				operatorID = rule.NewOperatorID
			}
			p.set(rule.Value, rule.VATIncluded)
			p.perSecond = rule.SecondsBilling
		}
	}

	rec.TelephonyTypeID = typeID
	rec.TelephonyTypeName = r.ref.TypeName(typeID)
	rec.OperatorID = operatorID
	rec.OperatorName = r.ref.OperatorName(operatorID)
	rec.IndicatorID = a.match.IndicatorID
	rec.DestinationDescription = a.match.Description
	rec.Dial = a.dialed
	applyBilling(rec, p)
}

// trunkRate returns the trunk's rate for the type and operator, falling back
// to the rate that applies to every operator. Celufijo falls back to the
// trunk's cellular rate.
func trunkRate(trunk *models.Trunk, typeID, operatorID int64) (models.TrunkRate, bool) {
	find := func(typeID int64) (models.TrunkRate, bool) {
		var fallback *models.TrunkRate
		for i, rate := range trunk.Rates {
			if rate.TelephonyTypeID != typeID {
				continue
			}
			if rate.OperatorID == operatorID && operatorID != 0 {
				return rate, true
			}
			if rate.OperatorID == 0 && fallback == nil {
				fallback = &trunk.Rates[i]
			}
		}
		if fallback != nil {
			return *fallback, true
		}
		return models.TrunkRate{}, false
	}

	if rate, ok := find(typeID); ok {
		return rate, true
	}
	if typeID == models.TypeCelufijo {
		return find(models.TypeCellular)
	}
	return models.TrunkRate{}, false
}

// matchSpecialRate returns the first special rate in force at ts for the
// call's origin, type, operator and band.
func matchSpecialRate(rates []models.SpecialRate, ts time.Time, originIndicatorID, typeID, operatorID, bandID int64) (models.SpecialRate, bool) {
	for _, s := range rates {
		if s.TelephonyTypeID != typeID {
			continue
		}
		if s.OriginIndicatorID != 0 && s.OriginIndicatorID != originIndicatorID {
			continue
		}
		if s.OperatorID != 0 && s.OperatorID != operatorID {
			continue
		}
		if s.BandID != 0 && s.BandID != bandID {
			continue
		}
		if ts.Before(s.ValidFrom) || (s.ValidTo != nil && ts.After(*s.ValidTo)) {
			continue
		}
		if s.WeekdayMask != 0 && s.WeekdayMask&(1<<uint(ts.Weekday())) == 0 {
			continue
		}
		if s.HourFrom != 0 || s.HourTo != 0 {
			if hour := ts.Hour(); hour < s.HourFrom || hour > s.HourTo {
				continue
			}
		}
		return s, true
	}
	return models.SpecialRate{}, false
}

// matchTrunkRule returns the first rule of the trunk (or of every trunk)
// covering the destination indicator.
func matchTrunkRule(rules []models.TrunkRule, typeID, destinationIndicatorID, originIndicatorID int64) (models.TrunkRule, bool) {
	for _, rule := range rules {
		if rule.TelephonyTypeID != 0 && rule.TelephonyTypeID != typeID {
			continue
		}
		if rule.OriginIndicatorID != 0 && rule.OriginIndicatorID != originIndicatorID {
			continue
		}
		if len(rule.IndicatorIDs) > 0 && !containsID(rule.IndicatorIDs, destinationIndicatorID) {
			continue
		}
		return rule, true
	}
	return models.TrunkRule{}, false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// zeroIfNegative keeps discounts above 100% from producing credits.
func zeroIfNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
