package tariff

import (
	"context"
	"fmt"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// PriceInbound bills an inbound call. The receiving side pays nothing.
func (r *Resolver) PriceInbound(rec *models.CallRecord) {
	rec.TrunkID = 0
	applyBilling(rec, newPricing(models.TariffValue{}))
}

// PriceSpecialService bills a call to an emergency or information line at the
// service's fixed value.
func (r *Resolver) PriceSpecialService(rec *models.CallRecord, svc models.SpecialService) {
	applyBilling(rec, newPricing(models.TariffValue{
		Value:       svc.Value,
		VATIncluded: svc.VATIncluded,
		VATRate:     svc.VATRate,
	}))
}

// PriceInternal bills an internal call at the fixed value of the internal
// type's prefix, or at zero when the country has none.
func (r *Resolver) PriceInternal(ctx context.Context, loc models.Location, rec *models.CallRecord) error {
	prefixes, err := r.prefixes.Prefixes(ctx, loc.CountryID)
	if err != nil {
		return fmt.Errorf("loading prefixes: %w", err)
	}

	value := models.TariffValue{}
	for _, p := range prefixes {
		if p.TelephonyTypeID == rec.TelephonyTypeID {
			value = models.TariffValue{Value: p.BaseValue, VATIncluded: p.VATIncluded, VATRate: p.VATRate}
			break
		}
	}
	applyBilling(rec, newPricing(value))
	return nil
}
