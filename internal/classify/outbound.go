package classify

import (
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

func (c *Classifier) outbound(loc models.Location, rec *models.CallRecord) (Decision, error) {
	calling, _ := numbers.Clean(rec.CallingNumber, nil, false)
	p, ok := c.resolveOrigin(loc, rec, calling, true)
	rec.Extension = calling
	attribute(rec, p, ok)

	number := strings.TrimSpace(rec.EffectiveDestination)
	if number == "" {
		return Decision{}, models.Quarantine(models.QuarantineInvalidRecord, StepOutbound, "outbound call without destination")
	}

	rules := c.ref.PbxRules(loc.ID)
	transforms := c.ref.Transforms(loc.ID)

	var hint int64
	for hop := 0; ; hop++ {
		if t, h, ok := numbers.ApplyTransforms(number, transforms, models.RuleOutbound); ok {
			number = t
			if h != 0 {
				hint = h
			}
		}

		cleaned, _ := numbers.Clean(number, loc.PbxPrefixes, false)
		if svc, ok := c.ref.SpecialService(cleaned, loc.IndicatorID, loc.CountryID); ok {
			c.special(loc, rec, cleaned, svc)
			return Decision{Path: PathSpecialService, Number: cleaned, Special: svc}, nil
		}

		if hop >= c.maxHops {
			break
		}
		rewritten, changed := numbers.ApplyPbxRules(number, rules, models.RuleOutbound)
		if !changed {
			break
		}
		c.logger.Debug("pbx outbound rewrite", "record_id", rec.ID, "from", number, "to", rewritten, "hop", hop+1)
		number = rewritten
	}

	rec.Dial, _ = numbers.Clean(number, loc.PbxPrefixes, false)
	return Decision{Path: PathOutbound, Number: number, TypeHint: hint}, nil
}

func (c *Classifier) special(loc models.Location, rec *models.CallRecord, dialed string, svc models.SpecialService) {
	indicatorID := svc.IndicatorID
	if indicatorID == 0 {
		indicatorID = loc.IndicatorID
	}
	rec.Dial = dialed
	rec.TelephonyTypeID = models.TypeSpecialServices
	rec.TelephonyTypeName = c.ref.TypeName(models.TypeSpecialServices)
	rec.IndicatorID = indicatorID
	rec.OperatorID = 0
	rec.OperatorName = ""
	rec.DestinationDescription = svc.Description
}
