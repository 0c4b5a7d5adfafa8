package classify

import (
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

func (c *Classifier) internal(loc models.Location, rec *models.CallRecord, originalDirection models.CallDirection) (Decision, error) {
	calling, _ := numbers.Clean(rec.CallingNumber, nil, false)
	dest := c.internalDestination(loc, rec)
	if dest == "" {
		return Decision{}, models.Quarantine(models.QuarantineInvalidRecord, StepInternal, "internal call without destination")
	}
	if calling == dest {
		return Decision{}, models.Quarantine(models.QuarantineSelfCall, StepInternal, "internal self-call")
	}

	origin, originOK := c.resolveOrigin(loc, rec, calling, false)
	target, targetOK := c.resolveExtension(loc, dest, rec.StartTime, false)

	originForeign := originOK && origin.employee.LocationID != loc.ID
	targetForeign := targetOK && target.employee.LocationID != loc.ID
	if loc.IgnoreForeignBoth && originForeign && targetForeign {
		return Decision{}, models.Quarantine(models.QuarantineIgnoredCall, StepInternal, "both extensions belong to other locations")
	}
	if loc.IgnoreForeignDestination && targetForeign {
		return Decision{}, models.Quarantine(models.QuarantineIgnoredCall, StepInternal, "destination extension belongs to another location")
	}

	typeID := c.internalType(loc, origin, originOK, target, targetOK, dest)

	if !originOK && targetOK && !targetForeign && originalDirection == models.DirectionOutbound {
		// Only the destination is ours: the call is read from its side.
		rec.Direction = models.DirectionInbound
		rec.Extension = dest
		rec.Dial = calling
		attribute(rec, target, true)
		rec.DestinationEmployeeID = 0
	} else {
		rec.Extension = calling
		rec.Dial = dest
		attribute(rec, origin, originOK)
		rec.DestinationEmployeeID = 0
		if targetOK {
			rec.DestinationEmployeeID = target.employee.ID
		}
	}

	destLoc := loc
	if targetOK {
		if l, ok := c.ref.Location(target.employee.LocationID); ok {
			destLoc = l
		}
	}
	rec.TelephonyTypeID = typeID
	rec.TelephonyTypeName = c.ref.TypeName(typeID)
	rec.IndicatorID = destLoc.IndicatorID
	rec.OperatorID = 0
	rec.OperatorName = ""
	rec.DestinationDescription = destLoc.Name
	if rec.DestinationDescription == "" {
		rec.DestinationDescription = c.describeIndicator(destLoc.IndicatorID)
	}

	return Decision{Path: PathInternal}, nil
}

// internalType compares the locations and subdivisions of both employees.
// Without a destination employee the location's internal prefix table and
// default type decide.
func (c *Classifier) internalType(loc models.Location, origin party, originOK bool, target party, targetOK bool, dest string) int64 {
	if targetOK {
		originLoc := loc
		if originOK {
			if l, ok := c.ref.Location(origin.employee.LocationID); ok {
				originLoc = l
			}
		}
		targetLoc := loc
		if l, ok := c.ref.Location(target.employee.LocationID); ok {
			targetLoc = l
		}

		switch {
		case originLoc.CountryID != targetLoc.CountryID:
			return models.TypeInternationalInternal
		case originLoc.IndicatorID != targetLoc.IndicatorID:
			return models.TypeNationalInternal
		case originOK && origin.employee.SubdivisionID != target.employee.SubdivisionID:
			return models.TypeLocalInternal
		default:
			return models.TypeInternalSimple
		}
	}

	longest := ""
	var typeID int64
	for prefix, t := range loc.InternalPrefixes {
		if len(prefix) > len(longest) && strings.HasPrefix(dest, prefix) {
			longest, typeID = prefix, t
		}
	}
	if typeID != 0 {
		return typeID
	}
	if loc.DefaultInternalType != 0 {
		return loc.DefaultInternalType
	}
	return models.TypeInternalSimple
}
