package classify

import (
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

// Vendor markers on conference and transfer legs.
const (
	// joinOnBehalfOfConference marks a conference leg joined by the
	// controller itself; such legs are not inverted.
	joinOnBehalfOfConference = 7
	// terminationOnBehalfOfConference marks a leg torn down to set up a
	// conference.
	terminationOnBehalfOfConference = 10

	maxNormalRedirectReason = 16
)

// IsConference reports whether number is a conference bridge id: the bridge
// prefix (any case) followed by at least one digit.
func IsConference(number, prefix string) bool {
	if prefix == "" || len(number) <= len(prefix) {
		return false
	}
	if !strings.EqualFold(number[:len(prefix)], prefix) {
		return false
	}
	return numbers.IsDigits(number[len(prefix):])
}

// prepareTransfer assigns the transfer cause and rearranges conference legs
// so the rest of classification sees the final parties.
func prepareTransfer(loc models.Location, rec *models.CallRecord) {
	switch {
	case IsConference(rec.EffectiveDestination, loc.ConferencePrefix):
		rec.TransferCause = models.TransferConference
		// The bridge id is replaced by the redirect target on whichever side
		// it ends up.
		if rec.JoinOnBehalfOf != joinOnBehalfOfConference {
			numbers.SwapFull(rec, true)
			if rec.RedirectNumber != "" {
				rec.CallingNumber = rec.RedirectNumber
				rec.CallingPartition = rec.RedirectPartition
			}
		} else if rec.RedirectNumber != "" {
			rec.CalledNumber = rec.RedirectNumber
			rec.CalledPartition = rec.RedirectPartition
			rec.FinalCalledNumber = ""
			rec.FinalCalledPartition = ""
			rec.RefreshDerived()
		}

	case IsConference(rec.RedirectNumber, loc.ConferencePrefix):
		rec.TransferCause = models.TransferConferenceEnd
		numbers.SwapPartyNumbersOnly(rec)

	case rec.RedirectNumber != "" && rec.RedirectNumber != rec.EffectiveDestination:
		switch {
		case rec.RedirectReason >= 1 && rec.RedirectReason <= maxNormalRedirectReason:
			rec.TransferCause = models.TransferNormal
		case rec.TerminationOnBehalfOf == terminationOnBehalfOfConference:
			rec.TransferCause = models.TransferPreConferenceNow
		default:
			rec.TransferCause = models.TransferAuto
		}

	case rec.RedirectNumber == "" && rec.FinalMobileCalledNumber != "" &&
		rec.FinalMobileCalledNumber != rec.EffectiveDestination:
		rec.TransferCause = models.TransferAuto
		rec.FinalCalledNumber = rec.FinalMobileCalledNumber
		rec.FinalCalledPartition = rec.FinalMobileCalledPartition
		rec.RefreshDerived()
	}
}
