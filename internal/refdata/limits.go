package refdata

import (
	"math"
	"strconv"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

// Digit counts used when a location has no extension population yet.
const (
	defaultMinExtensionDigits = 3
	defaultMaxExtensionDigits = 5
	// maxExtensionDigits keeps the derived numeric bounds inside int64.
	maxExtensionDigits = 18
)

// DeriveLimits computes what a possible extension looks like from the
// employees and extension ranges of one location. Numeric, non-zero-leading
// extensions widen the digit-count window; anything else becomes a special
// literal extension.
func DeriveLimits(employees []models.Employee, ranges []models.ExtensionRange) models.ExtensionLimits {
	minDigits, maxDigits := math.MaxInt, 0
	specials := make(map[string]bool)

	widen := func(n int) {
		if n > maxExtensionDigits {
			return
		}
		if n < minDigits {
			minDigits = n
		}
		if n > maxDigits {
			maxDigits = n
		}
	}

	for _, e := range employees {
		ext := e.Extension
		if ext == "" {
			continue
		}
		if numbers.IsDigits(ext) && ext[0] != '0' {
			widen(len(ext))
			continue
		}
		specials[ext] = true
	}
	for _, r := range ranges {
		if r.From > 0 {
			widen(len(strconv.FormatInt(r.From, 10)))
		}
		if r.To > 0 {
			widen(len(strconv.FormatInt(r.To, 10)))
		}
	}

	if maxDigits == 0 {
		minDigits, maxDigits = defaultMinExtensionDigits, defaultMaxExtensionDigits
	}
	return LimitsFromDigits(minDigits, maxDigits, specials)
}

// LimitsFromDigits turns digit counts into numeric bounds: a minimum of 3
// digits becomes 100, a maximum of 4 digits becomes 9999.
func LimitsFromDigits(minDigits, maxDigits int, specials map[string]bool) models.ExtensionLimits {
	if specials == nil {
		specials = map[string]bool{}
	}
	return models.ExtensionLimits{
		Min:       pow10(minDigits - 1),
		Max:       pow10(maxDigits) - 1,
		MaxLength: maxDigits,
		Specials:  specials,
	}
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
