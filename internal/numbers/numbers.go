// Package numbers normalizes dialed and calling numbers: PBX access-code
// stripping, digit cleanup, extension recognition and party swaps.
package numbers

import (
	"strconv"
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// Clean strips the longest matching PBX access prefix from raw, then a single
// leading "+", then everything from the first non-digit after the first
// character. The first character is kept verbatim.
//
// When prefixes are supplied but none matches and keepOriginal is set, the
// trimmed raw value is returned unchanged so callers can inspect it.
func Clean(raw string, prefixes []string, keepOriginal bool) (string, bool) {
	number := strings.TrimSpace(raw)
	if number == "" {
		return "", false
	}

	stripped := false
	if len(prefixes) > 0 {
		longest := 0
		for _, p := range prefixes {
			p = strings.TrimSpace(p)
			if p != "" && len(p) > longest && strings.HasPrefix(number, p) {
				longest = len(p)
			}
		}
		if longest > 0 {
			number = number[longest:]
			stripped = true
		} else if keepOriginal {
			return number, false
		}
	}

	number = strings.TrimPrefix(number, "+")
	if number == "" {
		return "", stripped
	}

	end := 1
	for end < len(number) && isDigit(number[end]) {
		end++
	}
	return number[:end], stripped
}

// IsPossibleExtension reports whether number looks like an extension under
// the given limits.
func IsPossibleExtension(number string, limits models.ExtensionLimits) bool {
	n := strings.TrimPrefix(strings.TrimSpace(number), "+")
	if n == "" {
		return false
	}
	if limits.Specials[n] {
		return true
	}
	if !IsDigits(n) {
		return false
	}
	if n[0] == '0' && n != "0" {
		return false
	}
	v, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return false
	}
	return v >= limits.Min && v <= limits.Max
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// SwapFull exchanges calling and called parties including partitions and,
// when swapTrunks is set, the origin and destination devices.
func SwapFull(rec *models.CallRecord, swapTrunks bool) {
	dest, destPartition := rec.CalledNumber, rec.CalledPartition
	if rec.FinalCalledNumber != "" {
		dest, destPartition = rec.FinalCalledNumber, rec.FinalCalledPartition
	}

	rec.CalledNumber, rec.CalledPartition = rec.CallingNumber, rec.CallingPartition
	rec.FinalCalledNumber, rec.FinalCalledPartition = rec.CallingNumber, rec.CallingPartition
	rec.CallingNumber, rec.CallingPartition = dest, destPartition

	if swapTrunks {
		rec.OriginDevice, rec.DestinationDevice = rec.DestinationDevice, rec.OriginDevice
	}
	rec.RefreshDerived()
}

// SwapPartyNumbersOnly exchanges the calling and effective destination
// numbers, leaving partitions and devices alone.
func SwapPartyNumbersOnly(rec *models.CallRecord) {
	dest := rec.EffectiveDestination
	if dest == "" {
		dest = rec.CalledNumber
	}
	calling := rec.CallingNumber
	rec.CallingNumber = dest
	if rec.FinalCalledNumber != "" {
		rec.FinalCalledNumber = calling
	} else {
		rec.CalledNumber = calling
	}
	rec.RefreshDerived()
}
