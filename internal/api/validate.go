package api

import (
	"regexp"
	"unicode/utf8"
)

// maxNumberLen is the maximum length for party numbers and auth codes.
const maxNumberLen = 64

// maxPartitionLen is the maximum length for partition and device names.
const maxPartitionLen = 128

// maxIDLen is the maximum length for caller-supplied record ids.
const maxIDLen = 128

// maxDurationSeconds bounds a call's duration (one week).
const maxDurationSeconds = 7 * 24 * 3600

// numberRe accepts printable ASCII. Vendor numbers carry PBX symbols,
// conference markers and SIP-style suffixes, which the engine cleans itself.
var numberRe = regexp.MustCompile(`^[\x20-\x7e]*$`)

// validateStringLen checks that a string does not exceed maxLen characters.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateNumber checks a party number's length and character set. Empty is
// allowed.
func validateNumber(field, value string) string {
	if msg := validateStringLen(field, value, maxNumberLen); msg != "" {
		return msg
	}
	if !numberRe.MatchString(value) {
		return field + " contains invalid characters"
	}
	return ""
}

// validateRange checks that n lies in [lo, hi].
func validateRange(field string, n, lo, hi int) string {
	if n < lo || n > hi {
		return field + " is out of range"
	}
	return ""
}

// firstError returns the first non-empty message.
func firstError(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}
