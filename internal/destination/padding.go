package destination

import (
	"strconv"
	"strings"
)

// PadSeries turns a series' stored bounds into two strings of exactly length
// digits that can be compared against a subscriber part of that length.
//
// The stored bounds are first brought to the same width: the lower bound is
// zero-filled on the left and the upper bound nine-filled on the right. A
// longer subscriber part extends the lower bound with '0' and the upper bound
// with '9'; a shorter one keeps only the leading digits of both. A zero
// length never matches.
func PadSeries(initial, final int64, length int) (lower, upper string, ok bool) {
	if length <= 0 {
		return "", "", false
	}
	if initial < 0 {
		initial = 0
	}
	if final < 0 {
		final = 0
	}

	lower = strconv.FormatInt(initial, 10)
	upper = strconv.FormatInt(final, 10)

	width := max(len(lower), len(upper))
	lower = leftPad(lower, width, '0')
	upper = rightPad(upper, width, '9')
	if upper < lower {
		upper = lower
	}

	// Bounds are the leading digits of the subscriber part.
	switch {
	case length > width:
		lower = rightPad(lower, length, '0')
		upper = rightPad(upper, length, '9')
	case length < width:
		lower = lower[:length]
		upper = upper[:length]
	}
	return lower, upper, true
}

func leftPad(s string, width int, c byte) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(string(c), width-len(s)) + s
}

func rightPad(s string, width int, c byte) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(string(c), width-len(s))
}
