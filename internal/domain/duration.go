package domain

import (
	"strconv"
	"strings"
)

// ParseISODuration converts an ISO-8601 duration such as "PT1H2M10S" into
// whole seconds. Missing components count as zero. It returns false for an
// empty or unparseable token so callers can distinguish "absent" from zero.
//
// Day designators ("P1DT2H") are accepted because the provider emits them for
// long live streams; year, month and week designators are rejected.
func ParseISODuration(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != 'P' {
		return 0, false
	}

	var (
		total     int
		inTime    bool
		digits    strings.Builder
		sawNumber bool
	)
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == 'T':
			if inTime || digits.Len() > 0 {
				return 0, false
			}
			inTime = true
		default:
			if digits.Len() == 0 {
				return 0, false
			}
			n, err := strconv.Atoi(digits.String())
			if err != nil {
				return 0, false
			}
			digits.Reset()

			var unit int
			switch {
			case r == 'D' && !inTime:
				unit = 86400
			case r == 'H' && inTime:
				unit = 3600
			case r == 'M' && inTime:
				unit = 60
			case r == 'S' && inTime:
				unit = 1
			default:
				return 0, false
			}
			total += n * unit
			sawNumber = true
		}
	}

	if digits.Len() > 0 || !sawNumber {
		return 0, false
	}
	return total, true
}

// DurationPtr parses s and returns a pointer to the seconds, or nil when the
// duration is absent.
func DurationPtr(s string) *int {
	secs, ok := ParseISODuration(s)
	if !ok {
		return nil
	}
	return &secs
}
