// Package expiry evaluates card expiry dates in the canonical MM/YY
// card-face form. All functions are pure; callers pass the evaluation
// instant explicitly instead of reading the clock.
package expiry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Status is the derived lifecycle state of a card's expiry date.
type Status string

const (
	StatusValid        Status = "valid"
	StatusExpiringSoon Status = "expiring-soon"
	StatusExpired      Status = "expired"
)

// ExpiringSoonMonths is the width of the expiring-soon window in
// calendar months.
const ExpiringSoonMonths = 3

var cardFaceRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)

// Validate reports whether expiry is acceptable at the given instant.
// An empty string is valid (expiry is optional). Otherwise the value
// must be MM/YY with month 01..12 and denote a month not strictly
// before now's month.
func Validate(expiry string, now time.Time) bool {
	if expiry == "" {
		return true
	}
	month, year, ok := parse(expiry)
	if !ok {
		return false
	}
	return monthIndex(year, month) >= monthIndex(now.Year(), int(now.Month()))
}

// FormatInput normalizes free-form keystrokes toward MM/YY: it strips
// non-digits, truncates to 4 digits and inserts the separator once a
// third digit exists. Partial input is returned as-is rather than
// rejected.
func FormatInput(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == 4 {
			break
		}
	}
	digits := b.String()
	if len(digits) <= 2 {
		return digits
	}
	return digits[:2] + "/" + digits[2:]
}

// IsExpiringSoon reports whether expiry is valid at now and falls
// within ExpiringSoonMonths calendar months of it.
func IsExpiringSoon(expiry string, now time.Time) bool {
	if expiry == "" || !Validate(expiry, now) {
		return false
	}
	month, year, _ := parse(expiry)
	return monthIndex(year, month)-monthIndex(now.Year(), int(now.Month())) <= ExpiringSoonMonths
}

// Derive maps an expiry string to its status at the given instant.
// Absent expiry is valid; a malformed or past expiry is expired.
func Derive(expiry string, now time.Time) Status {
	if expiry == "" {
		return StatusValid
	}
	if !Validate(expiry, now) {
		return StatusExpired
	}
	if IsExpiringSoon(expiry, now) {
		return StatusExpiringSoon
	}
	return StatusValid
}

func parse(expiry string) (month, year int, ok bool) {
	if !cardFaceRe.MatchString(expiry) {
		return 0, 0, false
	}
	month, _ = strconv.Atoi(expiry[:2])
	yy, _ := strconv.Atoi(expiry[3:])
	return month, 2000 + yy, true
}

func monthIndex(year, month int) int {
	return year*12 + month - 1
}
