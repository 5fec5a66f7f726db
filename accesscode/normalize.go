package accesscode

import (
	"regexp"
	"strconv"
	"strings"
)

// ChildBirthdate is the canonical form of the only birthdate the second
// factor recognizes.
const ChildBirthdate = "09/08/2022"

const (
	birthMonth = 9
	birthDay   = 8
	birthYear  = 2022
)

var monthNames = map[string]int{
	"january":   1,
	"february":  2,
	"march":     3,
	"april":     4,
	"may":       5,
	"june":      6,
	"july":      7,
	"august":    8,
	"september": 9,
	"october":   10,
	"november":  11,
	"december":  12,
}

// datePattern pairs a text format with the extractor for its captures.
type datePattern struct {
	name    string
	re      *regexp.Regexp
	extract func(m []string) (day, month, year int, ok bool)
}

// textPatterns are tried in order after numeric parsing fails.
var textPatterns = []datePattern{
	{
		// "8th of September 2022", "8 September, 2022"
		name: "day-month-year",
		re:   regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+),?\s+(\d{4})$`),
		extract: func(m []string) (int, int, int, bool) {
			return resolveDate(m[1], m[2], m[3])
		},
	},
	{
		// "September 8th, 2022"
		name: "month-day-year",
		re:   regexp.MustCompile(`(?i)^([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`),
		extract: func(m []string) (int, int, int, bool) {
			return resolveDate(m[2], m[1], m[3])
		},
	},
}

var separatorReplacer = strings.NewReplacer("-", "/", ".", "/")

// NormalizeBirthdate returns ChildBirthdate when input denotes
// September 8, 2022 in any of the accepted numeric (MM/DD/YYYY, DD/MM/YYYY
// with '/', '-' or '.' separators) or English text formats. Any other input
// is returned trimmed but otherwise unchanged; empty input is returned as
// given. This is not a general date parser.
func NormalizeBirthdate(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return input
	}
	if normalized, ok := normalizeNumeric(s); ok {
		return normalized
	}
	for _, p := range textPatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		day, month, year, ok := p.extract(m)
		if ok && day == birthDay && month == birthMonth && year == birthYear {
			return ChildBirthdate
		}
	}
	return s
}

func normalizeNumeric(s string) (string, bool) {
	parts := strings.Split(separatorReplacer.Replace(s), "/")
	if len(parts) != 3 {
		return "", false
	}
	var nums [3]int
	for i, p := range parts {
		n, ok := parseDigits(p)
		if !ok {
			return "", false
		}
		nums[i] = n
	}
	switch nums {
	case [3]int{birthMonth, birthDay, birthYear}: // MM/DD/YYYY
		return ChildBirthdate, true
	case [3]int{birthDay, birthMonth, birthYear}: // DD/MM/YYYY
		return ChildBirthdate, true
	}
	return "", false
}

func parseDigits(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func resolveDate(day, monthName, year string) (int, int, int, bool) {
	d, ok := parseDigits(day)
	if !ok {
		return 0, 0, 0, false
	}
	m, ok := monthNames[strings.ToLower(monthName)]
	if !ok {
		return 0, 0, 0, false
	}
	y, ok := parseDigits(year)
	if !ok {
		return 0, 0, 0, false
	}
	return d, m, y, true
}
