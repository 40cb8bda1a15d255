package minutes

import (
	"regexp"
	"strings"
)

// DefaultRoster is used when the minutes header names no council members.
var DefaultRoster = []string{
	"Ridley", "Lavarro", "Griffin", "Singh", "Brooks",
	"Zuppa", "Ephros", "Little", "Gilmore",
}

// rosterScanLimit is how much leading text is searched for the roster.
const rosterScanLimit = 3000

// rollCallScanLimit is how many leading lines are searched for absences.
const rollCallScanLimit = 100

var (
	rosterLineRe = regexp.MustCompile(`(?m)^(.+?),?\s+Councilperson`)
	juniorRe     = regexp.MustCompile(`,\s*Jr\.?\s*$`)
	absentRe     = regexp.MustCompile(`(?i)Councilperson\s+(\w+)\s+was\s+absent`)
	adjournRe    = regexp.MustCompile(`^\s*12\.\s+ADJOURNMENT`)
)

// Words that precede "Councilperson" in the header without being a name.
var rosterStopWords = map[string]bool{
	"of": true, "the": true, "a": true, "and": true, "acting": true, "jr": true,
	"large": true, "ward": true, "council": true, "pro": true, "tempore": true,
	"present": true, "absent": true, "members": true, "nine": true, "eight": true,
}

// ExtractRoster returns the last names of members listed as
// "<Full Name>[, Jr.], Councilperson ..." in the leading text. It returns
// fallback when no member is found.
func ExtractRoster(text string, fallback []string) []string {
	if len(text) > rosterScanLimit {
		text = text[:rosterScanLimit]
	}

	var members []string
	seen := make(map[string]bool)
	for _, m := range rosterLineRe.FindAllStringSubmatch(text, -1) {
		full := juniorRe.ReplaceAllString(strings.TrimSpace(m[1]), "")
		parts := strings.Fields(full)
		if len(parts) == 0 {
			continue
		}
		last := strings.TrimRight(parts[len(parts)-1], ",.")
		if last == "" || rosterStopWords[strings.ToLower(last)] || seen[last] {
			continue
		}
		seen[last] = true
		members = append(members, last)
	}

	if len(members) == 0 {
		return append([]string(nil), fallback...)
	}
	return members
}

// RollCallAbsences returns members reported as "Councilperson X was absent"
// in the first lines of the minutes.
func RollCallAbsences(ls []string) []string {
	absent := []string{}
	for i, l := range ls {
		if i >= rollCallScanLimit {
			break
		}
		if m := absentRe.FindStringSubmatch(l); m != nil {
			absent = append(absent, m[1])
		}
	}
	return absent
}

// FindEnd returns the index where the minutes body ends: the certification
// line, or ten lines past the adjournment section, else len(ls).
func FindEnd(ls []string) int {
	for i, l := range ls {
		if strings.Contains(l, "Reviewed and found to be correct") {
			return i
		}
		if adjournRe.MatchString(strings.TrimSpace(l)) {
			return min(i+10, len(ls))
		}
	}
	return len(ls)
}
