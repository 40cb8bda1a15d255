package lines

import (
	"regexp"
	"strconv"
	"strings"
)

type rangePattern = *regexp.Regexp

// Line patterns. Page numbers are at most three digits, item numbers are
// "<section>.<sub>" with one or two digits each.
var (
	sectionRe       = regexp.MustCompile(`^\s*(\d{1,2})\.\s+([A-Z][A-Z\s\-\(\),&]+)`)
	sectionNumberRe = regexp.MustCompile(`^\s*(\d{1,2})\.\s*$`)

	rangeItemTitleRe = regexp.MustCompile(`^\s*(\d{1,3})\s*-\s*(\d{1,3})\s+(\d{1,2}\.\d{1,2})\s+(.+)`)
	rangeItemRe      = regexp.MustCompile(`^\s*(\d{1,3})\s*-\s*(\d{1,3})\s+(\d{1,2}\.\d{1,2})\s*$`)
	rangeOnlyRe      = regexp.MustCompile(`^\s*(\d{1,3})\s*-\s*(\d{1,3})\s*$`)

	itemNumberRe = regexp.MustCompile(`^\s*(\d{1,2}\.\d{1,2})\s*$`)
	itemTitleRe  = regexp.MustCompile(`^\s*(\d{1,2}\.\d{1,2})\s+(.+)`)

	fileNumberRe     = regexp.MustCompile(`(?:Ord|Res)\.\s*\d{2}-\d{3}`)
	fileNumberLeadRe = regexp.MustCompile(`^(?:Ord|Res)\.\s*\d{2}-\d{3}`)
	fileNumberFixRe  = regexp.MustCompile(`(Ord|Res)\.\s*`)

	voteRe = regexp.MustCompile(`(?i)^(Introduced|Approved|Withdrawn|Defeated|Tabled|Postponed)` +
		`(?:\s*[-–]?\s*(\d+-\d+(?:-\d+)?))?` +
		`(?:\s{2,}(.+))?`)

	// Link labels printed next to withdrawn items or items whose file was not numbered.
	decorationRe = regexp.MustCompile(`^(?:Withdrawn|(?:Ord|Res)\.)\s*-?\s*Pdf\s*$`)

	agendaSuffixRe = regexp.MustCompile(`\s*(?:Ord|Res)\.\s*(?:\d{2}-\d{3})?\s*-?\s*Pdf\s*$`)
)

// NormalizeSpace collapses runs of whitespace into single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeSectionTitle collapses whitespace and strips trailing dashes,
// commas and spaces.
func NormalizeSectionTitle(s string) string {
	return strings.TrimRight(NormalizeSpace(s), " -,")
}

// NormalizeFileNumber rewrites "Ord.26-006" or "Ord.   26-006" as "Ord. 26-006".
func NormalizeFileNumber(s string) string {
	return fileNumberFixRe.ReplaceAllString(strings.TrimSpace(s), "$1. ")
}

// FindFileNumber returns the first normalized file number in s.
func FindFileNumber(s string) (string, bool) {
	m := fileNumberRe.FindString(s)
	if m == "" {
		return "", false
	}
	return NormalizeFileNumber(m), true
}

// StripAgendaSuffix removes a trailing "Ord. 26-006 - Pdf" style link label.
func StripAgendaSuffix(s string) string {
	return strings.TrimSpace(agendaSuffixRe.ReplaceAllString(s, ""))
}

// SplitAgendaSuffix separates a trailing link label from the text before it.
// The suffix is empty when there is no label.
func SplitAgendaSuffix(s string) (text, suffix string) {
	loc := agendaSuffixRe.FindStringIndex(s)
	if loc == nil {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:loc[0]]), strings.TrimSpace(s[loc[0]:])
}

// SectionPrefix returns the section part of an item number ("10" for "10.3").
func SectionPrefix(item string) string {
	prefix, _, _ := strings.Cut(item, ".")
	return prefix
}

// HasSectionPrefix reports whether item belongs to section n.
func HasSectionPrefix(item string, n int) bool {
	return strings.HasPrefix(item, strconv.Itoa(n)+".")
}
