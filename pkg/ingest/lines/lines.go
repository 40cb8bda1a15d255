// Package lines classifies single lines of linearized council document text.
//
// A line can match several kinds at once (an item header that also carries a
// file number, for example). Classification is pure; the reconstructors in the
// agenda and minutes packages decide which kind wins at each cursor position.
package lines

import (
	"strconv"
	"strings"
)

// Kind is a bit set of structural cues found on a line.
type Kind uint32

const (
	KindBlank Kind = 1 << iota
	KindSection
	KindSectionNumber
	KindRangeItemTitle
	KindRangeItem
	KindRangeOnly
	KindItemNumber
	KindItemTitle
	KindFileNumber
	KindFileNumberLead
	KindVoteResult
	KindDecoration
	KindText
)

// structural kinds suppress KindText.
const structural = KindSection | KindSectionNumber | KindRangeItemTitle | KindRangeItem |
	KindRangeOnly | KindItemNumber | KindItemTitle | KindFileNumberLead | KindVoteResult | KindDecoration

// KindRangeHeader is any of the page-range layouts.
const KindRangeHeader = KindRangeItemTitle | KindRangeItem | KindRangeOnly

// KindItemHeader is any line that can open an agenda item.
const KindItemHeader = KindRangeHeader | KindItemNumber | KindItemTitle

var kindNames = []struct {
	k    Kind
	name string
}{
	{KindBlank, "blank"},
	{KindSection, "section"},
	{KindSectionNumber, "section_number"},
	{KindRangeItemTitle, "range_item_title"},
	{KindRangeItem, "range_item"},
	{KindRangeOnly, "range_only"},
	{KindItemNumber, "item_number"},
	{KindItemTitle, "item_title"},
	{KindFileNumber, "file_number"},
	{KindFileNumberLead, "file_number_lead"},
	{KindVoteResult, "vote_result"},
	{KindDecoration, "decoration"},
	{KindText, "text"},
}

// String lists the set kinds separated by "|".
func (k Kind) String() string {
	var parts []string
	for _, kn := range kindNames {
		if k&kn.k != 0 {
			parts = append(parts, kn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Vote holds the captures of a vote-result line.
type Vote struct {
	// Keyword is the result word as printed.
	Keyword string
	// Tally is the raw "A-N[-B]" group, empty when absent.
	Tally string
	// Detail is the remainder after two or more spaces.
	Detail string
}

// Line is a classified line of text.
type Line struct {
	Raw   string
	Text  string
	Kinds Kind

	SectionNumber int
	SectionTitle  string

	PageStart int
	PageEnd   int

	ItemNumber string
	// Inline is the title text that follows the item number on the same line.
	Inline string

	// FileNumber is the first file number on the line, normalized.
	FileNumber string

	Vote Vote
}

// Has reports whether any of the given kinds is set.
func (l Line) Has(k Kind) bool {
	return l.Kinds&k != 0
}

// ItemIn reports whether the line carries an item number belonging to section n.
func (l Line) ItemIn(n int) bool {
	return l.ItemNumber != "" && HasSectionPrefix(l.ItemNumber, n)
}

// Classify tags a single line with every kind it matches.
func Classify(raw string) Line {
	l := Line{Raw: raw, Text: strings.TrimSpace(raw)}
	if l.Text == "" {
		l.Kinds = KindBlank
		return l
	}

	if m := sectionRe.FindStringSubmatch(raw); m != nil {
		l.Kinds |= KindSection
		l.SectionNumber, _ = strconv.Atoi(m[1])
		l.SectionTitle = NormalizeSectionTitle(m[2])
	} else if m := sectionNumberRe.FindStringSubmatch(raw); m != nil {
		l.Kinds |= KindSectionNumber
		l.SectionNumber, _ = strconv.Atoi(m[1])
	}

	switch {
	case matchRange(&l, rangeItemTitleRe, raw):
		if inline := strings.TrimSpace(l.Inline); inline != "" {
			l.Kinds |= KindRangeItemTitle
			l.Inline = inline
		} else {
			l.Kinds |= KindRangeItem
			l.Inline = ""
		}
	case matchRange(&l, rangeItemRe, raw):
		l.Kinds |= KindRangeItem
	case matchRange(&l, rangeOnlyRe, raw):
		l.Kinds |= KindRangeOnly
	}

	if m := itemNumberRe.FindStringSubmatch(raw); m != nil {
		l.Kinds |= KindItemNumber
		l.ItemNumber = m[1]
	} else if m := itemTitleRe.FindStringSubmatch(raw); m != nil {
		l.Kinds |= KindItemTitle
		l.ItemNumber = m[1]
		l.Inline = strings.TrimSpace(m[2])
	}

	if m := fileNumberRe.FindString(raw); m != "" {
		l.Kinds |= KindFileNumber
		l.FileNumber = NormalizeFileNumber(m)
		if fileNumberLeadRe.MatchString(l.Text) {
			l.Kinds |= KindFileNumberLead
		}
	}

	vote := voteRe.FindStringSubmatch(l.Text)
	switch {
	case decorationRe.MatchString(l.Text):
		l.Kinds |= KindDecoration
		// "Withdrawn - Pdf" still records the outcome, without a tally.
		if vote != nil {
			l.Kinds |= KindVoteResult
			l.Vote = Vote{Keyword: vote[1]}
		}
	case vote != nil:
		l.Kinds |= KindVoteResult
		l.Vote = Vote{Keyword: vote[1], Tally: vote[2], Detail: strings.TrimSpace(vote[3])}
	}

	if l.Kinds&structural == 0 {
		l.Kinds |= KindText
	}
	return l
}

// ClassifyAll classifies every line in order.
func ClassifyAll(raw []string) []Line {
	out := make([]Line, len(raw))
	for i, r := range raw {
		out[i] = Classify(r)
	}
	return out
}

// matchRange applies one of the page-range patterns. A range is only accepted
// when start <= end; tallies such as "9-0" are rejected that way.
func matchRange(l *Line, re rangePattern, raw string) bool {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return false
	}
	start, err1 := strconv.Atoi(m[1])
	end, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || start > end {
		return false
	}
	l.PageStart, l.PageEnd = start, end
	if len(m) > 3 {
		l.ItemNumber = m[3]
	}
	if len(m) > 4 {
		l.Inline = m[4]
	}
	return true
}
