package minutes

import (
	"regexp"
	"strings"

	"github.com/otherjamesbrown/council-records/pkg/ingest/lines"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/ingest/votes"
)

var (
	continuationRe = regexp.MustCompile(`(?i)^(?:Councilperson|Council\s+president|and\s+Councilperson)`)
	blockResultRe  = regexp.MustCompile(`(?i)(Approved|Withdrawn|Defeated)\s*[-–]?\s*(\d+-\d+(?:-\d+)?)`)
	claimsTallyRe  = regexp.MustCompile(`:\s*-?\s*(\d+-\d+(?:-\d+)?)`)
	titleSuffixRe  = regexp.MustCompile(`\s*(?:Ord|Res)\.\s*(?:\d{2}-\d{3})?\s*-?\s*(?:Pdf|Withdrawn\s*-?\s*Pdf)?\s*$`)
	withdrawnPdfRe = regexp.MustCompile(`\s*Withdrawn\s*-?\s*Pdf\s*$`)
	inlineFileRe   = regexp.MustCompile(`\s*(?:Ord|Res)\.\s*\d{2}-\d{3}\s*-?\s*`)
	inlineResultRe = regexp.MustCompile(`(?i):\s*(?:Approved|Withdrawn|Defeated)\s*-?\s*\d+-\d+(?:-\d+)?`)
	trailingVoteRe = regexp.MustCompile(`^(.*?)\s{2,}((?i:Introduced|Approved|Withdrawn|Defeated|Tabled|Postponed)\b.*)$`)
)

// block accumulates one item's lines.
type block struct {
	title      []string
	fileNumber *string
	result     *types.Result
	tally      string
	detail     []string
	// bareTally is set when the tally came from a claims ": 9-0" label.
	bareTally bool
}

// parseBlock builds a minutes item from the lines of one item block. The
// first line carries the item number.
func parseBlock(ls []lines.Line, prefix string, roster []string) types.MinutesItem {
	var b block
	head := ls[0]

	for i := 0; i < len(ls); i++ {
		l := ls[i]
		if l.Has(lines.KindFileNumber) {
			fn := l.FileNumber
			b.fileNumber = &fn
		}
		if l.Has(lines.KindVoteResult) {
			b.setResult(l.Vote)
			i = b.absorbContinuation(ls, i+1) - 1
			continue
		}
		if l.Has(lines.KindDecoration) {
			continue
		}

		if b.result != nil {
			continue
		}
		switch {
		case i == 0:
			title, vote := splitTrailingVote(l.Inline)
			if title != "" {
				b.title = append(b.title, title)
			}
			if vote.Has(lines.KindVoteResult) {
				b.setResult(vote.Vote)
				i = b.absorbContinuation(ls, i+1) - 1
			}
		case l.Has(lines.KindBlank), l.Has(lines.KindFileNumberLead):
		default:
			b.title = append(b.title, l.Text)
		}
	}

	if b.result == nil || b.tally == "" {
		b.fallback(ls, prefix)
	}

	title := cleanTitle(strings.Join(b.title, " "))
	if b.bareTally {
		title = stripBareTally(title)
	}

	item := types.MinutesItem{
		ItemNumber: head.ItemNumber,
		Title:      title,
		FileNumber: b.fileNumber,
		Result:     b.result,
		VoteDetail: strings.Join(b.detail, " "),
	}
	if b.tally != "" {
		item.VoteTally = &b.tally
		item.Votes = votes.BuildFromString(b.tally, item.VoteDetail, roster)
	}
	return item
}

// splitTrailingVote separates a result printed after the title on the item
// line itself ("A Resolution honoring a retiree.  Approved 9-0").
func splitTrailingVote(inline string) (string, lines.Line) {
	m := trailingVoteRe.FindStringSubmatch(inline)
	if m == nil {
		return inline, lines.Line{}
	}
	vote := lines.Classify(m[2])
	if !vote.Has(lines.KindVoteResult) {
		return inline, lines.Line{}
	}
	return strings.TrimSpace(m[1]), vote
}

func (b *block) setResult(v lines.Vote) {
	r := types.ParseResult(v.Keyword)
	b.result = &r
	if v.Tally != "" {
		b.tally = v.Tally
	}
	if v.Detail != "" {
		b.detail = append(b.detail, v.Detail)
	}
}

// absorbContinuation appends "Councilperson X: nay" style lines that follow
// a result line to the vote detail and returns the index after them.
func (b *block) absorbContinuation(ls []lines.Line, i int) int {
	for i < len(ls) {
		l := ls[i]
		if l.Has(lines.KindBlank) {
			i++
			continue
		}
		if !continuationRe.MatchString(l.Text) {
			break
		}
		b.detail = append(b.detail, l.Text)
		i++
	}
	return i
}

// fallback searches the whole block for a result with tally when no result
// line was recognized, and for the bare claims tally.
func (b *block) fallback(ls []lines.Line, prefix string) {
	raw := make([]string, len(ls))
	for i, l := range ls {
		raw[i] = l.Text
	}
	combined := strings.Join(raw, " ")

	if m := blockResultRe.FindStringSubmatch(combined); m != nil {
		r := types.ParseResult(m[1])
		if b.result == nil || *b.result == r {
			b.result = &r
			b.tally = m[2]
			return
		}
	}
	if b.result == nil && prefix == ClaimsSection {
		if m := claimsTallyRe.FindStringSubmatch(combined); m != nil {
			r := types.ResultApproved
			b.result = &r
			b.tally = m[1]
			b.bareTally = true
		}
	}
}

// cleanTitle strips link labels, inline file numbers and inline results from
// an item title.
func cleanTitle(s string) string {
	s = titleSuffixRe.ReplaceAllString(s, "")
	s = withdrawnPdfRe.ReplaceAllString(s, "")
	s = inlineFileRe.ReplaceAllString(s, " ")
	s = lines.NormalizeSpace(s)
	s = inlineResultRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripBareTally removes the first ": -9-0" label from a claims title.
func stripBareTally(title string) string {
	loc := claimsTallyRe.FindStringIndex(title)
	if loc == nil {
		return title
	}
	return lines.NormalizeSpace(title[:loc[0]] + " " + title[loc[1]:])
}
