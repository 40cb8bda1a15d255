package votes

import (
	"regexp"
	"strings"

	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

var namedMemberRe = regexp.MustCompile(`(?i)(?:Councilperson|Council\s+president\s+pro\s+temp)\s+([A-Z][a-z]+)`)

// ExtractNamedMembers returns every member named in a vote detail, in order of
// appearance. Names that match a roster entry case-insensitively take the
// roster spelling; the rest are returned as captured. Duplicates are dropped.
func ExtractNamedMembers(detail string, roster []string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, m := range namedMemberRe.FindAllStringSubmatch(detail, -1) {
		name := m[1]
		if member, ok := lookup(roster, name); ok {
			name = member
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		found = append(found, name)
	}
	return found
}

func lookup(roster []string, name string) (string, bool) {
	for _, member := range roster {
		if strings.EqualFold(member, name) {
			return member, true
		}
	}
	return "", false
}

// Build assigns every roster member to aye, nay, abstain or absent.
//
// Members named in the detail are nays when the detail mentions "nay", or
// abstentions when it mentions "abstain". Everyone else votes aye, unless the
// tally shows fewer members present than the roster holds; then only the
// first Ayes remaining members (roster order) are aye and the rest absent.
// Which members were absent is not printed, so that split is a best guess.
//
// Named members that are not on the roster are reported as Unrecognized and
// do not count toward the four lists.
func Build(t Tally, detail string, roster []string) *types.VoteBreakdown {
	b := &types.VoteBreakdown{
		Aye:     []string{},
		Nay:     []string{},
		Abstain: []string{},
		Absent:  []string{},
	}

	accounted := make(map[string]bool)
	if detail != "" {
		lower := strings.ToLower(detail)
		var target *[]string
		switch {
		case strings.Contains(lower, "nay"):
			target = &b.Nay
		case strings.Contains(lower, "abstain"):
			target = &b.Abstain
		}
		if target != nil {
			for _, name := range ExtractNamedMembers(detail, roster) {
				if _, ok := lookup(roster, name); !ok {
					b.Unrecognized = append(b.Unrecognized, name)
					continue
				}
				*target = append(*target, name)
				accounted[name] = true
			}
		}
	}

	remaining := make([]string, 0, len(roster))
	for _, member := range roster {
		if !accounted[member] {
			remaining = append(remaining, member)
		}
	}

	absent := len(roster) - t.Present()
	if absent > 0 && len(remaining) > t.Ayes {
		b.Aye = append(b.Aye, remaining[:t.Ayes]...)
		b.Absent = append(b.Absent, remaining[t.Ayes:]...)
	} else {
		b.Aye = append(b.Aye, remaining...)
	}
	return b
}

// BuildFromString parses the tally and builds the breakdown. It returns nil
// when the tally does not parse.
func BuildFromString(tally, detail string, roster []string) *types.VoteBreakdown {
	t, err := ParseTally(tally)
	if err != nil {
		return nil
	}
	return Build(t, detail, roster)
}
