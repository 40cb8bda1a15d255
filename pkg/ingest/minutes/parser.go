// Package minutes recovers voted items from meeting minutes text.
//
// Each item block starts at an item number in one of the voted sections and
// runs until the next item of any numbered section or a section header.
// Within a block a result line ("Approved 8-1  Councilperson Lavarro: nay",
// or a "Withdrawn - Pdf" link label) sets the outcome; lines before the first
// one form the title.
package minutes

import (
	"slices"

	"github.com/otherjamesbrown/council-records/pkg/ingest/lines"
	"github.com/otherjamesbrown/council-records/pkg/ingest/meeting"
	"github.com/otherjamesbrown/council-records/pkg/ingest/textsource"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

// DefaultMaxPages is how many leading pages of a minutes document are read.
const DefaultMaxPages = 20

// ClaimsSection is the section whose items may print a bare ": 9-0" tally.
const ClaimsSection = "9"

var (
	// DefaultVotedSections are the sections whose items carry votes:
	// ordinances on first and second reading, claims and resolutions.
	DefaultVotedSections = []string{"3", "4", "9", "10"}

	// DefaultBoundarySections are the sections whose item numbers end a block.
	DefaultBoundarySections = []string{"3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}
)

// Options configures minutes parsing.
type Options struct {
	VotedSections    []string
	BoundarySections []string
	// MaxPages is applied by ParseFile. Zero means DefaultMaxPages.
	MaxPages int
	// FallbackRoster is used when the header lists no members. Nil means DefaultRoster.
	FallbackRoster []string
	Logger         logging.Logger
}

func (o Options) withDefaults() Options {
	if o.VotedSections == nil {
		o.VotedSections = DefaultVotedSections
	}
	if o.BoundarySections == nil {
		o.BoundarySections = DefaultBoundarySections
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.FallbackRoster == nil {
		o.FallbackRoster = DefaultRoster
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Parse recovers the voted items in ls, building breakdowns against roster.
func Parse(ls []string, roster []string, opts Options) []types.MinutesItem {
	opts = opts.withDefaults()
	log := opts.Logger.With(logging.F("component", "minutes"))
	classified := lines.ClassifyAll(ls)

	items := []types.MinutesItem{}
	i := 0
	for i < len(classified) {
		l := classified[i]

		if l.ItemNumber == "" || !l.Has(lines.KindItemNumber|lines.KindItemTitle) {
			i++
			continue
		}
		prefix := lines.SectionPrefix(l.ItemNumber)
		if !slices.Contains(opts.VotedSections, prefix) {
			i++
			continue
		}

		end := i + 1
		for end < len(classified) && !endsBlock(classified[end], opts.BoundarySections) {
			end++
		}

		item := parseBlock(classified[i:end], prefix, roster)
		if item.Result == nil {
			log.Debug("item without result", logging.F("item_number", item.ItemNumber), logging.F("line", i+1))
		}
		items = append(items, item)
		i = end
	}
	return items
}

func endsBlock(l lines.Line, boundary []string) bool {
	if l.Has(lines.KindSection | lines.KindSectionNumber) {
		return true
	}
	if l.ItemNumber != "" && l.Has(lines.KindItemNumber|lines.KindItemTitle) {
		return slices.Contains(boundary, lines.SectionPrefix(l.ItemNumber))
	}
	return false
}

// ParseDocument parses a minutes document: meeting header, roster, roll-call
// absences and voted items. Text after the certification line is ignored.
func ParseDocument(doc *textsource.Document, opts Options) *types.Minutes {
	opts = opts.withDefaults()
	if len(doc.Pages) > opts.MaxPages {
		doc = &textsource.Document{Path: doc.Path, Pages: doc.Pages[:opts.MaxPages]}
	}

	text := doc.Text()
	roster := ExtractRoster(text, opts.FallbackRoster)
	ls := doc.Lines()
	ls = ls[:FindEnd(ls)]

	return &types.Minutes{
		Meeting:         meeting.DetectInfo(text),
		CouncilMembers:  roster,
		InitialAbsences: RollCallAbsences(ls),
		Items:           Parse(ls, roster, opts),
	}
}

// ParseFile reads at most opts.MaxPages pages of path and parses them.
func ParseFile(path string, opts Options) (*types.Minutes, error) {
	opts = opts.withDefaults()
	doc, err := textsource.Open(path, textsource.Options{MaxPages: opts.MaxPages})
	if err != nil {
		return nil, err
	}
	return ParseDocument(doc, opts), nil
}
