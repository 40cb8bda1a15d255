// Package agenda rebuilds agenda sections and items from linearized agenda text.
//
// The parser is a single forward pass over classified lines. Item headers
// come in five layouts (page range, item number and title on one line; range
// and number with the title below; range alone with the number below; number
// alone; number and title) and every layout is accepted only when the item
// number belongs to the open section. That guard keeps lot and block numbers
// in titles from being read as items.
package agenda

import (
	"github.com/otherjamesbrown/council-records/pkg/ingest/lines"
	"github.com/otherjamesbrown/council-records/pkg/ingest/meeting"
	"github.com/otherjamesbrown/council-records/pkg/ingest/textsource"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

// DefaultFileNumberLookahead is how many lines after an item body are searched
// for its file number.
const DefaultFileNumberLookahead = 3

// Options configures agenda parsing.
type Options struct {
	// SectionRules classifies section titles. Nil means DefaultSectionRules.
	SectionRules []SectionRule
	// FileNumberLookahead bounds the file-number search after an item body.
	// The search also stops at the first section or item header, whichever
	// comes first. Zero means the default.
	FileNumberLookahead int
	// Logger receives debug events for skipped headers. Nil discards them.
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.SectionRules == nil {
		o.SectionRules = DefaultSectionRules
	}
	if o.FileNumberLookahead <= 0 {
		o.FileNumberLookahead = DefaultFileNumberLookahead
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Parse rebuilds the sections of an agenda from its lines.
func Parse(raw []string, opts Options) []types.Section {
	p := newParser(lines.ClassifyAll(raw), opts.withDefaults())
	p.run()
	return p.sections
}

// ParseDocument parses a whole agenda document, including the meeting header.
func ParseDocument(doc *textsource.Document, opts Options) *types.Agenda {
	return &types.Agenda{
		Meeting:     meeting.DetectInfo(doc.Text()),
		AgendaPages: doc.PageCount(),
		Sections:    Parse(doc.Lines(), opts),
	}
}

// ParseFile reads the agenda at path and parses it.
func ParseFile(path string, opts Options) (*types.Agenda, error) {
	doc, err := textsource.Open(path, textsource.Options{})
	if err != nil {
		return nil, err
	}
	return ParseDocument(doc, opts), nil
}
