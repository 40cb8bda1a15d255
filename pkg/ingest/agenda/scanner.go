package agenda

import (
	"strings"

	"github.com/otherjamesbrown/council-records/pkg/ingest/lines"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

type state int

const (
	awaitingSection state = iota
	awaitingItem
	consumingItemBody
)

func (s state) String() string {
	switch s {
	case awaitingSection:
		return "awaiting_section"
	case awaitingItem:
		return "awaiting_item"
	case consumingItemBody:
		return "consuming_item_body"
	}
	return "unknown"
}

// header is an item header recognized in awaitingItem, before its body.
type header struct {
	item      string
	title     []string
	pageStart *int
	pageEnd   *int
}

// outcome is the result of a header rule. A matched outcome with a nil
// header consumed lines without opening an item.
type outcome struct {
	matched bool
	next    int
	hdr     *header
}

var notApplicable = outcome{}

type headerRule func(p *parser, i int) outcome

// headerRules are tried in order at each cursor position in awaitingItem.
var headerRules = []headerRule{
	rangeItemTitleRule,
	rangeItemRule,
	rangeOnlyRule,
	itemNumberRule,
	itemTitleRule,
}

type parser struct {
	lines []lines.Line
	opts  Options
	log   logging.Logger

	state    state
	cursor   int
	pending  *header
	section  *types.Section
	itemType types.ItemType

	sections []types.Section
}

func newParser(ls []lines.Line, opts Options) *parser {
	return &parser{
		lines:    ls,
		opts:     opts,
		log:      opts.Logger.With(logging.F("component", "agenda")),
		sections: []types.Section{},
	}
}

func (p *parser) run() {
	for p.cursor < len(p.lines) {
		switch p.state {
		case awaitingSection:
			p.stepAwaitingSection()
		case awaitingItem:
			p.stepAwaitingItem()
		case consumingItemBody:
			p.stepConsumingBody()
		}
	}
	if p.state == consumingItemBody {
		p.stepConsumingBody()
	}
	p.closeSection()
}

func (p *parser) stepAwaitingSection() {
	l := p.lines[p.cursor]
	if l.Has(lines.KindSection) {
		p.openSection(l)
	}
	p.cursor++
}

func (p *parser) stepAwaitingItem() {
	l := p.lines[p.cursor]
	if l.Has(lines.KindSection) {
		p.openSection(l)
		p.cursor++
		return
	}

	for _, rule := range headerRules {
		out := rule(p, p.cursor)
		if !out.matched {
			continue
		}
		p.cursor = out.next
		if out.hdr != nil {
			p.pending = out.hdr
			p.state = consumingItemBody
		}
		return
	}

	if l.ItemNumber != "" && l.Has(lines.KindItemHeader) {
		p.log.Debug("item number outside open section",
			logging.F("line", p.cursor+1),
			logging.F("item_number", l.ItemNumber),
			logging.F("section", p.section.Number))
	}
	p.cursor++
}

// stepConsumingBody absorbs title lines for the pending header, then looks
// ahead for its file number and emits the item.
func (p *parser) stepConsumingBody() {
	h := p.pending
	title := h.title

	for p.cursor < len(p.lines) {
		l := p.lines[p.cursor]
		if l.Has(lines.KindBlank) {
			p.cursor++
			continue
		}
		if p.endsBody(l) {
			break
		}
		title = append(title, l.Text)
		p.cursor++
	}

	joined := strings.Join(title, " ")
	fileNumber := suffixFileNumber(joined)
	if fileNumber == nil {
		fileNumber = p.lookaheadFileNumber()
	}

	p.section.Items = append(p.section.Items, types.AgendaItem{
		ItemNumber: h.item,
		Title:      lines.NormalizeSpace(lines.StripAgendaSuffix(joined)),
		PageStart:  h.pageStart,
		PageEnd:    h.pageEnd,
		FileNumber: fileNumber,
		ItemType:   p.itemType,
	})
	p.pending = nil
	p.state = awaitingItem
}

// endsBody reports whether l starts something other than title text.
func (p *parser) endsBody(l lines.Line) bool {
	switch {
	case l.Has(lines.KindSection), l.Has(lines.KindRangeHeader), l.Has(lines.KindFileNumberLead):
		return true
	case l.Has(lines.KindItemNumber | lines.KindItemTitle):
		return l.ItemIn(p.section.Number)
	}
	return false
}

// lookaheadFileNumber searches at most FileNumberLookahead lines from the
// cursor for a file number. It never crosses a section header or the header
// of another item. The body loop has already stopped on such a line or on one
// led by a file number, so only the first line of the window can hit; a
// number printed under the next item's header is never taken. On a hit the
// cursor moves past the line holding the number.
func (p *parser) lookaheadFileNumber() *string {
	end := min(p.cursor+p.opts.FileNumberLookahead, len(p.lines))
	for j := p.cursor; j < end; j++ {
		l := p.lines[j]
		if l.Has(lines.KindSection) || l.Has(lines.KindRangeHeader) {
			return nil
		}
		if l.Has(lines.KindItemNumber|lines.KindItemTitle) && l.ItemIn(p.section.Number) {
			return nil
		}
		if l.Has(lines.KindFileNumber) {
			fn := l.FileNumber
			p.cursor = j + 1
			return &fn
		}
	}
	return nil
}

// suffixFileNumber returns the number printed in a trailing
// "Ord. 26-006 - Pdf" label on the title's last line.
func suffixFileNumber(title string) *string {
	_, suffix := lines.SplitAgendaSuffix(title)
	fn, ok := lines.FindFileNumber(suffix)
	if !ok {
		return nil
	}
	return &fn
}

func (p *parser) openSection(l lines.Line) {
	p.closeSection()
	category := ClassifySection(l.SectionTitle, p.opts.SectionRules)
	p.section = &types.Section{
		Number:   l.SectionNumber,
		Title:    l.SectionTitle,
		Category: category,
		Items:    []types.AgendaItem{},
	}
	p.itemType = ItemTypeFor(category)
	p.state = awaitingItem
}

func (p *parser) closeSection() {
	if p.section == nil {
		return
	}
	p.sections = append(p.sections, *p.section)
	p.section = nil
}

func pages(l lines.Line) (*int, *int) {
	start, end := l.PageStart, l.PageEnd
	return &start, &end
}

func rangeItemTitleRule(p *parser, i int) outcome {
	l := p.lines[i]
	if !l.Has(lines.KindRangeItemTitle) || !l.ItemIn(p.section.Number) {
		return notApplicable
	}
	start, end := pages(l)
	return outcome{matched: true, next: i + 1, hdr: &header{
		item: l.ItemNumber, title: []string{l.Inline}, pageStart: start, pageEnd: end,
	}}
}

func rangeItemRule(p *parser, i int) outcome {
	l := p.lines[i]
	if !l.Has(lines.KindRangeItem) || !l.ItemIn(p.section.Number) {
		return notApplicable
	}
	start, end := pages(l)
	return outcome{matched: true, next: i + 1, hdr: &header{
		item: l.ItemNumber, pageStart: start, pageEnd: end,
	}}
}

// rangeOnlyRule pairs a bare page range with the item number on the next
// non-blank line. When that line is not an item of the open section the
// range is dropped and only the range line is consumed.
func rangeOnlyRule(p *parser, i int) outcome {
	l := p.lines[i]
	if !l.Has(lines.KindRangeOnly) {
		return notApplicable
	}

	j := i + 1
	for j < len(p.lines) && p.lines[j].Has(lines.KindBlank) {
		j++
	}
	if j < len(p.lines) {
		next := p.lines[j]
		if next.Has(lines.KindItemNumber|lines.KindItemTitle) && next.ItemIn(p.section.Number) {
			start, end := pages(l)
			h := &header{item: next.ItemNumber, pageStart: start, pageEnd: end}
			if next.Has(lines.KindItemTitle) {
				h.title = []string{next.Inline}
			}
			return outcome{matched: true, next: j + 1, hdr: h}
		}
	}

	p.log.Debug("page range without item",
		logging.F("line", i+1),
		logging.F("page_start", l.PageStart),
		logging.F("page_end", l.PageEnd),
		logging.F("section", p.section.Number))
	return outcome{matched: true, next: i + 1}
}

func itemNumberRule(p *parser, i int) outcome {
	l := p.lines[i]
	if !l.Has(lines.KindItemNumber) || !l.ItemIn(p.section.Number) {
		return notApplicable
	}
	return outcome{matched: true, next: i + 1, hdr: &header{item: l.ItemNumber}}
}

func itemTitleRule(p *parser, i int) outcome {
	l := p.lines[i]
	if !l.Has(lines.KindItemTitle) || !l.ItemIn(p.section.Number) {
		return notApplicable
	}
	return outcome{matched: true, next: i + 1, hdr: &header{item: l.ItemNumber, title: []string{l.Inline}}}
}
