// Package split cuts a meeting packet PDF into one file per agenda item,
// using the page ranges recovered from the agenda.
package split

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
	"github.com/otherjamesbrown/council-records/pkg/ingest/textsource"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

const (
	// DefaultAgendaPages is used when the agenda did not report its length.
	DefaultAgendaPages = 9
	// DefaultValidatePages is how many leading pages of an item are searched
	// for its file number.
	DefaultValidatePages = 3

	AgendaDir  = "agenda"
	AgendaFile = "00.00_agenda.pdf"
	OtherDir   = "other"
)

// SectionDirs maps section categories to output subdirectories. Categories
// not listed go to OtherDir.
var SectionDirs = map[types.SectionCategory]string{
	types.CategoryOrdinanceFirstReading:  "ordinances",
	types.CategoryOrdinanceSecondReading: "ordinances",
	types.CategoryResolutions:            "resolutions",
	types.CategoryClaims:                 "claims",
}

// PageTextFunc returns the text of every page of a packet.
type PageTextFunc func(path string) ([]string, error)

// Options configures a Splitter.
type Options struct {
	// ValidatePages bounds the file-number check. Zero means DefaultValidatePages.
	ValidatePages int
	// PageText extracts page text for validation. Nil reads the PDF with textsource.
	PageText PageTextFunc
	Logger   logging.Logger
}

// Splitter writes per-item PDFs and a manifest.
type Splitter struct {
	copier PageCopier
	opts   Options
	log    logging.Logger
}

// New creates a Splitter that copies pages with copier.
func New(copier PageCopier, opts Options) *Splitter {
	if opts.ValidatePages <= 0 {
		opts.ValidatePages = DefaultValidatePages
	}
	if opts.PageText == nil {
		opts.PageText = readPageText
	}
	log := logging.OrNop(opts.Logger)
	return &Splitter{copier: copier, opts: opts, log: log.With(logging.F("component", "split"))}
}

func readPageText(path string) ([]string, error) {
	doc, err := textsource.Open(path, textsource.Options{})
	if err != nil {
		return nil, err
	}
	return doc.Pages, nil
}

type job struct {
	item    types.AgendaItem
	section types.SectionCategory
}

// Split extracts the agenda pages and every item with a page range from
// packet into outDir. Items whose range falls outside the packet are skipped
// with a warning; a file number missing from the first pages of its range is
// only warned about.
func (s *Splitter) Split(ctx context.Context, packet string, agenda *types.Agenda, outDir string) (*Manifest, error) {
	if agenda == nil {
		return nil, fmt.Errorf("agenda is required: %w", ierrors.ErrValidation)
	}
	if _, err := os.Stat(packet); err != nil {
		return nil, fmt.Errorf("packet %s: %w", packet, ierrors.ErrInputMissing)
	}

	packetPages, err := s.copier.PageCount(packet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ierrors.ErrUnreadable, err)
	}

	texts, err := s.opts.PageText(packet)
	if err != nil {
		s.log.Warn("packet text unavailable, skipping file number checks", logging.Err(err))
		texts = nil
	}

	if err := makeDirs(outDir); err != nil {
		return nil, err
	}

	m := &Manifest{
		Meeting:     agenda.Meeting,
		PacketPages: packetPages,
		Warnings:    []string{},
		Items:       []Entry{},
	}

	agendaPages := agenda.AgendaPages
	if agendaPages <= 0 {
		agendaPages = DefaultAgendaPages
	}
	if agendaPages > packetPages {
		s.log.Warn(m.warn("agenda has %d pages but packet has %d pages", agendaPages, packetPages))
		agendaPages = packetPages
	}
	if agendaPages > 0 {
		rel := filepath.ToSlash(filepath.Join(AgendaDir, AgendaFile))
		if err := s.copier.CopyPages(packet, 1, agendaPages, filepath.Join(outDir, rel)); err != nil {
			return nil, err
		}
		m.add(Entry{
			ItemNumber: "0.0",
			Title:      "Agenda",
			ItemType:   types.ItemAgenda,
			PageStart:  1,
			PageEnd:    agendaPages,
			PageCount:  agendaPages,
			OutputFile: rel,
		})
	}

	for _, j := range itemsToSplit(agenda) {
		if err := ctx.Err(); err != nil {
			return m, err
		}

		it := j.item
		start, end := *it.PageStart, *it.PageEnd
		if start < 1 || end > packetPages || start > end {
			s.log.Warn(m.warn("item %s pages %d-%d out of bounds (packet has %d pages)",
				it.ItemNumber, start, end, packetPages))
			continue
		}

		if !s.containsFileNumber(texts, it, start, end) {
			s.log.Warn(m.warn("item %s file number %q not found in pages %d-%d",
				it.ItemNumber, *it.FileNumber, start, end))
		}

		rel := filepath.ToSlash(filepath.Join(DirFor(j.section), FileName(it)))
		if err := s.copier.CopyPages(packet, start, end, filepath.Join(outDir, rel)); err != nil {
			return m, err
		}
		m.add(Entry{
			ItemNumber: it.ItemNumber,
			Title:      it.Title,
			ItemType:   it.ItemType,
			FileNumber: it.FileNumber,
			PageStart:  start,
			PageEnd:    end,
			PageCount:  end - start + 1,
			OutputFile: rel,
		})
		s.log.Debug("item split",
			logging.F("item_number", it.ItemNumber),
			logging.F("page_start", start),
			logging.F("page_end", end),
			logging.F("output_file", rel))
	}

	if _, err := WriteManifest(outDir, m); err != nil {
		return m, err
	}
	return m, nil
}

// containsFileNumber reports whether the item's file number, spaces removed,
// appears within the first ValidatePages pages of its range. Items without
// a file number, or packets without text, always pass.
func (s *Splitter) containsFileNumber(texts []string, it types.AgendaItem, start, end int) bool {
	if it.FileNumber == nil || texts == nil {
		return true
	}
	want := strings.ReplaceAll(*it.FileNumber, " ", "")
	last := min(end, start+s.opts.ValidatePages-1, len(texts))
	for p := start; p <= last; p++ {
		if strings.Contains(strings.ReplaceAll(texts[p-1], " ", ""), want) {
			return true
		}
	}
	return false
}

func itemsToSplit(agenda *types.Agenda) []job {
	var jobs []job
	for _, sec := range agenda.Sections {
		for _, it := range sec.Items {
			if it.HasPages() {
				jobs = append(jobs, job{item: it, section: sec.Category})
			}
		}
	}
	sort.SliceStable(jobs, func(a, b int) bool {
		return *jobs[a].item.PageStart < *jobs[b].item.PageStart
	})
	return jobs
}

func makeDirs(outDir string) error {
	dirs := []string{AgendaDir, OtherDir}
	for _, d := range SectionDirs {
		dirs = append(dirs, d)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(outDir, d), 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	return nil
}

// DirFor returns the output subdirectory for items of a section category.
func DirFor(c types.SectionCategory) string {
	if d, ok := SectionDirs[c]; ok {
		return d
	}
	return OtherDir
}

var (
	dotSpaceRe = regexp.MustCompile(`\.\s*`)
	spaceRe    = regexp.MustCompile(`\s+`)
	unsafeRe   = regexp.MustCompile(`[^\w\-]`)
	dashRunRe  = regexp.MustCompile(`-+`)
)

// SanitizeFileName makes a file number safe for a file name:
// "Ord. 26-006" becomes "Ord-26-006".
func SanitizeFileName(s string) string {
	s = dotSpaceRe.ReplaceAllString(s, "-")
	s = spaceRe.ReplaceAllString(s, "-")
	s = unsafeRe.ReplaceAllString(s, "")
	s = dashRunRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// FileName builds "<NN.MM>_<item_type>[_<file number>].pdf" for an item.
func FileName(it types.AgendaItem) string {
	name := padItemNumber(it.ItemNumber) + "_" + string(it.ItemType)
	if it.FileNumber != nil && *it.FileNumber != "" {
		name += "_" + SanitizeFileName(*it.FileNumber)
	}
	return name + ".pdf"
}

func padItemNumber(item string) string {
	sec, sub, ok := strings.Cut(item, ".")
	a, errA := strconv.Atoi(sec)
	b, errB := strconv.Atoi(sub)
	if !ok || errA != nil || errB != nil {
		return SanitizeFileName(item)
	}
	return fmt.Sprintf("%02d.%02d", a, b)
}
