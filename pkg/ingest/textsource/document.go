// Package textsource turns council documents into per-page text.
//
// PDFs are read with github.com/ledongthuc/pdf and rebuilt row by row so that
// the wide gaps the layout uses between a vote result and its detail survive
// as runs of spaces. Plain-text exports are accepted too, with form feeds
// separating pages.
package textsource

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
)

// Document is the page text of one source file.
type Document struct {
	Path  string
	Pages []string
}

// PageCount returns the number of pages read.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Text joins all pages with newlines.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n")
}

// Lines splits the joined text into lines.
func (d *Document) Lines() []string {
	text := d.Text()
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Head returns at most the first n bytes of the joined text, cut on a rune boundary.
func (d *Document) Head(n int) string {
	text := d.Text()
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Options controls how a document is read.
type Options struct {
	// MaxPages limits how many leading pages are read. Zero means all.
	MaxPages int
}

// Open reads the document at path. The format is chosen by extension, falling
// back to sniffing the PDF header.
func Open(path string, opts Options) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ierrors.ErrInputMissing, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ierrors.ErrUnreadable, path, err)
	}

	var pages []string
	switch {
	case strings.EqualFold(filepath.Ext(path), ".pdf"), bytes.HasPrefix(data, []byte("%PDF-")):
		pages, err = readPDF(bytes.NewReader(data), int64(len(data)), opts.MaxPages)
	default:
		pages = splitPages(string(data), opts.MaxPages)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ierrors.ErrUnreadable, path, err)
	}

	for i, p := range pages {
		pages[i] = normalizePage(p)
	}
	return &Document{Path: path, Pages: pages}, nil
}

// Read parses a plain-text document from r.
func Read(name string, r io.Reader, opts Options) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ierrors.ErrUnreadable, name, err)
	}
	pages := splitPages(string(data), opts.MaxPages)
	for i, p := range pages {
		pages[i] = normalizePage(p)
	}
	return &Document{Path: name, Pages: pages}, nil
}

// FromLines wraps already-split lines as a single-page document.
func FromLines(name string, lines []string) *Document {
	return &Document{Path: name, Pages: []string{strings.Join(lines, "\n")}}
}

func splitPages(text string, maxPages int) []string {
	text = strings.TrimSuffix(text, "\f")
	pages := strings.Split(text, "\f")
	if maxPages > 0 && len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return pages
}

func normalizePage(p string) string {
	p = strings.ReplaceAll(p, "\r\n", "\n")
	p = strings.ReplaceAll(p, "\u00a0", " ")
	return strings.TrimRight(norm.NFC.String(p), "\n")
}
