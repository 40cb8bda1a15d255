package textsource

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Gaps between glyph runs, as a fraction of the font size, that become one or
// two spaces when a row is rebuilt.
const (
	spaceGap  = 0.2
	columnGap = 1.5
)

func readPDF(r io.ReaderAt, size int64, maxPages int) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("pdf reader: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := reader.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, pageText(page))
	}
	return pages, nil
}

// pageText rebuilds a page as visual rows, top to bottom.
func pageText(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			return ""
		}
		return text
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, rowText(row.Content))
	}
	return strings.Join(lines, "\n")
}

func rowText(texts pdf.TextHorizontal) string {
	runs := make([]pdf.Text, len(texts))
	copy(runs, texts)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var b strings.Builder
	var end float64
	for i, t := range runs {
		if i > 0 {
			size := t.FontSize
			if size <= 0 {
				size = 10
			}
			gap := t.X - end
			switch {
			case gap > size*columnGap:
				padTo(&b, 2)
			case gap > size*spaceGap:
				padTo(&b, 1)
			}
		}
		b.WriteString(t.S)
		end = t.X + t.W
	}
	return strings.TrimRight(b.String(), " ")
}

// padTo makes sure b ends with at least n spaces.
func padTo(b *strings.Builder, n int) {
	s := b.String()
	have := len(s) - len(strings.TrimRight(s, " "))
	for ; have < n; have++ {
		b.WriteByte(' ')
	}
}
