package split

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageCopier copies page ranges of a PDF into new files. Pages are 1-indexed
// and inclusive.
type PageCopier interface {
	PageCount(src string) (int, error)
	CopyPages(src string, from, to int, dest string) error
}

// PDFCopier implements PageCopier with pdfcpu.
type PDFCopier struct {
	conf *model.Configuration
}

// NewPDFCopier returns a copier that validates input leniently; council
// packets are scanned and re-assembled by several tools.
func NewPDFCopier() *PDFCopier {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCopier{conf: conf}
}

func (c *PDFCopier) PageCount(src string) (int, error) {
	n, err := api.PageCountFile(src)
	if err != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", src, err)
	}
	return n, nil
}

func (c *PDFCopier) CopyPages(src string, from, to int, dest string) error {
	selection := []string{fmt.Sprintf("%d-%d", from, to)}
	if err := api.TrimFile(src, dest, selection, c.conf); err != nil {
		return fmt.Errorf("copying pages %d-%d of %s: %w", from, to, src, err)
	}
	return nil
}
