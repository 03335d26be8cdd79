package composer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of an uploaded document.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

// PDFExtractor reads page text with ledongthuc/pdf. Each page's text is
// followed by a newline, pages that fail to decode contribute nothing.
type PDFExtractor struct{}

func (PDFExtractor) Extract(filename string, data []byte) (text string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf %s: %v", filename, r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf %s: %w", filename, err)
	}

	var b strings.Builder
	for i := 1; i <= rdr.NumPage(); i++ {
		pg := rdr.Page(i)
		if pg.V.IsNull() {
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}

	return b.String(), nil
}
