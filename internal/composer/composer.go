// Package composer turns a user's text and uploaded files into the request
// sent to the copilot webhook.
package composer

import (
	"path/filepath"
	"strings"

	"cashly-copilot/internal/model"
	"cashly-copilot/pkg/logger"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// Upload is a file the user attached, already buffered in memory.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AllowedExtensions are the only file types the upload surfaces accept.
var AllowedExtensions = []string{".pdf", ".txt"}

// Allowed reports whether filename carries one of AllowedExtensions.
func Allowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

type Composer struct {
	pdf Extractor
}

// New returns a Composer using pdf for PDF attachments. A nil extractor
// makes every PDF degrade to its placeholder text.
func New(pdf Extractor) *Composer {
	return &Composer{pdf: pdf}
}

// Default wires the ledongthuc/pdf extractor.
func Default() *Composer {
	return New(PDFExtractor{})
}

// Compose builds the webhook request and the attachment references kept
// with the user message. No files yields a request without a files key.
func (c *Composer) Compose(text string, uploads []Upload) (model.AgentRequest, []model.AttachmentRef) {
	req := model.AgentRequest{Message: text}
	if len(uploads) == 0 {
		return req, nil
	}

	files := make([]model.AgentFile, 0, len(uploads))
	refs := make([]model.AttachmentRef, 0, len(uploads))
	for _, u := range uploads {
		f := c.file(u)
		files = append(files, f)
		refs = append(refs, model.AttachmentRef{
			Filename:      f.Filename,
			ContentType:   f.ContentType,
			ExtractedText: f.Content,
		})
	}

	req.Files = files
	return req, refs
}

func (c *Composer) file(u Upload) model.AgentFile {
	name := u.Filename
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return model.AgentFile{
			Filename:    name,
			ContentType: ContentTypePDF,
			Content:     c.pdfText(u),
		}
	case ".txt":
		ct := u.ContentType
		if ct == "" || ct == "application/octet-stream" {
			ct = ContentTypeText
		}
		return model.AgentFile{
			Filename:    name,
			ContentType: ct,
			Content:     strings.ToValidUTF8(string(u.Data), "\uFFFD"),
		}
	default:
		return model.AgentFile{
			Filename:    name,
			ContentType: u.ContentType,
			Content:     "[Binary file: " + name + "]",
		}
	}
}

func (c *Composer) pdfText(u Upload) string {
	if c.pdf == nil {
		return PDFPlaceholder(u.Filename)
	}
	text, err := c.pdf.Extract(u.Filename, u.Data)
	if err != nil {
		logger.Warnf("PDF extraction failed for %s: %v", u.Filename, err)
		return PDFPlaceholder(u.Filename)
	}
	return text
}

// PDFPlaceholder stands in for a PDF whose text could not be read.
func PDFPlaceholder(filename string) string {
	return "[PDF content from " + filename + " - PDF processing library not available]"
}
