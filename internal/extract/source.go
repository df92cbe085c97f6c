// Package extract normalizes raw library documents (images, multi-page
// PDFs, plain text) into per-page plain text, delegating image recognition
// to the external OCR capability. Documents are modelled as a closed set of
// page source variants rather than inspected by content sniffing: the
// variant is chosen once from the file extension, and everything downstream
// works against the PageSource capability.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/oraculo-labs/oraculo-go/internal/library"
)

// Page is the unit a PageSource yields. Exactly one of Text or Image is
// populated: Text when the format carries a native text layer (plain text
// files, born-digital PDF pages), Image when the page must go through OCR.
type Page struct {
	// Text is the native text of the page, if the format carries one.
	Text string

	// Image is the raw page image to recognize when Text is empty.
	Image []byte
}

// PageSource is the capability interface every document variant implements.
// Page ordering follows the document's reading order.
type PageSource interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// Page returns the content of the i-th page (0-based). An error marks
	// that single page as failed; it does not abort the document.
	Page(i int) (Page, error)
}

// NewPageSource selects the variant for the given document based on its
// file extension. Unknown extensions fail with ReasonUnsupportedFormat;
// a PDF that cannot be opened fails with ReasonUnreadable.
func NewPageSource(doc *library.Document) (PageSource, error) {
	switch doc.Ref.Ext() {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return &ImageDocument{data: doc.Bytes}, nil
	case ".txt":
		return &TextDocument{data: doc.Bytes}, nil
	case ".pdf":
		src, err := NewPDFDocument(doc.Bytes)
		if err != nil {
			return nil, &ExtractionError{Reason: ReasonUnreadable, Identity: doc.Identity(), Err: err}
		}
		return src, nil
	default:
		return nil, &ExtractionError{Reason: ReasonUnsupportedFormat, Identity: doc.Identity()}
	}
}

// ImageDocument is a single-page scanned image.
type ImageDocument struct {
	data []byte
}

// PageCount returns 1; an image is always a single page.
func (d *ImageDocument) PageCount() int { return 1 }

// Page returns the raw image bytes for OCR.
func (d *ImageDocument) Page(i int) (Page, error) {
	if i != 0 {
		return Page{}, fmt.Errorf("image has no page %d", i+1)
	}
	return Page{Image: d.data}, nil
}

// TextDocument is a plain-text file; it bypasses OCR entirely.
type TextDocument struct {
	data []byte
}

// PageCount returns 1; a text file is treated as a single page.
func (d *TextDocument) PageCount() int { return 1 }

// Page returns the decoded text, replacing invalid UTF-8 sequences so the
// downstream chunker never sees broken runes.
func (d *TextDocument) Page(i int) (Page, error) {
	if i != 0 {
		return Page{}, fmt.Errorf("text file has no page %d", i+1)
	}
	return Page{Text: strings.ToValidUTF8(string(d.data), string(utf8.RuneError))}, nil
}

// PDFDocument is a multi-page PDF. Pages with a native text layer are read
// directly; scanned pages expose their embedded page image for OCR.
type PDFDocument struct {
	reader *pdf.Reader
}

// NewPDFDocument parses the PDF structure. Parsing the outline is cheap;
// page content is only decoded when a page is requested.
func NewPDFDocument(data []byte) (*PDFDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &PDFDocument{reader: reader}, nil
}

// PageCount returns the number of pages in the PDF.
func (d *PDFDocument) PageCount() int { return d.reader.NumPage() }

// Page returns the i-th page's native text when present, otherwise the
// largest embedded image on the page (scanned PDFs store each page as one
// full-page image XObject).
func (d *PDFDocument) Page(i int) (page Page, err error) {
	// The underlying parser panics on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf page %d: %v", i+1, r)
		}
	}()

	p := d.reader.Page(i + 1)
	if p.V.IsNull() {
		return Page{}, fmt.Errorf("pdf page %d is missing", i+1)
	}

	text, textErr := p.GetPlainText(nil)
	text = strings.TrimSpace(text)
	if textErr == nil && text != "" {
		return Page{Text: text}, nil
	}

	image := largestPageImage(p)
	if len(image) == 0 {
		if textErr != nil {
			return Page{}, fmt.Errorf("pdf page %d: %w", i+1, textErr)
		}
		return Page{}, fmt.Errorf("pdf page %d has no text layer and no page image", i+1)
	}
	return Page{Image: image}, nil
}

// largestPageImage returns the decoded stream of the biggest image XObject
// on the page, or nil when the page embeds no images. Scanned documents
// carry the full page scan as a single DCT (JPEG) stream, which OCR engines
// accept directly.
func largestPageImage(p pdf.Page) []byte {
	xobjects := p.V.Key("Resources").Key("XObject")
	if xobjects.IsNull() {
		return nil
	}

	var largest []byte
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		data, err := io.ReadAll(obj.Reader())
		if err != nil {
			continue
		}
		if len(data) > len(largest) {
			largest = data
		}
	}
	return largest
}
