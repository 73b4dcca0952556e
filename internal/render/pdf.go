package render

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// PDFDocument renders PDF pages through MuPDF. The underlying fitz handle is
// not safe for concurrent use, so rendering is serialized internally; remote
// recognition calls still overlap freely around it.
type PDFDocument struct {
	mu    sync.Mutex
	doc   *fitz.Document
	path  string
	pages int
}

// OpenPDF opens a PDF file for page rendering.
func OpenPDF(path string) (*PDFDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	return &PDFDocument{
		doc:   doc,
		path:  path,
		pages: doc.NumPage(),
	}, nil
}

// PageCount returns the number of pages.
func (d *PDFDocument) PageCount() int { return d.pages }

// Label returns the file name without directories.
func (d *PDFDocument) Label() string { return filepath.Base(d.path) }

// RenderPage rasterizes one page at the given DPI (DefaultDPI when dpi <= 0).
func (d *PDFDocument) RenderPage(pageIndex, dpi int) (image.Image, error) {
	if pageIndex < 0 || pageIndex >= d.pages {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", pageIndex, d.pages)
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, fmt.Errorf("document %s is closed", d.Label())
	}

	img, err := d.doc.ImageDPI(pageIndex, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d of %s: %w", pageIndex+1, d.Label(), err)
	}
	return img, nil
}

// Close releases the fitz handle. Safe to call more than once.
func (d *PDFDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", d.Label(), err)
	}
	return nil
}
