// Package render opens multi-page documents and rasterizes single pages on
// demand. Pages are never pre-rendered; callers ask for exactly the page
// they are about to process.
package render

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// DefaultDPI is the rasterization resolution used when none is configured.
const DefaultDPI = 300

// Document is an open multi-page source. Implementations must allow
// RenderPage to be called concurrently for different pages of the same
// handle.
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// Label returns the source name used in results and logs.
	Label() string

	// RenderPage rasterizes one zero-based page at the given resolution.
	RenderPage(pageIndex, dpi int) (image.Image, error)

	// Close releases the underlying handle.
	Close() error
}

// SupportedImageExtensions lists raster formats accepted as single-page
// documents.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// IsImagePath reports whether path has a supported raster extension.
func IsImagePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// IsPDFPath reports whether path names a PDF.
func IsPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Open opens path as a Document, choosing the backend from the extension.
func Open(path string) (Document, error) {
	switch {
	case IsPDFPath(path):
		return OpenPDF(path)
	case IsImagePath(path):
		return OpenImage(path)
	default:
		return nil, fmt.Errorf("unsupported input format: %s (expected .pdf or one of %s)",
			filepath.Ext(path), strings.Join(SupportedImageExtensions, ", "))
	}
}
