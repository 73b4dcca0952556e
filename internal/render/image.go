package render

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ImageDocument exposes a single raster file as a one-page document. The
// decoded image is returned as-is; DPI only applies to vector sources.
type ImageDocument struct {
	img    image.Image
	path   string
	format string
}

// OpenImage decodes a raster file into a one-page document.
func OpenImage(path string) (*ImageDocument, error) {
	if !IsImagePath(path) {
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided input path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	return &ImageDocument{img: img, path: path, format: format}, nil
}

// PageCount is always 1 for raster input.
func (d *ImageDocument) PageCount() int { return 1 }

// Label returns the file name without directories.
func (d *ImageDocument) Label() string { return filepath.Base(d.path) }

// Format returns the decoded format name (png, jpeg, bmp, tiff).
func (d *ImageDocument) Format() string { return d.format }

// RenderPage returns the decoded image for page 0.
func (d *ImageDocument) RenderPage(pageIndex, _ int) (image.Image, error) {
	if pageIndex != 0 {
		return nil, fmt.Errorf("page index %d out of range [0,1)", pageIndex)
	}
	return d.img, nil
}

// Close is a no-op; the pixels live in memory.
func (d *ImageDocument) Close() error { return nil }
