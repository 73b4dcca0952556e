package testutil

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestImage(t *testing.T) {
	img := CreateTestImage(100, 50, color.White)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestCreateTestImageWithText(t *testing.T) {
	img := CreateTestImageWithText("Hello", 320, 240)
	assert.Equal(t, 320, img.Bounds().Dx())

	// The rendered text must darken at least one pixel.
	dark := false
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y && !dark; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0x8000 && g < 0x8000 && b < 0x8000 {
				dark = true
				break
			}
		}
	}
	assert.True(t, dark, "expected rendered text pixels")
}

func TestWriteTestImage(t *testing.T) {
	dir := t.TempDir()
	path := WriteTestImage(t, dir, "sample.png", "Sample")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteTestPDF(t *testing.T) {
	dir := t.TempDir()
	path := WriteTestPDF(t, dir, "doc.pdf", 3)

	data, err := os.ReadFile(filepath.Clean(path))
	require.NoError(t, err)

	assert.True(t, len(data) > 100)
	assert.Equal(t, "%PDF-1.4", string(data[:8]))
	assert.Contains(t, string(data), "/Count 3")
	assert.Contains(t, string(data), "%%EOF")
}
