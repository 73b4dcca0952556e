package recognize

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// DefaultMaxImageSide bounds the longest side of an uploaded page image.
// Larger renders are downscaled before encoding to keep request bodies
// inside the service's payload limit.
const DefaultMaxImageSide = 3500

// encodeDataURL turns a page image into a base64 PNG data URL, downscaling
// first when either dimension exceeds maxSide (0 disables the bound).
func encodeDataURL(img image.Image, maxSide int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	if maxSide > 0 && (bounds.Dx() > maxSide || bounds.Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
