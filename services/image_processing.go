package services

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const maxGarmentEdge = 1280

// PrepareGarmentPhoto normalizes an uploaded photo before classification:
// fixes EXIF orientation, bounds the longest edge and re-encodes to JPEG
// so the Gemini upload stays small.
func PrepareGarmentPhoto(imageBytes []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxGarmentEdge || bounds.Dy() > maxGarmentEdge {
		img = imaging.Fit(img, maxGarmentEdge, maxGarmentEdge, imaging.Lanczos)
	}
	img = imaging.Sharpen(img, 0.3)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(88)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
