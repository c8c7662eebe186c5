package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// normalizePNG re-encodes arbitrary input image bytes (JPEG, PNG, TIFF,
// BMP, GIF) as PNG. The subprocess bridge engines expect a single known
// format on stdin.
func normalizePNG(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}
