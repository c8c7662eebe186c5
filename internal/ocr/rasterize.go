/**
 * PDF Page Rasterization - MuPDF-backed page-to-image conversion
 *
 * Local engines have no native PDF support; they rasterize the single
 * submitted page to PNG here before delegating to their image path.
 */

package ocr

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// MuPDF contexts are not safe for concurrent use from multiple
// goroutines; rasterization is serialized process-wide.
var rasterizeMu sync.Mutex

// rasterizePDFPage renders the first page of the given single-page PDF
// payload to PNG bytes.
func rasterizePDFPage(page []byte) ([]byte, error) {
	rasterizeMu.Lock()
	defer rasterizeMu.Unlock()

	doc, err := fitz.NewFromMemory(page)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF page: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, fmt.Errorf("PDF payload contains no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode rendered page: %w", err)
	}

	return buf.Bytes(), nil
}
