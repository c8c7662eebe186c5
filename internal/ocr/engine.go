/**
 * Engine Interface - Capability contract for every OCR backend
 *
 * All backend variants (one cloud API engine, three local engines) are
 * polymorphic over this interface. The factory never dispatches on the
 * concrete type.
 */

package ocr

import "context"

// Options carries per-request processing options. Extra holds
// engine-specific knobs that the orchestration layer passes through
// without interpreting.
type Options struct {
	// PageNumber is the original page number carried into PDF page
	// results. Zero means page 1.
	PageNumber int

	// BBoxFormat selects the annotation format for engines that return
	// bounding boxes. Empty means the engine default.
	BBoxFormat string

	// Extra holds engine-specific pass-through options.
	Extra map[string]string
}

// Engine is the capability contract implemented by every OCR backend.
//
// Implementations must tolerate concurrent invocation from multiple
// in-flight requests: any non-thread-safe native handle is serialized
// inside the engine, never exposed to callers.
type Engine interface {
	// ProcessImage runs OCR on raw image bytes.
	ProcessImage(ctx context.Context, image []byte, language string, opts *Options) (*Result, error)

	// ProcessPDFPage runs OCR on a single rasterized PDF page. Engines
	// without native PDF support rasterize the page to an image
	// internally and delegate to ProcessImage; the result metadata then
	// carries the original page number and a conversion marker.
	ProcessPDFPage(ctx context.Context, page []byte, pageNumber int, language string, opts *Options) (*Result, error)

	// SupportsLanguage reports whether the engine can recognize the
	// given ISO 639-1 language code.
	SupportsLanguage(language string) bool

	// EngineInfo returns the engine's static capability description.
	EngineInfo() EngineInfo

	// IsAvailable is a pure capability and configuration check. It must
	// not perform network I/O.
	IsAvailable() bool

	// EstimateCost returns the estimated monetary cost in USD of
	// processing dataSize bytes across the given number of pages, or
	// nil for engines with no per-page cost.
	EstimateCost(dataSize int64, pages int) *float64
}

// estimateCostFromInfo is the shared EstimateCost implementation: a flat
// per-page rate taken from the engine's static info.
func estimateCostFromInfo(info EngineInfo, pages int) *float64 {
	if info.CostPerPage == nil {
		return nil
	}
	if pages < 1 {
		pages = 1
	}
	cost := *info.CostPerPage * float64(pages)
	return &cost
}
