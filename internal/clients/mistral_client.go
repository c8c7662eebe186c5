/**
 * Mistral Client - Mistral Document AI OCR API
 *
 * Thin HTTP client for the /v1/ocr endpoint. Documents are submitted
 * inline as base64 data URLs; the response carries per-page markdown and
 * page dimensions. The client does request plumbing only - confidence
 * estimation and result shaping live in the engine that wraps it.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/factlens/ocr-worker/internal/logging"
)

const defaultMistralBaseURL = "https://api.mistral.ai"

// MistralClient handles communication with the Mistral OCR API
type MistralClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// OCRRequest is the request body for /v1/ocr
type OCRRequest struct {
	Model                string         `json:"model"`
	Document             DocumentChunk  `json:"document"`
	Pages                []int          `json:"pages,omitempty"`
	IncludeImageBase64   bool           `json:"include_image_base64,omitempty"`
	BBoxAnnotationFormat *ResponseShape `json:"bbox_annotation_format,omitempty"`
}

// DocumentChunk identifies the submitted document. Type is "image_url"
// or "document_url"; the matching URL field carries a base64 data URL.
type DocumentChunk struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

// ResponseShape requests a structured annotation format by name
type ResponseShape struct {
	Type string `json:"type"`
}

// OCRResponse is the response body from /v1/ocr
type OCRResponse struct {
	Pages     []OCRPage `json:"pages"`
	Model     string    `json:"model"`
	UsageInfo struct {
		PagesProcessed int  `json:"pages_processed"`
		DocSizeBytes   *int `json:"doc_size_bytes"`
	} `json:"usage_info"`
}

// OCRPage is a single page of the OCR response
type OCRPage struct {
	Index      int            `json:"index"`
	Markdown   string         `json:"markdown"`
	Images     []OCRPageImage `json:"images"`
	Dimensions struct {
		DPI    int `json:"dpi"`
		Height int `json:"height"`
		Width  int `json:"width"`
	} `json:"dimensions"`
}

// OCRPageImage is an image region localized on a page
type OCRPageImage struct {
	ID           string `json:"id"`
	TopLeftX     int    `json:"top_left_x"`
	TopLeftY     int    `json:"top_left_y"`
	BottomRightX int    `json:"bottom_right_x"`
	BottomRightY int    `json:"bottom_right_y"`
	ImageBase64  string `json:"image_base64,omitempty"`
}

// APIError is the error body returned on non-2xx responses
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewMistralClient creates a new Mistral OCR client. An empty baseURL
// selects the public API endpoint.
func NewMistralClient(baseURL, apiKey string, timeout time.Duration) *MistralClient {
	if baseURL == "" {
		baseURL = defaultMistralBaseURL
	}
	return &MistralClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("MistralClient"),
	}
}

// ProcessImage submits image bytes for OCR
func (c *MistralClient) ProcessImage(ctx context.Context, model string, image []byte, req *OCRRequest) (*OCRResponse, error) {
	dataURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(image))
	req.Model = model
	req.Document = DocumentChunk{Type: "image_url", ImageURL: dataURL}
	return c.process(ctx, req)
}

// ProcessPDF submits PDF bytes for OCR, optionally restricted to pages
func (c *MistralClient) ProcessPDF(ctx context.Context, model string, pdf []byte, req *OCRRequest) (*OCRResponse, error) {
	dataURL := fmt.Sprintf("data:application/pdf;base64,%s", base64.StdEncoding.EncodeToString(pdf))
	req.Model = model
	req.Document = DocumentChunk{Type: "document_url", DocumentURL: dataURL}
	return c.process(ctx, req)
}

func (c *MistralClient) process(ctx context.Context, req *OCRRequest) (*OCRResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/ocr", c.baseURL)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Request-ID", fmt.Sprintf("ocr-%d", time.Now().UnixNano()))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to Mistral OCR failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("Mistral OCR returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("Mistral OCR returned status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp OCRResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Info("OCR request complete",
		"model", ocrResp.Model,
		"pages", ocrResp.UsageInfo.PagesProcessed,
		"duration", time.Since(start))

	return &ocrResp, nil
}
