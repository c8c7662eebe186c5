/**
 * Subprocess Bridge - JSON protocol shared by runner-backed local engines
 *
 * The easyocr and rapidocr backends run as separate processes: a PNG on
 * stdin, a JSON detection list on stdout. Keeping inference out of
 * process means a crashing native runtime cannot take the worker down,
 * and concurrent requests are isolated without any in-process locking.
 */

package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// bridgeDetection is one recognized region reported by a runner.
type bridgeDetection struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	// Box is [x, y, width, height] in pixels; absent for runners
	// without localization.
	Box []int `json:"box,omitempty"`
}

// bridgeOutput is the runner's stdout document.
type bridgeOutput struct {
	Detections []bridgeDetection `json:"detections"`
	Error      string            `json:"error,omitempty"`
}

// runBridge executes a runner with the image on stdin and decodes its
// detection list. The context bounds the whole subprocess lifetime.
func runBridge(ctx context.Context, runner string, args []string, image []byte) ([]bridgeDetection, error) {
	cmd := exec.CommandContext(ctx, runner, args...)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("runner %s failed: %s", runner, msg)
	}

	var out bridgeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("runner %s produced invalid output: %w", runner, err)
	}

	if out.Error != "" {
		return nil, fmt.Errorf("runner %s reported: %s", runner, out.Error)
	}

	return out.Detections, nil
}

// joinDetections concatenates detection texts and averages their
// confidences. Zero detections yield empty text and zero confidence.
func joinDetections(detections []bridgeDetection) (string, float64, []float64) {
	if len(detections) == 0 {
		return "", 0, nil
	}

	parts := make([]string, 0, len(detections))
	confidences := make([]float64, 0, len(detections))
	var sum float64
	for _, d := range detections {
		parts = append(parts, d.Text)
		confidences = append(confidences, d.Confidence)
		sum += d.Confidence
	}

	return strings.Join(parts, " "), sum / float64(len(detections)), confidences
}

// detectionAnnotations converts localized detections to bbox annotations.
func detectionAnnotations(detections []bridgeDetection) []BBoxAnnotation {
	annotations := make([]BBoxAnnotation, 0, len(detections))
	for _, d := range detections {
		if len(d.Box) != 4 {
			continue
		}
		annotations = append(annotations, BBoxAnnotation{
			Text:       d.Text,
			Confidence: d.Confidence,
			Box: BoundingBox{
				X:      d.Box[0],
				Y:      d.Box[1],
				Width:  d.Box[2],
				Height: d.Box[3],
			},
		})
	}
	if len(annotations) == 0 {
		return nil
	}
	return annotations
}

// resolveRunner looks the runner binary up on PATH when the configured
// value has no path separator. An empty return means unavailable.
func resolveRunner(configured string) string {
	if configured == "" {
		return ""
	}
	if strings.ContainsRune(configured, '/') {
		return configured
	}
	path, err := exec.LookPath(configured)
	if err != nil {
		return ""
	}
	return path
}
