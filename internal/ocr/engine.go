// Package ocr adapts the Tesseract engine behind domain.Recognizer.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"chatrelay/internal/domain"
)

// Engine recognizes text via a long-lived Tesseract client. The loop is
// single-threaded, so one client is reused across iterations; callers must
// Close it at shutdown.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates a recognition engine for the given language spec
// (e.g. "jpn+eng") and page segmentation mode.
func NewEngine(lang string, pageSegMode int) (*Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(splitLangs(lang)...); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: language %q: %v", domain.ErrRecognition, lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(pageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: psm %d: %v", domain.ErrRecognition, pageSegMode, err)
	}
	return &Engine{client: client}, nil
}

// Recognize extracts text from the image. A failure is transient: the loop
// treats the iteration as having produced no text.
func (e *Engine) Recognize(img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", domain.ErrRecognition, err)
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("%w: set image: %v", domain.ErrRecognition, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRecognition, err)
	}
	return text, nil
}

// Close releases the Tesseract client.
func (e *Engine) Close() error {
	return e.client.Close()
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// splitLangs turns "jpn+eng" into the variadic form gosseract expects.
func splitLangs(lang string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(lang); i++ {
		if i == len(lang) || lang[i] == '+' {
			if i > start {
				out = append(out, lang[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		out = append(out, "eng")
	}
	return out
}

// Ensure Engine implements domain.Recognizer.
var _ domain.Recognizer = (*Engine)(nil)
