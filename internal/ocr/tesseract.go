package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract extracts text with a local Tesseract installation through gosseract.
type Tesseract struct {
	Languages []string
	// Variables are passed to Tesseract as-is (e.g. tessedit_pageseg_mode).
	Variables map[string]string
}

// ExtractText runs OCR on the page. A fresh client is used per call because
// gosseract clients are not safe for concurrent use.
func (t *Tesseract) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	c := gosseract.NewClient()
	defer c.Close()

	if len(t.Languages) > 0 {
		if err := c.SetLanguage(t.Languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	for k, v := range t.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// Close is a no-op; every call to ExtractText owns its own client.
func (t *Tesseract) Close() error { return nil }
