// Package ocr provides the text extractors used to build page records.
// Engines return the recognized text untouched; search matches against it verbatim.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/andresmejia3/facesheet/internal/page"
)

// Engine names accepted by New.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
)

// Engine is an extractor holding resources that Close releases.
type Engine interface {
	page.Extractor
	Close() error
}

// Validate reports whether name selects a known engine. An empty name selects Tesseract.
func Validate(name string) error {
	switch name {
	case "", EngineTesseract, EngineVision:
		return nil
	default:
		return fmt.Errorf("unknown ocr engine %q (expected %s or %s)", name, EngineTesseract, EngineVision)
	}
}

// New returns the engine registered under name. Connections an engine needs
// are opened here once and reused for every page until Close.
func New(ctx context.Context, name string, languages []string) (Engine, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}
	if name == EngineVision {
		return NewVision(ctx)
	}
	return &Tesseract{Languages: languages}, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return buf.Bytes(), nil
}
