package page

import (
	"context"
	"fmt"
	"image"
)

// BoundingBox is a detector rectangle in the page's native top-left-origin pixel space.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the (x, y, w, h) form into the inclusive/exclusive rectangle used for cropping.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Empty reports whether the box has zero area.
func (b BoundingBox) Empty() bool {
	return b.Width == 0 || b.Height == 0
}

// Validate rejects negative extents. Zero-area boxes are legal.
func (b BoundingBox) Validate() error {
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("bounding box %v has negative extent", b)
	}
	return nil
}

// Record is the immutable per-page result of detection and extraction.
// Faces is never nil for a built record.
type Record struct {
	ID    string
	Image image.Image
	Faces []BoundingBox
	Text  string
}

// Detector finds faces on a canonical RGBA page.
type Detector interface {
	Detect(ctx context.Context, img *image.RGBA) ([]BoundingBox, error)
}

// Extractor returns the raw text found on a grayscale page.
type Extractor interface {
	ExtractText(ctx context.Context, img *image.Gray) (string, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(ctx context.Context, img *image.RGBA) ([]BoundingBox, error)

func (f DetectorFunc) Detect(ctx context.Context, img *image.RGBA) ([]BoundingBox, error) {
	return f(ctx, img)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, img *image.Gray) (string, error)

func (f ExtractorFunc) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	return f(ctx, img)
}
