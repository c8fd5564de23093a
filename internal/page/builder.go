package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Builder turns one encoded page image into a Record.
type Builder struct {
	Detector  Detector
	Extractor Extractor
}

// NewBuilder wires a detector and an extractor into a Builder.
func NewBuilder(d Detector, e Extractor) *Builder {
	return &Builder{Detector: d, Extractor: e}
}

// Build decodes data and runs detection and extraction on it.
//
// A decode failure returns a nil record and a *DecodeError. Detector and
// extractor failures still return a usable record (no faces / empty text)
// together with a *DetectorError and/or *ExtractorError.
func (b *Builder) Build(ctx context.Context, id string, data []byte) (*Record, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{ID: id, Err: err}
	}
	return b.BuildImage(ctx, id, src)
}

// BuildImage runs detection and extraction on an already decoded image.
func (b *Builder) BuildImage(ctx context.Context, id string, src image.Image) (*Record, error) {
	rgba := ToRGBA(src)
	rec := &Record{ID: id, Image: rgba, Faces: []BoundingBox{}}

	var errs []error

	faces, err := b.detect(ctx, rgba)
	if err != nil {
		errs = append(errs, &DetectorError{ID: id, Err: err})
	} else {
		rec.Faces = faces
	}

	if b.Extractor != nil {
		text, err := b.Extractor.ExtractText(ctx, ToGray(rgba))
		if err != nil {
			errs = append(errs, &ExtractorError{ID: id, Err: err})
		} else {
			rec.Text = text
		}
	}

	return rec, errors.Join(errs...)
}

func (b *Builder) detect(ctx context.Context, rgba *image.RGBA) ([]BoundingBox, error) {
	if b.Detector == nil {
		return []BoundingBox{}, nil
	}
	boxes, err := b.Detector.Detect(ctx, rgba)
	if err != nil {
		return nil, err
	}
	return NormalizeBoxes(boxes)
}

// NormalizeBoxes maps every "no detection" shape to an empty non-nil slice and
// rejects boxes with negative extents.
func NormalizeBoxes(boxes []BoundingBox) ([]BoundingBox, error) {
	out := make([]BoundingBox, 0, len(boxes))
	for i, box := range boxes {
		if err := box.Validate(); err != nil {
			return nil, fmt.Errorf("box %d: %w", i, err)
		}
		out = append(out, box)
	}
	return out, nil
}

// ToRGBA returns an opaque RGBA copy of img whose bounds start at the origin.
// Transparent regions are flattened onto white, as a scanned page would be.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// ToGray returns the single-channel derivative handed to text extractors.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
