package thumb

import (
	"image"
	"image/color"
	"testing"

	"github.com/andresmejia3/facesheet/internal/page"
)

func checkerPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"Already small", 40, 30, 40, 30},
		{"Exactly the cap", 80, 80, 80, 80},
		{"Square large", 200, 200, 80, 80},
		{"Landscape", 160, 40, 80, 20},
		{"Portrait", 50, 200, 20, 80},
		{"Thin sliver keeps one pixel", 1000, 1, 80, 1},
		{"Degenerate wide", 300, 0, 80, 0},
		{"Zero", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Fit(tt.w, tt.h)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Fit(%d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestExtractNeverUpscales(t *testing.T) {
	rec := &page.Record{
		ID:    "p.jpg",
		Image: checkerPage(400, 300),
		Faces: []page.BoundingBox{
			{X: 0, Y: 0, Width: 20, Height: 30},
			{X: 10, Y: 10, Width: 250, Height: 120},
			{X: 100, Y: 50, Width: 90, Height: 200},
			{X: 5, Y: 5, Width: 0, Height: 0},
		},
	}

	thumbs := Extract(rec)
	if len(thumbs) != len(rec.Faces) {
		t.Fatalf("Expected %d thumbnails, got %d", len(rec.Faces), len(thumbs))
	}
	for i, th := range thumbs {
		crop := rec.Faces[i].Rect()
		b := th.Bounds()
		if b.Dx() > crop.Dx() || b.Dy() > crop.Dy() {
			t.Errorf("Thumbnail %d (%v) is larger than its crop %v", i, b, crop)
		}
		if max(b.Dx(), b.Dy()) > MaxSide {
			t.Errorf("Thumbnail %d exceeds %d: %v", i, MaxSide, b)
		}
	}

	if !thumbs[3].Bounds().Empty() {
		t.Errorf("Expected degenerate thumbnail, got %v", thumbs[3].Bounds())
	}
}

func TestCropUsesExclusiveRectangle(t *testing.T) {
	img := checkerPage(50, 50)
	crop := Crop(img, page.BoundingBox{X: 10, Y: 20, Width: 5, Height: 3})

	if crop.Bounds() != image.Rect(0, 0, 5, 3) {
		t.Fatalf("Unexpected crop bounds %v", crop.Bounds())
	}
	// Top-left of the crop is the box origin; bottom-right is (x+w-1, y+h-1).
	if got := crop.RGBAAt(0, 0); got.R != 10 || got.G != 20 {
		t.Errorf("Expected pixel (10,20) at crop origin, got %v", got)
	}
	if got := crop.RGBAAt(4, 2); got.R != 14 || got.G != 22 {
		t.Errorf("Expected pixel (14,22) at crop corner, got %v", got)
	}
}

func TestCropPadsOutsidePage(t *testing.T) {
	crop := Crop(checkerPage(30, 30), page.BoundingBox{X: 20, Y: 25, Width: 50, Height: 50})
	if crop.Bounds() != image.Rect(0, 0, 50, 50) {
		t.Fatalf("Expected a crop the size of the box, got %v", crop.Bounds())
	}
	if got := crop.RGBAAt(0, 0); got.R != 20 || got.G != 25 {
		t.Errorf("Expected page pixel (20,25) at crop origin, got %v", got)
	}
	if got := crop.RGBAAt(9, 4); got.R != 29 || got.G != 29 {
		t.Errorf("Expected last page pixel (29,29) at (9,4), got %v", got)
	}
	black := color.RGBA{A: 255}
	for _, p := range []image.Point{{10, 0}, {0, 5}, {49, 49}} {
		if got := crop.RGBAAt(p.X, p.Y); got != black {
			t.Errorf("Expected black padding at %v, got %v", p, got)
		}
	}
}

func TestCropOutsidePageIsBlack(t *testing.T) {
	crop := Crop(checkerPage(10, 10), page.BoundingBox{X: 40, Y: 40, Width: 4, Height: 3})
	if crop.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Fatalf("Unexpected crop bounds %v", crop.Bounds())
	}
	if got := crop.RGBAAt(3, 2); got != (color.RGBA{A: 255}) {
		t.Errorf("Expected black crop, got %v", got)
	}
}

func TestThumbnailSmallIsUnchanged(t *testing.T) {
	img := checkerPage(30, 60)
	if got := Thumbnail(img); got != image.Image(img) {
		t.Error("Expected small image to be returned unchanged")
	}
}
