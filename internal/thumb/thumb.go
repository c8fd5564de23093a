package thumb

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/andresmejia3/facesheet/internal/page"
)

// MaxSide is the largest width or height a thumbnail may have.
const MaxSide = 80

// Extract crops every face of rec and shrinks it to fit in MaxSide x MaxSide.
// The result has one thumbnail per face, in detector order.
func Extract(rec *page.Record) []image.Image {
	thumbs := make([]image.Image, 0, len(rec.Faces))
	for _, box := range rec.Faces {
		thumbs = append(thumbs, Thumbnail(Crop(rec.Image, box)))
	}
	return thumbs
}

// Crop copies the box region of img into a new image anchored at the origin.
// The crop always has the size of the box: parts lying outside the page are
// filled with opaque black. An empty box yields a zero-size image.
func Crop(img image.Image, box page.BoundingBox) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, box.Width, box.Height))
	if box.Empty() {
		return dst
	}
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)

	r := box.Rect().Intersect(img.Bounds())
	if r.Empty() {
		return dst
	}
	draw.Draw(dst, r.Sub(box.Rect().Min), img, r.Min, draw.Src)
	return dst
}

// Thumbnail shrinks img so neither side exceeds MaxSide, keeping the aspect ratio.
// Images that already fit are returned as is; nothing is ever scaled up.
func Thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy())
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Fit returns the thumbnail size for a w x h crop.
func Fit(w, h int) (int, int) {
	if w <= MaxSide && h <= MaxSide {
		return w, h
	}
	if w == 0 || h == 0 {
		return min(w, MaxSide), min(h, MaxSide)
	}
	if w >= h {
		return MaxSide, max(1, (h*MaxSide+w/2)/w)
	}
	return max(1, (w*MaxSide+h/2)/h), MaxSide
}
