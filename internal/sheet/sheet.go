package sheet

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	// Width is the fixed width of the canvas and of every block appended to it.
	Width = 400
	// CaptionHeight is the height of a caption banner.
	CaptionHeight = 40
	// CellSize is the side of one contact sheet cell.
	CellSize = 80
	// SheetRows is the fixed number of rows in a contact sheet.
	SheetRows = 2
	// SheetHeight is the height of a contact sheet block.
	SheetHeight = SheetRows * CellSize
	// Columns is the number of cells per contact sheet row.
	Columns = Width / CellSize
	// Capacity is the most thumbnails a single sheet can hold.
	Capacity = Columns * SheetRows
)

// captionOrigin is where the top-left of caption text lands on its banner.
var captionOrigin = image.Pt(1, 5)

// Canvas is the growable output image. Appends never touch the receiver;
// they return a taller canvas holding the old content plus the new block.
type Canvas struct {
	img    *image.RGBA
	face   font.Face
	blocks []int
}

// New returns an empty canvas (Width x 0) that draws captions with face.
// A nil face falls back to DefaultFace.
func New(face font.Face) *Canvas {
	if face == nil {
		face = DefaultFace()
	}
	return &Canvas{
		img:  image.NewRGBA(image.Rect(0, 0, Width, 0)),
		face: face,
	}
}

// AppendCaption adds a white banner with text drawn left-aligned near its top.
func (c *Canvas) AppendCaption(text string) *Canvas {
	banner := image.NewRGBA(image.Rect(0, 0, Width, CaptionHeight))
	draw.Draw(banner, banner.Bounds(), image.White, image.Point{}, draw.Src)

	ascent := c.face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  banner,
		Src:  image.Black,
		Face: c.face,
		Dot:  fixed.Point26_6{X: fixed.I(captionOrigin.X), Y: fixed.I(captionOrigin.Y) + ascent},
	}
	d.DrawString(text)

	return c.appendBlock(banner)
}

// AppendSheet lays thumbs out row-major on a fixed 5x2 grid of 80x80 cells.
// Unused cells stay blank. Thumbnails past Capacity are not placed.
func (c *Canvas) AppendSheet(thumbs []image.Image) *Canvas {
	grid := image.NewRGBA(image.Rect(0, 0, Width, SheetHeight))
	draw.Draw(grid, grid.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	x, y := 0, 0
	for _, th := range thumbs {
		if y >= SheetHeight {
			break
		}
		b := th.Bounds()
		cell := image.Rect(x, y, x+b.Dx(), y+b.Dy()).Intersect(grid.Bounds())
		if !cell.Empty() {
			draw.Draw(grid, cell, th, b.Min, draw.Src)
		}
		if x+CellSize == Width {
			x = 0
			y += CellSize
		} else {
			x += CellSize
		}
	}

	return c.appendBlock(grid)
}

// appendBlock allocates a taller canvas, copies the old content to the top and
// the block below it.
func (c *Canvas) appendBlock(block *image.RGBA) *Canvas {
	oldH := c.img.Bounds().Dy()
	blockH := block.Bounds().Dy()

	next := image.NewRGBA(image.Rect(0, 0, Width, oldH+blockH))
	draw.Draw(next, c.img.Bounds(), c.img, image.Point{}, draw.Src)
	draw.Draw(next, image.Rect(0, oldH, Width, oldH+blockH), block, image.Point{}, draw.Src)

	blocks := make([]int, len(c.blocks), len(c.blocks)+1)
	copy(blocks, c.blocks)
	return &Canvas{
		img:    next,
		face:   c.face,
		blocks: append(blocks, blockH),
	}
}

// Image returns the rendered canvas.
func (c *Canvas) Image() image.Image { return c.img }

// Width is always the package Width.
func (c *Canvas) Width() int { return c.img.Bounds().Dx() }

// Height is the sum of the heights of all appended blocks.
func (c *Canvas) Height() int { return c.img.Bounds().Dy() }

// Blocks returns the heights of the appended blocks in order.
func (c *Canvas) Blocks() []int { return append([]int(nil), c.blocks...) }
