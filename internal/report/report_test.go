package report

import (
	"image"
	"reflect"
	"testing"

	"github.com/andresmejia3/facesheet/internal/index"
	"github.com/andresmejia3/facesheet/internal/page"
	"github.com/andresmejia3/facesheet/internal/sheet"
)

func mustIndex(t *testing.T, recs ...*page.Record) *index.Index {
	t.Helper()
	ix, err := index.New(recs...)
	if err != nil {
		t.Fatalf("index.New failed: %v", err)
	}
	return ix
}

func blankPage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 300, 300))
}

func TestRenderScenarios(t *testing.T) {
	noFaces := &page.Record{ID: "p1.jpg", Image: blankPage(), Faces: []page.BoundingBox{}, Text: "well hello there"}
	threeFaces := &page.Record{ID: "p2.jpg", Image: blankPage(), Text: "hello again", Faces: []page.BoundingBox{
		{X: 0, Y: 0, Width: 50, Height: 50},
		{X: 60, Y: 60, Width: 120, Height: 100},
		{X: 200, Y: 10, Width: 40, Height: 90},
	}}

	tests := []struct {
		name       string
		records    []*page.Record
		query      string
		wantBlocks []int
	}{
		{
			name:       "Match without faces",
			records:    []*page.Record{noFaces},
			query:      "hello",
			wantBlocks: []int{sheet.CaptionHeight, sheet.CaptionHeight},
		},
		{
			name:       "Match with faces",
			records:    []*page.Record{threeFaces},
			query:      "hello",
			wantBlocks: []int{sheet.CaptionHeight, sheet.SheetHeight},
		},
		{
			name:       "No match",
			records:    []*page.Record{noFaces, threeFaces},
			query:      "goodbye",
			wantBlocks: []int{sheet.CaptionHeight},
		},
		{
			name:       "Empty query",
			records:    []*page.Record{noFaces, threeFaces},
			query:      "",
			wantBlocks: []int{sheet.CaptionHeight},
		},
		{
			name:       "Two matches in archive order",
			records:    []*page.Record{threeFaces, noFaces},
			query:      "hello",
			wantBlocks: []int{sheet.CaptionHeight, sheet.SheetHeight, sheet.CaptionHeight, sheet.CaptionHeight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Render(mustIndex(t, tt.records...), tt.query, sheet.New(nil))

			if got := out.Blocks(); !reflect.DeepEqual(got, tt.wantBlocks) {
				t.Errorf("Blocks() = %v, want %v", got, tt.wantBlocks)
			}
			total := 0
			for _, h := range tt.wantBlocks {
				total += h
			}
			if out.Height() != total || out.Width() != sheet.Width {
				t.Errorf("Expected %dx%d canvas, got %dx%d", sheet.Width, total, out.Width(), out.Height())
			}
		})
	}
}

func TestCaptions(t *testing.T) {
	if got := ResultCaption("p1.jpg"); got != "Results found in file p1.jpg" {
		t.Errorf("Unexpected caption %q", got)
	}
	if NoFacesCaption != "But there were no faces in that file!" {
		t.Errorf("Unexpected no-faces caption %q", NoFacesCaption)
	}
	if NoResultsCaption != "No results found in any files" {
		t.Errorf("Unexpected no-results caption %q", NoResultsCaption)
	}
}
