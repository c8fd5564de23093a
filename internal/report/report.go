package report

import (
	"fmt"

	"github.com/andresmejia3/facesheet/internal/index"
	"github.com/andresmejia3/facesheet/internal/sheet"
	"github.com/andresmejia3/facesheet/internal/thumb"
)

const (
	NoResultsCaption = "No results found in any files"
	NoFacesCaption   = "But there were no faces in that file!"
)

// ResultCaption names a matching page.
func ResultCaption(id string) string {
	return fmt.Sprintf("Results found in file %s", id)
}

// Render appends the search results for query to canvas and returns the grown canvas.
// Each matching page gets a caption followed by its contact sheet, or a second
// caption when the page has no faces.
func Render(ix *index.Index, query string, canvas *sheet.Canvas) *sheet.Canvas {
	matches := ix.Lookup(query)
	if len(matches) == 0 {
		return canvas.AppendCaption(NoResultsCaption)
	}

	for _, id := range matches {
		rec, _ := ix.Record(id)
		canvas = canvas.AppendCaption(ResultCaption(id))

		thumbs := thumb.Extract(rec)
		if len(thumbs) > 0 {
			canvas = canvas.AppendSheet(thumbs)
		} else {
			canvas = canvas.AppendCaption(NoFacesCaption)
		}
	}
	return canvas
}
