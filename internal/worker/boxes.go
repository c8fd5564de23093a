package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andresmejia3/facesheet/internal/page"
	"github.com/andresmejia3/facesheet/internal/types"
)

// ParseBoxes decodes a detector response into bounding boxes.
//
// OpenCV reports "no faces" as an empty tuple and faces as a list of
// [x, y, w, h] rows, so the body may be empty, null, {}, [] or a list of rows.
// Rows may also be objects with x/y/width/height keys. Every empty shape
// becomes an empty slice.
func ParseBoxes(body []byte) ([]page.BoundingBox, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []page.BoundingBox{}, nil
	}

	switch body[0] {
	case '{':
		var errorResult types.ErrorResult
		if err := json.Unmarshal(body, &errorResult); err != nil {
			return nil, fmt.Errorf("malformed detector response: %w", err)
		}
		if errorResult.Error != "" {
			return nil, errors.New(errorResult.Error)
		}
		return []page.BoundingBox{}, nil
	case '[':
	default:
		return nil, fmt.Errorf("malformed detector response: unexpected %q", body[0])
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("malformed detector response: %w", err)
	}

	boxes := make([]page.BoundingBox, 0, len(rows))
	for i, row := range rows {
		box, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		boxes = append(boxes, box)
	}
	return page.NormalizeBoxes(boxes)
}

func parseRow(row json.RawMessage) (page.BoundingBox, error) {
	row = bytes.TrimSpace(row)
	if len(row) > 0 && row[0] == '{' {
		var box page.BoundingBox
		err := json.Unmarshal(row, &box)
		return box, err
	}

	var vals []int
	if err := json.Unmarshal(row, &vals); err != nil {
		return page.BoundingBox{}, err
	}
	if len(vals) != 4 {
		return page.BoundingBox{}, fmt.Errorf("expected 4 values, got %d", len(vals))
	}
	return page.BoundingBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
