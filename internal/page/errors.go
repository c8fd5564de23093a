package page

import "fmt"

// DecodeError reports that one archive entry is not a valid image.
type DecodeError struct {
	ID  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DetectorError reports a face detector failure. The record is kept with no faces.
type DetectorError struct {
	ID  string
	Err error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detect faces on %s: %v", e.ID, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// ExtractorError reports a text extractor failure. The record is kept with empty text.
type ExtractorError struct {
	ID  string
	Err error
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("extract text from %s: %v", e.ID, e.Err)
}

func (e *ExtractorError) Unwrap() error { return e.Err }
