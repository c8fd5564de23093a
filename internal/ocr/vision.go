package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	vision "cloud.google.com/go/vision/apiv1"
)

// Vision extracts text with Google Cloud Vision document text detection.
// Credentials come from the standard Google application default chain.
type Vision struct {
	client *vision.ImageAnnotatorClient
}

// NewVision opens the API client shared by every page this engine extracts.
func NewVision(ctx context.Context) (*Vision, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	return &Vision{client: client}, nil
}

func (v *Vision) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	if v.client == nil {
		return "", errors.New("vision client is not open")
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	pageImg, err := vision.NewImageFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("prepare vision image: %w", err)
	}

	annotation, err := v.client.DetectDocumentText(ctx, pageImg, nil)
	if err != nil {
		return "", fmt.Errorf("detect document text: %w", err)
	}
	return annotation.GetText(), nil
}

// Close releases the API connection.
func (v *Vision) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}
