package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// Azure implements the Scanner interface using Azure Computer Vision OCR
type Azure struct {
	client   computervision.BaseClient
	language computervision.OcrLanguages
}

// NewAzure creates a new Azure Scanner instance. language is an OCR
// language code such as "es" or "en"; empty lets the service detect it.
func NewAzure(endpoint, apiKey, language string) (*Azure, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure endpoint and api key are required")
	}
	if language == "" {
		language = string(computervision.OcrLanguagesUnk)
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Azure{
		client:   client,
		language: computervision.OcrLanguages(language),
	}, nil
}

// ScanText runs printed text recognition on every page and lays the words
// out by their bounding boxes
func (a *Azure) ScanText(data []byte, contentType string) (*Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pages, err := preparePNGPages(data, contentType, defaultMaxPages)
	if err != nil {
		return nil, err
	}

	var out []string
	for i, p := range pages {
		result, err := a.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(bytes.NewReader(p)), a.language)
		if err != nil {
			return nil, fmt.Errorf("page %d: azure ocr failed: %w", i+1, err)
		}
		out = append(out, layoutText(ocrFragments(result), 1))
	}

	return &Document{
		Text:     strings.Join(out, "\n\n"),
		Pages:    len(pages),
		Method:   "azure",
		Language: string(a.language),
	}, nil
}

// ocrFragments flattens an OCR result into positioned words
func ocrFragments(result computervision.OcrResult) []fragment {
	var frags []fragment
	if result.Regions == nil {
		return frags
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			for _, word := range *line.Words {
				if word.Text == nil || word.BoundingBox == nil {
					continue
				}
				box, ok := parseBoundingBox(*word.BoundingBox)
				if !ok {
					continue
				}
				frags = append(frags, fragment{X: box[0], Y: box[1], W: box[2], H: box[3], Text: *word.Text})
			}
		}
	}
	return frags
}

// parseBoundingBox reads "left,top,width,height"
func parseBoundingBox(s string) ([4]float64, bool) {
	var box [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return box, false
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return box, false
		}
		box[i] = v
	}
	return box, true
}

// Close is a no-op for the HTTP based client
func (a *Azure) Close() error {
	return nil
}
