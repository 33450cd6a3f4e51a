package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/llm"
	"juris-rag-go/pkg/log"
)

// PlaceholderCaption replaces the caption of an image the vision model could not describe.
const PlaceholderCaption = "Image (no caption available)"

const captionPrompt = `Describe this image from a legal document for search indexing.
Respond with JSON only, exactly of the form {"caption": "...", "ocr_text": "..."}.
"caption" is one or two sentences describing the image. "ocr_text" is all legible text in the image, or "" if none.`

// ImageStore persists extracted images.
type ImageStore interface {
	PutImage(ctx context.Context, isoCode string, img *model.ImageElement) (string, error)
}

// Captioner describes images with a vision model and stores them.
type Captioner struct {
	vision llm.Client
	store  ImageStore
}

// NewCaptioner returns a Captioner. It is disabled when vision is nil or has
// no vision deployment.
func NewCaptioner(vision llm.Client, store ImageStore) *Captioner {
	return &Captioner{vision: vision, store: store}
}

// Enabled reports whether images are captioned at all.
func (c *Captioner) Enabled() bool {
	return c != nil && c.vision != nil && c.vision.VisionEnabled()
}

type captionResult struct {
	Caption string `json:"caption"`
	OCRText string `json:"ocr_text"`
}

// Caption fills in the caption, OCR text and storage URL of every image
// element and returns how many fell back to the placeholder caption. Failures
// never drop an image.
func (c *Captioner) Caption(ctx context.Context, isoCode string, elements []model.Element) int {
	if !c.Enabled() {
		return 0
	}
	placeholders := 0
	for _, el := range elements {
		if el.Kind != model.ElementImage || el.Image == nil {
			continue
		}
		img := el.Image
		result, err := c.describe(ctx, img)
		if err != nil {
			log.Warnf("[Captioner] image %s: %v, using placeholder caption", img.ID, err)
			result = captionResult{Caption: PlaceholderCaption}
			placeholders++
		}
		img.Caption = result.Caption
		img.OCRText = result.OCRText

		if c.store != nil {
			url, err := c.store.PutImage(ctx, isoCode, img)
			if err != nil {
				log.Warnf("[Captioner] store image %s: %v", img.ID, err)
			} else {
				img.StorageURL = url
			}
		}
	}
	return placeholders
}

func (c *Captioner) describe(ctx context.Context, img *model.ImageElement) (captionResult, error) {
	out, err := c.vision.DescribeImage(ctx, captionPrompt, img.Data, img.ContentType)
	if err != nil {
		return captionResult{}, err
	}
	var result captionResult
	if err := json.Unmarshal([]byte(llm.StripCodeFences(out)), &result); err != nil {
		return captionResult{}, err
	}
	result.Caption = strings.TrimSpace(result.Caption)
	result.OCRText = strings.TrimSpace(result.OCRText)
	if result.Caption == "" {
		result.Caption = PlaceholderCaption
	}
	return result, nil
}
