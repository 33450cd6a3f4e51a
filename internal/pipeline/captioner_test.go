package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/llm"
)

type fakeVision struct {
	enabled bool
	replies map[string]string
	fail    map[string]bool
	calls   int
}

func (f *fakeVision) Complete(context.Context, []llm.Message) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeVision) VisionEnabled() bool { return f.enabled }

func (f *fakeVision) DescribeImage(_ context.Context, _ string, image []byte, _ string) (string, error) {
	f.calls++
	key := string(image)
	if f.fail[key] {
		return "", errors.New("vision unavailable")
	}
	return f.replies[key], nil
}

type fakeImageStore struct {
	stored []string
	err    error
}

func (s *fakeImageStore) PutImage(_ context.Context, isoCode string, img *model.ImageElement) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.stored = append(s.stored, isoCode+"/"+img.ID)
	return "http://minio/legal-images/" + isoCode + "/" + img.ID, nil
}

func imageElement(id, data string) model.Element {
	return model.Element{Kind: model.ElementImage, Image: &model.ImageElement{ID: id, Data: []byte(data), ContentType: "image/png"}}
}

func TestCaptionerFillsCaptionsAndStoresImages(t *testing.T) {
	vision := &fakeVision{
		enabled: true,
		replies: map[string]string{
			"chart": "```json\n{\"caption\": \"Tax rates by year\", \"ocr_text\": \"2023 19%\"}\n```",
			"logo":  `{"caption": "", "ocr_text": ""}`,
		},
		fail: map[string]bool{"broken": true},
	}
	store := &fakeImageStore{}
	elements := []model.Element{
		model.TextElement("text is skipped"),
		imageElement("i1", "chart"),
		imageElement("i2", "logo"),
		imageElement("i3", "broken"),
	}

	c := NewCaptioner(vision, store)
	require.True(t, c.Enabled())
	placeholders := c.Caption(context.Background(), "DE", elements)

	assert.Equal(t, 1, placeholders)
	assert.Equal(t, 3, vision.calls)

	assert.Equal(t, "Tax rates by year", elements[1].Image.Caption)
	assert.Equal(t, "2023 19%", elements[1].Image.OCRText)
	assert.Equal(t, "http://minio/legal-images/DE/i1", elements[1].Image.StorageURL)

	assert.Equal(t, PlaceholderCaption, elements[2].Image.Caption)
	assert.Equal(t, PlaceholderCaption, elements[3].Image.Caption)
	assert.Equal(t, []string{"DE/i1", "DE/i2", "DE/i3"}, store.stored)
}

func TestCaptionerMalformedReplyUsesPlaceholder(t *testing.T) {
	vision := &fakeVision{enabled: true, replies: map[string]string{"x": "a picture of a cat"}}
	elements := []model.Element{imageElement("i1", "x")}

	placeholders := NewCaptioner(vision, nil).Caption(context.Background(), "FR", elements)
	assert.Equal(t, 1, placeholders)
	assert.Equal(t, PlaceholderCaption, elements[0].Image.Caption)
	assert.Empty(t, elements[0].Image.StorageURL)
}

func TestCaptionerStoreFailureKeepsCaption(t *testing.T) {
	vision := &fakeVision{enabled: true, replies: map[string]string{"x": `{"caption":"Seal"}`}}
	elements := []model.Element{imageElement("i1", "x")}

	NewCaptioner(vision, &fakeImageStore{err: errors.New("down")}).Caption(context.Background(), "FR", elements)
	assert.Equal(t, "Seal", elements[0].Image.Caption)
	assert.Empty(t, elements[0].Image.StorageURL)
}

func TestCaptionerDisabled(t *testing.T) {
	var nilCaptioner *Captioner
	assert.False(t, nilCaptioner.Enabled())
	assert.False(t, NewCaptioner(nil, nil).Enabled())

	vision := &fakeVision{enabled: false}
	elements := []model.Element{imageElement("i1", "x")}
	c := NewCaptioner(vision, nil)
	assert.False(t, c.Enabled())
	assert.Zero(t, c.Caption(context.Background(), "DE", elements))
	assert.Zero(t, vision.calls)
	assert.Empty(t, elements[0].Image.Caption)
}
