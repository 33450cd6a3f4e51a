package pipeline

import (
	"strings"
	"unicode/utf8"

	"juris-rag-go/internal/model"
)

// DefaultChunkMaxChars bounds a text chunk, counted in characters.
const DefaultChunkMaxChars = 2000

// Segment folds elements into chunks. Consecutive paragraphs share a chunk,
// joined by newlines, until the next one would push it past maxChars. A
// paragraph longer than maxChars on its own still becomes exactly one chunk.
// Tables and images always become chunks of their own.
func Segment(elements []model.Element, maxChars int) []model.Chunk {
	if maxChars <= 0 {
		maxChars = DefaultChunkMaxChars
	}
	var (
		chunks []model.Chunk
		buf    []string
		bufLen int
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, model.Chunk{Content: strings.Join(buf, "\n"), Kind: model.ChunkText})
		buf, bufLen = nil, 0
	}

	for _, el := range elements {
		switch el.Kind {
		case model.ElementText:
			n := utf8.RuneCountInString(el.Text)
			if len(buf) > 0 && bufLen+1+n > maxChars {
				flush()
			}
			if len(buf) > 0 {
				bufLen++
			}
			buf = append(buf, el.Text)
			bufLen += n
		case model.ElementTable:
			flush()
			chunks = append(chunks, model.Chunk{
				Content:       el.TableMarkdown,
				Kind:          model.ChunkTable,
				TableMarkdown: el.TableMarkdown,
			})
		case model.ElementImage:
			flush()
			if chunk, ok := imageChunk(el.Image); ok {
				chunks = append(chunks, chunk)
			}
		}
	}
	flush()
	return chunks
}

// imageChunk uses the caption followed by the OCR text. An image that was
// never captioned has nothing to retrieve and yields no chunk.
func imageChunk(img *model.ImageElement) (model.Chunk, bool) {
	if img == nil {
		return model.Chunk{}, false
	}
	var parts []string
	if c := strings.TrimSpace(img.Caption); c != "" {
		parts = append(parts, c)
	}
	if o := strings.TrimSpace(img.OCRText); o != "" {
		parts = append(parts, o)
	}
	if len(parts) == 0 {
		return model.Chunk{}, false
	}
	return model.Chunk{
		Content:  strings.Join(parts, "\n"),
		Kind:     model.ChunkImage,
		ImageID:  img.ID,
		OCRText:  img.OCRText,
		ImageURL: img.StorageURL,
	}, true
}
