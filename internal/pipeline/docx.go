package pipeline

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"juris-rag-go/internal/model"
)

// ErrCorruptDocument is returned when a document cannot be read as WordprocessingML.
var ErrCorruptDocument = errors.New("corrupt document")

const (
	wordNS        = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	markupCompat  = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	documentPart  = "word/document.xml"
	mediaPrefix   = "word/media/"
	maxPartSize   = 64 << 20
	imageIDLength = 32
)

var imageContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".emf":  "image/x-emf",
	".wmf":  "image/x-wmf",
}

// ParseDocx extracts paragraphs and tables in body order, followed by every
// embedded image.
func ParseDocx(data []byte) ([]model.Element, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var body *zip.File
	var media []*zip.File
	for _, f := range zr.File {
		switch {
		case f.Name == documentPart:
			body = f
		case strings.HasPrefix(f.Name, mediaPrefix) && !f.FileInfo().IsDir():
			media = append(media, f)
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptDocument, documentPart)
	}

	raw, err := readPart(body)
	if err != nil {
		return nil, err
	}
	elements, err := parseBody(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	sort.Slice(media, func(i, j int) bool { return media[i].Name < media[j].Name })
	for _, f := range media {
		img, err := readPart(f)
		if err != nil {
			return nil, err
		}
		if len(img) == 0 {
			continue
		}
		elements = append(elements, model.Element{Kind: model.ElementImage, Image: newImage(path.Base(f.Name), img)})
	}
	return elements, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorruptDocument, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptDocument, f.Name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrCorruptDocument, f.Name, maxPartSize)
	}
	return data, nil
}

// ImageID derives the content identifier of image bytes.
func ImageID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:imageIDLength]
}

func newImage(name string, data []byte) *model.ImageElement {
	contentType, ok := imageContentTypes[strings.ToLower(path.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}
	return &model.ImageElement{
		ID:          ImageID(data),
		Name:        name,
		ContentType: contentType,
		Data:        data,
	}
}

// parseBody walks document.xml once. Paragraphs outside tables become text
// elements; top-level tables become table elements.
func parseBody(raw []byte) ([]model.Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var elements []model.Element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return elements, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case isFallback(start):
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		case isWord(start, "p"):
			text, err := readParagraph(dec)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(text) != "" {
				elements = append(elements, model.TextElement(strings.TrimSpace(text)))
			}
		case isWord(start, "tbl"):
			rows, err := readTable(dec)
			if err != nil {
				return nil, err
			}
			if len(rows) > 0 && len(rows[0]) > 0 {
				elements = append(elements, model.TableElement(RenderTable(rows), TableHash(rows)))
			}
		}
	}
}

func isWord(start xml.StartElement, local string) bool {
	return start.Name.Space == wordNS && start.Name.Local == local
}

// isFallback matches mc:Fallback, which repeats the content of its mc:Choice sibling.
func isFallback(start xml.StartElement) bool {
	return start.Name.Space == markupCompat && start.Name.Local == "Fallback"
}

// readParagraph consumes tokens up to the end of the current w:p.
func readParagraph(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	inText := false
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isFallback(t):
				if err := dec.Skip(); err != nil {
					return "", err
				}
				continue
			case isWord(t, "t"):
				inText = true
			case isWord(t, "tab"):
				sb.WriteByte('\t')
			case isWord(t, "br"), isWord(t, "cr"):
				sb.WriteByte('\n')
			}
			depth++
		case xml.EndElement:
			if t.Name.Space == wordNS && t.Name.Local == "t" {
				inText = false
			}
			depth--
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// readTable consumes tokens up to the end of the current w:tbl and returns its
// rows of cell texts. Nested tables are flattened into their enclosing cell.
func readTable(dec *xml.Decoder) ([][]string, error) {
	var rows [][]string
	var cell strings.Builder
	inCell := false
	depth := 1
	nested := 0
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if isFallback(t) {
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			depth++
			switch {
			case isWord(t, "tbl"):
				nested++
			case nested == 0 && isWord(t, "tr"):
				rows = append(rows, nil)
			case nested == 0 && isWord(t, "tc"):
				cell.Reset()
				inCell = true
			case isWord(t, "p") && inCell:
				text, err := readParagraph(dec)
				if err != nil {
					return nil, err
				}
				depth--
				if text = strings.TrimSpace(text); text != "" {
					if cell.Len() > 0 {
						cell.WriteByte(' ')
					}
					cell.WriteString(text)
				}
			}
		case xml.EndElement:
			depth--
			if t.Name.Space != wordNS {
				continue
			}
			switch {
			case t.Name.Local == "tbl" && nested > 0:
				nested--
			case nested == 0 && t.Name.Local == "tc" && inCell:
				if len(rows) == 0 {
					rows = append(rows, nil)
				}
				rows[len(rows)-1] = append(rows[len(rows)-1], cell.String())
				inCell = false
			}
		}
	}
	return rows, nil
}

// RenderTable renders rows as a Markdown table with the first row as header.
// Other rows are padded with empty cells or truncated to the header width.
func RenderTable(rows [][]string) string {
	width := len(rows[0])
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := 0; i < width; i++ {
			var c string
			if i < len(cells) {
				c = cells[i]
			}
			sb.WriteString(" ")
			sb.WriteString(escapeCell(c))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}
	writeRow(rows[0])
	sb.WriteString("|")
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// TableHash identifies a table by its cell contents.
func TableHash(rows [][]string) string {
	h := sha256.New()
	for _, row := range rows {
		for _, c := range row {
			h.Write([]byte(c))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
