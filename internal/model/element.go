// Package model defines the domain types shared by ingestion and retrieval.
package model

// ElementKind tags the variant held by an Element.
type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementTable ElementKind = "table"
	ElementImage ElementKind = "image"
)

// Element is one unit extracted from a source document, in body order for text
// and tables. Images follow the body.
type Element struct {
	Kind ElementKind
	// Text holds the paragraph for ElementText.
	Text string
	// TableMarkdown and TableHash are set for ElementTable. The hash covers the
	// header and cell contents only, so identical tables hash identically.
	TableMarkdown string
	TableHash     string
	Image         *ImageElement
}

// ImageElement carries an embedded image. Caption, OCRText and StorageURL are
// filled in by captioning.
type ImageElement struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte

	Caption    string
	OCRText    string
	StorageURL string
}

// TextElement is a convenience constructor.
func TextElement(text string) Element {
	return Element{Kind: ElementText, Text: text}
}

// TableElement is a convenience constructor.
func TableElement(markdown, hash string) Element {
	return Element{Kind: ElementTable, TableMarkdown: markdown, TableHash: hash}
}
