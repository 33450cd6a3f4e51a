package service

import (
	"context"
	"fmt"
	"strings"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/llm"
)

// EmptyAnswerMessage is returned when the model produces no answer text.
const EmptyAnswerMessage = "No answer could be generated from the retrieved documents. Please rephrase the question."

const answerSystemPrompt = `You answer legal questions using only the numbered sources provided.
Cite sources by their number, e.g. [SOURCE 2]. If the sources do not answer the question, say so.
Format the answer in Markdown with exactly these sections:
## Summary
A short direct answer.
## Details
The supporting explanation with citations. When sources from more than one jurisdiction are present,
group the details under one "### <CODE>" heading per jurisdiction.`

// AnswerService composes the final answer from retrieved chunks.
type AnswerService interface {
	Compose(ctx context.Context, question string, results []model.RetrievedChunk) (string, error)
}

type answerService struct {
	llmClient llm.Client
}

// NewAnswerService creates an AnswerService.
func NewAnswerService(llmClient llm.Client) AnswerService {
	return &answerService{llmClient: llmClient}
}

func (s *answerService) Compose(ctx context.Context, question string, results []model.RetrievedChunk) (string, error) {
	user := fmt.Sprintf("Sources:\n\n%s\n\nQuestion: %s", BuildContext(results), question)
	out, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: user},
	})
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}
	answer := llm.StripCodeFences(out)
	if answer == "" {
		return EmptyAnswerMessage, nil
	}
	return answer, nil
}

// BuildContext numbers the chunks from 1 in the order given.
func BuildContext(results []model.RetrievedChunk) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("SOURCE %d (%s):\n%s", i+1, r.ISOCode, strings.TrimSpace(r.Chunk))
	}
	return strings.Join(blocks, "\n\n")
}

// CountryHeader renders the detection as a Markdown table. It is empty when
// no jurisdiction was detected.
func CountryHeader(det model.JurisdictionDetection) string {
	if len(det.ISOCodes) == 0 {
		return ""
	}
	present := make(map[string]bool, len(det.Available))
	for _, c := range det.Available {
		present[c] = true
	}
	var sb strings.Builder
	sb.WriteString("| Jurisdiction | Status |\n| --- | --- |")
	for _, c := range det.ISOCodes {
		status := "No documents"
		if present[c] {
			status = "Available"
		}
		fmt.Fprintf(&sb, "\n| %s | %s |", c, status)
	}
	return sb.String()
}
