package service

import (
	"context"
	"strings"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/log"
)

const (
	// NoJurisdictionMessage answers questions that name no jurisdiction.
	NoJurisdictionMessage = "No jurisdiction was identified in your question. Please mention a country, its two-letter code or a group such as the EU."
	// NoDocumentsMessage answers questions whose jurisdictions have no indexed documents.
	NoDocumentsMessage = "No documents were found for the detected jurisdictions."
)

// AskService answers a question: extract codes, retrieve, compose.
type AskService interface {
	Ask(ctx context.Context, question string) (*model.AskResponse, error)
}

type askService struct {
	jurisdictions JurisdictionService
	search        SearchService
	answers       AnswerService
	topK          int
}

// NewAskService creates an AskService retrieving topK chunks per question.
func NewAskService(jurisdictions JurisdictionService, search SearchService, answers AnswerService, topK int) AskService {
	return &askService{
		jurisdictions: jurisdictions,
		search:        search,
		answers:       answers,
		topK:          topK,
	}
}

func (s *askService) Ask(ctx context.Context, question string) (*model.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, validationError("question must not be empty")
	}

	det, err := s.jurisdictions.Detect(ctx, question)
	if err != nil {
		return nil, err
	}
	resp := &model.AskResponse{
		CountryHeader:    CountryHeader(det),
		CountryDetection: det,
	}
	if len(det.ISOCodes) == 0 {
		resp.RefinedAnswer = NoJurisdictionMessage
		return resp, nil
	}
	if len(det.Available) == 0 {
		log.Infof("[AskService] no indexed documents for %v", det.ISOCodes)
		resp.RefinedAnswer = NoDocumentsMessage
		return resp, nil
	}

	results, err := s.search.Retrieve(ctx, question, det.ISOCodes, s.topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		resp.RefinedAnswer = NoDocumentsMessage
		return resp, nil
	}
	log.Infof("[AskService] composing answer from %d chunks for %v", len(results), det.ISOCodes)

	answer, err := s.answers.Compose(ctx, question, results)
	if err != nil {
		return nil, err
	}
	resp.RefinedAnswer = answer
	return resp, nil
}
