package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/repository"
	"juris-rag-go/pkg/llm"
	"juris-rag-go/pkg/log"
)

const extractionSystemPrompt = `You identify the jurisdictions a legal question is about.
Detect explicit two-letter uppercase country codes, country names in any language, and multi-country groupings.
A grouping expands to every member, each as its own entry: "EU" or "European Union" means all 27 member states
(AT, BE, BG, HR, CY, CZ, DK, EE, FI, FR, DE, GR, HU, IE, IT, LV, LT, LU, MT, NL, PL, PT, RO, SK, SI, ES, SE),
"Benelux" means BE, NL, LU, "DACH" means DE, AT, CH, "Nordics" means DK, FI, IS, NO, SE.
Answer with a JSON array only, no prose:
[{"phrase": "<text as written in the question>", "code": "<ISO 3166-1 alpha-2 code>"}]
Answer [] when no jurisdiction is mentioned.`

var isoCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// JurisdictionService turns free text into jurisdiction codes.
type JurisdictionService interface {
	// ExtractCodes returns uppercase ISO 3166-1 alpha-2 codes in first-seen
	// order without duplicates. Unparseable model output yields no codes.
	ExtractCodes(ctx context.Context, text string) ([]string, error)
	// Detect extracts the codes of question and checks which are indexed.
	Detect(ctx context.Context, question string) (model.JurisdictionDetection, error)
}

type jurisdictionService struct {
	llmClient llm.Client
	index     repository.IndexRepository
}

// NewJurisdictionService creates a JurisdictionService.
func NewJurisdictionService(llmClient llm.Client, index repository.IndexRepository) JurisdictionService {
	return &jurisdictionService{llmClient: llmClient, index: index}
}

func (s *jurisdictionService) ExtractCodes(ctx context.Context, text string) ([]string, error) {
	out, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("jurisdiction extraction: %w", err)
	}
	codes, err := ParseCodes(out)
	if err != nil {
		log.Warnf("[JurisdictionService] unparseable extraction output, treating as no jurisdiction: %v, output: %q", err, out)
		return []string{}, nil
	}
	return codes, nil
}

func (s *jurisdictionService) Detect(ctx context.Context, question string) (model.JurisdictionDetection, error) {
	codes, err := s.ExtractCodes(ctx, question)
	if err != nil {
		return model.JurisdictionDetection{}, err
	}
	det := model.JurisdictionDetection{ISOCodes: codes, Available: []string{}}
	if len(codes) == 0 {
		det.Summary = "No jurisdiction detected"
		return det, nil
	}
	available, err := s.index.AvailableCodes(ctx, codes)
	if err != nil {
		return model.JurisdictionDetection{}, fmt.Errorf("availability lookup: %w", err)
	}
	if available != nil {
		det.Available = available
	}
	det.Summary = Summarize(codes, det.Available)
	return det, nil
}

type detectedCode struct {
	Phrase string `json:"phrase"`
	Code   string `json:"code"`
}

// ParseCodes parses the extraction output. Code fences are stripped, codes are
// uppercased, entries that are not two letters are skipped and duplicates are
// dropped keeping the first occurrence.
func ParseCodes(raw string) ([]string, error) {
	var entries []detectedCode
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &entries); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		code := strings.ToUpper(strings.TrimSpace(e.Code))
		if !isoCodePattern.MatchString(code) || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

// Summarize pairs every requested code with its availability.
func Summarize(codes, available []string) string {
	present := make(map[string]bool, len(available))
	for _, c := range available {
		present[c] = true
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		if present[c] {
			parts[i] = c + " (available)"
		} else {
			parts[i] = c + " (no documents)"
		}
	}
	return strings.Join(parts, ", ")
}
