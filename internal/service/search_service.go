package service

import (
	"context"
	"fmt"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/repository"
	"juris-rag-go/pkg/embedding"
	"juris-rag-go/pkg/log"
)

// SearchService retrieves chunks spread fairly over the requested jurisdictions.
type SearchService interface {
	Retrieve(ctx context.Context, question string, isoCodes []string, k int) ([]model.RetrievedChunk, error)
}

type searchService struct {
	embeddingClient embedding.Client
	index           repository.IndexRepository
}

// NewSearchService creates a SearchService.
func NewSearchService(embeddingClient embedding.Client, index repository.IndexRepository) SearchService {
	return &searchService{embeddingClient: embeddingClient, index: index}
}

// FetchSize is the per-query base fetch size: k for one jurisdiction,
// otherwise 10 per jurisdiction capped at 50.
func FetchSize(k, jurisdictions int) int {
	if jurisdictions <= 1 {
		return k
	}
	return min(10*jurisdictions, 50)
}

// CandidateCount is how many raw hits the vector query asks for.
func CandidateCount(k, jurisdictions int) int {
	fetch := FetchSize(k, jurisdictions)
	if jurisdictions <= 1 {
		return fetch
	}
	return max(fetch*jurisdictions, 10)
}

func (s *searchService) Retrieve(ctx context.Context, question string, isoCodes []string, k int) ([]model.RetrievedChunk, error) {
	if len(isoCodes) == 0 || k <= 0 {
		return []model.RetrievedChunk{}, nil
	}
	vector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	n := len(isoCodes)
	candidates := CandidateCount(k, n)
	raw, err := s.index.Search(ctx, vector, isoCodes, candidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	log.Infof("[SearchService] %d raw hits for %v (requested %d)", len(raw), isoCodes, candidates)

	if n > 1 && len(raw) > 0 {
		return Balance(raw, isoCodes, k), nil
	}
	return truncate(raw, k), nil
}

// Balance redistributes hits over isoCodes. Each jurisdiction that has hits
// gets max(1, k/available) of its best hits, the first k%available of them one
// more; a second pass in the same order fills any shortfall from leftover hits.
// The result is grouped by jurisdiction in request order and holds at most k
// hits. When no requested jurisdiction has hits, the first k hits are returned.
func Balance(results []model.RetrievedChunk, isoCodes []string, k int) []model.RetrievedChunk {
	groups := make(map[string][]model.RetrievedChunk, len(isoCodes))
	for _, r := range results {
		groups[r.ISOCode] = append(groups[r.ISOCode], r)
	}
	var available []string
	seen := make(map[string]bool, len(isoCodes))
	for _, code := range isoCodes {
		if !seen[code] && len(groups[code]) > 0 {
			available = append(available, code)
		}
		seen[code] = true
	}
	if len(available) == 0 {
		return truncate(results, k)
	}

	target := k
	perCode := max(1, target/len(available))
	remainder := target % len(available)

	taken := make(map[string]int, len(available))
	total := 0
	for i, code := range available {
		quota := perCode
		if i < remainder {
			quota++
		}
		taken[code] = min(quota, len(groups[code]))
		total += taken[code]
	}
	for _, code := range available {
		if total >= target {
			break
		}
		n := min(target-total, len(groups[code])-taken[code])
		taken[code] += n
		total += n
	}

	out := make([]model.RetrievedChunk, 0, total)
	for _, code := range available {
		out = append(out, groups[code][:taken[code]]...)
	}
	return truncate(out, k)
}

func truncate(results []model.RetrievedChunk, k int) []model.RetrievedChunk {
	if len(results) > k {
		return results[:k]
	}
	if results == nil {
		return []model.RetrievedChunk{}
	}
	return results
}
