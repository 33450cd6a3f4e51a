// Package repository defines the persistence interfaces and their implementations.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/retry"
)

const (
	listPageSize  = 1000
	bulkBatchSize = 500
	maxCandidates = 10000
)

// IndexRepository is the vector index holding every jurisdiction's chunks.
type IndexRepository interface {
	// Search runs a kNN query on the embedding field restricted to isoCodes.
	Search(ctx context.Context, vector []float32, isoCodes []string, k int) ([]model.RetrievedChunk, error)
	// ListIDs returns the ids of every document tagged isoCode, or of every
	// document when isoCode is empty.
	ListIDs(ctx context.Context, isoCode string) ([]string, error)
	DeleteBatch(ctx context.Context, ids []string) (deleted, failed int, err error)
	UploadBatch(ctx context.Context, docs []model.IndexDocument) (uploaded, failed int, err error)
	// AvailableCodes returns the subset of isoCodes with at least one document,
	// in the order given.
	AvailableCodes(ctx context.Context, isoCodes []string) ([]string, error)
	Ping(ctx context.Context) error
}

type esIndexRepository struct {
	client        *elasticsearch.Client
	indexName     string
	policy        retry.Policy
	searchTimeout time.Duration
}

// NewIndexRepository returns an Elasticsearch-backed IndexRepository. Every
// call goes through policy; kNN searches are additionally bounded by searchTimeout
// per attempt.
func NewIndexRepository(client *elasticsearch.Client, indexName string, policy retry.Policy, searchTimeout time.Duration) IndexRepository {
	return &esIndexRepository{
		client:        client,
		indexName:     indexName,
		policy:        policy,
		searchTimeout: searchTimeout,
	}
}

type searchHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Sort   []interface{}   `json:"sort"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Codes struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
			} `json:"buckets"`
		} `json:"codes"`
	} `json:"aggregations"`
}

func (r *esIndexRepository) Search(ctx context.Context, vector []float32, isoCodes []string, k int) ([]model.RetrievedChunk, error) {
	if k <= 0 || len(isoCodes) == 0 {
		return nil, nil
	}
	if k > maxCandidates {
		k = maxCandidates
	}
	numCandidates := k * 2
	if numCandidates < 100 {
		numCandidates = 100
	}
	if numCandidates > maxCandidates {
		numCandidates = maxCandidates
	}
	query := map[string]interface{}{
		"size": k,
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": numCandidates,
			"filter": map[string]interface{}{
				"terms": map[string]interface{}{"iso_code": isoCodes},
			},
		},
		"_source": []string{"id", "iso_code", "chunk"},
	}

	policy := r.policy.WithAttemptTimeout(r.searchTimeout)
	resp, err := retry.Do(ctx, policy, "vector search", func(ctx context.Context) (*searchResponse, error) {
		return r.search(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	results := make([]model.RetrievedChunk, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var src struct {
			ID      string `json:"id"`
			ISOCode string `json:"iso_code"`
			Chunk   string `json:"chunk"`
		}
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		if src.ID == "" {
			src.ID = hit.ID
		}
		results = append(results, model.RetrievedChunk{
			ID:      src.ID,
			ISOCode: src.ISOCode,
			Chunk:   src.Chunk,
			Score:   hit.Score,
		})
	}
	return results, nil
}

func (r *esIndexRepository) ListIDs(ctx context.Context, isoCode string) ([]string, error) {
	var filter interface{} = map[string]interface{}{"match_all": map[string]interface{}{}}
	if isoCode != "" {
		filter = map[string]interface{}{"term": map[string]interface{}{"iso_code": isoCode}}
	}

	var ids []string
	var searchAfter []interface{}
	for {
		query := map[string]interface{}{
			"size":    listPageSize,
			"_source": false,
			"query":   filter,
			"sort":    []interface{}{map[string]string{"id": "asc"}},
		}
		if searchAfter != nil {
			query["search_after"] = searchAfter
		}
		resp, err := retry.Do(ctx, r.policy, "list document ids", func(ctx context.Context) (*searchResponse, error) {
			return r.search(ctx, query)
		})
		if err != nil {
			return nil, err
		}
		hits := resp.Hits.Hits
		for _, hit := range hits {
			ids = append(ids, hit.ID)
		}
		if len(hits) < listPageSize {
			return ids, nil
		}
		searchAfter = hits[len(hits)-1].Sort
		if len(searchAfter) == 0 {
			return ids, nil
		}
	}
}

func (r *esIndexRepository) AvailableCodes(ctx context.Context, isoCodes []string) ([]string, error) {
	if len(isoCodes) == 0 {
		return nil, nil
	}
	query := map[string]interface{}{
		"size":  0,
		"query": map[string]interface{}{"terms": map[string]interface{}{"iso_code": isoCodes}},
		"aggs": map[string]interface{}{
			"codes": map[string]interface{}{
				"terms": map[string]interface{}{"field": "iso_code", "size": len(isoCodes)},
			},
		},
	}
	resp, err := retry.Do(ctx, r.policy, "availability lookup", func(ctx context.Context) (*searchResponse, error) {
		return r.search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(resp.Aggregations.Codes.Buckets))
	for _, b := range resp.Aggregations.Codes.Buckets {
		if b.DocCount > 0 {
			present[b.Key] = true
		}
	}
	available := make([]string, 0, len(isoCodes))
	for _, code := range isoCodes {
		if present[code] {
			available = append(available, code)
		}
	}
	return available, nil
}

func (r *esIndexRepository) DeleteBatch(ctx context.Context, ids []string) (int, int, error) {
	var deleted, failed int
	for start := 0; start < len(ids); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		var buf bytes.Buffer
		for _, id := range ids[start:end] {
			if err := json.NewEncoder(&buf).Encode(map[string]interface{}{
				"delete": map[string]string{"_index": r.indexName, "_id": id},
			}); err != nil {
				return deleted, failed, err
			}
		}
		ok, bad, err := r.bulk(ctx, "bulk delete", buf.Bytes())
		if err != nil {
			return deleted, failed + len(ids) - start, err
		}
		deleted += ok
		failed += bad
	}
	return deleted, failed, nil
}

func (r *esIndexRepository) UploadBatch(ctx context.Context, docs []model.IndexDocument) (int, int, error) {
	var uploaded, failed int
	for start := 0; start < len(docs); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, doc := range docs[start:end] {
			if err := enc.Encode(map[string]interface{}{
				"index": map[string]string{"_index": r.indexName, "_id": doc.ID},
			}); err != nil {
				return uploaded, failed, err
			}
			if err := enc.Encode(doc); err != nil {
				return uploaded, failed, err
			}
		}
		ok, bad, err := r.bulk(ctx, "bulk upload", buf.Bytes())
		if err != nil {
			return uploaded, failed + len(docs) - start, err
		}
		uploaded += ok
		failed += bad
	}
	return uploaded, failed, nil
}

func (r *esIndexRepository) Ping(ctx context.Context) error {
	res, err := r.client.Indices.Exists([]string{r.indexName}, r.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("index %q: status %d", r.indexName, res.StatusCode)
	}
	return nil
}

func (r *esIndexRepository) search(ctx context.Context, query map[string]interface{}) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	res, err := esapi.SearchRequest{
		Index: []string{r.indexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, r.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := responseError(res); err != nil {
		return nil, err
	}
	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

type bulkItem struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// bulk sends one NDJSON bulk body and counts per-item outcomes. A partially
// failed bulk is not an error.
func (r *esIndexRepository) bulk(ctx context.Context, name string, body []byte) (int, int, error) {
	type outcome struct{ ok, failed int }
	out, err := retry.Do(ctx, r.policy, name, func(ctx context.Context) (outcome, error) {
		res, err := esapi.BulkRequest{
			Index:   r.indexName,
			Body:    bytes.NewReader(body),
			Refresh: "wait_for",
		}.Do(ctx, r.client)
		if err != nil {
			return outcome{}, err
		}
		defer res.Body.Close()
		if err := responseError(res); err != nil {
			return outcome{}, err
		}
		var parsed struct {
			Errors bool                  `json:"errors"`
			Items  []map[string]bulkItem `json:"items"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			return outcome{}, fmt.Errorf("decode bulk response: %w", err)
		}
		var o outcome
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Status >= 200 && result.Status < 300 {
					o.ok++
				} else {
					o.failed++
				}
			}
		}
		return o, nil
	})
	return out.ok, out.failed, err
}

// responseError converts an error response into an error. Client errors other
// than 429 are not retried.
func responseError(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	err := fmt.Errorf("elasticsearch: status %d: %s", res.StatusCode, bytes.TrimSpace(body))
	if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// ErrNotConfigured is returned by repositories whose backing store is disabled.
var ErrNotConfigured = errors.New("repository not configured")
