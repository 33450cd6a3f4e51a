package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/retry"
)

const testIndex = "legal-chunks"

func newTestRepository(t *testing.T, handler http.HandlerFunc) IndexRepository {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)
	policy := retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Millisecond}
	return NewIndexRepository(client, testIndex, policy, time.Second)
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestSearchSendsFilteredKNN(t *testing.T) {
	var query map[string]interface{}
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+testIndex+"/_search", r.URL.Path)
		query = decodeBody(t, r)
		fmt.Fprint(w, `{"hits":{"hits":[
			{"_id":"DE-3","_score":0.9,"_source":{"id":"DE-3","iso_code":"DE","chunk":"Paragraph 3"}},
			{"_id":"CH-1","_score":0.7,"_source":{"iso_code":"CH","chunk":"Art. 1"}}
		]}}`)
	})

	results, err := repo.Search(context.Background(), []float32{0.5, 0.5}, []string{"DE", "CH"}, 40)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.RetrievedChunk{ID: "DE-3", ISOCode: "DE", Chunk: "Paragraph 3", Score: 0.9}, results[0])
	assert.Equal(t, "CH-1", results[1].ID)

	knn := query["knn"].(map[string]interface{})
	assert.Equal(t, "embedding", knn["field"])
	assert.Equal(t, float64(40), knn["k"])
	assert.Equal(t, float64(100), knn["num_candidates"])
	filter := knn["filter"].(map[string]interface{})["terms"].(map[string]interface{})
	assert.Equal(t, []interface{}{"DE", "CH"}, filter["iso_code"])
}

func TestSearchClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"parsing_exception"}}`)
	})

	_, err := repo.Search(context.Background(), []float32{1}, []string{"DE"}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearchServerErrorIsRetried(t *testing.T) {
	var calls int32
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"hits":{"hits":[]}}`)
	})

	results, err := repo.Search(context.Background(), []float32{1}, []string{"DE"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListIDsPaginates(t *testing.T) {
	var pages int32
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		query := decodeBody(t, r)
		assert.Equal(t, "DE", query["query"].(map[string]interface{})["term"].(map[string]interface{})["iso_code"])

		n := listPageSize
		offset := 0
		if after, ok := query["search_after"]; ok {
			assert.Equal(t, []interface{}{fmt.Sprintf("DE-%04d", listPageSize-1)}, after)
			n, offset = 3, listPageSize
		}
		atomic.AddInt32(&pages, 1)
		hits := make([]string, n)
		for i := range hits {
			id := fmt.Sprintf("DE-%04d", offset+i)
			hits[i] = fmt.Sprintf(`{"_id":%q,"sort":[%q]}`, id, id)
		}
		fmt.Fprintf(w, `{"hits":{"hits":[%s]}}`, strings.Join(hits, ","))
	})

	ids, err := repo.ListIDs(context.Background(), "DE")
	require.NoError(t, err)
	assert.Len(t, ids, listPageSize+3)
	assert.Equal(t, "DE-1002", ids[len(ids)-1])
	assert.Equal(t, int32(2), atomic.LoadInt32(&pages))
}

func TestAvailableCodesKeepsRequestOrder(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hits":{"hits":[]},"aggregations":{"codes":{"buckets":[
			{"key":"DE","doc_count":12},{"key":"AT","doc_count":3}
		]}}}`)
	})

	available, err := repo.AvailableCodes(context.Background(), []string{"AT", "CH", "DE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AT", "DE"}, available)
}

func TestUploadBatchCountsItems(t *testing.T) {
	var lines []string
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+testIndex+"/_bulk", r.URL.Path)
		assert.Equal(t, "wait_for", r.URL.Query().Get("refresh"))
		sc := bufio.NewScanner(r.Body)
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		fmt.Fprint(w, `{"errors":true,"items":[
			{"index":{"_id":"DE-0","status":201}},
			{"index":{"_id":"DE-1","status":400,"error":{"type":"mapper_parsing_exception"}}}
		]}`)
	})

	docs := []model.IndexDocument{
		model.NewIndexDocument("DE", 0, model.Chunk{Content: "a", Kind: model.ChunkText}, []float32{1, 0}),
		model.NewIndexDocument("DE", 1, model.Chunk{Content: "b", Kind: model.ChunkText}, []float32{0, 1}),
	}
	uploaded, failed, err := repo.UploadBatch(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)
	assert.Equal(t, 1, failed)

	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"legal-chunks","_id":"DE-0"}}`, lines[0])
	var stored model.IndexDocument
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &stored))
	assert.Equal(t, docs[0], stored)
}

func TestDeleteBatchCountsItems(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, 2, bytes.Count(body, []byte("\n")))
		fmt.Fprint(w, `{"errors":false,"items":[
			{"delete":{"_id":"DE-0","status":200}},
			{"delete":{"_id":"DE-1","status":404}}
		]}`)
	})

	deleted, failed, err := repo.DeleteBatch(context.Background(), []string{"DE-0", "DE-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, failed)
}

func TestBulkTransportFailureCountsRemaining(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{}`)
	})

	deleted, failed, err := repo.DeleteBatch(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 3, failed)
}
