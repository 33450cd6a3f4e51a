package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/llm"
)

// scriptedLLM answers Complete with its reply and records the conversations.
type scriptedLLM struct {
	reply string
	err   error
	calls [][]llm.Message
}

func (f *scriptedLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	return f.reply, f.err
}

func (f *scriptedLLM) DescribeImage(context.Context, string, []byte, string) (string, error) {
	return "", llm.ErrVisionDisabled
}

func (f *scriptedLLM) VisionEnabled() bool { return false }

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

func (e *fakeEmbedder) Dimensions() int { return 2 }

// memoryIndex is an in-memory IndexRepository.
type memoryIndex struct {
	mu        sync.Mutex
	docs      map[string]model.IndexDocument
	order     []string
	failIDs   map[string]bool
	searchK   int
	searchErr error
}

func newMemoryIndex(docs ...model.IndexDocument) *memoryIndex {
	ix := &memoryIndex{docs: map[string]model.IndexDocument{}, failIDs: map[string]bool{}}
	for _, d := range docs {
		ix.put(d)
	}
	return ix
}

func (ix *memoryIndex) put(d model.IndexDocument) {
	if _, ok := ix.docs[d.ID]; !ok {
		ix.order = append(ix.order, d.ID)
	}
	ix.docs[d.ID] = d
}

// Search returns matching documents in insertion order with descending scores.
func (ix *memoryIndex) Search(_ context.Context, _ []float32, codes []string, k int) ([]model.RetrievedChunk, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.searchK = k
	if ix.searchErr != nil {
		return nil, ix.searchErr
	}
	want := map[string]bool{}
	for _, c := range codes {
		want[c] = true
	}
	var out []model.RetrievedChunk
	for _, id := range ix.order {
		d, ok := ix.docs[id]
		if !ok || !want[d.ISOCode] {
			continue
		}
		out = append(out, model.RetrievedChunk{ID: d.ID, ISOCode: d.ISOCode, Chunk: d.Chunk, Score: 1 / float64(len(out)+1)})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (ix *memoryIndex) ListIDs(_ context.Context, code string) ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var ids []string
	for id, d := range ix.docs {
		if code == "" || d.ISOCode == code {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (ix *memoryIndex) DeleteBatch(_ context.Context, ids []string) (int, int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ok, failed := 0, 0
	for _, id := range ids {
		if ix.failIDs[id] {
			failed++
			continue
		}
		delete(ix.docs, id)
		ok++
	}
	return ok, failed, nil
}

func (ix *memoryIndex) UploadBatch(_ context.Context, docs []model.IndexDocument) (int, int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, d := range docs {
		ix.put(d)
	}
	return len(docs), 0, nil
}

func (ix *memoryIndex) AvailableCodes(_ context.Context, codes []string) ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	present := map[string]bool{}
	for _, d := range ix.docs {
		present[d.ISOCode] = true
	}
	out := []string{}
	for _, c := range codes {
		if present[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (ix *memoryIndex) Ping(context.Context) error { return nil }

func (ix *memoryIndex) snapshot() map[string]model.IndexDocument {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make(map[string]model.IndexDocument, len(ix.docs))
	for k, v := range ix.docs {
		out[k] = v
	}
	return out
}

func doc(code string, seq int, text string) model.IndexDocument {
	return model.NewIndexDocument(code, seq, model.Chunk{Content: text, Kind: model.ChunkText}, []float32{1, 0})
}

var errBoom = errors.New("boom")
