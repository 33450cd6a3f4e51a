// Package pipeline turns an uploaded document into the indexed chunks of its jurisdiction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/repository"
	"juris-rag-go/pkg/embedding"
	"juris-rag-go/pkg/log"
	"juris-rag-go/pkg/tasks"
)

// ErrEmptyDocument is returned when a document yields no chunks. The index is
// left untouched.
var ErrEmptyDocument = errors.New("document contains no indexable content")

// ErrEmbeddingUnavailable is returned when no chunk could be embedded. The
// jurisdiction keeps its current documents.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// DocumentSource reads uploaded documents.
type DocumentSource interface {
	GetDocument(ctx context.Context, bucket, name string) ([]byte, error)
}

// Indexer replaces the indexed documents of one jurisdiction.
type Indexer interface {
	Sync(ctx context.Context, isoCode string, docs []model.IndexDocument) (model.SyncResult, error)
}

// Report summarizes one ingestion.
type Report struct {
	Elements           int
	Chunks             int
	PlaceholderImages  int
	DegradedEmbeddings int
	Sync               model.SyncResult
}

// Processor runs the ingestion pipeline: parse, caption, segment, embed, sync.
type Processor struct {
	source    DocumentSource
	captioner *Captioner
	embedder  embedding.Client
	indexer   Indexer
	runs      repository.IngestionRunRepository
	maxChars  int
	workers   int
}

// NewProcessor creates a Processor. workers bounds concurrent embedding calls.
func NewProcessor(
	source DocumentSource,
	captioner *Captioner,
	embedder embedding.Client,
	indexer Indexer,
	runs repository.IngestionRunRepository,
	maxChars, workers int,
) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		source:    source,
		captioner: captioner,
		embedder:  embedder,
		indexer:   indexer,
		runs:      runs,
		maxChars:  maxChars,
		workers:   workers,
	}
}

// Process handles one ingestion task end to end and records the run. Running
// it twice for the same task leaves the same index state.
func (p *Processor) Process(ctx context.Context, task tasks.IngestionTask) error {
	code, err := ValidateFilename(task.FileName)
	if err != nil {
		return err
	}
	if task.ISOCode != "" && task.ISOCode != code {
		return fmt.Errorf("task code %s does not match file %s", task.ISOCode, task.FileName)
	}

	run := &model.IngestionRun{
		RunID:     uuid.NewString(),
		ISOCode:   code,
		FileName:  task.FileName,
		Container: task.Container,
		Status:    model.RunRunning,
		StartedAt: model.LocalTime(time.Now()),
	}
	runLog := log.With("run_id", run.RunID, "iso_code", code)
	if err := p.runs.Create(ctx, run); err != nil {
		runLog.Warnf("[Processor] record run: %v", err)
	}
	runLog.Infof("[Processor] ingesting %s/%s", task.Container, task.FileName)

	report, err := p.process(ctx, task, code)
	run.ElementCount = report.Elements
	run.ChunkCount = report.Chunks
	run.DegradedEmbeddings = report.DegradedEmbeddings
	run.DeletedCount = report.Sync.DeletedCount
	run.UploadedCount = report.Sync.UploadedCount
	run.FailedCount = report.Sync.DeleteFailed + report.Sync.UploadFailed
	run.Finish(err)
	if uerr := p.runs.Update(context.WithoutCancel(ctx), run); uerr != nil {
		runLog.Warnf("[Processor] update run: %v", uerr)
	}

	if err != nil {
		runLog.Errorf("[Processor] run failed: %v", err)
		return err
	}
	runLog.Infof("[Processor] done: %d chunks, %d uploaded, %d failed, %d degraded embeddings",
		report.Chunks, report.Sync.UploadedCount, run.FailedCount, report.DegradedEmbeddings)
	return nil
}

func (p *Processor) process(ctx context.Context, task tasks.IngestionTask, code string) (Report, error) {
	data, err := p.source.GetDocument(ctx, task.Container, task.FileName)
	if err != nil {
		return Report{}, fmt.Errorf("read document: %w", err)
	}
	if len(data) == 0 {
		return Report{}, fmt.Errorf("read document: %w", ErrEmptyDocument)
	}
	return p.Ingest(ctx, code, data)
}

// Ingest indexes a document for isoCode. A parse failure, an empty document or
// a total embedding outage returns before the index is touched.
func (p *Processor) Ingest(ctx context.Context, isoCode string, data []byte) (Report, error) {
	var report Report

	elements, err := ParseDocx(data)
	if err != nil {
		return report, err
	}
	report.Elements = len(elements)
	log.Infof("[Processor] %s: parsed %d elements", isoCode, len(elements))

	if p.captioner.Enabled() {
		report.PlaceholderImages = p.captioner.Caption(ctx, isoCode, elements)
	}

	chunks := Segment(elements, p.maxChars)
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		return report, ErrEmptyDocument
	}

	vectors, degraded := p.embed(ctx, chunks)
	report.DegradedEmbeddings = degraded
	if degraded == len(chunks) {
		return report, fmt.Errorf("%w: all %d chunks failed", ErrEmbeddingUnavailable, degraded)
	}

	docs := make([]model.IndexDocument, len(chunks))
	for i, chunk := range chunks {
		docs[i] = model.NewIndexDocument(isoCode, i, chunk, vectors[i])
	}

	res, err := p.indexer.Sync(ctx, isoCode, docs)
	report.Sync = res
	if err != nil {
		return report, fmt.Errorf("sync index: %w", err)
	}
	return report, nil
}

// embed computes one vector per chunk with bounded parallelism. A chunk whose
// embedding fails gets a zero vector and is counted as degraded.
func (p *Processor) embed(ctx context.Context, chunks []model.Chunk) ([][]float32, int) {
	vectors := make([][]float32, len(chunks))
	var degraded int32

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range chunks {
		i := i
		g.Go(func() error {
			v, err := p.embedder.CreateEmbedding(ctx, chunks[i].Content)
			if err != nil {
				log.Warnf("[Processor] chunk %d: embedding failed, using zero vector: %v", i, err)
				v = make([]float32, p.embedder.Dimensions())
				atomic.AddInt32(&degraded, 1)
			}
			vectors[i] = v
			return nil
		})
	}
	_ = g.Wait()
	return vectors, int(degraded)
}
