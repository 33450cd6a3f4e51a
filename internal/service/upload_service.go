package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7/pkg/s3utils"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/pipeline"
	"juris-rag-go/internal/repository"
	"juris-rag-go/pkg/log"
	"juris-rag-go/pkg/tasks"
)

// DocumentStore stores uploaded documents.
type DocumentStore interface {
	PutDocument(ctx context.Context, bucket, name string, data []byte) (string, error)
}

// TaskProducer queues ingestion tasks.
type TaskProducer interface {
	ProduceIngestionTask(ctx context.Context, task tasks.IngestionTask) error
}

// UploadService accepts documents and schedules their ingestion.
type UploadService interface {
	// Upload stores the document and queues its ingestion. It returns the
	// jurisdiction code taken from the filename.
	Upload(ctx context.Context, req model.UploadRequest) (string, error)
	// Runs lists recent ingestion runs, optionally for one jurisdiction.
	Runs(ctx context.Context, isoCode string, limit int) ([]model.IngestionRun, error)
}

type uploadService struct {
	store    DocumentStore
	producer TaskProducer
	runs     repository.IngestionRunRepository
}

// NewUploadService creates an UploadService.
func NewUploadService(store DocumentStore, producer TaskProducer, runs repository.IngestionRunRepository) UploadService {
	return &uploadService{store: store, producer: producer, runs: runs}
}

func (s *uploadService) Upload(ctx context.Context, req model.UploadRequest) (string, error) {
	code, err := pipeline.ValidateFilename(req.Filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	container := strings.TrimSpace(req.Container)
	if container != "" {
		if err := s3utils.CheckValidBucketNameStrict(container); err != nil {
			return "", validationError("container %q is not a valid bucket name: %v", container, err)
		}
	}
	data, err := decodeFileData(req.FileData)
	if err != nil {
		return "", err
	}

	bucket, err := s.store.PutDocument(ctx, container, req.Filename, data)
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	log.Infof("[UploadService] stored %s/%s (%d bytes)", bucket, req.Filename, len(data))

	task := tasks.IngestionTask{FileName: req.Filename, Container: bucket, ISOCode: code}
	if err := s.producer.ProduceIngestionTask(ctx, task); err != nil {
		return "", fmt.Errorf("queue ingestion: %w", err)
	}
	return code, nil
}

func (s *uploadService) Runs(ctx context.Context, isoCode string, limit int) ([]model.IngestionRun, error) {
	code := strings.ToUpper(strings.TrimSpace(isoCode))
	if code != "" && !isoCodePattern.MatchString(code) {
		return nil, validationError("iso_code must be a two-letter code, got %q", isoCode)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.runs.ListRecent(ctx, code, limit)
	if errors.Is(err, repository.ErrNotConfigured) {
		return []model.IngestionRun{}, nil
	}
	return runs, err
}

// decodeFileData accepts plain base64 or a data URI.
func decodeFileData(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	if encoded == "" {
		return nil, validationError("file_data must not be empty")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, validationError("file_data is not valid base64: %v", err)
	}
	if len(data) == 0 {
		return nil, validationError("file_data decodes to an empty file")
	}
	return data, nil
}
