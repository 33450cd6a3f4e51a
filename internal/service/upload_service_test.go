package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/repository"
	"juris-rag-go/pkg/tasks"
)

type fakeDocumentStore struct {
	bucket string
	name   string
	data   []byte
	err    error
}

func (s *fakeDocumentStore) PutDocument(_ context.Context, bucket, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if bucket == "" {
		bucket = "legal-documents"
	}
	s.bucket, s.name, s.data = bucket, name, data
	return bucket, nil
}

type fakeProducer struct {
	tasks []tasks.IngestionTask
	err   error
}

func (p *fakeProducer) ProduceIngestionTask(_ context.Context, task tasks.IngestionTask) error {
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func TestUploadStoresAndQueues(t *testing.T) {
	store := &fakeDocumentStore{}
	producer := &fakeProducer{}
	svc := NewUploadService(store, producer, repository.NewIngestionRunRepository(nil))

	code, err := svc.Upload(context.Background(), model.UploadRequest{
		Filename: "DE.docx",
		FileData: base64.StdEncoding.EncodeToString([]byte("docx-bytes")),
	})
	require.NoError(t, err)
	assert.Equal(t, "DE", code)
	assert.Equal(t, []byte("docx-bytes"), store.data)
	assert.Equal(t, []tasks.IngestionTask{{FileName: "DE.docx", Container: "legal-documents", ISOCode: "DE"}}, producer.tasks)
}

func TestUploadAcceptsDataURI(t *testing.T) {
	store := &fakeDocumentStore{}
	svc := NewUploadService(store, &fakeProducer{}, repository.NewIngestionRunRepository(nil))

	encoded := "data:application/vnd.openxmlformats-officedocument.wordprocessingml.document;base64," +
		base64.StdEncoding.EncodeToString([]byte("payload"))
	_, err := svc.Upload(context.Background(), model.UploadRequest{Filename: "CH.docx", FileData: encoded, Container: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", store.bucket)
	assert.Equal(t, []byte("payload"), store.data)
}

func TestUploadValidation(t *testing.T) {
	svc := NewUploadService(&fakeDocumentStore{}, &fakeProducer{}, repository.NewIngestionRunRepository(nil))
	valid := base64.StdEncoding.EncodeToString([]byte("x"))

	cases := []model.UploadRequest{
		{Filename: "germany.docx", FileData: valid},
		{Filename: "DE.pdf", FileData: valid},
		{Filename: "DE.docx", FileData: ""},
		{Filename: "DE.docx", FileData: "%%% not base64"},
		{Filename: "DE.docx", FileData: valid, Container: "My Docs"},
		{Filename: "DE.docx", FileData: valid, Container: "UPPER"},
		{Filename: "DE.docx", FileData: valid, Container: "a"},
		{Filename: "DE.docx", FileData: valid, Container: "../etc"},
	}
	for _, req := range cases {
		_, err := svc.Upload(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation, "%s in %q", req.Filename, req.Container)
	}
}

func TestUploadQueueFailure(t *testing.T) {
	svc := NewUploadService(&fakeDocumentStore{}, &fakeProducer{err: errBoom}, repository.NewIngestionRunRepository(nil))
	_, err := svc.Upload(context.Background(), model.UploadRequest{
		Filename: "DE.docx",
		FileData: base64.StdEncoding.EncodeToString([]byte("x")),
	})
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestRunsWithoutDatabase(t *testing.T) {
	svc := NewUploadService(&fakeDocumentStore{}, &fakeProducer{}, repository.NewIngestionRunRepository(nil))

	runs, err := svc.Runs(context.Background(), "de", 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	_, err = svc.Runs(context.Background(), "DEU", 10)
	assert.ErrorIs(t, err, ErrValidation)
}
