package service

import (
	"context"
	"fmt"
	"strings"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/repository"
	"juris-rag-go/pkg/log"
)

// CleanupAll selects every document in the index regardless of jurisdiction.
const CleanupAll = "ALL"

// IndexService is the only writer of the vector index.
type IndexService interface {
	// Sync deletes every document of isoCode, then uploads docs. There is no
	// rollback: a failure after the delete leaves the jurisdiction empty until
	// the next successful sync.
	Sync(ctx context.Context, isoCode string, docs []model.IndexDocument) (model.SyncResult, error)
	// Cleanup deletes the documents of one jurisdiction, or all of them for "ALL".
	Cleanup(ctx context.Context, isoCode string) (*model.CleanupResult, error)
}

type indexService struct {
	index repository.IndexRepository
}

// NewIndexService creates an IndexService.
func NewIndexService(index repository.IndexRepository) IndexService {
	return &indexService{index: index}
}

func (s *indexService) Sync(ctx context.Context, isoCode string, docs []model.IndexDocument) (model.SyncResult, error) {
	var res model.SyncResult

	ids, err := s.index.ListIDs(ctx, isoCode)
	if err != nil {
		return res, fmt.Errorf("list %s documents: %w", isoCode, err)
	}
	if len(ids) > 0 {
		res.DeletedCount, res.DeleteFailed, err = s.index.DeleteBatch(ctx, ids)
		if err != nil {
			log.Errorf("[IndexService] %s: delete failed after removing %d of %d documents: %v", isoCode, res.DeletedCount, len(ids), err)
			return res, fmt.Errorf("delete %s documents: %w", isoCode, err)
		}
	}
	log.Infof("[IndexService] %s: deleted %d old documents (%d failed)", isoCode, res.DeletedCount, res.DeleteFailed)

	res.UploadedCount, res.UploadFailed, err = s.index.UploadBatch(ctx, docs)
	if err != nil {
		log.Errorf("[IndexService] %s: upload failed, jurisdiction holds %d of %d new documents until re-ingested: %v",
			isoCode, res.UploadedCount, len(docs), err)
		return res, fmt.Errorf("upload %s documents: %w", isoCode, err)
	}
	if res.UploadFailed > 0 {
		log.Warnf("[IndexService] %s: %d of %d documents were rejected by the index", isoCode, res.UploadFailed, len(docs))
	}
	return res, nil
}

func (s *indexService) Cleanup(ctx context.Context, isoCode string) (*model.CleanupResult, error) {
	code := strings.ToUpper(strings.TrimSpace(isoCode))
	if code != CleanupAll && !isoCodePattern.MatchString(code) {
		return nil, validationError("iso_code must be a two-letter code or %q, got %q", CleanupAll, isoCode)
	}

	filter := code
	if code == CleanupAll {
		filter = ""
	}
	ids, err := s.index.ListIDs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(ids) == 0 {
		return &model.CleanupResult{
			Success: true,
			Message: fmt.Sprintf("No documents found for %s", code),
			ISOCode: code,
		}, nil
	}

	deleted, failed, err := s.index.DeleteBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("delete documents: %w", err)
	}
	log.Infof("[IndexService] cleanup %s: deleted %d, failed %d", code, deleted, failed)

	res := &model.CleanupResult{
		Success:      true,
		Message:      fmt.Sprintf("Deleted %d documents for %s", deleted, code),
		DeletedCount: deleted,
		FailedCount:  failed,
		ISOCode:      code,
	}
	if failed > 0 {
		res.Warning = fmt.Sprintf("%d documents could not be deleted", failed)
	}
	return res, nil
}
