package model

import "time"

// Ingestion run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// IngestionRun records one execution of the ingestion pipeline for one document.
type IngestionRun struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID              string     `gorm:"type:char(36);uniqueIndex;not null" json:"run_id"`
	ISOCode            string     `gorm:"type:char(2);index;not null" json:"iso_code"`
	FileName           string     `gorm:"type:varchar(255);not null" json:"file_name"`
	Container          string     `gorm:"type:varchar(63)" json:"container"`
	Status             string     `gorm:"type:varchar(16);not null;default:'running'" json:"status"`
	ElementCount       int        `gorm:"not null;default:0" json:"element_count"`
	ChunkCount         int        `gorm:"not null;default:0" json:"chunk_count"`
	DegradedEmbeddings int        `gorm:"not null;default:0" json:"degraded_embeddings"`
	DeletedCount       int        `gorm:"not null;default:0" json:"deleted_count"`
	UploadedCount      int        `gorm:"not null;default:0" json:"uploaded_count"`
	FailedCount        int        `gorm:"not null;default:0" json:"failed_count"`
	Error              string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt          LocalTime  `gorm:"type:datetime;not null" json:"started_at"`
	FinishedAt         *LocalTime `gorm:"type:datetime" json:"finished_at,omitempty"`
}

// TableName pins the table name.
func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

// Finish stamps the terminal status of the run.
func (r *IngestionRun) Finish(err error) {
	now := LocalTime(time.Now())
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunSucceeded
}
