// Package tasks defines the payloads exchanged over Kafka.
package tasks

// IngestionTask asks the pipeline to (re)index one uploaded document.
type IngestionTask struct {
	FileName  string `json:"file_name"`
	Container string `json:"container"`
	ISOCode   string `json:"iso_code"`
}
