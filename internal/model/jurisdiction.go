package model

// JurisdictionDetection reports which requested codes have indexed documents.
type JurisdictionDetection struct {
	ISOCodes  []string `json:"iso_codes"`
	Available []string `json:"available"`
	Summary   string   `json:"summary"`
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the body returned by POST /api/ask.
type AskResponse struct {
	CountryHeader    string                `json:"country_header"`
	RefinedAnswer    string                `json:"refined_answer"`
	CountryDetection JurisdictionDetection `json:"country_detection"`
}

// UploadRequest is the body of POST /api/upload_blob.
type UploadRequest struct {
	Filename  string `json:"filename"`
	FileData  string `json:"file_data"`
	Container string `json:"container"`
}

// CleanupRequest is the body of POST /api/cleanup_index.
type CleanupRequest struct {
	ISOCode string `json:"iso_code"`
}

// CleanupResult is the body returned by POST /api/cleanup_index.
type CleanupResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
	FailedCount  int    `json:"failed_count"`
	ISOCode      string `json:"iso_code"`
	Warning      string `json:"warning,omitempty"`
}

// SyncResult counts the outcome of one delete-then-upload synchronization.
type SyncResult struct {
	DeletedCount  int `json:"deleted_count"`
	DeleteFailed  int `json:"delete_failed"`
	UploadedCount int `json:"uploaded_count"`
	UploadFailed  int `json:"upload_failed"`
}
