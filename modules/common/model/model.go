package model

import "time"

// VisualizationRequest - visualization_requests table row
type VisualizationRequest struct {
	RequestID        string     `json:"request_id"`
	UserID           *string    `json:"user_id"`
	OriginalAttachID int        `json:"original_attach_id"`
	ScreenType       string     `json:"screen_type"`
	Opacity          *string    `json:"opacity"` // "80" | "95" | "99"
	Color            *string    `json:"color"`
	Status           string     `json:"status"`
	ProgressPercent  int        `json:"progress_percentage"`
	StatusMessage    *string    `json:"status_message"`
	ErrorMessage     *string    `json:"error_message"`
	RetryCount       int        `json:"retry_count"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"processing_started_at"`
	CompletedAt      *time.Time `json:"processing_completed_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Attach - attachments table row
type Attach struct {
	AttachID           int64     `json:"attach_id"`
	CreatedAt          time.Time `json:"created_at"`
	AttachOriginalName *string   `json:"attach_original_name"`
	AttachFileName     *string   `json:"attach_file_name"`
	AttachFilePath     *string   `json:"attach_file_path"`
	AttachFileSize     *int64    `json:"attach_file_size"`
	AttachFileType     *string   `json:"attach_file_type"`
	AttachDirectory    *string   `json:"attach_directory"`
	AttachStorageType  *string   `json:"attach_storage_type"`
}

// GeneratedImage - generated_images table row, links a request to its result
type GeneratedImage struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"request_id"`
	AttachID  int64     `json:"attach_id"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	StatusPending              = "pending"
	StatusProcessing           = "processing"
	StatusCompleted            = "completed"
	StatusCompletedWithWarning = "completed_with_warning"
	StatusFailed               = "failed"
	StatusUserCancelled        = "user_cancelled"
)

// IsTerminal - statuses a job can no longer leave
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusCompletedWithWarning, StatusFailed, StatusUserCancelled:
		return true
	}
	return false
}
