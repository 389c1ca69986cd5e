package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"
	"screenking-server/modules/common/config"
	"screenking-server/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - create the Supabase-backed database client
func NewClient(cfg *config.Config) *Client {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// FetchRequest - load a visualization request row
func (c *Client) FetchRequest(requestID string) (*model.VisualizationRequest, error) {
	log.Printf("🔍 Fetching visualization request: %s", requestID)

	var requests []model.VisualizationRequest

	data, _, err := c.supabase.From("visualization_requests").
		Select("*", "exact", false).
		Eq("request_id", requestID).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query Supabase: %w", err)
	}

	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(requests) == 0 {
		return nil, fmt.Errorf("request not found: %s", requestID)
	}

	req := &requests[0]
	log.Printf("✅ Request fetched: %s (status: %s, screen_type: %s)",
		req.RequestID, req.Status, req.ScreenType)

	return req, nil
}

// UpdateRequestStatus - move a request to a new status, stamping timestamps
func (c *Client) UpdateRequestStatus(ctx context.Context, requestID string, status string) error {
	log.Printf("📝 Updating request %s status to: %s", requestID, status)

	updateData := map[string]interface{}{
		"status":     status,
		"updated_at": "now()",
	}

	if status == model.StatusProcessing {
		updateData["processing_started_at"] = "now()"
		updateData["progress_percentage"] = 0
		updateData["error_message"] = nil
	} else if model.IsTerminal(status) {
		updateData["processing_completed_at"] = "now()"
	}

	_, _, err := c.supabase.From("visualization_requests").
		Update(updateData, "", "").
		Eq("request_id", requestID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	log.Printf("✅ Request %s status updated to: %s", requestID, status)
	return nil
}

// SetRequestError - record the failure reason on the row
func (c *Client) SetRequestError(ctx context.Context, requestID string, message string) error {
	updateData := map[string]interface{}{
		"error_message": message,
		"updated_at":    "now()",
	}

	_, _, err := c.supabase.From("visualization_requests").
		Update(updateData, "", "").
		Eq("request_id", requestID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to set request error: %w", err)
	}
	return nil
}

// UpdateRequestProgress - progress percentage and status message for polling
func (c *Client) UpdateRequestProgress(ctx context.Context, requestID string, percent int, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	updateData := map[string]interface{}{
		"progress_percentage": percent,
		"status_message":      message,
		"updated_at":          "now()",
	}

	_, _, err := c.supabase.From("visualization_requests").
		Update(updateData, "", "").
		Eq("request_id", requestID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update request progress: %w", err)
	}
	return nil
}

// FetchAttachInfo - load file info for an attachment
func (c *Client) FetchAttachInfo(attachID int) (*model.Attach, error) {
	log.Printf("🔍 Fetching attach info: %d", attachID)

	var attaches []model.Attach

	data, _, err := c.supabase.From("attachments").
		Select("*", "exact", false).
		Eq("attach_id", fmt.Sprintf("%d", attachID)).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}

	if err := json.Unmarshal(data, &attaches); err != nil {
		return nil, fmt.Errorf("failed to parse attach response: %w", err)
	}

	if len(attaches) == 0 {
		return nil, fmt.Errorf("attach not found: %d", attachID)
	}

	return &attaches[0], nil
}

// CreateAttachRecord - insert an attachments row for an uploaded file
func (c *Client) CreateAttachRecord(ctx context.Context, filePath string, fileSize int64, fileType string) (int64, error) {
	log.Printf("💾 Creating attach record for: %s", filePath)

	fileName := filePath
	for i := len(filePath) - 1; i >= 0; i-- {
		if filePath[i] == '/' {
			fileName = filePath[i+1:]
			break
		}
	}

	insertData := map[string]interface{}{
		"attach_original_name": fileName,
		"attach_file_name":     fileName,
		"attach_file_path":     filePath,
		"attach_file_size":     fileSize,
		"attach_file_type":     fileType,
		"attach_directory":     filePath,
		"attach_storage_type":  "supabase",
	}

	data, _, err := c.supabase.From("attachments").
		Insert(insertData, false, "", "", "").
		Execute()

	if err != nil {
		return 0, fmt.Errorf("failed to insert attach record: %w", err)
	}

	var attaches []model.Attach
	if err := json.Unmarshal(data, &attaches); err != nil {
		return 0, fmt.Errorf("failed to parse attach response: %w", err)
	}

	if len(attaches) == 0 {
		return 0, fmt.Errorf("no attach record returned")
	}

	attachID := attaches[0].AttachID
	log.Printf("✅ Attach record created: ID=%d", attachID)

	return attachID, nil
}

// CreateGeneratedImage - link a result attachment to its request
func (c *Client) CreateGeneratedImage(ctx context.Context, requestID string, attachID int64) error {
	insertData := map[string]interface{}{
		"request_id": requestID,
		"attach_id":  attachID,
	}

	_, _, err := c.supabase.From("generated_images").
		Insert(insertData, false, "", "", "").
		Execute()

	if err != nil {
		return fmt.Errorf("failed to create generated_images record: %w", err)
	}

	log.Printf("✅ Generated image recorded (request: %s, attach_id: %d)", requestID, attachID)
	return nil
}
