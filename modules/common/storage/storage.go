package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"screenking-server/modules/common/config"
	"screenking-server/modules/common/database"
)

type Client struct {
	cfg      *config.Config
	dbClient *database.Client
}

// NewClient - create the storage client
func NewClient(cfg *config.Config, dbClient *database.Client) *Client {
	return &Client{
		cfg:      cfg,
		dbClient: dbClient,
	}
}

// DownloadImage - download an uploaded photo from Supabase Storage by attach id.
// Returns the raw bytes and the content type reported by storage.
func (c *Client) DownloadImage(attachID int) ([]byte, string, error) {
	// 1. Resolve the file path from the attachments table
	attach, err := c.dbClient.FetchAttachInfo(attachID)
	if err != nil {
		return nil, "", err
	}

	var filePath string
	if attach.AttachFilePath != nil && *attach.AttachFilePath != "" {
		filePath = *attach.AttachFilePath
	} else if attach.AttachDirectory != nil && *attach.AttachDirectory != "" {
		filePath = *attach.AttachDirectory
	} else {
		return nil, "", fmt.Errorf("no file path found for attach_id: %d", attachID)
	}

	// 2. Download over HTTP
	fullURL := c.cfg.SupabaseStorageBaseURL + filePath
	log.Printf("📥 Downloading image from: %s", fullURL)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	httpResp, err := httpClient.Get(fullURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, "", fmt.Errorf("failed to download image: status %d, body: %s", httpResp.StatusCode, string(body))
	}

	imageData, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}

	mimeType := httpResp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/png"
	}

	log.Printf("✅ Image downloaded successfully: %d bytes (%s)", len(imageData), mimeType)
	return imageData, mimeType, nil
}

// UploadImage - upload a generated image to Supabase Storage as WebP.
// convertToWebP is injected so the storage layer stays free of codec deps.
func (c *Client) UploadImage(ctx context.Context, imageData []byte, userID string, convertToWebP func([]byte, float32) ([]byte, error)) (string, int64, error) {
	webpData, err := convertToWebP(imageData, 90.0)
	if err != nil {
		return "", 0, fmt.Errorf("failed to convert image to WebP: %w", err)
	}

	fileName := fmt.Sprintf("visualization_%s.webp", uuid.NewString())
	filePath := fmt.Sprintf("generated/user-%s/%s", userID, fileName)

	log.Printf("📤 Uploading WebP image to storage: %s", filePath)

	uploadURL := fmt.Sprintf("%s/storage/v1/object/attachments/%s", c.cfg.SupabaseURL, filePath)

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(webpData))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.SupabaseServiceKey)
	req.Header.Set("Content-Type", "image/webp")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	webpSize := int64(len(webpData))
	log.Printf("✅ WebP image uploaded successfully: %s (%d bytes)", filePath, webpSize)
	return filePath, webpSize, nil
}
