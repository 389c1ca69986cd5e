package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// Client - Vertex AI vision client. Serves as the alternate backend for
// structural analysis when a GCP project is configured. Credentials are
// passed in explicitly at construction; nothing is read from ambient
// process state afterwards.
type Client struct {
	genai *genai.Client
	model string
}

// NewClient - create the Vertex AI client. credsJSON takes priority over
// credsPath; with neither set, Application Default Credentials apply.
func NewClient(ctx context.Context, project, location, model, credsJSON, credsPath string) (*Client, error) {
	var opts []option.ClientOption

	switch {
	case credsJSON != "":
		log.Println("✅ [VertexAI] Using inline JSON credentials")
		opts = append(opts, option.WithCredentialsJSON([]byte(credsJSON)))
	case credsPath != "":
		log.Printf("✅ [VertexAI] Using credentials from file: %s", credsPath)
		credsData, err := os.ReadFile(credsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		var creds map[string]interface{}
		if err := json.Unmarshal(credsData, &creds); err != nil {
			return nil, fmt.Errorf("invalid JSON credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credsData))
	default:
		log.Println("⚠️  [VertexAI] No explicit credentials provided, using Application Default Credentials")
	}

	genaiClient, err := genai.NewClient(ctx, project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Printf("✅ [VertexAI] Client initialized (project=%s, location=%s, model=%s)", project, location, model)
	return &Client{
		genai: genaiClient,
		model: model,
	}, nil
}

// AskAboutImage - send an image plus a question, return the text answer
func (c *Client) AskAboutImage(ctx context.Context, image []byte, format, prompt string) (string, error) {
	if format == "" {
		format = "png"
	}

	generativeModel := c.genai.GenerativeModel(c.model)
	resp, err := generativeModel.GenerateContent(ctx,
		genai.ImageData(format, image),
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("vertex generate content failed: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok && text != "" {
				return string(text), nil
			}
		}
	}

	return "", fmt.Errorf("no text data in vertex response")
}

// Close - release the underlying connection
func (c *Client) Close() error {
	return c.genai.Close()
}
