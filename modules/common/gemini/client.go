package gemini

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// Reference - a steering image attached to an edit request
type Reference struct {
	Data     []byte
	MimeType string
}

// TransformRequest - one image edit sent to the generative service
type TransformRequest struct {
	Stage       string
	Image       []byte
	MimeType    string
	Directive   string
	References  []Reference
	AspectRatio string
}

// TransformResult - the edited image returned by the service
type TransformResult struct {
	Image    []byte
	MimeType string
}

// Client - stateless wrapper around the Gemini API. One network
// round-trip per call; retries live in CallWithRetry, the shared quota
// gate in Limiter. The API key is passed in at construction, never read
// from the process environment here.
type Client struct {
	genai   *genai.Client
	model   string
	timeout time.Duration
	limiter *Limiter
}

// NewClient - create a Gemini client with an explicit API key
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration, limiter *Limiter) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if limiter == nil {
		limiter = NewLimiter(1, 0)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Genai client: %w", err)
	}

	log.Printf("✅ [Gemini] Client initialized (model: %s)", model)
	return &Client{
		genai:   genaiClient,
		model:   model,
		timeout: timeout,
		limiter: limiter,
	}, nil
}

// Transform - send one edit instruction and return the edited image.
// Image bytes are never logged, only sizes.
func (c *Client) Transform(ctx context.Context, req *TransformRequest) (*TransformResult, error) {
	if len(req.Image) == 0 {
		return nil, &ServiceError{Kind: KindInvalidInput, Msg: "empty input image"}
	}
	if req.Directive == "" {
		return nil, &ServiceError{Kind: KindInvalidInput, Msg: "empty directive"}
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, Classify(err)
	}
	defer c.limiter.Release()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(req.Directive),
		genai.NewPartFromBytes(req.Image, mimeType),
	}
	for _, ref := range req.References {
		refMime := ref.MimeType
		if refMime == "" {
			refMime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(ref.Data, refMime))
	}

	content := &genai.Content{Parts: parts}

	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}
	if req.AspectRatio != "" {
		genConfig.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}

	log.Printf("📤 [Gemini] %s: sending edit request (image: %d bytes, refs: %d)",
		req.Stage, len(req.Image), len(req.References))

	result, err := c.genai.Models.GenerateContent(callCtx, c.model, []*genai.Content{content}, genConfig)
	if err != nil {
		return nil, Classify(err)
	}

	if se := blockedError(result); se != nil {
		return nil, se
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				outMime := part.InlineData.MIMEType
				if outMime == "" {
					outMime = "image/png"
				}
				log.Printf("✅ [Gemini] %s: received edited image (%d bytes, %s)",
					req.Stage, len(part.InlineData.Data), outMime)
				return &TransformResult{Image: part.InlineData.Data, MimeType: outMime}, nil
			}
		}
	}

	// The service reported success but produced nothing usable. Never
	// pass the input image through as if it were the edit result.
	return nil, &ServiceError{Kind: KindMalformed, Msg: "no image data in response"}
}

// Ask - send an image plus a question and return the text answer.
// Used by the structural analysis and quality check capabilities.
func (c *Client) Ask(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if len(image) == 0 {
		return "", &ServiceError{Kind: KindInvalidInput, Msg: "empty input image"}
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return "", Classify(err)
	}
	defer c.limiter.Release()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if mimeType == "" {
		mimeType = "image/png"
	}

	content := &genai.Content{Parts: []*genai.Part{
		genai.NewPartFromBytes(image, mimeType),
		genai.NewPartFromText(prompt),
	}}

	result, err := c.genai.Models.GenerateContent(callCtx, c.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", Classify(err)
	}

	if se := blockedError(result); se != nil {
		return "", se
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}

	return "", &ServiceError{Kind: KindMalformed, Msg: "no text data in response"}
}

// blockedError - detect safety blocks reported inside a "successful"
// response
func blockedError(result *genai.GenerateContentResponse) *ServiceError {
	if result == nil {
		return &ServiceError{Kind: KindMalformed, Msg: "empty response"}
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return &ServiceError{
			Kind: KindContentPolicy,
			Msg:  fmt.Sprintf("prompt blocked: %s", result.PromptFeedback.BlockReason),
		}
	}
	for _, candidate := range result.Candidates {
		switch candidate.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
			return &ServiceError{
				Kind: KindContentPolicy,
				Msg:  fmt.Sprintf("generation stopped: %s", candidate.FinishReason),
			}
		}
	}
	return nil
}
