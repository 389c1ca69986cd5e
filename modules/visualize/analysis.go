package visualize

import (
	"context"
	"log"
	"strings"

	"screenking-server/modules/common/gemini"
	"screenking-server/modules/common/vertexai"
)

// StructureAnalyzer - decides whether the cleansed photo needs a
// structural build-out before a screen can be installed. The decision
// is a capability, not an image edit: how it is computed is pluggable.
type StructureAnalyzer interface {
	NeedsBuildOut(ctx context.Context, image []byte, mimeType string) (bool, error)
}

// GeminiAnalyzer - asks the Gemini vision model a YES/NO question
type GeminiAnalyzer struct {
	client *gemini.Client
}

func NewGeminiAnalyzer(client *gemini.Client) *GeminiAnalyzer {
	return &GeminiAnalyzer{client: client}
}

func (a *GeminiAnalyzer) NeedsBuildOut(ctx context.Context, image []byte, mimeType string) (bool, error) {
	answer, err := a.client.Ask(ctx, image, mimeType, analysisQuestion)
	if err != nil {
		return false, err
	}

	result := parseYes(answer)
	log.Printf("🔍 [Analysis] Structure analysis result: %v (%q)", result, strings.TrimSpace(answer))
	return result, nil
}

// VertexAnalyzer - same question against a Vertex AI model, for
// deployments that keep analysis traffic on a GCP project quota
type VertexAnalyzer struct {
	client *vertexai.Client
}

func NewVertexAnalyzer(client *vertexai.Client) *VertexAnalyzer {
	return &VertexAnalyzer{client: client}
}

func (a *VertexAnalyzer) NeedsBuildOut(ctx context.Context, image []byte, mimeType string) (bool, error) {
	format := "png"
	if strings.Contains(mimeType, "jpeg") || strings.Contains(mimeType, "jpg") {
		format = "jpeg"
	}

	answer, err := a.client.AskAboutImage(ctx, image, format, analysisQuestion)
	if err != nil {
		return false, err
	}

	result := parseYes(answer)
	log.Printf("🔍 [Analysis] Vertex structure analysis result: %v", result)
	return result, nil
}

// parseYes - the models are prompted to lead with YES or NO
func parseYes(answer string) bool {
	return strings.Contains(strings.ToUpper(answer), "YES")
}
