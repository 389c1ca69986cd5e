package visualize

import (
	"context"
	"log"
	"strings"

	"screenking-server/modules/common/gemini"
)

// Verdict - quality gate decision. Guidance, when present, feeds the
// single install retry with tightened constraints.
type Verdict struct {
	Pass     bool
	Guidance string
}

// CheckOptions - what the install stage was asked to produce
type CheckOptions struct {
	ScreenType string
	Opacity    string
	Color      string
}

// QualityChecker - evaluates the install output against the acceptance
// criteria. Pluggable policy: the contract is the verdict, not the
// heuristic behind it.
type QualityChecker interface {
	Check(ctx context.Context, image []byte, mimeType string, opts CheckOptions) (Verdict, error)
}

// GeminiChecker - vision QC against the acceptance question
type GeminiChecker struct {
	client *gemini.Client
}

func NewGeminiChecker(client *gemini.Client) *GeminiChecker {
	return &GeminiChecker{client: client}
}

func (c *GeminiChecker) Check(ctx context.Context, image []byte, mimeType string, opts CheckOptions) (Verdict, error) {
	question := BuildQualityQuestion(opts.ScreenType, opts.Opacity, opts.Color)

	answer, err := c.client.Ask(ctx, image, mimeType, question)
	if err != nil {
		return Verdict{}, err
	}

	verdict := parseVerdict(answer)
	log.Printf("🔎 [QC] Result: pass=%v guidance=%q", verdict.Pass, verdict.Guidance)
	return verdict, nil
}

// parseVerdict - the model is prompted to answer YES, or NO followed by
// one line of guidance
func parseVerdict(answer string) Verdict {
	trimmed := strings.TrimSpace(answer)
	upper := strings.ToUpper(trimmed)

	if strings.Contains(upper, "YES") {
		return Verdict{Pass: true}
	}

	guidance := trimmed
	if idx := strings.Index(upper, "NO"); idx >= 0 {
		guidance = strings.TrimSpace(trimmed[idx+2:])
		guidance = strings.TrimLeft(guidance, ".,:;- ")
	}

	return Verdict{Pass: false, Guidance: guidance}
}
