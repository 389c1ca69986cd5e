package visualize

import (
	"context"
	"log"
	"time"

	"screenking-server/modules/common/gemini"
	"screenking-server/modules/common/utils"
)

// Transformer - the generative service contract the stage executors
// depend on. *gemini.Client satisfies it; tests use stubs.
type Transformer interface {
	Transform(ctx context.Context, req *gemini.TransformRequest) (*gemini.TransformResult, error)
}

// runEditStage - execute one edit instruction through the retry
// controller and record the outcome for the audit trail
func (o *Orchestrator) runEditStage(ctx context.Context, instr EditInstruction, image []byte, mimeType string) (StageOutcome, *gemini.TransformResult) {
	start := time.Now()

	transformReq := &gemini.TransformRequest{
		Stage:       instr.Stage,
		Image:       image,
		MimeType:    mimeType,
		Directive:   instr.Directive,
		References:  instr.References,
		AspectRatio: instr.AspectRatio,
	}

	result, attempts, err := gemini.CallWithRetry(ctx, o.policy, func(callCtx context.Context) (*gemini.TransformResult, error) {
		return o.client.Transform(callCtx, transformReq)
	})

	outcome := StageOutcome{
		Stage:    instr.Stage,
		Attempts: len(attempts),
		Elapsed:  time.Since(start),
	}

	if err != nil {
		outcome.Status = StageFailed
		outcome.Error = err.Error()
		log.Printf("❌ [Pipeline] Stage %s failed after %d attempt(s): %v", instr.Stage, len(attempts), err)
		return outcome, nil
	}

	outcome.Image = result.Image
	if len(attempts) > 1 {
		outcome.Status = StageRetriedSuccess
	} else {
		outcome.Status = StageSuccess
	}

	utils.SaveDebugImage(o.debugDir, instr.Stage, result.Image)
	log.Printf("✅ [Pipeline] Stage %s succeeded (attempts: %d, elapsed: %s)", instr.Stage, len(attempts), outcome.Elapsed)

	return outcome, result
}

// cleanse - remove scene clutter and normalize lighting while
// preserving house structure and camera framing. Always runs first.
func (o *Orchestrator) cleanse(ctx context.Context, req *PipelineRequest) (StageOutcome, *gemini.TransformResult) {
	instr := EditInstruction{
		Stage:     StageCleanse,
		Directive: cleanseDirective,
	}
	return o.runEditStage(ctx, instr, req.Image, req.MimeType)
}

// buildOut - add the missing structural frame. Runs only when the
// structural analysis asked for it.
func (o *Orchestrator) buildOut(ctx context.Context, image []byte, mimeType string) (StageOutcome, *gemini.TransformResult) {
	instr := EditInstruction{
		Stage:     StageBuildOut,
		Directive: buildOutDirective,
	}
	return o.runEditStage(ctx, instr, image, mimeType)
}

// install - apply the screen visualization using the style options and
// any reference assets for the requested opacity. The strict variant
// carries the quality-gate guidance into a tightened directive.
func (o *Orchestrator) install(ctx context.Context, req *PipelineRequest, image []byte, mimeType string, strict bool, guidance string) (StageOutcome, *gemini.TransformResult) {
	opacity := NormalizeOpacity(req.Option("opacity"))
	color := req.Option("color")

	references := o.refs.Get(opacity)
	if len(references) == 0 {
		log.Printf("⚠️  [Pipeline] No reference image for opacity %s, proceeding without reference", opacity)
	}

	instr := EditInstruction{
		Stage:      StageInstall,
		Directive:  BuildInstallDirective(opacity, color, len(references) > 0, strict, guidance),
		References: references,
	}
	return o.runEditStage(ctx, instr, image, mimeType)
}
