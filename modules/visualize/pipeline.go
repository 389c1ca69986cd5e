package visualize

import (
	"context"
	"log"
	"time"

	"screenking-server/modules/common/gemini"
	"screenking-server/modules/common/utils"
)

// Progress checkpoints reported as each stage lands. The tracker clamps
// them so a run never reports a lower percentage than it already did.
const (
	progressCleansed  = 25
	progressAnalyzed  = 35
	progressBuiltOut  = 50
	progressInstalled = 80
	progressReinstall = 85
	progressQualityOK = 95
	progressDone      = 100
)

// maxInstallRounds - initial install plus one guidance-driven retry
const maxInstallRounds = 2

// OrchestratorOptions - tuning knobs. Zero value gets sane defaults.
type OrchestratorOptions struct {
	Policy   gemini.RetryPolicy
	Reporter Reporter
	DebugDir string
}

// Orchestrator - runs the visualization pipeline: cleanse, structural
// analysis, optional build-out, install, quality gate. Stateless across
// runs; one instance serves all jobs.
type Orchestrator struct {
	client   Transformer
	analyzer StructureAnalyzer
	checker  QualityChecker
	refs     ReferenceProvider
	reporter Reporter
	policy   gemini.RetryPolicy
	debugDir string
}

func NewOrchestrator(client Transformer, analyzer StructureAnalyzer, checker QualityChecker, refs ReferenceProvider, opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		analyzer: analyzer,
		checker:  checker,
		refs:     refs,
		reporter: opts.Reporter,
		policy:   opts.Policy,
		debugDir: opts.DebugDir,
	}
	if o.refs == nil {
		o.refs = noReferences{}
	}
	if o.reporter == nil {
		o.reporter = NopReporter{}
	}
	if o.policy.MaxAttempts <= 0 {
		o.policy = gemini.DefaultRetryPolicy()
	}
	return o
}

// noReferences - fallback provider when no asset library is configured
type noReferences struct{}

func (noReferences) Get(string) []gemini.Reference { return nil }

// Run - execute the full pipeline for one request. Always returns a
// result; errors surface as a failed status with a reason, never as a
// panic or a partial image. The returned audit trail lists every stage
// that actually executed, in order.
func (o *Orchestrator) Run(ctx context.Context, req *PipelineRequest) *PipelineResult {
	result := &PipelineResult{}
	progress := &progressTracker{reporter: o.reporter}
	state := StateInit

	if len(req.Image) == 0 {
		return o.fail(result, string(gemini.KindInvalidInput), "no input image provided")
	}
	if req.MimeType == "" {
		req.MimeType = "image/png"
	}

	// ---- Cleanse ----
	state = StateCleansing
	log.Printf("🧹 [Pipeline] %s: cleansing input photo (%d bytes)", req.RequestID, len(req.Image))

	outcome, cleansed := o.cleanse(ctx, req)
	result.Outcomes = append(result.Outcomes, outcome)
	if cleansed == nil {
		return o.fail(result, outcome.Error, "cleanse stage failed")
	}
	progress.report(string(state), "Photo cleaned up", progressCleansed)

	if reason, cancelled := o.cancelled(ctx, req); cancelled {
		return o.fail(result, reason, "cancelled after cleanse")
	}

	current := cleansed.Image
	currentMime := cleansed.MimeType

	// ---- Structural analysis ----
	// The analysis is advisory: if it errors we assume no build-out is
	// needed and keep going. It performs no edit, so it never appears
	// in the audit trail.
	state = StateAnalyzing
	needsBuildOut := false
	if o.analyzer != nil {
		var err error
		needsBuildOut, err = o.analyzer.NeedsBuildOut(ctx, current, currentMime)
		if err != nil {
			log.Printf("⚠️  [Pipeline] %s: structure analysis failed, skipping build-out: %v", req.RequestID, err)
			needsBuildOut = false
		}
	}
	progress.report(string(state), "Structure analyzed", progressAnalyzed)

	if reason, cancelled := o.cancelled(ctx, req); cancelled {
		return o.fail(result, reason, "cancelled after analysis")
	}

	// ---- Build-out (conditional) ----
	if needsBuildOut {
		state = StateBuildingOut
		log.Printf("🏗️  [Pipeline] %s: building out structural frame", req.RequestID)

		outcome, built := o.buildOut(ctx, current, currentMime)
		result.Outcomes = append(result.Outcomes, outcome)
		if built == nil {
			return o.fail(result, outcome.Error, "build-out stage failed")
		}
		current = built.Image
		currentMime = built.MimeType
		progress.report(string(state), "Structural frame added", progressBuiltOut)

		if reason, cancelled := o.cancelled(ctx, req); cancelled {
			return o.fail(result, reason, "cancelled after build-out")
		}
	}

	// ---- Install + quality gate ----
	checkOpts := CheckOptions{
		ScreenType: req.ScreenType,
		Opacity:    NormalizeOpacity(req.Option("opacity")),
		Color:      req.Option("color"),
	}

	var qualityWarning string
	strict := false
	guidance := ""

	for round := 1; round <= maxInstallRounds; round++ {
		state = StateInstalling
		log.Printf("📺 [Pipeline] %s: installing screen (round %d/%d)", req.RequestID, round, maxInstallRounds)

		outcome, installed := o.install(ctx, req, current, currentMime, strict, guidance)
		result.Outcomes = append(result.Outcomes, outcome)
		if installed == nil {
			return o.fail(result, outcome.Error, "install stage failed")
		}

		installPct := progressInstalled
		if round > 1 {
			installPct = progressReinstall
		}
		progress.report(string(state), "Screen installed", installPct)

		if reason, cancelled := o.cancelled(ctx, req); cancelled {
			return o.fail(result, reason, "cancelled after install")
		}

		// Quality gate on the install output
		state = StateQualityChecking
		verdict, qcOutcome := o.qualityCheck(ctx, installed, checkOpts)
		result.Outcomes = append(result.Outcomes, qcOutcome)

		if verdict.Pass {
			progress.report(string(state), "Quality check passed", progressQualityOK)
			result.FinalImage = installed.Image
			result.FinalMimeType = installed.MimeType
			qualityWarning = ""
			break
		}

		if round == maxInstallRounds {
			// Out of retries: ship the last install output, flagged
			log.Printf("⚠️  [Pipeline] %s: quality gate still failing after retry, completing with warning", req.RequestID)
			result.FinalImage = installed.Image
			result.FinalMimeType = installed.MimeType
			qualityWarning = "quality check did not pass after retry"
			if verdict.Guidance != "" {
				qualityWarning += ": " + verdict.Guidance
			}
			break
		}

		log.Printf("🔁 [Pipeline] %s: quality gate failed, retrying install with guidance %q", req.RequestID, verdict.Guidance)
		strict = true
		guidance = verdict.Guidance

		if reason, cancelled := o.cancelled(ctx, req); cancelled {
			return o.fail(result, reason, "cancelled after quality check")
		}
	}

	// ---- Finalize ----
	state = StateDone
	result.Status = StatusCompleted
	result.Warning = qualityWarning
	if qualityWarning != "" {
		result.Status = StatusQualityWarning
	}

	// A result indistinguishable from the input means the edit silently
	// did nothing. Still a success, but the caller should know.
	if utils.NearIdentical(req.Image, result.FinalImage) {
		log.Printf("⚠️  [Pipeline] %s: final image is nearly identical to input", req.RequestID)
		result.Status = StatusQualityWarning
		if result.Warning == "" {
			result.Warning = "final image is nearly identical to the input photo"
		}
	}

	progress.report(string(state), "Visualization complete", progressDone)
	log.Printf("🎉 [Pipeline] %s: done (status=%s, stages=%d)", req.RequestID, result.Status, len(result.Outcomes))
	return result
}

// qualityCheck - run the quality gate and record it in the audit trail.
// An evaluation error is not a verdict: the gate passes and the error
// is recorded on the outcome.
func (o *Orchestrator) qualityCheck(ctx context.Context, installed *gemini.TransformResult, opts CheckOptions) (Verdict, StageOutcome) {
	start := time.Now()
	outcome := StageOutcome{
		Stage:    StageQuality,
		Attempts: 1,
	}

	if o.checker == nil {
		outcome.Status = StageSuccess
		outcome.Elapsed = time.Since(start)
		return Verdict{Pass: true}, outcome
	}

	verdict, err := o.checker.Check(ctx, installed.Image, installed.MimeType, opts)
	outcome.Elapsed = time.Since(start)

	if err != nil {
		log.Printf("⚠️  [QC] Evaluation failed, treating as pass: %v", err)
		outcome.Status = StageSuccess
		outcome.Error = err.Error()
		return Verdict{Pass: true}, outcome
	}

	if verdict.Pass {
		outcome.Status = StageSuccess
	} else {
		outcome.Status = StageFailed
		outcome.Error = "quality gate rejected the install output"
		if verdict.Guidance != "" {
			outcome.Error += ": " + verdict.Guidance
		}
	}
	return verdict, outcome
}

// cancelled - poll the cooperative cancellation points between stages
func (o *Orchestrator) cancelled(ctx context.Context, req *PipelineRequest) (string, bool) {
	if ctx.Err() != nil {
		return FailureReasonCancelled, true
	}
	if req.CancelCheck != nil && req.CancelCheck() {
		return FailureReasonCancelled, true
	}
	return "", false
}

// fail - finalize a failed run. A failed result never carries an image.
func (o *Orchestrator) fail(result *PipelineResult, reason, detail string) *PipelineResult {
	if reason == "" {
		reason = detail
	}
	log.Printf("❌ [Pipeline] Run failed: %s (%s)", reason, detail)
	result.Status = StatusPipelineFailed
	result.FailureReason = reason
	result.FinalImage = nil
	result.FinalMimeType = ""
	return result
}
