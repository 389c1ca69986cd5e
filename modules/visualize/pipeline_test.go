package visualize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"screenking-server/modules/common/gemini"
)

// testPolicy - retries without the production backoff
var testPolicy = gemini.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

// transformStep - scripted response for one Transform call
type transformStep struct {
	result *gemini.TransformResult
	err    error
}

// scriptedTransformer - plays back a script; once the script runs out
// every call succeeds with a stage-tagged image
type scriptedTransformer struct {
	mu    sync.Mutex
	steps []transformStep
	calls []*gemini.TransformRequest
}

func (s *scriptedTransformer) Transform(ctx context.Context, req *gemini.TransformRequest) (*gemini.TransformResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if len(s.steps) == 0 {
		return &gemini.TransformResult{Image: []byte("edited-" + req.Stage), MimeType: "image/png"}, nil
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.result, step.err
}

func (s *scriptedTransformer) stagesCalled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	stages := make([]string, len(s.calls))
	for i, c := range s.calls {
		stages[i] = c.Stage
	}
	return stages
}

type analyzerFunc func(ctx context.Context, image []byte, mimeType string) (bool, error)

func (f analyzerFunc) NeedsBuildOut(ctx context.Context, image []byte, mimeType string) (bool, error) {
	return f(ctx, image, mimeType)
}

// scriptedChecker - plays back quality verdicts; once the script runs
// out every check passes
type scriptedChecker struct {
	verdicts []Verdict
	errs     []error
	calls    int
}

func (c *scriptedChecker) Check(ctx context.Context, image []byte, mimeType string, opts CheckOptions) (Verdict, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return Verdict{}, c.errs[i]
	}
	if i < len(c.verdicts) {
		return c.verdicts[i], nil
	}
	return Verdict{Pass: true}, nil
}

// recordingReporter - captures progress events for assertions
type recordingReporter struct {
	mu       sync.Mutex
	percents []int
}

func (r *recordingReporter) Report(stage, message string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percents = append(r.percents, percent)
}

func noBuildOut() analyzerFunc {
	return func(context.Context, []byte, string) (bool, error) { return false, nil }
}

func newTestOrchestrator(tf Transformer, analyzer StructureAnalyzer, checker QualityChecker, reporter Reporter) *Orchestrator {
	return NewOrchestrator(tf, analyzer, checker, nil, OrchestratorOptions{
		Policy:   testPolicy,
		Reporter: reporter,
	})
}

func baseRequest() *PipelineRequest {
	return &PipelineRequest{
		RequestID:  "req-1",
		Image:      []byte("input-photo"),
		MimeType:   "image/jpeg",
		ScreenType: "motorized",
		Options:    map[string]string{"opacity": "95", "color": "black"},
	}
}

func outcomeStages(result *PipelineResult) []string {
	stages := make([]string, len(result.Outcomes))
	for i, o := range result.Outcomes {
		stages[i] = o.Stage
	}
	return stages
}

func TestOrchestratorRun_HappyPathWithoutBuildOut(t *testing.T) {
	tf := &scriptedTransformer{}
	orch := newTestOrchestrator(tf, noBuildOut(), &scriptedChecker{}, nil)

	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, []string{StageCleanse, StageInstall, StageQuality}, outcomeStages(result))
	for _, o := range result.Outcomes {
		require.Equal(t, StageSuccess, o.Status)
		require.Equal(t, 1, o.Attempts)
	}

	require.Equal(t, []byte("edited-install"), result.FinalImage)
	require.Equal(t, "image/png", result.FinalMimeType)
	require.Empty(t, result.FailureReason)
	require.Empty(t, result.Warning)

	// each stage edits the previous stage's output, not the original
	require.Equal(t, []string{StageCleanse, StageInstall}, tf.stagesCalled())
	require.Equal(t, []byte("input-photo"), tf.calls[0].Image)
	require.Equal(t, []byte("edited-cleanse"), tf.calls[1].Image)
	require.Contains(t, tf.calls[1].Directive, "Opacity: 95%")
}

func TestOrchestratorRun_BuildOutWhenAnalysisRequestsIt(t *testing.T) {
	tf := &scriptedTransformer{}
	analyzer := analyzerFunc(func(ctx context.Context, img []byte, mime string) (bool, error) {
		require.Equal(t, []byte("edited-cleanse"), img)
		return true, nil
	})
	orch := newTestOrchestrator(tf, analyzer, &scriptedChecker{}, nil)

	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, []string{StageCleanse, StageBuildOut, StageInstall, StageQuality}, outcomeStages(result))
	require.Equal(t, []byte("edited-build_out"), tf.calls[2].Image)
}

func TestOrchestratorRun_AnalysisErrorSkipsBuildOut(t *testing.T) {
	tf := &scriptedTransformer{}
	analyzer := analyzerFunc(func(context.Context, []byte, string) (bool, error) {
		return false, errors.New("analysis backend unavailable")
	})
	orch := newTestOrchestrator(tf, analyzer, &scriptedChecker{}, nil)

	result := orch.Run(context.Background(), baseRequest())

	// the analysis is advisory: its failure never fails the run and it
	// never appears in the audit trail
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, []string{StageCleanse, StageInstall, StageQuality}, outcomeStages(result))
}

func TestOrchestratorRun_InstallRecoversAfterRateLimits(t *testing.T) {
	tf := &scriptedTransformer{steps: []transformStep{
		{result: &gemini.TransformResult{Image: []byte("edited-cleanse"), MimeType: "image/png"}},
		{err: &gemini.ServiceError{Kind: gemini.KindRateLimited, Msg: "quota"}},
		{err: &gemini.ServiceError{Kind: gemini.KindRateLimited, Msg: "quota"}},
		{result: &gemini.TransformResult{Image: []byte("edited-install"), MimeType: "image/png"}},
	}}
	orch := newTestOrchestrator(tf, noBuildOut(), &scriptedChecker{}, nil)

	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusCompleted, result.Status)
	install := result.Outcomes[1]
	require.Equal(t, StageInstall, install.Stage)
	require.Equal(t, StageRetriedSuccess, install.Status)
	require.Equal(t, 3, install.Attempts)
	require.Equal(t, []byte("edited-install"), result.FinalImage)
}

func TestOrchestratorRun_FatalCleanseFailsTheRun(t *testing.T) {
	tf := &scriptedTransformer{steps: []transformStep{
		{err: &gemini.ServiceError{Kind: gemini.KindContentPolicy, Msg: "blocked"}},
	}}
	checker := &scriptedChecker{}
	orch := newTestOrchestrator(tf, noBuildOut(), checker, nil)

	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusPipelineFailed, result.Status)
	require.Nil(t, result.FinalImage)
	require.Contains(t, result.FailureReason, "content_policy_violation")

	// nothing after the failed stage runs
	require.Equal(t, []string{StageCleanse}, outcomeStages(result))
	require.Equal(t, StageFailed, result.Outcomes[0].Status)
	require.Len(t, tf.calls, 1)
	require.Zero(t, checker.calls)
}

func TestOrchestratorRun_ExhaustedInstallFailsTheRun(t *testing.T) {
	tf := &scriptedTransformer{steps: []transformStep{
		{result: &gemini.TransformResult{Image: []byte("edited-cleanse"), MimeType: "image/png"}},
		{err: &gemini.ServiceError{Kind: gemini.KindTransient, Msg: "flaky"}},
		{err: &gemini.ServiceError{Kind: gemini.KindTransient, Msg: "flaky"}},
		{err: &gemini.ServiceError{Kind: gemini.KindTransient, Msg: "flaky"}},
	}}
	orch := newTestOrchestrator(tf, noBuildOut(), &scriptedChecker{}, nil)

	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusPipelineFailed, result.Status)
	require.Nil(t, result.FinalImage)
	require.Contains(t, result.FailureReason, "retries_exhausted")

	install := result.Outcomes[1]
	require.Equal(t, StageFailed, install.Status)
	require.Equal(t, 3, install.Attempts)
}

func TestOrchestratorRun_QualityRetryCarriesGuidance(t *testing.T) {
	tf := &scriptedTransformer{}
	checker := &scriptedChecker{verdicts: []Verdict{
		{Pass: false, Guidance: "left opening is not screened"},
		{Pass: true},
	}}
	orch := newTestOrchestrator(tf, noBuildOut(), checker, nil)

	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusCompleted, result.Status)
	require.Empty(t, result.Warning)
	require.Equal(t,
		[]string{StageCleanse, StageInstall, StageQuality, StageInstall, StageQuality},
		outcomeStages(result))

	require.Equal(t, StageFailed, result.Outcomes[2].Status)
	require.Contains(t, result.Outcomes[2].Error, "left opening is not screened")
	require.Equal(t, StageSuccess, result.Outcomes[4].Status)

	// the retry install runs in strict mode with the guidance appended
	retryDirective := tf.calls[2].Directive
	require.Contains(t, retryDirective, "STRICT MODE")
	require.Contains(t, retryDirective, "left opening is not screened")
	require.Equal(t, 2, checker.calls)
}

func TestOrchestratorRun_SecondQualityFailureCompletesWithWarning(t *testing.T) {
	tf := &scriptedTransformer{}
	checker := &scriptedChecker{verdicts: []Verdict{
		{Pass: false, Guidance: "opacity looks wrong"},
		{Pass: false, Guidance: "still wrong"},
	}}
	orch := newTestOrchestrator(tf, noBuildOut(), checker, nil)

	result := orch.Run(context.Background(), baseRequest())

	// out of retries: the last install output ships, flagged
	require.Equal(t, StatusQualityWarning, result.Status)
	require.Equal(t, []byte("edited-install"), result.FinalImage)
	require.Contains(t, result.Warning, "still wrong")
	require.Len(t, result.Outcomes, 5)
	require.Equal(t, 2, checker.calls)
}

func TestOrchestratorRun_QualityEvaluationErrorCountsAsPass(t *testing.T) {
	tf := &scriptedTransformer{}
	checker := &scriptedChecker{errs: []error{errors.New("vision backend down")}}
	orch := newTestOrchestrator(tf, noBuildOut(), checker, nil)

	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusCompleted, result.Status)
	require.NotNil(t, result.FinalImage)

	qc := result.Outcomes[2]
	require.Equal(t, StageQuality, qc.Stage)
	require.Equal(t, StageSuccess, qc.Status)
	require.Contains(t, qc.Error, "vision backend down")
	require.Equal(t, 1, checker.calls)
}

func TestOrchestratorRun_CancelledBetweenStages(t *testing.T) {
	tf := &scriptedTransformer{}
	req := baseRequest()
	req.CancelCheck = func() bool { return true }

	orch := newTestOrchestrator(tf, noBuildOut(), &scriptedChecker{}, nil)
	result := orch.Run(context.Background(), req)

	require.Equal(t, StatusPipelineFailed, result.Status)
	require.Equal(t, FailureReasonCancelled, result.FailureReason)
	require.Nil(t, result.FinalImage)

	// the cleanse in flight finishes, nothing after it starts
	require.Equal(t, []string{StageCleanse}, outcomeStages(result))
	require.Len(t, tf.calls, 1)
}

func TestOrchestratorRun_ContextCancellationStopsTheRun(t *testing.T) {
	tf := &scriptedTransformer{}
	ctx, cancel := context.WithCancel(context.Background())

	analyzer := analyzerFunc(func(context.Context, []byte, string) (bool, error) {
		cancel()
		return false, nil
	})

	orch := newTestOrchestrator(tf, analyzer, &scriptedChecker{}, nil)
	result := orch.Run(ctx, baseRequest())

	require.Equal(t, StatusPipelineFailed, result.Status)
	require.Equal(t, FailureReasonCancelled, result.FailureReason)
	require.Equal(t, []string{StageCleanse}, outcomeStages(result))
}

func TestOrchestratorRun_EmptyInputFailsFast(t *testing.T) {
	tf := &scriptedTransformer{}
	orch := newTestOrchestrator(tf, noBuildOut(), &scriptedChecker{}, nil)

	result := orch.Run(context.Background(), &PipelineRequest{RequestID: "req-1"})

	require.Equal(t, StatusPipelineFailed, result.Status)
	require.Contains(t, result.FailureReason, "invalid_input")
	require.Empty(t, result.Outcomes)
	require.Empty(t, tf.calls)
}

func TestOrchestratorRun_ProgressNeverDecreases(t *testing.T) {
	tf := &scriptedTransformer{}
	checker := &scriptedChecker{verdicts: []Verdict{
		{Pass: false, Guidance: "redo"},
		{Pass: true},
	}}
	reporter := &recordingReporter{}

	orch := newTestOrchestrator(tf, noBuildOut(), checker, reporter)
	result := orch.Run(context.Background(), baseRequest())

	require.Equal(t, StatusCompleted, result.Status)
	require.NotEmpty(t, reporter.percents)
	for i := 1; i < len(reporter.percents); i++ {
		require.GreaterOrEqual(t, reporter.percents[i], reporter.percents[i-1])
	}
	require.Equal(t, 100, reporter.percents[len(reporter.percents)-1])
}

// solidPNG - encode a uniform test image
func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestOrchestratorRun_UnchangedOutputDowngradesToWarning(t *testing.T) {
	input := solidPNG(t, color.RGBA{R: 120, G: 90, B: 60, A: 255})

	// every stage returns the input pixels untouched
	tf := &scriptedTransformer{steps: []transformStep{
		{result: &gemini.TransformResult{Image: input, MimeType: "image/png"}},
		{result: &gemini.TransformResult{Image: input, MimeType: "image/png"}},
	}}
	orch := newTestOrchestrator(tf, noBuildOut(), &scriptedChecker{}, nil)

	req := baseRequest()
	req.Image = input
	req.MimeType = "image/png"

	result := orch.Run(context.Background(), req)

	require.Equal(t, StatusQualityWarning, result.Status)
	require.NotNil(t, result.FinalImage)
	require.Contains(t, result.Warning, "nearly identical")
}
