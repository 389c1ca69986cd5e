package visualize

import (
	"time"

	"screenking-server/modules/common/gemini"
)

// PipelineRequest - one visualization run. Immutable once built.
type PipelineRequest struct {
	RequestID  string
	Image      []byte
	MimeType   string
	ScreenType string
	// Style options (opacity, color) passed through to the stage
	// prompts; the orchestrator itself does not interpret them.
	Options map[string]string
	// CancelCheck is polled between stages. Nil means not cancellable.
	CancelCheck func() bool
}

// Option - lookup with empty-string default
func (r *PipelineRequest) Option(key string) string {
	if r.Options == nil {
		return ""
	}
	return r.Options[key]
}

// EditInstruction - the directive and constraints for one stage call.
// Built fresh per invocation, never reused across stages.
type EditInstruction struct {
	Stage       string
	Directive   string
	AspectRatio string
	References  []gemini.Reference
}

// Stage names as they appear in the audit trail
const (
	StageCleanse  = "cleanse"
	StageBuildOut = "build_out"
	StageInstall  = "install"
	StageQuality  = "quality_check"
)

// StageStatus - outcome of one stage
type StageStatus string

const (
	StageSuccess        StageStatus = "success"
	StageRetriedSuccess StageStatus = "retried_success"
	StageFailed         StageStatus = "failed"
)

// StageOutcome - append-only audit record for one stage execution
type StageOutcome struct {
	Stage    string
	Image    []byte
	Status   StageStatus
	Attempts int
	Elapsed  time.Duration
	Error    string
}

// PipelineStatus - overall result of a run
type PipelineStatus string

const (
	StatusCompleted      PipelineStatus = "completed"
	StatusQualityWarning PipelineStatus = "completed_with_quality_warning"
	StatusPipelineFailed PipelineStatus = "failed"
)

// PipelineResult - everything the caller gets back. The orchestrator
// holds no reference to it after Run returns. A failed result carries
// no final image; success and failure are distinguishable without
// inspecting pixels.
type PipelineResult struct {
	Outcomes      []StageOutcome
	FinalImage    []byte
	FinalMimeType string
	Status        PipelineStatus
	FailureReason string
	Warning       string
}

// State - orchestrator state machine value, threaded through Run rather
// than kept as shared mutable state
type State string

const (
	StateInit            State = "init"
	StateCleansing       State = "cleansing"
	StateAnalyzing       State = "analyzing"
	StateBuildingOut     State = "building_out"
	StateInstalling      State = "installing"
	StateQualityChecking State = "quality_checking"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// FailureReasonCancelled - reason string set when a run is cancelled
const FailureReasonCancelled = "cancelled"
