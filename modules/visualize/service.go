package visualize

import (
	"context"
	"fmt"
	"log"

	goredis "github.com/redis/go-redis/v9"

	"screenking-server/modules/common/cancel"
	"screenking-server/modules/common/config"
	"screenking-server/modules/common/database"
	"screenking-server/modules/common/gemini"
	"screenking-server/modules/common/model"
	redisutil "screenking-server/modules/common/redis"
	"screenking-server/modules/common/storage"
	"screenking-server/modules/common/utils"
	"screenking-server/modules/common/vertexai"
)

// Service - job-level processing around the pipeline orchestrator:
// loads the request row, downloads the input, runs the pipeline and
// persists the outcome.
type Service struct {
	cfg      *config.Config
	db       *database.Client
	storage  *storage.Client
	rdb      *goredis.Client
	client   Transformer
	analyzer StructureAnalyzer
	checker  QualityChecker
	refs     ReferenceProvider
	policy   gemini.RetryPolicy
}

// NewService - wire up the full processing stack from config
func NewService(ctx context.Context, cfg *config.Config, rdb *goredis.Client) (*Service, error) {
	db := database.NewClient(cfg)
	if db == nil {
		return nil, fmt.Errorf("failed to create database client")
	}

	limiter := gemini.NewLimiter(cfg.GeminiMaxConcurrent, cfg.GeminiMinInterval)

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Structural analysis runs on Vertex AI when a GCP project is
	// configured, otherwise on the same Gemini client as the edits
	var analyzer StructureAnalyzer = NewGeminiAnalyzer(geminiClient)
	if cfg.VertexAIProject != "" {
		vertexClient, err := vertexai.NewClient(ctx, cfg.VertexAIProject, cfg.VertexAILocation, cfg.VertexAIModel,
			cfg.VertexAICredentialsJSON, cfg.VertexAICredentialsPath)
		if err != nil {
			log.Printf("⚠️  Vertex AI client unavailable, falling back to Gemini for analysis: %v", err)
		} else {
			analyzer = NewVertexAnalyzer(vertexClient)
		}
	}

	return &Service{
		cfg:      cfg,
		db:       db,
		storage:  storage.NewClient(cfg, db),
		rdb:      rdb,
		client:   geminiClient,
		analyzer: analyzer,
		checker:  NewGeminiChecker(geminiClient),
		refs:     LoadAssetLibrary(cfg.ReferenceAssetsDir),
		policy: gemini.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
		},
	}, nil
}

// redisCancelChecker - adapts the Redis cancel flag to cancel.Checker
type redisCancelChecker struct {
	rdb *goredis.Client
}

func (c redisCancelChecker) IsJobCancelled(requestID string) bool {
	if c.rdb == nil {
		return false
	}
	return redisutil.IsJobCancelled(c.rdb, requestID)
}

// ProcessVisualizeJob - run one queued visualization request end to end
func (s *Service) ProcessVisualizeJob(ctx context.Context, requestID string) {
	log.Printf("🚀 Processing visualization request: %s", requestID)

	request, err := s.db.FetchRequest(requestID)
	if err != nil {
		log.Printf("❌ Failed to fetch request %s: %v", requestID, err)
		return
	}

	if model.IsTerminal(request.Status) {
		log.Printf("⏭️  Request %s already %s, skipping", requestID, request.Status)
		return
	}

	if err := s.db.UpdateRequestStatus(ctx, requestID, model.StatusProcessing); err != nil {
		log.Printf("❌ Failed to mark request %s as processing: %v", requestID, err)
		return
	}

	imageData, mimeType, err := s.storage.DownloadImage(request.OriginalAttachID)
	if err != nil {
		s.failJob(ctx, requestID, fmt.Sprintf("failed to download input image: %v", err))
		return
	}

	options := map[string]string{}
	if request.Opacity != nil {
		options["opacity"] = *request.Opacity
	}
	if request.Color != nil {
		options["color"] = *request.Color
	}

	pipelineReq := &PipelineRequest{
		RequestID:   requestID,
		Image:       imageData,
		MimeType:    mimeType,
		ScreenType:  request.ScreenType,
		Options:     options,
		CancelCheck: cancel.Probe(ctx, redisCancelChecker{rdb: s.rdb}, requestID),
	}

	orchestrator := NewOrchestrator(s.client, s.analyzer, s.checker, s.refs, OrchestratorOptions{
		Policy:   s.policy,
		Reporter: NewJobReporter(s.db, s.rdb, requestID),
		DebugDir: s.cfg.DebugStageDir,
	})

	result := orchestrator.Run(ctx, pipelineReq)

	if result.Status == StatusPipelineFailed {
		if result.FailureReason == FailureReasonCancelled {
			if err := s.db.UpdateRequestStatus(ctx, requestID, model.StatusUserCancelled); err != nil {
				log.Printf("❌ Failed to mark request %s as cancelled: %v", requestID, err)
			}
			return
		}
		s.failJob(ctx, requestID, result.FailureReason)
		return
	}

	s.completeJob(ctx, requestID, request, result)
}

// completeJob - upload the final image and close out the request row
func (s *Service) completeJob(ctx context.Context, requestID string, request *model.VisualizationRequest, result *PipelineResult) {
	userID := "anonymous"
	if request.UserID != nil {
		userID = *request.UserID
	}

	filePath, fileSize, err := s.storage.UploadImage(ctx, result.FinalImage, userID, utils.ConvertToWebP)
	if err != nil {
		s.failJob(ctx, requestID, fmt.Sprintf("failed to upload generated image: %v", err))
		return
	}

	attachID, err := s.db.CreateAttachRecord(ctx, filePath, fileSize, "image/webp")
	if err != nil {
		s.failJob(ctx, requestID, fmt.Sprintf("failed to record generated image: %v", err))
		return
	}

	if err := s.db.CreateGeneratedImage(ctx, requestID, attachID); err != nil {
		log.Printf("⚠️  Failed to link generated image for %s: %v", requestID, err)
	}

	status := model.StatusCompleted
	if result.Status == StatusQualityWarning {
		status = model.StatusCompletedWithWarning
		if result.Warning != "" {
			if err := s.db.SetRequestError(ctx, requestID, result.Warning); err != nil {
				log.Printf("⚠️  Failed to record warning for %s: %v", requestID, err)
			}
		}
	}

	if err := s.db.UpdateRequestStatus(ctx, requestID, status); err != nil {
		log.Printf("❌ Failed to mark request %s as %s: %v", requestID, status, err)
		return
	}

	log.Printf("🎉 Request %s completed (%s, %d stages)", requestID, status, len(result.Outcomes))
}

// failJob - record the failure reason and move the row to failed
func (s *Service) failJob(ctx context.Context, requestID, reason string) {
	log.Printf("❌ Request %s failed: %s", requestID, reason)

	if err := s.db.SetRequestError(ctx, requestID, reason); err != nil {
		log.Printf("⚠️  Failed to record error for %s: %v", requestID, err)
	}
	if err := s.db.UpdateRequestStatus(ctx, requestID, model.StatusFailed); err != nil {
		log.Printf("❌ Failed to mark request %s as failed: %v", requestID, err)
	}
}
