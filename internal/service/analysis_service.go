package service

import (
	"alcyxob/motion-coach/internal/aiclient"
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/repository"
	"alcyxob/motion-coach/internal/validation"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrVideoNotFound           = errors.New("video not found")
	ErrReferenceNotFound       = errors.New("reference not found")
	ErrAnalysisNotFound        = errors.New("analysis not found")
	ErrAnalysisInProgress      = errors.New("an analysis is already in progress for this video")
	ErrInvalidAnalysisResponse = invalidInput("invalid response")
	ErrNotAVideo               = invalidInput("video_id must reference a video")
)

// Analyzer is the AI service endpoint that compares a video against a reference.
type Analyzer interface {
	Analyze(ctx context.Context, req aiclient.AnalyzeRequest) (*aiclient.AnalyzeResponse, error)
}

// AnalyzeResult is the answer of a successful analysis request.
type AnalyzeResult struct {
	AnalysisID string                 `json:"analysis_id"`
	Data       *ProcessedDataView     `json:"data"`
	AI         map[string]interface{} `json:"ai,omitempty"`
}

type AnalysisService interface {
	RequestAnalysis(ctx context.Context, subject policy.Subject, in validation.AnalyzeInput) (*AnalyzeResult, error)
	GetAnalysis(ctx context.Context, subject policy.Subject, videoID string) (*domain.AnalysisResult, error)
}

type analysisService struct {
	mediaRepo    repository.MediaRepository
	exerciseRepo repository.ExerciseRepository
	analysisRepo repository.AnalysisRepository
	userRepo     repository.UserRepository
	ai           Analyzer
	staleAfter   time.Duration
	recorder     Recorder
	log          *logger.Logger
	now          func() time.Time
}

func NewAnalysisService(
	mediaRepo repository.MediaRepository,
	exerciseRepo repository.ExerciseRepository,
	analysisRepo repository.AnalysisRepository,
	userRepo repository.UserRepository,
	ai Analyzer,
	staleAfter time.Duration,
	recorder Recorder,
	log *logger.Logger,
) AnalysisService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &analysisService{
		mediaRepo:    mediaRepo,
		exerciseRepo: exerciseRepo,
		analysisRepo: analysisRepo,
		userRepo:     userRepo,
		ai:           ai,
		staleAfter:   staleAfter,
		recorder:     recorder,
		log:          log,
		now:          time.Now,
	}
}

// RequestAnalysis moves the video to analysis_requested, calls the AI service and links
// the returned analysis. Any failure after the first transition leaves the video in
// analysis_failed so it can be requested again.
func (s *analysisService) RequestAnalysis(ctx context.Context, subject policy.Subject, in validation.AnalyzeInput) (*AnalyzeResult, error) {
	in, ferr := validation.Analyze(in)
	if ferr != nil {
		return nil, ferr
	}
	videoID, _ := primitive.ObjectIDFromHex(in.VideoID)
	referenceID, _ := primitive.ObjectIDFromHex(in.ReferenceID)

	video, err := s.mediaRepo.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	reference, err := s.mediaRepo.GetByID(ctx, referenceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReferenceNotFound
		}
		return nil, err
	}
	if !policy.Can(subject, policy.MediaAnalyze, policy.Resource{OwnerID: video.UserID}) ||
		!policy.Can(subject, policy.MediaRead, policy.Resource{OwnerID: reference.UserID, Shared: reference.IsReference}) {
		return nil, ErrForbidden
	}
	if video.MediaType != "" && video.MediaType != domain.MediaTypeVideo {
		return nil, ErrNotAVideo
	}

	email, err := s.resolveEmail(ctx, subject, in.Email)
	if err != nil {
		return nil, err
	}

	log := s.log.With("video_id", videoID.Hex(), "reference_id", referenceID.Hex())

	requested := domain.Transition{To: domain.StatusAnalysisRequested, At: s.now().UTC(), ReferenceID: &referenceID}
	if s.staleAfter > 0 {
		requested.StaleBefore = requested.At.Add(-s.staleAfter)
	}
	if _, err := s.mediaRepo.Transition(ctx, videoID, requested); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.recorder.RecordAnalysis("conflict")
			return nil, ErrAnalysisInProgress
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}

	resp, err := s.ai.Analyze(ctx, aiclient.AnalyzeRequest{
		Email:       email,
		VideoID:     videoID.Hex(),
		ReferenceID: referenceID.Hex(),
	})
	if err != nil {
		s.fail(ctx, videoID, err, log)
		if errors.Is(err, aiclient.ErrInvalidResponse) {
			s.recorder.RecordAnalysis("invalid_response")
			return nil, ErrInvalidAnalysisResponse
		}
		s.recorder.RecordAnalysis("ai_error")
		return nil, err
	}

	analysisID := resp.AnalysisID
	linked, err := s.mediaRepo.Transition(ctx, videoID, domain.Transition{
		To:         domain.StatusLinked,
		At:         s.now().UTC(),
		AnalysisID: &analysisID,
	})
	if err != nil {
		// Another request re-entered analysis_requested on a stale record meanwhile.
		log.Error("failed to link analysis", "analysis_id", analysisID, "error", err)
		s.recorder.RecordAnalysis("link_error")
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAnalysisInProgress
		}
		return nil, fmt.Errorf("link analysis: %w", err)
	}

	s.recorder.RecordAnalysis("success")
	log.Info("analysis linked", "analysis_id", analysisID)

	exercises := newExerciseLookup(s.exerciseRepo, s.log)
	return &AnalyzeResult{
		AnalysisID: analysisID,
		Data:       newProcessedDataView(linked, exercises.get(ctx, linked.ExerciseID)),
		AI:         resp.Raw,
	}, nil
}

// resolveEmail falls back to the caller's account email when the body has none.
func (s *analysisService) resolveEmail(ctx context.Context, subject policy.Subject, email string) (string, error) {
	if email != "" {
		return email, nil
	}
	user, err := s.userRepo.GetByID(ctx, subject.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return user.Email, nil
}

func (s *analysisService) fail(ctx context.Context, videoID primitive.ObjectID, cause error, log *logger.Logger) {
	var upstream *aiclient.UpstreamError
	if errors.As(cause, &upstream) {
		log.Error("AI analyze call rejected", "status", upstream.StatusCode, "body", string(upstream.Body))
	} else {
		log.Error("AI analyze call failed", "error", cause)
	}

	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	_, err := s.mediaRepo.Transition(cctx, videoID, domain.Transition{
		To:    domain.StatusAnalysisFailed,
		At:    s.now().UTC(),
		Error: cause.Error(),
	})
	if err != nil {
		log.Error("failed to mark analysis as failed", "error", err)
	}
}

// GetAnalysis returns the most recent analysis of a video.
func (s *analysisService) GetAnalysis(ctx context.Context, subject policy.Subject, videoID string) (*domain.AnalysisResult, error) {
	oid, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return nil, ErrInvalidID
	}
	video, err := s.mediaRepo.GetByID(ctx, oid)
	switch {
	case err == nil:
		if !policy.Can(subject, policy.MediaRead, policy.Resource{OwnerID: video.UserID, Shared: video.IsReference}) {
			return nil, ErrForbidden
		}
	case errors.Is(err, repository.ErrNotFound):
		// Results without a video record have no owner to check against.
		if !subject.IsAdmin() {
			return nil, ErrAnalysisNotFound
		}
	default:
		return nil, err
	}

	result, err := s.analysisRepo.GetLatestByVideoID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return result, nil
}
