package service

import (
	"alcyxob/motion-coach/internal/aiclient"
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/repository"
	"alcyxob/motion-coach/internal/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrExerciseIDRequired   = invalidInput("exercise_id is required")
	ErrInvalidExerciseID    = invalidInput("invalid exercise_id")
	ErrUnknownExercise      = invalidInput("exercise_id does not match any exercise")
	ErrInvalidMediaRole     = invalidInput("role must be one of: pro, client, ia")
	ErrInvalidDuration      = invalidInput("invalid X-Video-Duration header")
	ErrIdempotencyInFlight  = errors.New("a request with this Idempotency-Key is still in progress")
	ErrIdempotencyKeyTooBig = invalidInput("Idempotency-Key must be at most 255 characters")
)

// Processor is the AI service endpoint that receives uploads.
type Processor interface {
	Process(ctx context.Context, req aiclient.ProcessRequest) (*aiclient.ProcessResponse, error)
}

// IngestInput is a multipart upload tied to an exercise.
type IngestInput struct {
	ExerciseID     string
	Role           string // Defaults to client
	IsReference    bool
	Duration       string // Client declared video duration in seconds, optional
	IdempotencyKey string
	Upload         FileUpload
}

// IngestResult is the answer of a successful upload.
type IngestResult struct {
	ID   string                 `json:"id"`
	Data *ProcessedDataView     `json:"data"`
	AI   map[string]interface{} `json:"ai"`
	// Replayed is set when the result comes from the idempotency cache.
	Replayed bool `json:"-"`
}

type IngestionService interface {
	Ingest(ctx context.Context, subject policy.Subject, in IngestInput) (*IngestResult, error)
}

// IngestionOptions carries the tunables of the ingestion pipeline.
type IngestionOptions struct {
	BaseURL         string
	MaxVideoSeconds float64
	IdempotencyTTL  time.Duration
}

type ingestionService struct {
	exerciseRepo repository.ExerciseRepository
	mediaRepo    repository.MediaRepository
	storage      storage.FileStorage
	ai           Processor
	opts         IngestionOptions
	idempotency  *cache.Cache
	recorder     Recorder
	log          *logger.Logger
}

func NewIngestionService(
	exerciseRepo repository.ExerciseRepository,
	mediaRepo repository.MediaRepository,
	fileStorage storage.FileStorage,
	ai Processor,
	opts IngestionOptions,
	recorder Recorder,
	log *logger.Logger,
) IngestionService {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ingestionService{
		exerciseRepo: exerciseRepo,
		mediaRepo:    mediaRepo,
		storage:      fileStorage,
		ai:           ai,
		opts:         opts,
		idempotency:  cache.New(opts.IdempotencyTTL, opts.IdempotencyTTL/2),
		recorder:     recorder,
		log:          log,
	}
}

// pendingIngest marks an Idempotency-Key whose first request has not finished.
type pendingIngest struct{}

// Ingest validates and stores an upload, forwards it to the AI service and records the
// resulting ProcessedData. The stored file is removed again when the AI call fails.
func (s *ingestionService) Ingest(ctx context.Context, subject policy.Subject, in IngestInput) (*IngestResult, error) {
	if !policy.Can(subject, policy.MediaWrite, policy.Resource{}) {
		return nil, ErrForbidden
	}

	exercise, err := s.resolveExercise(ctx, in.ExerciseID)
	if err != nil {
		return nil, err
	}

	role := domain.MediaRole(strings.ToLower(strings.TrimSpace(in.Role)))
	if role == "" {
		role = domain.MediaRoleClient
	}
	if !role.Valid() {
		return nil, ErrInvalidMediaRole
	}

	media, err := sniffUpload(in.Upload)
	if err != nil {
		s.recorder.RecordIngestion("unknown", "rejected")
		return nil, err
	}
	if media.Type == domain.MediaTypeVideo {
		if err := s.checkDuration(in.Duration); err != nil {
			s.recorder.RecordIngestion(string(media.Type), "rejected")
			return nil, err
		}
	}

	release, replay, err := s.reserve(subject, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	result, err := s.ingest(ctx, subject, in, exercise, role, media)
	release(result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ingestionService) resolveExercise(ctx context.Context, raw string) (*domain.Exercise, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrExerciseIDRequired
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, ErrInvalidExerciseID
	}
	exercise, err := s.exerciseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownExercise
		}
		return nil, err
	}
	return exercise, nil
}

// checkDuration enforces the declared duration cap. The header is trusted as is.
func (s *ingestionService) checkDuration(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || s.opts.MaxVideoSeconds <= 0 {
		return nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return ErrInvalidDuration
	}
	if secs > s.opts.MaxVideoSeconds {
		return invalidInput(fmt.Sprintf("video exceeds the %s second limit", strconv.FormatFloat(s.opts.MaxVideoSeconds, 'f', -1, 64)))
	}
	return nil
}

// reserve claims an Idempotency-Key for this user. It returns the cached result of a
// finished request, or a release func that must be called with the outcome.
func (s *ingestionService) reserve(subject policy.Subject, key string) (func(*IngestResult), *IngestResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(*IngestResult) {}, nil, nil
	}
	if len(key) > 255 {
		return nil, nil, ErrIdempotencyKeyTooBig
	}

	cacheKey := subject.UserID.Hex() + ":" + key
	if err := s.idempotency.Add(cacheKey, pendingIngest{}, cache.DefaultExpiration); err != nil {
		cached, found := s.idempotency.Get(cacheKey)
		if found {
			if res, ok := cached.(*IngestResult); ok {
				replay := *res
				replay.Replayed = true
				return nil, &replay, nil
			}
		}
		return nil, nil, ErrIdempotencyInFlight
	}

	release := func(res *IngestResult) {
		if res == nil {
			// Failed requests may be retried with the same key.
			s.idempotency.Delete(cacheKey)
			return
		}
		s.idempotency.Set(cacheKey, res, cache.DefaultExpiration)
	}
	return release, nil, nil
}

func (s *ingestionService) ingest(ctx context.Context, subject policy.Subject, in IngestInput, exercise *domain.Exercise, role domain.MediaRole, media sniffedMedia) (*IngestResult, error) {
	now := time.Now().UTC()
	key := newStorageKey(now, media.Extension)
	url := publicURL(s.opts.BaseURL, key)
	log := s.log.With("user_id", subject.UserID.Hex(), "storage_key", key, "media_type", media.Type)

	size, err := s.storage.Save(ctx, key, media.MIME, in.Upload.File)
	if err != nil {
		s.recorder.RecordIngestion(string(media.Type), "storage_error")
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if _, err := in.Upload.File.Seek(0, io.SeekStart); err != nil {
		s.discard(ctx, key, log)
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	resp, err := s.ai.Process(ctx, aiclient.ProcessRequest{
		UserID:       subject.UserID.Hex(),
		ExerciseID:   exercise.ID.Hex(),
		OriginalPath: key,
		URL:          url,
		FileType:     string(media.Type),
		FileName:     in.Upload.FileName,
		ContentType:  media.MIME,
		File:         in.Upload.File,
	})
	if err != nil {
		var upstream *aiclient.UpstreamError
		if errors.As(err, &upstream) {
			log.Error("AI process call rejected", "status", upstream.StatusCode, "body", string(upstream.Body))
		} else {
			log.Error("AI process call failed", "error", err)
		}
		s.recorder.RecordIngestion(string(media.Type), "ai_error")
		s.discard(ctx, key, log)
		return nil, err
	}

	record := &domain.ProcessedData{
		URL:             url,
		ExerciseID:      exercise.ID,
		UserID:          subject.UserID,
		Role:            role,
		MediaType:       media.Type,
		IsReference:     in.IsReference,
		StorageKey:      key,
		OriginalName:    in.Upload.FileName,
		ContentType:     media.MIME,
		Size:            size,
		Status:          domain.StatusUploaded,
		StatusUpdatedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if id, err := primitive.ObjectIDFromHex(resp.ID); err == nil {
		record.ID = id
	} else {
		record.ID = primitive.NewObjectID()
		record.AIRecordID = resp.ID
	}

	if err := s.mediaRepo.Upsert(ctx, record); err != nil {
		// The AI service already references the file, so it stays.
		log.Error("failed to persist processed data", "ai_id", resp.ID, "error", err)
		s.recorder.RecordIngestion(string(media.Type), "persist_error")
		return nil, fmt.Errorf("persist processed data: %w", err)
	}

	s.recorder.RecordIngestion(string(media.Type), "success")
	log.Info("media ingested", "processed_data_id", record.ID.Hex(), "size", size)
	return &IngestResult{
		ID:   record.ID.Hex(),
		Data: newProcessedDataView(record, exercise),
		AI:   resp.Raw,
	}, nil
}

func (s *ingestionService) discard(ctx context.Context, key string, log *logger.Logger) {
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.storage.Delete(cctx, key); err != nil {
		log.Error("failed to delete stored upload", "error", err)
		return
	}
	log.Debug("stored upload deleted after failure")
}
