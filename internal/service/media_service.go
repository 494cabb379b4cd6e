package service

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/repository"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrProcessedDataNotFound = errors.New("processed data not found")
	ErrInvalidRange          = invalidInput("range must be one of: all, 3months, 1month, 1week, YYYY-MM-DD")
	ErrInvalidLimit          = invalidInput("limit must be a positive integer")
)

const (
	defaultMediaLimit = 50
	maxMediaLimit     = 200
)

// ExerciseSummary is the exercise embedded in ProcessedData responses.
type ExerciseSummary struct {
	ID         primitive.ObjectID `json:"id"`
	Name       string             `json:"name"`
	Category   string             `json:"category"`
	Difficulty domain.Difficulty  `json:"difficulty"`
}

// ProcessedDataView is a ProcessedData with exercise_id expanded. Exercise is nil when
// the exercise no longer exists.
type ProcessedDataView struct {
	domain.ProcessedData
	Exercise *ExerciseSummary `json:"exercise_id"`
}

func newProcessedDataView(p *domain.ProcessedData, e *domain.Exercise) *ProcessedDataView {
	view := &ProcessedDataView{ProcessedData: *p}
	view.Status = p.EffectiveStatus()
	if e != nil {
		view.Exercise = &ExerciseSummary{ID: e.ID, Name: e.Name, Category: e.Category, Difficulty: e.Difficulty}
	}
	return view
}

// MediaQuery holds the raw listing query parameters.
type MediaQuery struct {
	Limit         string
	Range         string
	WithReference bool
}

// FramesView lists the canonical frames of a record.
type FramesView struct {
	ProcessedDataID string             `json:"processed_data_id"`
	Source          domain.FrameSource `json:"source,omitempty"`
	Frames          []domain.Frame     `json:"frames"`
}

type MediaService interface {
	GetProcessedData(ctx context.Context, subject policy.Subject, id string) (*ProcessedDataView, error)
	ListProcessedData(ctx context.Context, subject policy.Subject, q MediaQuery) ([]ProcessedDataView, error)
	GetFrames(ctx context.Context, subject policy.Subject, id string) (*FramesView, error)
}

type mediaService struct {
	mediaRepo    repository.MediaRepository
	exerciseRepo repository.ExerciseRepository
	analysisRepo repository.AnalysisRepository
	log          *logger.Logger
	now          func() time.Time
}

func NewMediaService(
	mediaRepo repository.MediaRepository,
	exerciseRepo repository.ExerciseRepository,
	analysisRepo repository.AnalysisRepository,
	log *logger.Logger,
) MediaService {
	return &mediaService{
		mediaRepo:    mediaRepo,
		exerciseRepo: exerciseRepo,
		analysisRepo: analysisRepo,
		log:          log,
		now:          time.Now,
	}
}

func (s *mediaService) GetProcessedData(ctx context.Context, subject policy.Subject, id string) (*ProcessedDataView, error) {
	record, err := s.load(ctx, subject, id)
	if err != nil {
		return nil, err
	}
	exercises := newExerciseLookup(s.exerciseRepo, s.log)
	return newProcessedDataView(record, exercises.get(ctx, record.ExerciseID)), nil
}

func (s *mediaService) ListProcessedData(ctx context.Context, subject policy.Subject, q MediaQuery) ([]ProcessedDataView, error) {
	if !policy.Can(subject, policy.MediaRead, policy.Resource{OwnerID: subject.UserID}) {
		return nil, ErrForbidden
	}

	filter := repository.MediaFilter{IncludeReference: q.WithReference, Limit: defaultMediaLimit}
	if raw := strings.TrimSpace(q.Limit); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 {
			return nil, ErrInvalidLimit
		}
		if limit > maxMediaLimit {
			limit = maxMediaLimit
		}
		filter.Limit = limit
	}
	since, err := rangeStart(q.Range, s.now().UTC())
	if err != nil {
		return nil, err
	}
	filter.Since = since
	if !subject.IsAdmin() {
		owner := subject.UserID
		filter.UserID = &owner
	}

	records, err := s.mediaRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	exercises := newExerciseLookup(s.exerciseRepo, s.log)
	views := make([]ProcessedDataView, 0, len(records))
	for i := range records {
		views = append(views, *newProcessedDataView(&records[i], exercises.get(ctx, records[i].ExerciseID)))
	}
	return views, nil
}

// GetFrames prefers the frames of the latest analysis and falls back to the frames
// embedded in the record.
func (s *mediaService) GetFrames(ctx context.Context, subject policy.Subject, id string) (*FramesView, error) {
	record, err := s.load(ctx, subject, id)
	if err != nil {
		return nil, err
	}
	view := &FramesView{ProcessedDataID: record.ID.Hex(), Frames: []domain.Frame{}}

	analysis, err := s.analysisRepo.GetLatestByVideoID(ctx, record.ID)
	switch {
	case err == nil && len(analysis.FrameAnalysis) > 0:
		view.Source = domain.FrameSourceAnalysis
		view.Frames = domain.NormalizeFrameAnalysis(analysis.FrameAnalysis)
		return view, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	if len(record.Frames) > 0 {
		view.Source = domain.FrameSourceLegacy
		view.Frames = domain.NormalizeLegacyFrames(record.Frames)
	}
	return view, nil
}

func (s *mediaService) load(ctx context.Context, subject policy.Subject, id string) (*domain.ProcessedData, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	record, err := s.mediaRepo.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProcessedDataNotFound
		}
		return nil, err
	}
	if !policy.Can(subject, policy.MediaRead, policy.Resource{OwnerID: record.UserID, Shared: record.IsReference}) {
		return nil, ErrForbidden
	}
	return record, nil
}

// rangeStart turns a range parameter into the lower bound on created_at. A date selects
// records created on or after that day (UTC).
func rangeStart(raw string, now time.Time) (*time.Time, error) {
	var since time.Time
	switch r := strings.ToLower(strings.TrimSpace(raw)); r {
	case "", "all":
		return nil, nil
	case "3months":
		since = now.AddDate(0, -3, 0)
	case "1month":
		since = now.AddDate(0, -1, 0)
	case "1week":
		since = now.AddDate(0, 0, -7)
	default:
		day, err := time.ParseInLocation("2006-01-02", r, time.UTC)
		if err != nil {
			return nil, ErrInvalidRange
		}
		since = day
	}
	return &since, nil
}

// exerciseLookup memoizes exercise summaries for one request.
type exerciseLookup struct {
	repo  repository.ExerciseRepository
	log   *logger.Logger
	cache map[primitive.ObjectID]*domain.Exercise
}

func newExerciseLookup(repo repository.ExerciseRepository, log *logger.Logger) *exerciseLookup {
	return &exerciseLookup{repo: repo, log: log, cache: map[primitive.ObjectID]*domain.Exercise{}}
}

func (l *exerciseLookup) get(ctx context.Context, id primitive.ObjectID) *domain.Exercise {
	if id.IsZero() {
		return nil
	}
	if e, ok := l.cache[id]; ok {
		return e
	}
	e, err := l.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			l.log.Warn("failed to expand exercise", "exercise_id", id.Hex(), "error", err)
		}
		e = nil
	}
	l.cache[id] = e
	return e
}
