package service

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/repository"
	"alcyxob/motion-coach/internal/validation"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrExerciseNotFound  = errors.New("exercise not found")
	ErrExerciseNameTaken = invalidInput("Un exercice avec ce nom existe déjà")
)

type ExerciseService interface {
	CreateExercise(ctx context.Context, subject policy.Subject, in validation.ExerciseInput) (*domain.Exercise, error)
	GetExerciseByID(ctx context.Context, exerciseID primitive.ObjectID) (*domain.Exercise, error)
	ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error)
	UpdateExercise(ctx context.Context, subject policy.Subject, exerciseID primitive.ObjectID, in validation.ExerciseInput) (*domain.Exercise, error)
	DeleteExercise(ctx context.Context, subject policy.Subject, exerciseID primitive.ObjectID) error
}

// exerciseService implements the ExerciseService interface.
type exerciseService struct {
	exerciseRepo repository.ExerciseRepository
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(exerciseRepo repository.ExerciseRepository) ExerciseService {
	return &exerciseService{
		exerciseRepo: exerciseRepo,
	}
}

// CreateExercise adds an exercise to the catalogue. Admin only.
func (s *exerciseService) CreateExercise(ctx context.Context, subject policy.Subject, in validation.ExerciseInput) (*domain.Exercise, error) {
	if !policy.Can(subject, policy.ExerciseWrite, policy.Resource{}) {
		return nil, ErrForbidden
	}
	in, ferr := validation.Exercise(in)
	if ferr != nil {
		return nil, ferr
	}

	exercise := in.ToDomain()
	if _, err := s.exerciseRepo.Create(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrExerciseNameTaken
		}
		return nil, err
	}
	return exercise, nil
}

// GetExerciseByID retrieves a single exercise. Every authenticated user may read the catalogue.
func (s *exerciseService) GetExerciseByID(ctx context.Context, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return exercise, nil
}

func (s *exerciseService) ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	return s.exerciseRepo.List(ctx, filter)
}

// UpdateExercise replaces every mutable field of an exercise.
func (s *exerciseService) UpdateExercise(ctx context.Context, subject policy.Subject, exerciseID primitive.ObjectID, in validation.ExerciseInput) (*domain.Exercise, error) {
	if !policy.Can(subject, policy.ExerciseWrite, policy.Resource{}) {
		return nil, ErrForbidden
	}
	in, ferr := validation.Exercise(in)
	if ferr != nil {
		return nil, ferr
	}

	existing, err := s.GetExerciseByID(ctx, exerciseID)
	if err != nil {
		return nil, err
	}

	updated := in.ToDomain()
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	if err := s.exerciseRepo.Update(ctx, updated); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrExerciseNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrExerciseNameTaken
		}
		return nil, err
	}
	return updated, nil
}

func (s *exerciseService) DeleteExercise(ctx context.Context, subject policy.Subject, exerciseID primitive.ObjectID) error {
	if !policy.Can(subject, policy.ExerciseWrite, policy.Resource{}) {
		return ErrForbidden
	}
	if err := s.exerciseRepo.Delete(ctx, exerciseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}
	return nil
}
