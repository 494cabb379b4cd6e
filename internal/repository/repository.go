package repository

import (
	"alcyxob/motion-coach/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("duplicate key")
	// ErrConflict is returned when a conditional update finds the record in a state
	// that does not allow the change.
	ErrConflict = RepositoryError("state conflict")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ExerciseFilter narrows an exercise listing. Zero values mean "any".
type ExerciseFilter struct {
	Category   string
	Difficulty domain.Difficulty
	Limit      int64
	Skip       int64
}

// ExerciseRepository defines the interface for interacting with exercise data.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	List(ctx context.Context, filter ExerciseFilter) ([]domain.Exercise, error)
	Update(ctx context.Context, exercise *domain.Exercise) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ClientRepository defines the interface for interacting with coached clients.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error)
	// List returns the clients of coachID, or every client when coachID is nil.
	List(ctx context.Context, coachID *primitive.ObjectID) ([]domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
}

// ImageRepository defines the interface for interacting with image metadata.
type ImageRepository interface {
	Create(ctx context.Context, image *domain.Image) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Image, error)
	// List returns the images of ownerID, or every image when ownerID is nil.
	List(ctx context.Context, ownerID *primitive.ObjectID) ([]domain.Image, error)
}

// MediaFilter narrows a processed data listing.
type MediaFilter struct {
	UserID           *primitive.ObjectID // nil lists every owner
	IncludeReference bool                // Also match is_reference records of other owners
	Since            *time.Time          // created_at >= Since
	Until            *time.Time          // created_at < Until
	Limit            int64
}

// MediaRepository defines the interface for the processed_data collection.
type MediaRepository interface {
	// Upsert writes every field of data under data.ID, merging with a document the AI
	// service may already have written under the same id.
	Upsert(ctx context.Context, data *domain.ProcessedData) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProcessedData, error)
	List(ctx context.Context, filter MediaFilter) ([]domain.ProcessedData, error)
	// Transition applies t only if the stored status allows it and returns the updated
	// record. ErrConflict means the record exists but is in another state.
	Transition(ctx context.Context, id primitive.ObjectID, t domain.Transition) (*domain.ProcessedData, error)
}

// AnalysisRepository reads the analysis_results written by the AI service.
type AnalysisRepository interface {
	// GetLatestByVideoID matches video_id stored either as an ObjectID or as its hex string.
	GetLatestByVideoID(ctx context.Context, videoID primitive.ObjectID) (*domain.AnalysisResult, error)
}
