// Package memory implements the repository interfaces in process. It backs the
// "memory" database driver used for local runs and the service and API tests.
package memory

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/repository"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one lock.
type Store struct {
	mu        sync.RWMutex
	users     map[primitive.ObjectID]domain.User
	exercises map[primitive.ObjectID]domain.Exercise
	clients   map[primitive.ObjectID]domain.Client
	images    map[primitive.ObjectID]domain.Image
	media     map[primitive.ObjectID]domain.ProcessedData
	analyses  []domain.AnalysisResult
}

func NewStore() *Store {
	return &Store{
		users:     map[primitive.ObjectID]domain.User{},
		exercises: map[primitive.ObjectID]domain.Exercise{},
		clients:   map[primitive.ObjectID]domain.Client{},
		images:    map[primitive.ObjectID]domain.Image{},
		media:     map[primitive.ObjectID]domain.ProcessedData{},
	}
}

func (s *Store) Users() repository.UserRepository         { return userRepo{s} }
func (s *Store) Exercises() repository.ExerciseRepository { return exerciseRepo{s} }
func (s *Store) Clients() repository.ClientRepository     { return clientRepo{s} }
func (s *Store) Images() repository.ImageRepository       { return imageRepo{s} }
func (s *Store) Media() repository.MediaRepository        { return mediaRepo{s} }
func (s *Store) Analyses() repository.AnalysisRepository  { return analysisRepo{s} }

// PutAnalysis stores an analysis result the way the AI service would.
func (s *Store) PutAnalysis(result domain.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.ID.IsZero() {
		result.ID = primitive.NewObjectID()
	}
	s.analyses = append(s.analyses, result)
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Email == email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type exerciseRepo struct{ s *Store }

func (r exerciseRepo) nameTaken(name string, except primitive.ObjectID) bool {
	for id, e := range r.s.exercises {
		if e.Name == name && id != except {
			return true
		}
	}
	return false
}

func (r exerciseRepo) Create(_ context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(exercise.Name, primitive.NilObjectID) {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	now := time.Now().UTC()
	exercise.ID = primitive.NewObjectID()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now
	r.s.exercises[exercise.ID] = *exercise
	return exercise.ID, nil
}

func (r exerciseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r exerciseRepo) List(_ context.Context, f repository.ExerciseFilter) ([]domain.Exercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Exercise{}
	for _, e := range r.s.exercises {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Difficulty != "" && e.Difficulty != f.Difficulty {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, f.Skip, f.Limit), nil
}

func (r exerciseRepo) Update(_ context.Context, exercise *domain.Exercise) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.exercises[exercise.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.nameTaken(exercise.Name, exercise.ID) {
		return repository.ErrDuplicate
	}
	exercise.CreatedAt = current.CreatedAt
	exercise.UpdatedAt = time.Now().UTC()
	r.s.exercises[exercise.ID] = *exercise
	return nil
}

func (r exerciseRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.exercises[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.exercises, id)
	return nil
}

type clientRepo struct{ s *Store }

func (r clientRepo) Create(_ context.Context, client *domain.Client) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	client.ID = primitive.NewObjectID()
	client.CreatedAt = now
	client.UpdatedAt = now
	r.s.clients[client.ID] = *client
	return client.ID, nil
}

func (r clientRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r clientRepo) List(_ context.Context, coachID *primitive.ObjectID) ([]domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Client{}
	for _, c := range r.s.clients {
		if coachID == nil || c.CoachID == *coachID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (r clientRepo) Update(_ context.Context, client *domain.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.clients[client.ID]
	if !ok {
		return repository.ErrNotFound
	}
	client.CoachID = current.CoachID
	client.CreatedAt = current.CreatedAt
	client.UpdatedAt = time.Now().UTC()
	r.s.clients[client.ID] = *client
	return nil
}

type imageRepo struct{ s *Store }

func (r imageRepo) Create(_ context.Context, image *domain.Image) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	image.ID = primitive.NewObjectID()
	image.UploadedAt = time.Now().UTC()
	r.s.images[image.ID] = *image
	return image.ID, nil
}

func (r imageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Image, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	img, ok := r.s.images[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &img, nil
}

func (r imageRepo) List(_ context.Context, ownerID *primitive.ObjectID) ([]domain.Image, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Image{}
	for _, img := range r.s.images {
		if ownerID == nil || img.OwnerID == *ownerID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

type mediaRepo struct{ s *Store }

func (r mediaRepo) Upsert(_ context.Context, data *domain.ProcessedData) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.media[data.ID]; ok {
		data.AnalysisID = existing.AnalysisID
		data.CreatedAt = existing.CreatedAt
	}
	r.s.media[data.ID] = *data
	return nil
}

func (r mediaRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ProcessedData, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.media[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r mediaRepo) List(_ context.Context, f repository.MediaFilter) ([]domain.ProcessedData, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.ProcessedData{}
	for _, p := range r.s.media {
		if f.UserID != nil && p.UserID != *f.UserID && !(f.IncludeReference && p.IsReference) {
			continue
		}
		if f.Since != nil && p.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && !p.CreatedAt.Before(*f.Until) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, 0, f.Limit), nil
}

func (r mediaRepo) Transition(_ context.Context, id primitive.ObjectID, t domain.Transition) (*domain.ProcessedData, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.media[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !t.Allows(p.EffectiveStatus(), p.StatusUpdatedAt) {
		return nil, repository.ErrConflict
	}
	t.Apply(&p)
	r.s.media[id] = p
	return &p, nil
}

type analysisRepo struct{ s *Store }

func (r analysisRepo) GetLatestByVideoID(_ context.Context, videoID primitive.ObjectID) (*domain.AnalysisResult, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *domain.AnalysisResult
	for i := range r.s.analyses {
		a := r.s.analyses[i]
		if a.VideoID != videoID {
			continue
		}
		if latest == nil || !a.CreatedAt.Before(latest.CreatedAt) {
			latest = &a
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func page[T any](items []T, skip, limit int64) []T {
	if skip > 0 {
		if skip >= int64(len(items)) {
			return items[:0]
		}
		items = items[skip:]
	}
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}
