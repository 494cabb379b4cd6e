package memory

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUsers_UniqueEmail(t *testing.T) {
	repo := NewStore().Users()
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.User{Email: "Me@Example.com"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.User{Email: "me@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	u, err := repo.GetByEmail(ctx, "ME@example.com")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", u.Email)
}

func TestExercises_RenameCollision(t *testing.T) {
	repo := NewStore().Exercises()
	ctx := context.Background()

	a := &domain.Exercise{Name: "Free throw"}
	b := &domain.Exercise{Name: "Layup"}
	_, err := repo.Create(ctx, a)
	require.NoError(t, err)
	_, err = repo.Create(ctx, b)
	require.NoError(t, err)

	b.Name = "Free throw"
	assert.ErrorIs(t, repo.Update(ctx, b), repository.ErrDuplicate)

	a.Description = "changed"
	require.NoError(t, repo.Update(ctx, a))

	list, err := repo.List(ctx, repository.ExerciseFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Free throw", list[0].Name)
}

func TestMedia_ListFilter(t *testing.T) {
	store := NewStore()
	repo := store.Media()
	ctx := context.Background()
	me, other := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC()

	put := func(owner primitive.ObjectID, ref bool, created time.Time) {
		require.NoError(t, repo.Upsert(ctx, &domain.ProcessedData{
			ID: primitive.NewObjectID(), UserID: owner, IsReference: ref, CreatedAt: created,
		}))
	}
	put(me, false, now)
	put(me, false, now.AddDate(0, -2, 0))
	put(other, true, now)
	put(other, false, now)

	mine, err := repo.List(ctx, repository.MediaFilter{UserID: &me})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	withRef, err := repo.List(ctx, repository.MediaFilter{UserID: &me, IncludeReference: true})
	require.NoError(t, err)
	assert.Len(t, withRef, 3)

	since := now.AddDate(0, -1, 0)
	recent, err := repo.List(ctx, repository.MediaFilter{UserID: &me, Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	all, err := repo.List(ctx, repository.MediaFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMedia_Transition(t *testing.T) {
	repo := NewStore().Media()
	ctx := context.Background()
	id := primitive.NewObjectID()
	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(ctx, &domain.ProcessedData{ID: id}))

	_, err := repo.Transition(ctx, id, domain.Transition{To: domain.StatusLinked, At: now})
	assert.ErrorIs(t, err, repository.ErrConflict)

	p, err := repo.Transition(ctx, id, domain.Transition{To: domain.StatusAnalysisRequested, At: now})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalysisRequested, p.Status)

	_, err = repo.Transition(ctx, id, domain.Transition{To: domain.StatusAnalysisRequested, At: now})
	assert.ErrorIs(t, err, repository.ErrConflict)

	analysisID := "a-1"
	p, err = repo.Transition(ctx, id, domain.Transition{To: domain.StatusLinked, At: now, AnalysisID: &analysisID})
	require.NoError(t, err)
	assert.Equal(t, "a-1", *p.AnalysisID)

	_, err = repo.Transition(ctx, primitive.NewObjectID(), domain.Transition{To: domain.StatusLinked, At: now})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMedia_UpsertKeepsAnalysisID(t *testing.T) {
	repo := NewStore().Media()
	ctx := context.Background()
	id := primitive.NewObjectID()
	analysisID := "kept"
	require.NoError(t, repo.Upsert(ctx, &domain.ProcessedData{ID: id, AnalysisID: &analysisID}))
	require.NoError(t, repo.Upsert(ctx, &domain.ProcessedData{ID: id, URL: "/uploads/x.mp4"}))

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.mp4", p.URL)
	require.NotNil(t, p.AnalysisID)
	assert.Equal(t, "kept", *p.AnalysisID)
}

func TestAnalyses_Latest(t *testing.T) {
	store := NewStore()
	video := primitive.NewObjectID()
	now := time.Now().UTC()
	store.PutAnalysis(domain.AnalysisResult{VideoID: video, GlobalFeedback: "old", CreatedAt: now.Add(-time.Hour)})
	store.PutAnalysis(domain.AnalysisResult{VideoID: video, GlobalFeedback: "new", CreatedAt: now})
	store.PutAnalysis(domain.AnalysisResult{VideoID: primitive.NewObjectID(), GlobalFeedback: "other", CreatedAt: now.Add(time.Hour)})

	got, err := store.Analyses().GetLatestByVideoID(context.Background(), video)
	require.NoError(t, err)
	assert.Equal(t, "new", got.GlobalFeedback)

	_, err = store.Analyses().GetLatestByVideoID(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
