package mongo

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func duplicateKeyResponse() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error",
	})
}

func TestUserRepository(t *testing.T) {
	mt := newMockT(t)

	mt.Run("create lower-cases email", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &domain.User{Email: "Coach@Example.COM", PasswordHash: "hash", Role: domain.RoleUser}
		id, err := repo.Create(context.Background(), u)
		require.NoError(mt, err)
		assert.Equal(mt, u.ID, id)
		assert.Equal(mt, "coach@example.com", u.Email)
		assert.False(mt, u.CreatedAt.IsZero())
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(duplicateKeyResponse())

		_, err := repo.Create(context.Background(), &domain.User{Email: "a@b.c", PasswordHash: "h", Role: domain.RoleUser})
		assert.ErrorIs(mt, err, repository.ErrDuplicate)
	})

	mt.Run("get by email", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "test.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "a@b.c"},
			{Key: "role", Value: "admin"},
		}))

		u, err := repo.GetByEmail(context.Background(), "A@B.C")
		require.NoError(mt, err)
		assert.Equal(mt, id, u.ID)
		assert.True(mt, u.IsAdmin())
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestExerciseRepository(t *testing.T) {
	mt := newMockT(t)

	mt.Run("duplicate name", func(mt *mtest.T) {
		repo := NewMongoExerciseRepository(mt.DB)
		mt.AddMockResponses(duplicateKeyResponse())

		_, err := repo.Create(context.Background(), &domain.Exercise{Name: "Jump shot"})
		assert.ErrorIs(mt, err, repository.ErrDuplicate)
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewMongoExerciseRepository(mt.DB)
		first := mtest.CreateCursorResponse(1, "test.exercises", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "Free throw"}})
		second := mtest.CreateCursorResponse(0, "test.exercises", mtest.NextBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "Layup"}})
		mt.AddMockResponses(first, second)

		got, err := repo.List(context.Background(), repository.ExerciseFilter{Category: "shooting"})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "Layup", got[1].Name)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		repo := NewMongoExerciseRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Update(context.Background(), &domain.Exercise{ID: primitive.NewObjectID(), Name: "x"})
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := NewMongoExerciseRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		require.NoError(mt, repo.Delete(context.Background(), primitive.NewObjectID()))
		assert.ErrorIs(mt, repo.Delete(context.Background(), primitive.NewObjectID()), repository.ErrNotFound)
	})
}

func TestMediaRepository_Transition(t *testing.T) {
	mt := newMockT(t)
	now := time.Now().UTC()

	mt.Run("applied", func(mt *mtest.T) {
		repo := NewMongoMediaRepository(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: id},
				{Key: "status", Value: string(domain.StatusAnalysisRequested)},
				{Key: "analysis_id", Value: nil},
			}},
		})

		got, err := repo.Transition(context.Background(), id, domain.Transition{To: domain.StatusAnalysisRequested, At: now})
		require.NoError(mt, err)
		assert.Equal(mt, domain.StatusAnalysisRequested, got.Status)
		assert.Nil(mt, got.AnalysisID)
	})

	mt.Run("conflict", func(mt *mtest.T) {
		repo := NewMongoMediaRepository(mt.DB)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "test.processed_data", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		_, err := repo.Transition(context.Background(), primitive.NewObjectID(), domain.Transition{To: domain.StatusLinked, At: now})
		assert.ErrorIs(mt, err, repository.ErrConflict)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewMongoMediaRepository(mt.DB)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "test.processed_data", mtest.FirstBatch),
		)

		_, err := repo.Transition(context.Background(), primitive.NewObjectID(), domain.Transition{To: domain.StatusLinked, At: now})
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestMediaRepository_Upsert(t *testing.T) {
	mt := newMockT(t)

	mt.Run("requires id", func(mt *mtest.T) {
		repo := NewMongoMediaRepository(mt.DB)
		assert.Error(mt, repo.Upsert(context.Background(), &domain.ProcessedData{}))
	})

	mt.Run("upserts", func(mt *mtest.T) {
		repo := NewMongoMediaRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := repo.Upsert(context.Background(), &domain.ProcessedData{ID: primitive.NewObjectID(), URL: "/uploads/a.mp4"})
		require.NoError(mt, err)
	})
}

func TestAnalysisRepository_GetLatestByVideoID(t *testing.T) {
	mt := newMockT(t)

	mt.Run("hex video id", func(mt *mtest.T) {
		repo := NewMongoAnalysisRepository(mt.DB)
		videoID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "test.analysis_results", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "video_id", Value: videoID.Hex()},
			{Key: "success", Value: true},
			{Key: "global_feedback", Value: "keep your elbow in"},
		}))

		got, err := repo.GetLatestByVideoID(context.Background(), videoID)
		require.NoError(mt, err)
		assert.Equal(mt, videoID, got.VideoID)
		assert.True(mt, got.Success)
	})

	mt.Run("none", func(mt *mtest.T) {
		repo := NewMongoAnalysisRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.analysis_results", mtest.FirstBatch))

		_, err := repo.GetLatestByVideoID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestEnsureIndexes(t *testing.T) {
	mt := newMockT(t)

	mt.Run("all collections", func(mt *mtest.T) {
		for i := 0; i < 6; i++ {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}
		require.NoError(mt, EnsureIndexes(context.Background(), mt.DB))
	})
}

func TestTransitionFilter(t *testing.T) {
	id := primitive.NewObjectID()

	linked := transitionFilter(id, domain.Transition{To: domain.StatusLinked})
	assert.Equal(t, id, linked["_id"])
	assert.Equal(t, bson.A{bson.M{"status": domain.StatusAnalysisRequested}}, linked["$or"])

	stale := time.Now().Add(-time.Minute)
	requested := transitionFilter(id, domain.Transition{To: domain.StatusAnalysisRequested, StaleBefore: stale})
	states := requested["$or"].(bson.A)
	// uploaded (+legacy), failed, linked (+legacy), stale requested
	assert.Len(t, states, 6)
}

func TestMediaListFilter(t *testing.T) {
	user := primitive.NewObjectID()
	since := time.Now().AddDate(0, -1, 0)

	f := mediaListFilter(repository.MediaFilter{UserID: &user, IncludeReference: true, Since: &since})
	assert.Len(t, f["$or"], 2)
	assert.Equal(t, bson.M{"$gte": since}, f["created_at"])

	f = mediaListFilter(repository.MediaFilter{UserID: &user})
	assert.Equal(t, user, f["user_id"])

	assert.Empty(t, mediaListFilter(repository.MediaFilter{}))
}
