package mongo

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const analysisCollectionName = "analysis_results"

// mongoAnalysisRepository reads analysis_results. Documents are written by the AI
// service, which may store video_id as a hex string instead of an ObjectID.
type mongoAnalysisRepository struct {
	collection *mongo.Collection
}

// NewMongoAnalysisRepository creates a new AnalysisResult repository backed by MongoDB.
func NewMongoAnalysisRepository(db *mongo.Database) repository.AnalysisRepository {
	return &mongoAnalysisRepository{
		collection: db.Collection(analysisCollectionName),
	}
}

func (r *mongoAnalysisRepository) GetLatestByVideoID(ctx context.Context, videoID primitive.ObjectID) (*domain.AnalysisResult, error) {
	filter := bson.M{"video_id": bson.M{"$in": bson.A{videoID, videoID.Hex()}}}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var result domain.AnalysisResult
	err := r.collection.FindOne(ctx, filter, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// EnsureAnalysisIndexes creates necessary indexes for the analysis_results collection.
func EnsureAnalysisIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
