package mongo

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const imageCollectionName = "images"

// mongoImageRepository implements repository.ImageRepository
type mongoImageRepository struct {
	collection *mongo.Collection
}

// NewMongoImageRepository creates a new Image repository backed by MongoDB.
func NewMongoImageRepository(db *mongo.Database) repository.ImageRepository {
	return &mongoImageRepository{
		collection: db.Collection(imageCollectionName),
	}
}

// Create inserts new image metadata into the database.
func (r *mongoImageRepository) Create(ctx context.Context, image *domain.Image) (primitive.ObjectID, error) {
	if image.OwnerID == primitive.NilObjectID || image.StorageKey == "" {
		return primitive.NilObjectID, errors.New("image requires ownerId and storageKey")
	}

	image.ID = primitive.NewObjectID()
	image.UploadedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, image)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves image metadata by its ID.
func (r *mongoImageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Image, error) {
	var image domain.Image
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&image)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &image, nil
}

// List retrieves image metadata, newest first.
func (r *mongoImageRepository) List(ctx context.Context, ownerID *primitive.ObjectID) ([]domain.Image, error) {
	filter := bson.M{}
	if ownerID != nil {
		filter["ownerId"] = *ownerID
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	images := []domain.Image{}
	if err = cursor.All(ctx, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// EnsureImageIndexes creates necessary indexes for the images collection.
func EnsureImageIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "uploadedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "storageKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
