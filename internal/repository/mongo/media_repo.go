package mongo

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mediaCollectionName = "processed_data"

// mongoMediaRepository implements repository.MediaRepository on processed_data.
// The AI service writes to the same collection, so reads must tolerate missing fields.
type mongoMediaRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaRepository creates a new ProcessedData repository backed by MongoDB.
func NewMongoMediaRepository(db *mongo.Database) repository.MediaRepository {
	return &mongoMediaRepository{
		collection: db.Collection(mediaCollectionName),
	}
}

// Upsert sets every field of data on the document with data.ID. analysis_id and
// created_at are only written on insert so that values set by the AI side survive.
func (r *mongoMediaRepository) Upsert(ctx context.Context, data *domain.ProcessedData) error {
	if data.ID == primitive.NilObjectID {
		return errors.New("processed data ID is required for upsert")
	}

	raw, err := bson.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal processed data: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("unmarshal processed data: %w", err)
	}
	delete(fields, "_id")
	onInsert := bson.M{
		"analysis_id": fields["analysis_id"],
		"created_at":  fields["created_at"],
	}
	delete(fields, "analysis_id")
	delete(fields, "created_at")

	update := bson.M{"$set": fields, "$setOnInsert": onInsert}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": data.ID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoMediaRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProcessedData, error) {
	var data domain.ProcessedData
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&data)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &data, nil
}

// List returns matching records, newest first.
func (r *mongoMediaRepository) List(ctx context.Context, f repository.MediaFilter) ([]domain.ProcessedData, error) {
	cursor, err := r.collection.Find(ctx, mediaListFilter(f), mediaListOptions(f))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []domain.ProcessedData{}
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func mediaListFilter(f repository.MediaFilter) bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		if f.IncludeReference {
			filter["$or"] = bson.A{
				bson.M{"user_id": *f.UserID},
				bson.M{"is_reference": true},
			}
		} else {
			filter["user_id"] = *f.UserID
		}
	}
	created := bson.M{}
	if f.Since != nil {
		created["$gte"] = *f.Since
	}
	if f.Until != nil {
		created["$lt"] = *f.Until
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	return filter
}

func mediaListOptions(f repository.MediaFilter) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return opts
}

// Transition is a single compare-and-set FindOneAndUpdate: the filter only matches
// records whose current status allows t.
func (r *mongoMediaRepository) Transition(ctx context.Context, id primitive.ObjectID, t domain.Transition) (*domain.ProcessedData, error) {
	filter := transitionFilter(id, t)
	update := transitionUpdate(t)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var data domain.ProcessedData
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&data)
	if err == nil {
		return &data, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Nothing matched: tell a missing record apart from one in the wrong state.
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

// transitionFilter matches id in any state t may be applied from. Records written
// before the status field existed are matched by their effective status.
func transitionFilter(id primitive.ObjectID, t domain.Transition) bson.M {
	noStatus := bson.M{"$in": bson.A{nil, ""}}
	var states bson.A
	for _, from := range domain.SourcesFor(t.To) {
		states = append(states, bson.M{"status": from})
		switch from {
		case domain.StatusUploaded:
			states = append(states, bson.M{"status": noStatus, "analysis_id": bson.M{"$in": bson.A{nil, ""}}})
		case domain.StatusLinked:
			states = append(states, bson.M{"status": noStatus, "analysis_id": bson.M{"$nin": bson.A{nil, ""}}})
		}
	}
	if t.To == domain.StatusAnalysisRequested && !t.StaleBefore.IsZero() {
		states = append(states, bson.M{
			"status": domain.StatusAnalysisRequested,
			"$or": bson.A{
				bson.M{"status_updated_at": bson.M{"$lt": t.StaleBefore}},
				bson.M{"status_updated_at": bson.M{"$exists": false}},
			},
		})
	}
	return bson.M{"_id": id, "$or": states}
}

func transitionUpdate(t domain.Transition) bson.M {
	set := bson.M{
		"status":            t.To,
		"status_updated_at": t.At,
		"updated_at":        t.At,
	}
	update := bson.M{"$set": set}
	switch t.To {
	case domain.StatusAnalysisRequested:
		if t.ReferenceID != nil {
			set["reference_id"] = *t.ReferenceID
		}
		update["$unset"] = bson.M{"analysis_error": ""}
	case domain.StatusLinked:
		if t.AnalysisID != nil {
			set["analysis_id"] = *t.AnalysisID
		}
		update["$unset"] = bson.M{"analysis_error": ""}
	case domain.StatusAnalysisFailed:
		set["analysis_error"] = t.Error
	}
	return update
}

// EnsureMediaIndexes creates necessary indexes for the processed_data collection.
func EnsureMediaIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "is_reference", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "exercise_id", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
