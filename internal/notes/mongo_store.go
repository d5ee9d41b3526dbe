package notes

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "notes"

// MongoStore keeps notes in a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore binds the notes collection and ensures the listing indexes.
func NewMongoStore(ctx context.Context, database *mongo.Database) (*MongoStore, error) {
	collection := database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "uploadedBy", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("uploaded_by_created_at"),
		},
		{
			Keys:    bson.D{{Key: "organization", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("organization_created_at"),
		},
	})
	if err != nil {
		return nil, err
	}
	return &MongoStore{collection: collection}, nil
}

func (s *MongoStore) Find(ctx context.Context, filter Filter, skip, limit int64) ([]Note, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cursor, err := s.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notes := []Note{}
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *MongoStore) Count(ctx context.Context, filter Filter) (int64, error) {
	return s.collection.CountDocuments(ctx, buildFilter(filter))
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (Note, error) {
	var note Note
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&note)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Note{}, ErrStoreNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

func (s *MongoStore) Insert(ctx context.Context, note *Note) error {
	if note.ID.IsZero() {
		note.ID = primitive.NewObjectID()
	}
	_, err := s.collection.InsertOne(ctx, note)
	return err
}

func (s *MongoStore) Update(ctx context.Context, id primitive.ObjectID, update NoteUpdate) (bool, error) {
	set := bson.M{
		"title":     update.Title,
		"content":   update.Content,
		"branch":    update.Branch,
		"semester":  update.Semester,
		"subject":   update.Subject,
		"updatedAt": update.UpdatedAt,
	}
	if update.FileURL != nil {
		set["fileUrl"] = *update.FileURL
	}
	if update.FileName != nil {
		set["fileName"] = *update.FileName
	}
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
