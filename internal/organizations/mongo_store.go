package organizations

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "organizations"

// MongoStore keeps organizations in a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore binds the organizations collection and ensures its unique indexes.
func NewMongoStore(ctx context.Context, database *mongo.Database) (*MongoStore, error) {
	collection := database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("name_unique"),
		},
		{
			Keys:    bson.D{{Key: "contactEmail", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("contact_email_unique"),
		},
	})
	if err != nil {
		return nil, err
	}
	return &MongoStore{collection: collection}, nil
}

func (s *MongoStore) Insert(ctx context.Context, organization *Organization) error {
	if organization.ID.IsZero() {
		organization.ID = primitive.NewObjectID()
	}
	_, err := s.collection.InsertOne(ctx, organization)
	if mongo.IsDuplicateKeyError(err) {
		return ErrStoreDuplicate
	}
	return err
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (Organization, error) {
	var organization Organization
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&organization)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Organization{}, ErrStoreNotFound
	}
	if err != nil {
		return Organization{}, err
	}
	return organization, nil
}

func (s *MongoStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, bson.M{"name": name})
}

func (s *MongoStore) ExistsByContactEmail(ctx context.Context, contactEmail string) (bool, error) {
	return s.exists(ctx, bson.M{"contactEmail": contactEmail})
}

func (s *MongoStore) exists(ctx context.Context, filter bson.M) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) List(ctx context.Context) ([]Organization, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	organizations := []Organization{}
	if err := cursor.All(ctx, &organizations); err != nil {
		return nil, err
	}
	return organizations, nil
}
