package users

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "users"

// MongoStore keeps users in a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore binds the users collection and ensures its indexes.
func NewMongoStore(ctx context.Context, database *mongo.Database) (*MongoStore, error) {
	collection := database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "organization", Value: 1}},
			Options: options.Index().SetName("organization_idx"),
		},
	})
	if err != nil {
		return nil, err
	}
	return &MongoStore{collection: collection}, nil
}

func (s *MongoStore) Insert(ctx context.Context, user *User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrStoreDuplicate
	}
	return err
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (User, error) {
	var user User
	err := s.collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrStoreNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *MongoStore) ListByOrganization(ctx context.Context, organization primitive.ObjectID) ([]User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.M{"password": 0})
	cursor, err := s.collection.Find(ctx, bson.M{"organization": organization}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
