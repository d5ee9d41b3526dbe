package users

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrStoreNotFound is returned by stores when no user matches.
	ErrStoreNotFound = errors.New("users: not found")
	// ErrStoreDuplicate is returned by stores when the email is already registered.
	ErrStoreDuplicate = errors.New("users: duplicate email")
)

// Store persists user accounts.
type Store interface {
	Insert(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (User, error)
	ListByOrganization(ctx context.Context, organization primitive.ObjectID) ([]User, error)
}
