package organizations

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrStoreNotFound is returned by stores when no organization matches.
	ErrStoreNotFound = errors.New("organizations: not found")
	// ErrStoreDuplicate is returned by stores when a unique field collides.
	ErrStoreDuplicate = errors.New("organizations: duplicate key")
)

// Store persists organizations.
type Store interface {
	Insert(ctx context.Context, organization *Organization) error
	FindByID(ctx context.Context, id primitive.ObjectID) (Organization, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByContactEmail(ctx context.Context, contactEmail string) (bool, error)
	List(ctx context.Context) ([]Organization, error)
}
