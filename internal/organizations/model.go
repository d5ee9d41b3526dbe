package organizations

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is an institution that scopes students, notes and group chat.
type Organization struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description" json:"description"`
	Location     string             `bson:"location" json:"location"`
	ContactEmail string             `bson:"contactEmail" json:"contactEmail"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateInput carries the fields an administrator submits for a new organization.
type CreateInput struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description" validate:"required"`
	Location     string `json:"location" validate:"required"`
	ContactEmail string `json:"contactEmail" validate:"required,email"`
}
