package users

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered account. Students belong to exactly one organization; admins to none.
type User struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Name             string              `bson:"name" json:"name"`
	Email            string              `bson:"email" json:"email"`
	PasswordHash     string              `bson:"password" json:"-"`
	Role             auth.Role           `bson:"role" json:"role"`
	Organization     *primitive.ObjectID `bson:"organization,omitempty" json:"organization,omitempty"`
	OrganizationName string              `bson:"organizationName,omitempty" json:"organizationName,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// OrganizationHex returns the organization identifier in hex, or an empty string.
func (u User) OrganizationHex() string {
	if u.Organization == nil {
		return ""
	}
	return u.Organization.Hex()
}

// Profile is the public view of the signed-in user.
type Profile struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             auth.Role `json:"role"`
	Organization     string    `json:"organization,omitempty"`
	OrganizationName string    `json:"organizationName,omitempty"`
}

// Member is the contact-picker view of a user.
type Member struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) profile() Profile {
	profile := Profile{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.Role == auth.RoleStudent {
		profile.Organization = u.OrganizationHex()
		profile.OrganizationName = u.OrganizationName
	}
	return profile
}

func (u User) member() Member {
	return Member{ID: u.ID.Hex(), Name: u.Name, Email: u.Email}
}

// SignupInput carries a registration request.
type SignupInput struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	Role         string `json:"role" validate:"required"`
	Organization string `json:"organization"`
}

// LoginInput carries a credential check. Role is optional and, when present, must match the account.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresIn int64
	Profile   Profile
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
