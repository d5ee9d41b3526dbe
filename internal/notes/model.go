package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	// DefaultUploader is recorded when neither the form nor the session names an uploader.
	DefaultUploader = "anonymous"
	// DefaultOrganization is recorded when neither the form nor the session names an organization.
	DefaultOrganization = "unknown"
)

var (
	// ErrInvalidID indicates a note identifier that is not a 24 character hex object id.
	ErrInvalidID = errors.New("invalid note ID format")
	// ErrInvalidPagination indicates page or limit values outside the accepted bounds.
	ErrInvalidPagination = errors.New("invalid pagination parameters")
)

// Note is a shared study note with an optional attachment.
type Note struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string             `bson:"title" json:"title"`
	Content      string             `bson:"content" json:"content"`
	Branch       string             `bson:"branch" json:"branch"`
	Semester     string             `bson:"semester" json:"semester"`
	Subject      string             `bson:"subject" json:"subject"`
	FileURL      *string            `bson:"fileUrl,omitempty" json:"fileUrl"`
	FileName     *string            `bson:"fileName,omitempty" json:"fileName"`
	UploadedBy   string             `bson:"uploadedBy" json:"uploadedBy"`
	Organization string             `bson:"organization" json:"organization"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// MarshalJSON exposes the identifier under both "id" and "_id".
func (n Note) MarshalJSON() ([]byte, error) {
	type noteJSON Note
	if n.UploadedBy == "" {
		n.UploadedBy = DefaultUploader
	}
	return json.Marshal(struct {
		PublicID string `json:"id"`
		noteJSON
	}{
		PublicID: n.ID.Hex(),
		noteJSON: noteJSON(n),
	})
}

// ParseID validates a client supplied note identifier.
func ParseID(raw string) (primitive.ObjectID, error) {
	trimmed := strings.TrimSpace(raw)
	id, err := primitive.ObjectIDFromHex(trimmed)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrInvalidID, trimmed)
	}
	return id, nil
}

// Input holds the editable fields of a note.
type Input struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Branch   string `json:"branch" validate:"required"`
	Semester string `json:"semester" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
}

// CreateInput is Input plus the attribution recorded once at creation.
type CreateInput struct {
	Input
	UploadedBy   string `json:"uploadedBy"`
	Organization string `json:"organization"`
}

// NoteUpdate is the set of fields written by an update.
type NoteUpdate struct {
	Input
	FileURL   *string
	FileName  *string
	UpdatedAt time.Time
}

// Filter narrows a listing. Empty fields are ignored.
type Filter struct {
	Branch       string
	Semester     string
	Subject      string
	UploadedBy   string
	Organization string
	Search       string
}

// PageRequest selects a 1-based page of results.
type PageRequest struct {
	Page  int
	Limit int
}

// ParsePageRequest reads raw query values, applying defaults for blanks and enforcing bounds.
func ParsePageRequest(rawPage, rawLimit string) (PageRequest, error) {
	request := PageRequest{Page: defaultPage, Limit: defaultLimit}
	if trimmed := strings.TrimSpace(rawPage); trimmed != "" {
		page, err := strconv.Atoi(trimmed)
		if err != nil {
			return PageRequest{}, ErrInvalidPagination
		}
		request.Page = page
	}
	if trimmed := strings.TrimSpace(rawLimit); trimmed != "" {
		limit, err := strconv.Atoi(trimmed)
		if err != nil {
			return PageRequest{}, ErrInvalidPagination
		}
		request.Limit = limit
	}
	if err := request.validate(); err != nil {
		return PageRequest{}, err
	}
	return request, nil
}

func (r PageRequest) validate() error {
	if r.Page < 1 || r.Limit < 1 || r.Limit > maxLimit {
		return ErrInvalidPagination
	}
	return nil
}

func (r PageRequest) skip() int64 {
	return int64(r.Page-1) * int64(r.Limit)
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	Limit       int   `json:"limit"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

func newPagination(request PageRequest, totalCount int64) Pagination {
	totalPages := int(math.Ceil(float64(totalCount) / float64(request.Limit)))
	return Pagination{
		CurrentPage: request.Page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		Limit:       request.Limit,
		HasNext:     request.Page < totalPages,
		HasPrev:     request.Page > 1,
	}
}

// Page is one page of notes.
type Page struct {
	Notes      []Note
	Pagination Pagination
}
