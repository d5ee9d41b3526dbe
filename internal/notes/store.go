package notes

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrStoreNotFound is returned by stores when no note matches.
var ErrStoreNotFound = errors.New("notes: not found")

// Store persists notes.
type Store interface {
	Find(ctx context.Context, filter Filter, skip, limit int64) ([]Note, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (Note, error)
	Insert(ctx context.Context, note *Note) error
	Update(ctx context.Context, id primitive.ObjectID, update NoteUpdate) (bool, error)
	DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}

// searchFields are matched case-insensitively by Filter.Search.
var searchFields = []string{"title", "content", "subject"}

// buildFilter translates a Filter into a MongoDB query document.
// Search is matched as a literal substring; regular expression syntax in it has no effect.
func buildFilter(filter Filter) bson.M {
	query := bson.M{}
	exact := map[string]string{
		"branch":       filter.Branch,
		"semester":     filter.Semester,
		"subject":      filter.Subject,
		"uploadedBy":   filter.UploadedBy,
		"organization": filter.Organization,
	}
	for field, value := range exact {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			query[field] = trimmed
		}
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		alternatives := make(bson.A, 0, len(searchFields))
		for _, field := range searchFields {
			alternatives = append(alternatives, bson.M{field: pattern})
		}
		query["$or"] = alternatives
	}
	return query
}

// matches applies the same semantics as buildFilter to an in-memory note.
func (f Filter) matches(note Note) bool {
	checks := []struct{ want, have string }{
		{f.Branch, note.Branch},
		{f.Semester, note.Semester},
		{f.Subject, note.Subject},
		{f.UploadedBy, note.UploadedBy},
		{f.Organization, note.Organization},
	}
	for _, check := range checks {
		if want := strings.TrimSpace(check.want); want != "" && want != check.have {
			return false
		}
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	for _, candidate := range []string{note.Title, note.Content, note.Subject} {
		if strings.Contains(strings.ToLower(candidate), search) {
			return true
		}
	}
	return false
}
