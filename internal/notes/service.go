package notes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/apperr"
	"github.com/MarcoPoloResearchLab/notehub/internal/media"
	"github.com/MarcoPoloResearchLab/notehub/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingFields    = errors.New("missing required fields")
	ErrMissingEmail     = errors.New("email is required")
	ErrMissingIDs       = errors.New("no note IDs provided")
	ErrNotFound         = errors.New("note not found")
	ErrNoneDeleted      = errors.New("no notes found with the provided IDs")
	ErrMediaUnavailable = errors.New("file uploads are not configured")
	ErrUploadFailed     = errors.New("failed to upload file")

	errMissingStore = errors.New("note store is required")
	noOpLogger      = zap.NewNop()
)

const (
	opServiceNew     = "notes.service.new"
	opList           = "notes.list"
	opListByUploader = "notes.list_by_uploader"
	opGet            = "notes.get"
	opCreate         = "notes.create"
	opUpdate         = "notes.update"
	opDelete         = "notes.delete"
)

// Uploader relays attachments to the media store.
type Uploader interface {
	Upload(ctx context.Context, object media.Object) (media.Stored, error)
}

// ServiceConfig describes the dependencies of the note service. Uploader may be nil when attachments are disabled.
type ServiceConfig struct {
	Store     Store
	Uploader  Uploader
	Validator *validation.Validator
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Service implements note listing and lifecycle operations.
type Service struct {
	store     Store
	uploader  Uploader
	validator *validation.Validator
	clock     func() time.Time
	logger    *zap.Logger
}

// NewService constructs a note service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_store", errMissingStore)
	}
	validator := cfg.Validator
	if validator == nil {
		var err error
		validator, err = validation.New()
		if err != nil {
			return nil, apperr.New(apperr.KindServer, opServiceNew, "validator_setup", err)
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:     cfg.Store,
		uploader:  cfg.Uploader,
		validator: validator,
		clock:     clock,
		logger:    logger,
	}, nil
}

// List returns one page of notes matching filter, newest first.
// The page and the total count are read concurrently and may disagree under concurrent writes.
func (s *Service) List(ctx context.Context, filter Filter, request PageRequest) (Page, error) {
	return s.list(ctx, opList, filter, request)
}

// ListByUploader lists the notes attributed to one uploader.
func (s *Service) ListByUploader(ctx context.Context, email string, filter Filter, request PageRequest) (Page, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Page{}, apperr.New(apperr.KindValidation, opListByUploader, "missing_email", ErrMissingEmail)
	}
	filter.UploadedBy = email
	return s.list(ctx, opListByUploader, filter, request)
}

func (s *Service) list(ctx context.Context, operation string, filter Filter, request PageRequest) (Page, error) {
	if err := request.validate(); err != nil {
		return Page{}, apperr.New(apperr.KindValidation, operation, "invalid_pagination", err)
	}

	var (
		found []Note
		total int64
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		found, err = s.store.Find(groupCtx, filter, request.skip(), int64(request.Limit))
		return err
	})
	group.Go(func() error {
		var err error
		total, err = s.store.Count(groupCtx, filter)
		return err
	})
	if err := group.Wait(); err != nil {
		s.logError(operation, "query_failed", err)
		return Page{}, apperr.New(apperr.KindServer, operation, "query_failed", err)
	}

	return Page{Notes: found, Pagination: newPagination(request, total)}, nil
}

// Get returns a single note.
func (s *Service) Get(ctx context.Context, rawID string) (Note, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return Note{}, apperr.New(apperr.KindValidation, opGet, "invalid_id", err)
	}
	note, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrStoreNotFound) {
		return Note{}, apperr.New(apperr.KindNotFound, opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("note_id", id.Hex()))
		return Note{}, apperr.New(apperr.KindServer, opGet, "query_failed", err)
	}
	return note, nil
}

// Create stores a new note, relaying the optional attachment first. A failed relay stores nothing.
func (s *Service) Create(ctx context.Context, input CreateInput, attachment *media.Object) (Note, error) {
	if err := s.validateInput(input.Input); err != nil {
		return Note{}, apperr.New(apperr.KindValidation, opCreate, "missing_fields", err)
	}
	if strings.TrimSpace(input.UploadedBy) == "" {
		input.UploadedBy = DefaultUploader
	}
	if strings.TrimSpace(input.Organization) == "" {
		input.Organization = DefaultOrganization
	}

	stored, err := s.relay(ctx, opCreate, attachment)
	if err != nil {
		return Note{}, err
	}

	now := s.clock().UTC()
	note := Note{
		ID:           primitive.NewObjectID(),
		Title:        input.Title,
		Content:      input.Content,
		Branch:       input.Branch,
		Semester:     input.Semester,
		Subject:      input.Subject,
		UploadedBy:   input.UploadedBy,
		Organization: input.Organization,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if stored != nil {
		note.FileURL = &stored.URL
		note.FileName = &stored.FileName
	}
	if err := s.store.Insert(ctx, &note); err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("uploaded_by", note.UploadedBy))
		return Note{}, apperr.New(apperr.KindServer, opCreate, "insert_failed", err)
	}
	return note, nil
}

// Update overwrites the editable fields of a note and refreshes its update time.
// An attachment replaces the stored file reference.
func (s *Service) Update(ctx context.Context, rawID string, input Input, attachment *media.Object) error {
	id, err := ParseID(rawID)
	if err != nil {
		return apperr.New(apperr.KindValidation, opUpdate, "invalid_id", err)
	}
	if err := s.validateInput(input); err != nil {
		return apperr.New(apperr.KindValidation, opUpdate, "missing_fields", err)
	}

	stored, err := s.relay(ctx, opUpdate, attachment)
	if err != nil {
		return err
	}

	update := NoteUpdate{Input: input, UpdatedAt: s.clock().UTC()}
	if stored != nil {
		update.FileURL = &stored.URL
		update.FileName = &stored.FileName
	}
	matched, err := s.store.Update(ctx, id, update)
	if err != nil {
		s.logError(opUpdate, "update_failed", err, zap.String("note_id", id.Hex()))
		return apperr.New(apperr.KindServer, opUpdate, "update_failed", err)
	}
	if !matched {
		return apperr.New(apperr.KindNotFound, opUpdate, "not_found", ErrNotFound)
	}
	return nil
}

// Delete removes every note in rawIDs and reports how many were removed.
// Any malformed identifier rejects the whole request before anything is removed.
func (s *Service) Delete(ctx context.Context, rawIDs []string) (int64, error) {
	ids := make([]primitive.ObjectID, 0, len(rawIDs))
	for _, rawID := range rawIDs {
		id, err := ParseID(rawID)
		if err != nil {
			return 0, apperr.New(apperr.KindValidation, opDelete, "invalid_id", err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, apperr.New(apperr.KindValidation, opDelete, "missing_ids", ErrMissingIDs)
	}

	deleted, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		s.logError(opDelete, "delete_failed", err, zap.Int("note_count", len(ids)))
		return 0, apperr.New(apperr.KindServer, opDelete, "delete_failed", err)
	}
	if deleted == 0 {
		return 0, apperr.New(apperr.KindNotFound, opDelete, "not_found", ErrNoneDeleted)
	}
	return deleted, nil
}

// validateInput checks a trimmed copy; the caller keeps the submitted values.
func (s *Service) validateInput(input Input) error {
	validation.TrimAll(&input.Title, &input.Content, &input.Branch, &input.Semester, &input.Subject)
	if err := s.validator.Struct(input); err != nil {
		return ErrMissingFields
	}
	return nil
}

func (s *Service) relay(ctx context.Context, operation string, attachment *media.Object) (*media.Stored, error) {
	if attachment == nil {
		return nil, nil
	}
	if s.uploader == nil {
		return nil, apperr.New(apperr.KindUpstream, operation, "media_unavailable", ErrMediaUnavailable)
	}
	stored, err := s.uploader.Upload(ctx, *attachment)
	if err != nil {
		s.logError(operation, "upload_failed", err, zap.String("file_name", attachment.Name))
		return nil, apperr.New(apperr.KindUpstream, operation, "upload_failed", errors.Join(ErrUploadFailed, err))
	}
	return &stored, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	if s.logger == nil {
		return
	}
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	allFields = append(allFields, zap.Error(err))
	s.logger.Error("note operation failed", allFields...)
}
