package organizations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/apperr"
	"github.com/MarcoPoloResearchLab/notehub/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrDuplicateName  = errors.New("organization with this name already exists")
	ErrDuplicateEmail = errors.New("organization with this email already exists")
	ErrDuplicate      = errors.New("organization already exists")
	ErrNotFound       = errors.New("organization not found")
	ErrInvalidID      = errors.New("invalid organization ID")

	errMissingStore = errors.New("organization store is required")
	noOpLogger      = zap.NewNop()
)

const (
	opServiceNew = "organizations.service.new"
	opCreate     = "organizations.create"
	opList       = "organizations.list"
	opGet        = "organizations.get"
)

// ServiceConfig describes the dependencies of the organization service.
type ServiceConfig struct {
	Store     Store
	Validator *validation.Validator
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Service registers and looks up organizations.
type Service struct {
	store     Store
	validator *validation.Validator
	clock     func() time.Time
	logger    *zap.Logger
}

// NewService validates the configuration and constructs a Service.
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
		validator: validator,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Create registers a new organization after checking that neither its name nor contact email is taken.
func (s *Service) Create(ctx context.Context, input CreateInput) (Organization, error) {
	validation.TrimAll(&input.Name, &input.Description, &input.Location, &input.ContactEmail)
	input.ContactEmail = strings.ToLower(input.ContactEmail)
	if err := s.validator.Struct(input); err != nil {
		return Organization{}, apperr.New(apperr.KindValidation, opCreate, "invalid_input", err)
	}

	nameTaken, err := s.store.ExistsByName(ctx, input.Name)
	if err != nil {
		s.logError(opCreate, "name_lookup_failed", err)
		return Organization{}, apperr.New(apperr.KindServer, opCreate, "name_lookup_failed", err)
	}
	if nameTaken {
		return Organization{}, apperr.New(apperr.KindDuplicate, opCreate, "duplicate_name", ErrDuplicateName)
	}

	emailTaken, err := s.store.ExistsByContactEmail(ctx, input.ContactEmail)
	if err != nil {
		s.logError(opCreate, "email_lookup_failed", err)
		return Organization{}, apperr.New(apperr.KindServer, opCreate, "email_lookup_failed", err)
	}
	if emailTaken {
		return Organization{}, apperr.New(apperr.KindDuplicate, opCreate, "duplicate_email", ErrDuplicateEmail)
	}

	now := s.clock().UTC()
	organization := Organization{
		Name:         input.Name,
		Description:  input.Description,
		Location:     input.Location,
		ContactEmail: input.ContactEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Insert(ctx, &organization); err != nil {
		if errors.Is(err, ErrStoreDuplicate) {
			return Organization{}, apperr.New(apperr.KindDuplicate, opCreate, "duplicate", ErrDuplicate)
		}
		s.logError(opCreate, "insert_failed", err, zap.String("name", input.Name))
		return Organization{}, apperr.New(apperr.KindServer, opCreate, "insert_failed", err)
	}
	return organization, nil
}

// List returns every organization ordered by name.
func (s *Service) List(ctx context.Context) ([]Organization, error) {
	organizations, err := s.store.List(ctx)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return nil, apperr.New(apperr.KindServer, opList, "query_failed", err)
	}
	return organizations, nil
}

// Get resolves an organization from its hexadecimal identifier.
func (s *Service) Get(ctx context.Context, rawID string) (Organization, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(rawID))
	if err != nil {
		return Organization{}, apperr.New(apperr.KindValidation, opGet, "invalid_id", ErrInvalidID)
	}
	organization, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrStoreNotFound) {
		return Organization{}, apperr.New(apperr.KindNotFound, opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("organization_id", rawID))
		return Organization{}, apperr.New(apperr.KindServer, opGet, "query_failed", err)
	}
	return organization, nil
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
	s.logger.Error("organization operation failed", allFields...)
}
