package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/apperr"
	"github.com/MarcoPoloResearchLab/notehub/internal/auth"
	"github.com/MarcoPoloResearchLab/notehub/internal/organizations"
	"github.com/MarcoPoloResearchLab/notehub/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidRole          = errors.New("role must be either 'admin' or 'student'")
	ErrOrganizationRequired = errors.New("organization is required for students")
	ErrInvalidOrganization  = errors.New("selected organization does not exist")
	ErrDuplicateUser        = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrMissingParameter     = errors.New("missing organization parameter")
	ErrInvalidID            = errors.New("invalid user ID")
	ErrNotFound             = errors.New("user not found")

	errMissingStore    = errors.New("user store is required")
	errMissingResolver = errors.New("organization resolver is required")
	errMissingHasher   = errors.New("password hasher is required")
	errMissingIssuer   = errors.New("token issuer is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew         = "users.service.new"
	opSignup             = "users.signup"
	opLogin              = "users.login"
	opListByOrganization = "users.list_by_organization"
	opFind               = "users.find"
)

// OrganizationResolver looks up the organization a student signs up under.
type OrganizationResolver interface {
	Get(ctx context.Context, rawID string) (organizations.Organization, error)
}

// PasswordHasher hashes and compares account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Matches(hash, password string) bool
}

// TokenIssuer mints session tokens for authenticated users.
type TokenIssuer interface {
	Issue(ctx context.Context, identity auth.Identity) (string, int64, error)
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Store         Store
	Organizations OrganizationResolver
	Hasher        PasswordHasher
	Issuer        TokenIssuer
	Validator     *validation.Validator
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Service registers accounts, authenticates them and lists organization members.
type Service struct {
	store         Store
	organizations OrganizationResolver
	hasher        PasswordHasher
	issuer        TokenIssuer
	validator     *validation.Validator
	now           func() time.Time
	logger        *zap.Logger
	cache         sync.Map
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_store", errMissingStore)
	case cfg.Organizations == nil:
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_resolver", errMissingResolver)
	case cfg.Hasher == nil:
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_hasher", errMissingHasher)
	case cfg.Issuer == nil:
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_issuer", errMissingIssuer)
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
		store:         cfg.Store,
		organizations: cfg.Organizations,
		hasher:        cfg.Hasher,
		issuer:        cfg.Issuer,
		validator:     validator,
		now:           clock,
		logger:        logger,
	}, nil
}

// Signup registers a new account and returns it. Students must reference an existing organization.
func (s *Service) Signup(ctx context.Context, input SignupInput) (User, error) {
	validation.TrimAll(&input.Name, &input.Email, &input.Role, &input.Organization)
	input.Email = normalizeEmail(input.Email)
	if err := s.validator.Struct(input); err != nil {
		var fieldErrors *validation.FieldErrors
		if errors.As(err, &fieldErrors) && !fieldErrors.HasTag("required") {
			return User{}, apperr.New(apperr.KindValidation, opSignup, "invalid_input", err)
		}
		return User{}, apperr.New(apperr.KindValidation, opSignup, "missing_fields", ErrMissingFields)
	}

	role, ok := auth.ParseRole(input.Role)
	if !ok {
		return User{}, apperr.New(apperr.KindValidation, opSignup, "invalid_role", ErrInvalidRole)
	}
	if role == auth.RoleStudent && input.Organization == "" {
		return User{}, apperr.New(apperr.KindValidation, opSignup, "invalid_organization", ErrOrganizationRequired)
	}

	_, err := s.store.FindByEmail(ctx, input.Email)
	switch {
	case err == nil:
		return User{}, apperr.New(apperr.KindDuplicate, opSignup, "duplicate_user", ErrDuplicateUser)
	case !errors.Is(err, ErrStoreNotFound):
		s.logError(opSignup, "email_lookup_failed", err)
		return User{}, apperr.New(apperr.KindServer, opSignup, "email_lookup_failed", err)
	}

	user := User{
		Name:  input.Name,
		Email: input.Email,
		Role:  role,
	}
	if role == auth.RoleStudent {
		organization, err := s.organizations.Get(ctx, input.Organization)
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindValidation, apperr.KindNotFound:
				return User{}, apperr.New(apperr.KindValidation, opSignup, "invalid_organization", ErrInvalidOrganization)
			default:
				s.logError(opSignup, "organization_lookup_failed", err)
				return User{}, apperr.New(apperr.KindServer, opSignup, "organization_lookup_failed", err)
			}
		}
		organizationID := organization.ID
		user.Organization = &organizationID
		user.OrganizationName = organization.Name
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logError(opSignup, "hash_failed", err)
		return User{}, apperr.New(apperr.KindServer, opSignup, "hash_failed", err)
	}
	user.PasswordHash = hash

	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := s.store.Insert(ctx, &user); err != nil {
		if errors.Is(err, ErrStoreDuplicate) {
			return User{}, apperr.New(apperr.KindDuplicate, opSignup, "duplicate_user", ErrDuplicateUser)
		}
		s.logError(opSignup, "insert_failed", err, zap.String("user_email", user.Email))
		return User{}, apperr.New(apperr.KindServer, opSignup, "insert_failed", err)
	}
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	input.Email = normalizeEmail(input.Email)
	input.Role = strings.TrimSpace(input.Role)
	if err := s.validator.Struct(input); err != nil {
		return Session{}, apperr.New(apperr.KindValidation, opLogin, "missing_fields", ErrMissingFields)
	}

	user, err := s.store.FindByEmail(ctx, input.Email)
	if errors.Is(err, ErrStoreNotFound) {
		return Session{}, apperr.New(apperr.KindAuth, opLogin, "unknown_email", ErrInvalidCredentials)
	}
	if err != nil {
		s.logError(opLogin, "lookup_failed", err)
		return Session{}, apperr.New(apperr.KindServer, opLogin, "lookup_failed", err)
	}
	if !s.hasher.Matches(user.PasswordHash, input.Password) {
		return Session{}, apperr.New(apperr.KindAuth, opLogin, "password_mismatch", ErrInvalidCredentials)
	}
	if input.Role != "" {
		claimed, ok := auth.ParseRole(input.Role)
		if !ok || claimed != user.Role {
			return Session{}, apperr.New(apperr.KindAuth, opLogin, "role_mismatch", ErrInvalidCredentials)
		}
	}

	token, expiresIn, err := s.issuer.Issue(ctx, auth.Identity{
		UserID:       user.ID.Hex(),
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		Organization: user.OrganizationHex(),
	})
	if err != nil {
		s.logError(opLogin, "issue_failed", err, zap.String("user_id", user.ID.Hex()))
		return Session{}, apperr.New(apperr.KindServer, opLogin, "issue_failed", err)
	}
	return Session{Token: token, ExpiresIn: expiresIn, Profile: user.profile()}, nil
}

// ListByOrganization returns the members of an organization for the contact picker.
func (s *Service) ListByOrganization(ctx context.Context, rawOrganization string) ([]Member, error) {
	rawOrganization = strings.TrimSpace(rawOrganization)
	if rawOrganization == "" {
		return nil, apperr.New(apperr.KindValidation, opListByOrganization, "missing_parameter", ErrMissingParameter)
	}
	organization, err := primitive.ObjectIDFromHex(rawOrganization)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, opListByOrganization, "invalid_id", organizations.ErrInvalidID)
	}

	found, err := s.store.ListByOrganization(ctx, organization)
	if err != nil {
		s.logError(opListByOrganization, "query_failed", err, zap.String("organization_id", rawOrganization))
		return nil, apperr.New(apperr.KindServer, opListByOrganization, "query_failed", err)
	}
	members := make([]Member, 0, len(found))
	for _, user := range found {
		members = append(members, user.member())
	}
	return members, nil
}

// Find returns the account with the given identifier. Accounts are immutable after signup, so results are cached.
func (s *Service) Find(ctx context.Context, rawID string) (User, error) {
	rawID = strings.TrimSpace(rawID)
	if cached, ok := s.cache.Load(rawID); ok {
		if user, ok := cached.(User); ok {
			return user, nil
		}
	}

	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return User{}, apperr.New(apperr.KindValidation, opFind, "invalid_id", ErrInvalidID)
	}
	user, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrStoreNotFound) {
		return User{}, apperr.New(apperr.KindNotFound, opFind, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opFind, "query_failed", err, zap.String("user_id", rawID))
		return User{}, apperr.New(apperr.KindServer, opFind, "query_failed", err)
	}
	user.PasswordHash = ""
	s.cache.Store(rawID, user)
	return user, nil
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
	s.logger.Error("user operation failed", allFields...)
}
