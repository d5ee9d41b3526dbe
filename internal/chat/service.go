package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/notehub/internal/apperr"
	"github.com/MarcoPoloResearchLab/notehub/internal/auth"
	"github.com/MarcoPoloResearchLab/notehub/internal/users"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage            = errors.New("message must not be empty")
	ErrMessageTooLong          = errors.New("message exceeds 4000 characters")
	ErrMissingOrganization     = errors.New("organization is required")
	ErrForeignOrganization     = errors.New("organization is not accessible")
	ErrSelfConversation        = errors.New("cannot open a conversation with yourself")
	ErrPeerNotFound            = errors.New("user not found")
	ErrPeerOutsideOrganization = errors.New("user belongs to another organization")

	errMissingStore      = errors.New("chat store is required")
	errMissingDirectory  = errors.New("user directory is required")
	errMissingDispatcher = errors.New("dispatcher is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "chat.service.new"
	opGroup      = "chat.group"
	opDirect     = "chat.direct"
	opContacts   = "chat.contacts"

	maxMessageLength = 4000
)

// Viewer is the authenticated participant on whose behalf an operation runs.
type Viewer struct {
	UserID       string
	Email        string
	Name         string
	Role         auth.Role
	Organization string
}

// ViewerFromClaims builds a Viewer from validated session claims.
func ViewerFromClaims(claims *auth.SessionClaims) Viewer {
	if claims == nil {
		return Viewer{}
	}
	return Viewer{
		UserID:       claims.UserID,
		Email:        claims.Email,
		Name:         claims.Name,
		Role:         claims.Role,
		Organization: claims.Organization,
	}
}

// Directory resolves chat participants.
type Directory interface {
	Find(ctx context.Context, rawID string) (users.User, error)
	ListByOrganization(ctx context.Context, rawOrganization string) ([]users.Member, error)
}

// Broadcaster delivers events to every subscriber of their topic.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// ServiceConfig describes the dependencies of the chat service.
// Broadcaster defaults to the dispatcher itself.
type ServiceConfig struct {
	Store       Store
	Directory   Directory
	Dispatcher  *Dispatcher
	Broadcaster Broadcaster
	IDProvider  IDProvider
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Service mediates group and direct conversations.
type Service struct {
	store       Store
	directory   Directory
	dispatcher  *Dispatcher
	broadcaster Broadcaster
	idProvider  IDProvider
	clock       func() time.Time
	logger      *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_store", errMissingStore)
	case cfg.Directory == nil:
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_directory", errMissingDirectory)
	case cfg.Dispatcher == nil:
		return nil, apperr.New(apperr.KindServer, opServiceNew, "missing_dispatcher", errMissingDispatcher)
	}
	broadcaster := cfg.Broadcaster
	if broadcaster == nil {
		broadcaster = cfg.Dispatcher
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
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
		store:       cfg.Store,
		directory:   cfg.Directory,
		dispatcher:  cfg.Dispatcher,
		broadcaster: broadcaster,
		idProvider:  idProvider,
		clock:       clock,
		logger:      logger,
	}, nil
}

// SendGroup appends a message to the viewer's organization conversation and broadcasts it.
func (s *Service) SendGroup(ctx context.Context, viewer Viewer, requestedOrganization, content string) (GroupMessage, error) {
	organization, err := resolveOrganization(opGroup, viewer, requestedOrganization)
	if err != nil {
		return GroupMessage{}, err
	}
	content, err = normalizeText(opGroup, content)
	if err != nil {
		return GroupMessage{}, err
	}
	messageID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opGroup, "id_failed", err)
		return GroupMessage{}, apperr.New(apperr.KindServer, opGroup, "id_failed", err)
	}

	senderName := strings.TrimSpace(viewer.Name)
	if senderName == "" {
		senderName = viewer.Email
	}
	message := GroupMessage{
		MessageID:    messageID,
		Organization: organization,
		SenderID:     viewer.UserID,
		SenderEmail:  viewer.Email,
		SenderName:   senderName,
		Content:      content,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.store.AppendGroup(ctx, &message); err != nil {
		s.logError(opGroup, "append_failed", err, zap.String("organization", organization))
		return GroupMessage{}, apperr.New(apperr.KindServer, opGroup, "append_failed", err)
	}
	s.broadcast(ctx, GroupTopic(organization), message, message.CreatedAt)
	return message, nil
}

// ListGroup returns the full group conversation of an organization, oldest first.
func (s *Service) ListGroup(ctx context.Context, viewer Viewer, requestedOrganization string) ([]GroupMessage, error) {
	organization, err := resolveOrganization(opGroup, viewer, requestedOrganization)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListGroup(ctx, organization)
	if err != nil {
		s.logError(opGroup, "list_failed", err, zap.String("organization", organization))
		return nil, apperr.New(apperr.KindServer, opGroup, "list_failed", err)
	}
	return messages, nil
}

// SubscribeGroup streams new group messages of an organization.
func (s *Service) SubscribeGroup(ctx context.Context, viewer Viewer, requestedOrganization string) (<-chan Event, func(), error) {
	organization, err := resolveOrganization(opGroup, viewer, requestedOrganization)
	if err != nil {
		return nil, nil, err
	}
	stream, cleanup := s.dispatcher.Subscribe(ctx, GroupTopic(organization))
	return stream, cleanup, nil
}

// SendDirect appends a message to the conversation between the viewer and peerID and broadcasts it.
func (s *Service) SendDirect(ctx context.Context, viewer Viewer, peerID, text string) (DirectMessage, error) {
	peer, err := s.resolvePeer(ctx, viewer, peerID)
	if err != nil {
		return DirectMessage{}, err
	}
	text, err = normalizeText(opDirect, text)
	if err != nil {
		return DirectMessage{}, err
	}
	messageID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opDirect, "id_failed", err)
		return DirectMessage{}, apperr.New(apperr.KindServer, opDirect, "id_failed", err)
	}

	peerHex := peer.ID.Hex()
	message := DirectMessage{
		MessageID:       messageID,
		ConversationKey: ConversationKey(viewer.UserID, peerHex),
		SenderID:        viewer.UserID,
		RecipientID:     peerHex,
		Text:            text,
		CreatedAt:       s.clock().UTC(),
	}
	if err := s.store.AppendDirect(ctx, &message); err != nil {
		s.logError(opDirect, "append_failed", err, zap.String("conversation_key", message.ConversationKey))
		return DirectMessage{}, apperr.New(apperr.KindServer, opDirect, "append_failed", err)
	}
	s.broadcast(ctx, DirectTopic(message.ConversationKey), message, message.CreatedAt)
	return message, nil
}

// ListDirect returns the conversation between the viewer and peerID, oldest first.
func (s *Service) ListDirect(ctx context.Context, viewer Viewer, peerID string) ([]DirectMessage, error) {
	peer, err := s.resolvePeer(ctx, viewer, peerID)
	if err != nil {
		return nil, err
	}
	key := ConversationKey(viewer.UserID, peer.ID.Hex())
	messages, err := s.store.ListDirect(ctx, key)
	if err != nil {
		s.logError(opDirect, "list_failed", err, zap.String("conversation_key", key))
		return nil, apperr.New(apperr.KindServer, opDirect, "list_failed", err)
	}
	return messages, nil
}

// SubscribeDirect streams new messages of the conversation between the viewer and peerID.
func (s *Service) SubscribeDirect(ctx context.Context, viewer Viewer, peerID string) (<-chan Event, func(), error) {
	peer, err := s.resolvePeer(ctx, viewer, peerID)
	if err != nil {
		return nil, nil, err
	}
	stream, cleanup := s.dispatcher.Subscribe(ctx, DirectTopic(ConversationKey(viewer.UserID, peer.ID.Hex())))
	return stream, cleanup, nil
}

// Contacts lists the members of the viewer's organization other than the viewer.
func (s *Service) Contacts(ctx context.Context, viewer Viewer, requestedOrganization string) ([]users.Member, error) {
	organization, err := resolveOrganization(opContacts, viewer, requestedOrganization)
	if err != nil {
		return nil, err
	}
	members, err := s.directory.ListByOrganization(ctx, organization)
	if err != nil {
		return nil, err
	}
	contacts := make([]users.Member, 0, len(members))
	for _, member := range members {
		if member.ID != viewer.UserID {
			contacts = append(contacts, member)
		}
	}
	return contacts, nil
}

func (s *Service) resolvePeer(ctx context.Context, viewer Viewer, peerID string) (users.User, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == viewer.UserID {
		return users.User{}, apperr.New(apperr.KindValidation, opDirect, "self_conversation", ErrSelfConversation)
	}
	peer, err := s.directory.Find(ctx, peerID)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindValidation, apperr.KindNotFound:
			return users.User{}, apperr.New(apperr.KindNotFound, opDirect, "peer_not_found", ErrPeerNotFound)
		default:
			return users.User{}, err
		}
	}
	if viewer.Role != auth.RoleAdmin && peer.OrganizationHex() != viewer.Organization {
		return users.User{}, apperr.New(apperr.KindForbidden, opDirect, "peer_outside_organization", ErrPeerOutsideOrganization)
	}
	return peer, nil
}

// resolveOrganization picks the organization a group operation applies to.
// Students are pinned to their own organization; admins name one explicitly.
func resolveOrganization(operation string, viewer Viewer, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if viewer.Role == auth.RoleAdmin {
		if requested == "" {
			return "", apperr.New(apperr.KindValidation, operation, "missing_organization", ErrMissingOrganization)
		}
		return requested, nil
	}
	if viewer.Organization == "" {
		return "", apperr.New(apperr.KindForbidden, operation, "no_organization", ErrMissingOrganization)
	}
	if requested != "" && requested != viewer.Organization {
		return "", apperr.New(apperr.KindForbidden, operation, "foreign_organization", ErrForeignOrganization)
	}
	return viewer.Organization, nil
}

func normalizeText(operation, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.KindValidation, operation, "empty_message", ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return "", apperr.New(apperr.KindValidation, operation, "message_too_long", ErrMessageTooLong)
	}
	return text, nil
}

func (s *Service) broadcast(ctx context.Context, topic string, payload any, at time.Time) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logError("chat.broadcast", "encode_failed", err, zap.String("topic", topic))
		return
	}
	event := Event{Topic: topic, Type: EventChatMessage, Data: data, Timestamp: at}
	if err := s.broadcaster.Broadcast(ctx, event); err != nil {
		s.logger.Warn("chat broadcast failed", zap.String("topic", topic), zap.Error(err))
	}
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
	s.logger.Error("chat operation failed", allFields...)
}
