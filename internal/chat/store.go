package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("chat: database handle is required")

// Store persists chat messages.
type Store interface {
	AppendGroup(ctx context.Context, message *GroupMessage) error
	ListGroup(ctx context.Context, organization string) ([]GroupMessage, error)
	AppendDirect(ctx context.Context, message *DirectMessage) error
	ListDirect(ctx context.Context, conversationKey string) ([]DirectMessage, error)
}

// GormStore keeps chat messages in a SQL database through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already migrated database handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) AppendGroup(ctx context.Context, message *GroupMessage) error {
	return s.db.WithContext(ctx).Create(message).Error
}

func (s *GormStore) ListGroup(ctx context.Context, organization string) ([]GroupMessage, error) {
	messages := []GroupMessage{}
	err := s.db.WithContext(ctx).
		Where("organization = ?", organization).
		Order("created_at ASC").
		Order("sequence ASC").
		Find(&messages).
		Error
	return messages, err
}

func (s *GormStore) AppendDirect(ctx context.Context, message *DirectMessage) error {
	return s.db.WithContext(ctx).Create(message).Error
}

func (s *GormStore) ListDirect(ctx context.Context, conversationKey string) ([]DirectMessage, error) {
	messages := []DirectMessage{}
	err := s.db.WithContext(ctx).
		Where("conversation_key = ?", conversationKey).
		Order("created_at ASC").
		Order("sequence ASC").
		Find(&messages).
		Error
	return messages, err
}
