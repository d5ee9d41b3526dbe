package users

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a process-local Store used for development runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]User
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[primitive.ObjectID]User)}
}

func (s *MemoryStore) Insert(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return ErrStoreDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrStoreNotFound
}

func (s *MemoryStore) FindByID(_ context.Context, id primitive.ObjectID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrStoreNotFound
	}
	return user, nil
}

func (s *MemoryStore) ListByOrganization(_ context.Context, organization primitive.ObjectID) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []User{}
	for _, user := range s.users {
		if user.Organization != nil && *user.Organization == organization {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	return users, nil
}
