package organizations

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a process-local Store used for development runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	organizations map[primitive.ObjectID]Organization
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{organizations: make(map[primitive.ObjectID]Organization)}
}

func (s *MemoryStore) Insert(_ context.Context, organization *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.organizations {
		if existing.Name == organization.Name || existing.ContactEmail == organization.ContactEmail {
			return ErrStoreDuplicate
		}
	}
	if organization.ID.IsZero() {
		organization.ID = primitive.NewObjectID()
	}
	s.organizations[organization.ID] = *organization
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id primitive.ObjectID) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	organization, ok := s.organizations[id]
	if !ok {
		return Organization{}, ErrStoreNotFound
	}
	return organization, nil
}

func (s *MemoryStore) ExistsByName(_ context.Context, name string) (bool, error) {
	return s.exists(func(organization Organization) bool { return organization.Name == name }), nil
}

func (s *MemoryStore) ExistsByContactEmail(_ context.Context, contactEmail string) (bool, error) {
	return s.exists(func(organization Organization) bool { return organization.ContactEmail == contactEmail }), nil
}

func (s *MemoryStore) exists(match func(Organization) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, organization := range s.organizations {
		if match(organization) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) List(_ context.Context) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	organizations := make([]Organization, 0, len(s.organizations))
	for _, organization := range s.organizations {
		organizations = append(organizations, organization)
	}
	sort.Slice(organizations, func(i, j int) bool {
		return organizations[i].Name < organizations[j].Name
	})
	return organizations, nil
}
