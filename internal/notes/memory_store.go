package notes

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a process-local Store used for development runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[primitive.ObjectID]Note
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[primitive.ObjectID]Note)}
}

func (s *MemoryStore) Find(_ context.Context, filter Filter, skip, limit int64) ([]Note, error) {
	matched := s.matching(filter)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if skip >= int64(len(matched)) {
		return []Note{}, nil
	}
	end := skip + limit
	if limit <= 0 || end > int64(len(matched)) {
		end = int64(len(matched))
	}
	return matched[skip:end], nil
}

func (s *MemoryStore) Count(_ context.Context, filter Filter) (int64, error) {
	return int64(len(s.matching(filter))), nil
}

func (s *MemoryStore) matching(filter Filter) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []Note{}
	for _, note := range s.notes {
		if filter.matches(note) {
			matched = append(matched, note)
		}
	}
	return matched
}

func (s *MemoryStore) FindByID(_ context.Context, id primitive.ObjectID) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok {
		return Note{}, ErrStoreNotFound
	}
	return note, nil
}

func (s *MemoryStore) Insert(_ context.Context, note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID.IsZero() {
		note.ID = primitive.NewObjectID()
	}
	s.notes[note.ID] = *note
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id primitive.ObjectID, update NoteUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return false, nil
	}
	note.Title = update.Title
	note.Content = update.Content
	note.Branch = update.Branch
	note.Semester = update.Semester
	note.Subject = update.Subject
	note.UpdatedAt = update.UpdatedAt
	if update.FileURL != nil {
		note.FileURL = update.FileURL
	}
	if update.FileName != nil {
		note.FileName = update.FileName
	}
	s.notes[id] = note
	return true, nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		if _, ok := s.notes[id]; ok {
			delete(s.notes, id)
			deleted++
		}
	}
	return deleted, nil
}
