package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memoryStore keeps JSON-shaped documents in process. It backs local runs
// with BOOKING_STORE=memory and the package tests.
type memoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]map[string]any
}

func NewMemoryStore() BookingStore {
	return &memoryStore{docs: make(map[string]map[string]map[string]any)}
}

func (s *memoryStore) Put(_ context.Context, collection, id string, record any) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]any)
	}
	s.docs[collection][id] = doc
	return nil
}

func (s *memoryStore) Get(_ context.Context, collection, id string, out any) error {
	s.mu.RLock()
	doc, ok := s.docs[collection][id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return fromDocument(doc, out)
}

func (s *memoryStore) Query(_ context.Context, collection string, filter Filter, limit int, out any) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	matched := make([]map[string]any, 0)
	for _, id := range ids {
		doc := s.docs[collection][id]
		if matches(doc, filter) {
			matched = append(matched, doc)
			if limit > 0 && len(matched) == limit {
				break
			}
		}
	}
	s.mu.RUnlock()
	return fromDocument(matched, out)
}

func matches(doc map[string]any, filter Filter) bool {
	for field, want := range filter {
		got := fmt.Sprint(doc[field])
		if values, ok := want.([]string); ok {
			found := false
			for _, v := range values {
				if v == got {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if got != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
