package store

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore returns a BookingStore backed by Cloud Firestore.
// Documents are written with their JSON field names so that filters use the
// same keys as the Mongo store.
func NewFirestoreStore(client *firestore.Client) BookingStore {
	return &firestoreStore{client: client}
}

func (s *firestoreStore) Put(ctx context.Context, collection, id string, record any) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *firestoreStore) Get(ctx context.Context, collection, id string, out any) error {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("firestore get %s/%s: %w", collection, id, err)
	}
	return fromDocument(snap.Data(), out)
}

func (s *firestoreStore) Query(ctx context.Context, collection string, filter Filter, limit int, out any) error {
	q := s.client.Collection(collection).Query
	for field, value := range filter {
		if values, ok := value.([]string); ok {
			q = q.Where(field, "in", values)
			continue
		}
		q = q.Where(field, "==", value)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("firestore query %s: %w", collection, err)
	}
	docs := make([]map[string]any, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, snap.Data())
	}
	return fromDocument(docs, out)
}

func toDocument(record any) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

func fromDocument(doc any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
