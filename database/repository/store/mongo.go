package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	db *mongo.Database
}

// NewMongoStore returns a BookingStore instance using MongoDB.
func NewMongoStore(client *mongo.Client, database string) BookingStore {
	return &mongoStore{db: client.Database(database)}
}

// Put upserts the record under _id = id.
func (s *mongoStore) Put(ctx context.Context, collection, id string, record any) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, record, opts); err != nil {
		return fmt.Errorf("mongo put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *mongoStore) Get(ctx context.Context, collection, id string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mongo get %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *mongoStore) Query(ctx context.Context, collection string, filter Filter, limit int, out any) error {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.Collection(collection).Find(ctx, toBSON(filter), opts)
	if err != nil {
		return fmt.Errorf("mongo query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("mongo decode %s: %w", collection, err)
	}
	return nil
}

func toBSON(filter Filter) bson.M {
	query := bson.M{}
	for field, value := range filter {
		if values, ok := value.([]string); ok {
			query[field] = bson.M{"$in": values}
			continue
		}
		query[field] = value
	}
	return query
}
