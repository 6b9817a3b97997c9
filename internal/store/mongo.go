package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SamuelRobart/church-chat-service/internal/model"
)

// MongoStore persists history in a single collection so scrollback survives
// restarts. Sequence numbers are issued from an in-process counter seeded
// with the highest stored seq; the hub is the only writer, so the counter
// cannot race with another instance unless the redis bridge is in use, in
// which case history writes stay single-instance.
type MongoStore struct {
	coll    *mongo.Collection
	mu      sync.Mutex
	nextSeq int64
}

func NewMongoStore(ctx context.Context, coll *mongo.Collection) (*MongoStore, error) {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("seq_idx"),
	}
	if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	s := &MongoStore{coll: coll, nextSeq: 1}

	var last model.ChatMessage
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	err := coll.FindOne(ctx, bson.M{}, opts).Decode(&last)
	switch err {
	case nil:
		s.nextSeq = last.Seq + 1
	case mongo.ErrNoDocuments:
	default:
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) Append(ctx context.Context, m *model.ChatMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Seq = s.nextSeq
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return 0, err
	}
	s.nextSeq++
	return m.Seq, nil
}

func (s *MongoStore) All(ctx context.Context) ([]model.ChatMessage, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoStore) Since(ctx context.Context, seq int64) ([]model.ChatMessage, error) {
	return s.find(ctx, bson.M{"seq": bson.M{"$gt": seq}})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]model.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.ChatMessage
	for cur.Next(ctx) {
		var m model.ChatMessage
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, cur.Err()
}
