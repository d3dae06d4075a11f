//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/domain"
	"github.com/samber/lo/mutable"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepository interface {
	Insert(ctx context.Context, m *domain.Message) error
	// ListVisible returns the messages user may read in insertion order,
	// only the last limit of them when limit > 0.
	ListVisible(ctx context.Context, user string, limit int) ([]domain.Message, error)
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	Update(ctx context.Context, id string, in domain.MessageInput) error
	Delete(ctx context.Context, id string) error
}

type mongoMessageRepo struct {
	col *mongo.Collection
}

func NewMongoMessageRepo(db *mongo.Database, collection string) MessageRepository {
	return &mongoMessageRepo{col: db.Collection(collection)}
}

func (r *mongoMessageRepo) Insert(ctx context.Context, m *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, m)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return nil
}

func (r *mongoMessageRepo) ListVisible(ctx context.Context, user string, limit int) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, visibleTo(user), findVisibleOptions(limit))
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if limit > 0 {
		// fetched newest first
		mutable.Reverse(out)
	}
	return out, nil
}

// visibleTo mirrors domain.Message.VisibleTo as a query filter.
func visibleTo(user string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"from": user},
		bson.M{"to": user},
		bson.M{"to": domain.Everyone},
		bson.M{"type": domain.TypeMessage},
	}}
}

func findVisibleOptions(limit int) *options.FindOptions {
	if limit <= 0 {
		return options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	return options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(limit))
}

func (r *mongoMessageRepo) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var m domain.Message
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &m, nil
}

func (r *mongoMessageRepo) Update(ctx context.Context, id string, in domain.MessageInput) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"to":   in.To,
		"text": in.Text,
		"type": in.Type,
	}})
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoMessageRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
