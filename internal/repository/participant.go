//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *domain.Participant) error
	FindByName(ctx context.Context, name string) (*domain.Participant, error)
	List(ctx context.Context) ([]domain.Participant, error)
	TouchStatus(ctx context.Context, name string, lastStatus int64) error
	FindIdle(ctx context.Context, before int64) ([]domain.Participant, error)
	// DeleteIdle removes name only if its lastStatus is still older than before.
	DeleteIdle(ctx context.Context, name string, before int64) (bool, error)
}

type mongoParticipantRepo struct {
	col *mongo.Collection
}

func NewMongoParticipantRepo(db *mongo.Database, collection string) ParticipantRepository {
	col := db.Collection(collection)
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("name_unique"),
		},
		{
			Keys:    bson.D{{Key: "lastStatus", Value: 1}},
			Options: options.Index().SetName("last_status_idx"),
		},
	})
	return &mongoParticipantRepo{col: col}
}

func (r *mongoParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return nil
}

func (r *mongoParticipantRepo) FindByName(ctx context.Context, name string) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var p domain.Participant
	err := r.col.FindOne(ctx, bson.M{"name": name}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return &p, nil
}

func (r *mongoParticipantRepo) List(ctx context.Context) ([]domain.Participant, error) {
	return r.find(ctx, bson.M{})
}

func (r *mongoParticipantRepo) TouchStatus(ctx context.Context, name string, lastStatus int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"name": name}, bson.M{"$set": bson.M{"lastStatus": lastStatus}})
	if err != nil {
		return fmt.Errorf("update participant status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoParticipantRepo) FindIdle(ctx context.Context, before int64) ([]domain.Participant, error) {
	return r.find(ctx, bson.M{"lastStatus": bson.M{"$lt": before}})
}

func (r *mongoParticipantRepo) DeleteIdle(ctx context.Context, name string, before int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"name": name, "lastStatus": bson.M{"$lt": before}})
	if err != nil {
		return false, fmt.Errorf("delete participant: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *mongoParticipantRepo) find(ctx context.Context, filter bson.M) ([]domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.Participant{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return out, nil
}
