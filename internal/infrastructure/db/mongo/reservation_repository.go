package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
)

const collectionReservations = "credit_reservations"

// ReservationRepository persists reservation records. Status transitions use
// conditional updates filtered on the pending status, so a reservation can
// reach exactly one terminal state no matter how calls race.
type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	return &ReservationRepository{col: db.Collection(collectionReservations)}
}

func (r *ReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, reservation)
	return err
}

func (r *ReservationRepository) Find(ctx context.Context, id string) (*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var reservation domain.Reservation
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// MarkCompleted transitions pending → completed. Returns false when the
// reservation was not pending (already terminal or missing).
func (r *ReservationRepository) MarkCompleted(ctx context.Context, id, resultID string) (bool, error) {
	return r.transition(ctx, id, bson.M{
		"status":     string(domain.ReservationCompleted),
		"result_id":  resultID,
		"updated_at": time.Now().UTC(),
	})
}

// MarkRefunded transitions pending → refunded, storing the reason for audit.
func (r *ReservationRepository) MarkRefunded(ctx context.Context, id, reason string) (bool, error) {
	return r.transition(ctx, id, bson.M{
		"status":     string(domain.ReservationRefunded),
		"reason":     reason,
		"updated_at": time.Now().UTC(),
	})
}

func (r *ReservationRepository) transition(ctx context.Context, id string, set bson.M) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.ReservationPending)},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *ReservationRepository) ListByPrincipal(ctx context.Context, principalKey string, limit int) ([]*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, bson.M{"principal": principalKey}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reservations []*domain.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// EnsureIndexes creates necessary indexes on the reservations collection.
func (r *ReservationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "principal", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
