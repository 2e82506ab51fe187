package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionBalances = "credit_balances"

// BalanceRepository is the durable credit counter for authenticated
// principals. The decrement is a single conditional update, which is what
// makes two concurrent reservations against a balance of 1 mutually exclusive.
type BalanceRepository struct {
	col *mongo.Collection
}

func NewBalanceRepository(db *mongo.Database) *BalanceRepository {
	return &BalanceRepository{col: db.Collection(collectionBalances)}
}

type balanceDoc struct {
	ID      string `bson:"_id"`
	Credits int    `bson:"credits"`
}

// DecrementIfAtLeast atomically deducts amount when the stored balance covers
// it. Returns false when it does not (including when no balance document
// exists yet).
func (r *BalanceRepository) DecrementIfAtLeast(ctx context.Context, key string, amount int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": key, "credits": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"credits": -amount}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// Increment adds amount (creating the document if needed) and returns the new
// balance.
func (r *BalanceRepository) Increment(ctx context.Context, key string, amount int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc balanceDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"credits": amount}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Credits, nil
}

// Get returns the stored balance, zero when the principal has none yet.
func (r *BalanceRepository) Get(ctx context.Context, key string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc balanceDoc
	err := r.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return doc.Credits, nil
}
