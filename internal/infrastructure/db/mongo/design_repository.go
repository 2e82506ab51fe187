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

const collectionDesigns = "designs"

type DesignRepository struct {
	col *mongo.Collection
}

func NewDesignRepository(db *mongo.Database) *DesignRepository {
	return &DesignRepository{col: db.Collection(collectionDesigns)}
}

// Save inserts a new saved design. The unique index on short_id surfaces
// collisions as an error so the caller can retry with a fresh id.
func (r *DesignRepository) Save(ctx context.Context, d *domain.SavedDesign) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, d)
	return err
}

func (r *DesignRepository) FindByShortID(ctx context.Context, shortID string) (*domain.SavedDesign, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d domain.SavedDesign
	err := r.col.FindOne(ctx, bson.M{"short_id": shortID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDesignNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DesignRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.SavedDesign, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var designs []*domain.SavedDesign
	if err := cursor.All(ctx, &designs); err != nil {
		return nil, err
	}
	return designs, nil
}

// ListPublic returns the newest public designs, capped at limit.
func (r *DesignRepository) ListPublic(ctx context.Context, limit int) ([]*domain.SavedDesign, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, bson.M{"public": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var designs []*domain.SavedDesign
	if err := cursor.All(ctx, &designs); err != nil {
		return nil, err
	}
	return designs, nil
}

func (r *DesignRepository) SetPublic(ctx context.Context, shortID string, public bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"short_id": shortID},
		bson.M{"$set": bson.M{"public": public}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrDesignNotFound
	}
	return nil
}

func (r *DesignRepository) Delete(ctx context.Context, shortID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"short_id": shortID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrDesignNotFound
	}
	return nil
}

// SetVideoURL attaches a generated transformation video to a design.
func (r *DesignRepository) SetVideoURL(ctx context.Context, shortID, videoURL string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"short_id": shortID},
		bson.M{"$set": bson.M{"result.video_url": videoURL}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrDesignNotFound
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the designs collection.
func (r *DesignRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "short_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "public", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
