// Package store holds the MongoDB stores the matchmaker reads and writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrPlayerNotFound is returned when no profile exists for a name.
var ErrPlayerNotFound = fmt.Errorf("player %w", apperr.ErrNotFound)

// PlayerStore represents the MongoDB data store for player profiles.
type PlayerStore struct {
	collection *mongo.Collection
}

// NewPlayerStore creates a new PlayerStore instance.
func NewPlayerStore(collection *mongo.Collection) *PlayerStore {
	return &PlayerStore{collection: collection}
}

// GetProfile retrieves a player profile by name.
func (ps *PlayerStore) GetProfile(ctx context.Context, name string) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	err := ps.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
		}
		return nil, fmt.Errorf("failed to get profile for %s: %w", name, err)
	}
	return &profile, nil
}

// EnsureProfile returns the stored profile, creating one with defaultRating
// when the player has none.
func (ps *PlayerStore) EnsureProfile(ctx context.Context, name string, defaultRating float64) (*models.PlayerProfile, error) {
	now := time.Now()
	update := bson.M{"$setOnInsert": bson.M{
		"rating":     defaultRating,
		"matches":    int64(0),
		"created_at": &now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var profile models.PlayerProfile
	if err := ps.collection.FindOneAndUpdate(ctx, bson.M{"_id": name}, update, opts).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to ensure profile for %s: %w", name, err)
	}
	return &profile, nil
}

// ApplyResult adds delta to the player's rating and counts one more match.
func (ps *PlayerStore) ApplyResult(ctx context.Context, name string, delta float64) error {
	now := time.Now()
	update := bson.M{
		"$inc": bson.M{"rating": delta, "matches": int64(1)},
		"$set": bson.M{"updated_at": &now},
	}
	res, err := ps.collection.UpdateOne(ctx, bson.M{"_id": name}, update)
	if err != nil {
		return fmt.Errorf("failed to apply result for player %s: %w", name, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return nil
}
