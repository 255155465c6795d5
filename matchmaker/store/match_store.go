// matchmaker/store/match_store.go
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
)

// ErrMatchNotFound is returned when a match id has no stored record.
var ErrMatchNotFound = fmt.Errorf("match %w", apperr.ErrNotFound)

// MatchStore persists the matches started lobbies hand off.
type MatchStore struct {
	collection *mongo.Collection
}

func NewMatchStore(collection *mongo.Collection) *MatchStore {
	return &MatchStore{collection: collection}
}

// CreateMatch inserts a new match record.
func (ms *MatchStore) CreateMatch(ctx context.Context, match *models.MatchRecord) error {
	if _, err := ms.collection.InsertOne(ctx, match); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("match %s already exists: %w", match.ID, apperr.ErrConflict)
		}
		return fmt.Errorf("failed to create match %s: %w", match.ID, err)
	}
	return nil
}

// GetMatch retrieves a match by id.
func (ms *MatchStore) GetMatch(ctx context.Context, id string) (*models.MatchRecord, error) {
	var match models.MatchRecord
	if err := ms.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&match); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
		}
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return &match, nil
}

// FinalizeResults stores results on a match that is not finalized yet. It
// reports whether this call did the finalizing.
func (ms *MatchStore) FinalizeResults(ctx context.Context, id string, results []models.MemberResult) (bool, error) {
	now := time.Now()
	filter := bson.M{"_id": id, "finalized": false}
	update := bson.M{"$set": bson.M{
		"results":      results,
		"finalized":    true,
		"finalized_at": &now,
	}}
	res, err := ms.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to finalize match %s: %w", id, err)
	}
	return res.ModifiedCount > 0, nil
}
