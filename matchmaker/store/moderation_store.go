// matchmaker/store/moderation_store.go
package store

import (
	"context"
	"fmt"

	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// moderationDocument carries the raw _id, which the moderation tooling may
// write as an ObjectID or as a string.
type moderationDocument struct {
	RawID                   any `bson:"_id"`
	models.ModerationRecord `bson:",inline"`
}

func recordID(raw any) (string, error) {
	switch id := raw.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	}
	return "", fmt.Errorf("unsupported _id type %T", raw)
}

// recordIDFilter matches id as a string and, when it is ObjectID hex, as an
// ObjectID.
func recordIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

// ModerationStore reads the moderation records written by the moderation
// tooling.
type ModerationStore struct {
	collection *mongo.Collection
}

func NewModerationStore(collection *mongo.Collection) *ModerationStore {
	return &ModerationStore{collection: collection}
}

// ListModerated returns every record flagged moderated. Records that fail to
// decode are logged and skipped.
func (ms *ModerationStore) ListModerated(ctx context.Context) ([]models.ModerationRecord, error) {
	cursor, err := ms.collection.Find(ctx, bson.M{"moderated": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query moderated matches: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.ModerationRecord
	for cursor.Next(ctx) {
		var doc moderationDocument
		if err := cursor.Decode(&doc); err != nil {
			log.Warnf("Error decoding moderation record: %v", err)
			continue
		}
		id, err := recordID(doc.RawID)
		if err != nil {
			log.Warnf("Skipping moderation record for match %s: %v", doc.MatchID, err)
			continue
		}
		doc.ModerationRecord.ID = id
		records = append(records, doc.ModerationRecord)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error listing moderated matches: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a moderation record by the ID ListModerated reported.
func (ms *ModerationStore) DeleteRecord(ctx context.Context, id string) error {
	if _, err := ms.collection.DeleteOne(ctx, recordIDFilter(id)); err != nil {
		return fmt.Errorf("failed to delete moderation record %s: %w", id, err)
	}
	return nil
}
