// shared/models/player.go
package models

import "time"

// PlayerProfile represents a player's matchmaking profile stored persistently in MongoDB.
type PlayerProfile struct {
	Name      string     `bson:"_id" json:"name"`
	Rating    float64    `bson:"rating" json:"rating"`
	Guild     string     `bson:"guild,omitempty" json:"guild,omitempty"`
	Matches   int64      `bson:"matches" json:"matches"`
	CreatedAt *time.Time `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}
