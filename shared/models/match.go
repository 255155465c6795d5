// shared/models/match.go
package models

import (
	"errors"
	"math"
	"time"
)

// Match outcomes, from the point of view of one member.
const (
	OutcomeLose = 0.0
	OutcomeDraw = 0.5
	OutcomeWin  = 1.0

	// WinnerDraw is stored in MatchRecord.Winner when neither side won.
	WinnerDraw = "draw"

	// EloK scales rating changes.
	EloK = 32.0
)

// ErrMatchUndecided is returned when results are requested for a match
// that has no recorded winner.
var ErrMatchUndecided = errors.New("match has no recorded winner")

// MemberStatistic holds a member's in-match numbers as reported by the game.
type MemberStatistic struct {
	Kills   int `bson:"kills" json:"kills"`
	Deaths  int `bson:"deaths" json:"deaths"`
	Assists int `bson:"assists" json:"assists"`
}

// MatchMember is a member as seated when the match started.
type MatchMember struct {
	Name      string          `bson:"name" json:"name"`
	Side      string          `bson:"side" json:"side"` // "sideA" or "sideB"
	Rating    float64         `bson:"rating" json:"rating"`
	Statistic MemberStatistic `bson:"statistic" json:"statistic"`
}

// MemberResult is the finalized outcome for one member.
type MemberResult struct {
	Name        string  `bson:"name" json:"name"`
	Outcome     float64 `bson:"outcome" json:"outcome"`
	RatingDelta float64 `bson:"rating_delta" json:"ratingDelta"`
}

// MatchRecord is the persisted match created when a lobby starts.
type MatchRecord struct {
	ID          string         `bson:"_id" json:"id"`
	LobbyID     string         `bson:"lobby_id" json:"lobbyId"`
	Game        string         `bson:"game" json:"game"`
	Mode        string         `bson:"mode" json:"mode"`
	Region      string         `bson:"region" json:"region"`
	Map         string         `bson:"map" json:"map"`
	Members     []MatchMember  `bson:"members" json:"members"`
	Winner      string         `bson:"winner,omitempty" json:"winner,omitempty"` // set by moderators: "sideA", "sideB" or "draw"
	Results     []MemberResult `bson:"results,omitempty" json:"results,omitempty"`
	Finalized   bool           `bson:"finalized" json:"finalized"`
	CreatedAt   *time.Time     `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	FinalizedAt *time.Time     `bson:"finalized_at,omitempty" json:"finalizedAt,omitempty"`
}

// ModerationRecord flags a finished match for result finalization and lobby teardown.
// Records are created outside this service. ID is the record's _id as text: the
// hex form of an ObjectID or a string id as stored; the store decodes and
// matches both.
type ModerationRecord struct {
	ID        string     `bson:"-" json:"id"`
	MatchID   string     `bson:"match" json:"match"`
	Moderated bool       `bson:"moderated" json:"moderated"`
	CreatedAt *time.Time `bson:"created_at,omitempty" json:"createdAt,omitempty"`
}

// CalculateResults derives every member's outcome and Elo rating change from
// the recorded winner. Each member is rated against the mean rating of the
// opposing side.
func (m *MatchRecord) CalculateResults() ([]MemberResult, error) {
	if m.Winner == "" {
		return nil, ErrMatchUndecided
	}

	sum := map[string]float64{}
	count := map[string]int{}
	for _, member := range m.Members {
		sum[member.Side] += member.Rating
		count[member.Side]++
	}
	mean := func(side string) float64 {
		if count[side] == 0 {
			return 0
		}
		return sum[side] / float64(count[side])
	}

	results := make([]MemberResult, 0, len(m.Members))
	for _, member := range m.Members {
		outcome := OutcomeLose
		switch m.Winner {
		case WinnerDraw:
			outcome = OutcomeDraw
		case member.Side:
			outcome = OutcomeWin
		}

		opponents := mean(opposingSide(member.Side))
		expected := 1 / (1 + math.Pow(10, (opponents-member.Rating)/400))
		results = append(results, MemberResult{
			Name:        member.Name,
			Outcome:     outcome,
			RatingDelta: math.Round(EloK*(outcome-expected)*100) / 100,
		})
	}
	return results, nil
}

func opposingSide(side string) string {
	if side == "sideA" {
		return "sideB"
	}
	return "sideA"
}
