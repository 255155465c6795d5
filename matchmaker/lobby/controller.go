// matchmaker/lobby/controller.go
package lobby

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultGame is the game the standard controller hosts.
const DefaultGame = "StandOff2"

// DefaultMaps is the standard map pool.
var DefaultMaps = []string{"Sandstone", "Province", "Rust", "Zone 9", "Breeze", "Dune", "Hanami"}

// MatchInfo describes a lobby at the moment its match starts.
type MatchInfo struct {
	LobbyID string
	Mode    string
	Region  string
	Map     string
	Members []models.MatchMember
}

// Controller carries the game rules a lobby runs under and owns the match
// once the lobby starts.
type Controller interface {
	Game() string
	Maps() []string
	// Start launches the match and returns its id.
	Start(ctx context.Context, info MatchInfo) (string, error)
	Stop(ctx context.Context, lobbyID string) error
}

// MatchWriter persists a started match.
type MatchWriter interface {
	CreateMatch(ctx context.Context, match *models.MatchRecord) error
}

// StandardController records every started match through a MatchWriter.
type StandardController struct {
	game    string
	maps    []string
	matches MatchWriter
}

func NewStandardController(game string, maps []string, matches MatchWriter) *StandardController {
	return &StandardController{game: game, maps: slices.Clone(maps), matches: matches}
}

func (c *StandardController) Game() string   { return c.game }
func (c *StandardController) Maps() []string { return slices.Clone(c.maps) }

func (c *StandardController) Start(ctx context.Context, info MatchInfo) (string, error) {
	now := time.Now()
	match := &models.MatchRecord{
		ID:        uuid.NewString(),
		LobbyID:   info.LobbyID,
		Game:      c.game,
		Mode:      info.Mode,
		Region:    info.Region,
		Map:       info.Map,
		Members:   info.Members,
		CreatedAt: &now,
	}
	if err := c.matches.CreateMatch(ctx, match); err != nil {
		return "", fmt.Errorf("failed to record match for lobby %s: %w", info.LobbyID, err)
	}
	log.Printf("Match %s started for lobby %s on %s (%s, %s)", match.ID, info.LobbyID, info.Map, info.Mode, info.Region)
	return match.ID, nil
}

// Stop only logs; the match record outlives the lobby and is finalized by
// the moderation sweep.
func (c *StandardController) Stop(_ context.Context, lobbyID string) error {
	log.Debugf("Lobby %s released by controller", lobbyID)
	return nil
}
