// matchmaker/search/engine.go
package search

import (
	"context"
	"fmt"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	log "github.com/sirupsen/logrus"
)

// Engine picks or spawns the lobby a search request should join.
type Engine struct {
	lobbies *lobby.Registry
}

func NewEngine(lobbies *lobby.Registry) *Engine {
	return &Engine{lobbies: lobbies}
}

// FindLobby returns the first searching lobby, in spawn order, that passes
// every required filter, preferring those that also pass the optional ones.
// When none qualifies a lobby is spawned. The returned lobby's region is the
// request's region. Only a failed spawn returns an error.
func (e *Engine) FindLobby(ctx context.Context, f *Filters) (*lobby.Lobby, error) {
	for _, l := range e.Candidates(f) {
		if l.ClaimRegion(f.Region) {
			return l, nil
		}
	}

	l, err := e.lobbies.Spawn(ctx, f.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn lobby for %s/%s search: %w", f.Region, f.Mode, err)
	}
	l.ClaimRegion(f.Region)
	log.WithFields(log.Fields{"lobby": l.ID(), "region": f.Region, "mode": f.Mode}).Debug("No lobby matched the search, spawned a new one")
	return l, nil
}

// Candidates applies the filter chain to the searching lobbies.
func (e *Engine) Candidates(f *Filters) []*lobby.Lobby {
	var candidates []*lobby.Lobby
	for _, l := range e.lobbies.List() {
		if l.Status() == lobby.StatusSearching {
			candidates = append(candidates, l)
		}
	}

	chain := f.Chain()
	for _, filter := range chain {
		if filter.Priority() != Required {
			continue
		}
		candidates = filter.Evaluate(candidates)
		if len(candidates) == 0 {
			return nil
		}
	}
	for _, filter := range chain {
		if filter.Priority() != Optional {
			continue
		}
		if narrowed := filter.Evaluate(candidates); len(narrowed) > 0 {
			candidates = narrowed
		}
	}
	return candidates
}
