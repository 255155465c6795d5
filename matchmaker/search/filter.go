// Package search resolves a search request to a lobby: it narrows the live
// searching lobbies through a chain of filters and spawns a lobby when none
// qualifies.
package search

import (
	"math"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/team"
)

// Priority decides how a filter's result is applied.
type Priority int

const (
	// Required filters always narrow the candidates, possibly to none.
	Required Priority = iota
	// Optional filters narrow only when something survives them.
	Optional
)

func (p Priority) String() string {
	if p == Optional {
		return "optional"
	}
	return "required"
}

// Filter is a predicate over candidate lobbies.
type Filter interface {
	Evaluate(lobbies []*lobby.Lobby) []*lobby.Lobby
	Priority() Priority
}

type predicate struct {
	priority Priority
	keep     func(*lobby.Lobby) bool
}

func (p predicate) Priority() Priority { return p.priority }

func (p predicate) Evaluate(lobbies []*lobby.Lobby) []*lobby.Lobby {
	out := make([]*lobby.Lobby, 0, len(lobbies))
	for _, l := range lobbies {
		if p.keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// ByRegion keeps lobbies in region and lobbies no search has claimed yet.
func ByRegion(region string) Filter {
	return predicate{Required, func(l *lobby.Lobby) bool {
		r := l.Region()
		return r == "" || r == region
	}}
}

// ByMode keeps lobbies running mode.
func ByMode(mode string) Filter {
	return predicate{Required, func(l *lobby.Lobby) bool {
		return l.Mode() == mode
	}}
}

// ByRating prefers lobbies whose median player rating lies within bracket
// of rating. Empty lobbies always match.
func ByRating(rating, bracket float64) Filter {
	return predicate{Optional, func(l *lobby.Lobby) bool {
		if l.PlayersCount() == 0 {
			return true
		}
		return math.Abs(l.MedianRating()-rating) <= bracket
	}}
}

// ByTeam keeps lobbies with room for the whole team on one side.
func ByTeam(t *team.Team) Filter {
	return predicate{Required, func(l *lobby.Lobby) bool {
		return l.CanSeatGroup(t.Size(), "")
	}}
}

// ByGuild keeps lobbies that can seat the team on a side held only by its
// guild. It applies to guild-cohesive teams.
func ByGuild(t *team.Team) Filter {
	return predicate{Required, func(l *lobby.Lobby) bool {
		return l.CanSeatGroup(t.Size(), t.GuildKey())
	}}
}

// Filters is one search request: its region, its mode and the filter chain.
type Filters struct {
	Region string
	Mode   string
	Team   *team.Team
	chain  []Filter
}

// NewFilters starts a request with the region and mode filters in place.
func NewFilters(region, mode string) *Filters {
	return &Filters{
		Region: region,
		Mode:   mode,
		chain:  []Filter{ByRegion(region), ByMode(mode)},
	}
}

// Add appends filters to the chain.
func (f *Filters) Add(filters ...Filter) *Filters {
	f.chain = append(f.chain, filters...)
	return f
}

// WithTeam scopes the request to a team: the team filter always, the guild
// filter when the team is guild-cohesive.
func (f *Filters) WithTeam(t *team.Team) *Filters {
	f.Team = t
	f.Add(ByTeam(t))
	if t.IsGuild() {
		f.Add(ByGuild(t))
	}
	return f
}

// Chain returns the filters in evaluation order.
func (f *Filters) Chain() []Filter {
	out := make([]Filter, len(f.chain))
	copy(out, f.chain)
	return out
}
