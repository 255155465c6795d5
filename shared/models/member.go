// shared/models/member.go
package models

import "sync"

// Member is the live, process-wide view of a connected player. Exactly one
// instance exists per name; lobbies and teams hold pointers to it and layer
// their own role/ready state on top.
type Member struct {
	Name string

	mu      sync.RWMutex
	rating  float64
	guild   string
	teamID  int64
	lobbyID string
}

// NewMember creates a live member from a stored profile.
func NewMember(name string, rating float64, guild string) *Member {
	return &Member{Name: name, rating: rating, guild: guild}
}

func (m *Member) Rating() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rating
}

func (m *Member) SetRating(rating float64) {
	m.mu.Lock()
	m.rating = rating
	m.mu.Unlock()
}

// AdjustRating adds delta to the rating.
func (m *Member) AdjustRating(delta float64) {
	m.mu.Lock()
	m.rating += delta
	m.mu.Unlock()
}

// Guild returns the member's guild tag, empty when unaffiliated.
func (m *Member) Guild() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.guild
}

func (m *Member) SetGuild(guild string) {
	m.mu.Lock()
	m.guild = guild
	m.mu.Unlock()
}

// TeamID returns the id of the member's team, 0 when the member has none.
func (m *Member) TeamID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.teamID
}

// BindTeam sets the team reference only if the member has none or already
// belongs to teamID.
func (m *Member) BindTeam(teamID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.teamID != 0 && m.teamID != teamID {
		return false
	}
	m.teamID = teamID
	return true
}

// ReleaseTeam clears the team reference if it still points at teamID.
func (m *Member) ReleaseTeam(teamID int64) {
	m.mu.Lock()
	if m.teamID == teamID {
		m.teamID = 0
	}
	m.mu.Unlock()
}

// LobbyID returns the id of the lobby the member is seated in, empty if none.
func (m *Member) LobbyID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lobbyID
}

// BindLobby sets the lobby reference only if the member is not seated
// elsewhere.
func (m *Member) BindLobby(lobbyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lobbyID != "" && m.lobbyID != lobbyID {
		return false
	}
	m.lobbyID = lobbyID
	return true
}

// ReleaseLobby clears the lobby reference if it still points at lobbyID.
func (m *Member) ReleaseLobby(lobbyID string) {
	m.mu.Lock()
	if m.lobbyID == lobbyID {
		m.lobbyID = ""
	}
	m.mu.Unlock()
}
