// matchmaker/lobby/view.go
package lobby

import "github.com/Ftotnem/GO-MATCHMAKER/matchmaker/roster"

// MemberView is one seat as shown to clients.
type MemberView struct {
	Name   string      `json:"name"`
	Role   roster.Role `json:"role"`
	Ready  bool        `json:"ready"`
	Rating float64     `json:"rating"`
	Guild  string      `json:"guild,omitempty"`
}

// View is a consistent snapshot of a lobby.
type View struct {
	ID         string         `json:"id"`
	Status     Status         `json:"status"`
	Region     string         `json:"region,omitempty"`
	Mode       string         `json:"mode"`
	Players    []MemberView   `json:"players"`
	Spectators []MemberView   `json:"spectators"`
	Votes      map[string]int `json:"votes"`
	Captains   Captains       `json:"captains"`
	Map        string         `json:"map,omitempty"`
	ChatID     string         `json:"chatId"`
}

// View takes a snapshot under the lobby lock.
func (l *Lobby) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := View{
		ID:         l.id,
		Status:     l.status,
		Region:     l.region,
		Mode:       l.mode,
		Players:    memberViews(l.members.Players()),
		Spectators: memberViews(l.members.Spectators()),
		Votes:      l.tally(),
		Captains:   Captains{SideA: l.captains[roster.SideA], SideB: l.captains[roster.SideB]},
		Map:        l.chosenMap,
		ChatID:     l.room.ID(),
	}
	return v
}

func memberViews(entries []roster.Entry) []MemberView {
	out := make([]MemberView, 0, len(entries))
	for _, e := range entries {
		out = append(out, MemberView{
			Name:   e.Name(),
			Role:   e.Role,
			Ready:  e.Ready,
			Rating: e.Member.Rating(),
			Guild:  e.Member.Guild(),
		})
	}
	return out
}
