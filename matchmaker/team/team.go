// Package team implements player groups that queue together: a bounded
// roster with a captain, a guild-cohesion key and a lazily spawned chat room.
package team

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/roster"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	log "github.com/sirupsen/logrus"
)

// MaxSize is the largest team that can queue together.
const MaxSize = 5

var capacity = roster.Capacity{Players: MaxSize}

// Team is safe for concurrent use.
type Team struct {
	id        int64
	chats     chat.Service
	namespace string

	mu      sync.Mutex
	members *roster.List
	captain string
	guild   string
	room    chat.Handle
}

func newTeam(id int64, chats chat.Service, namespace string) *Team {
	return &Team{
		id:        id,
		chats:     chats,
		namespace: namespace,
		members:   roster.New(capacity),
	}
}

func (t *Team) ID() int64 { return t.id }

// Join admits member. It fails when the team is full, the member is already
// in it or the member belongs to another team.
func (t *Team) Join(ctx context.Context, member *models.Member) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if member == nil || t.members.Has(member.Name) || !t.members.HasSpace(roster.Neutral, 1) {
		return false
	}
	if !member.BindTeam(t.id) {
		return false
	}
	if !t.members.Add(roster.Entry{Member: member, Role: roster.Neutral}) {
		member.ReleaseTeam(t.id)
		return false
	}

	if t.members.Count() == 1 {
		t.guild = member.Guild()
	} else if t.guild != member.Guild() {
		t.guild = ""
	}
	if t.captain == "" {
		t.captain = member.Name
	}

	if t.room == nil {
		t.spawnChat(ctx)
	} else if err := t.room.Join(ctx, member.Name); err != nil {
		log.Warnf("Team %d: failed to add %s to chat: %v", t.id, member.Name, err)
	}
	return true
}

// spawnChat creates the team room and back-fills the current members.
// Callers hold t.mu.
func (t *Team) spawnChat(ctx context.Context) {
	room, err := t.chats.Spawn(ctx, chat.KindTeam, chat.Room{
		Namespace: t.namespace,
		Name:      fmt.Sprintf("team-%d", t.id),
	})
	if err != nil {
		log.Warnf("Team %d: failed to spawn chat: %v", t.id, err)
		return
	}
	t.room = room
	for _, name := range t.members.Names() {
		if err := room.Join(ctx, name); err != nil {
			log.Warnf("Team %d: failed to add %s to chat: %v", t.id, name, err)
		}
	}
}

// Leave removes the named member and hands the captaincy to the first
// remaining member when the captain leaves.
func (t *Team) Leave(ctx context.Context, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.members.Get(name)
	if !ok || !t.members.Delete(name) {
		return false
	}
	entry.Member.ReleaseTeam(t.id)

	remaining := t.members.Entries()
	t.guild = cohesionKey(remaining)
	if t.captain == name {
		t.captain = ""
		if len(remaining) > 0 {
			t.captain = remaining[0].Name()
		}
	}

	if t.room != nil {
		if err := t.room.Leave(ctx, name); err != nil {
			log.Warnf("Team %d: failed to remove %s from chat: %v", t.id, name, err)
		}
	}
	return true
}

// cohesionKey is the guild shared by every entry, or empty.
func cohesionKey(entries []roster.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	guild := entries[0].Member.Guild()
	for _, e := range entries[1:] {
		if e.Member.Guild() != guild {
			return ""
		}
	}
	return guild
}

func (t *Team) IsCaptain(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return name != "" && t.captain == name
}

func (t *Team) Captain() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.captain
}

// Check reports whether name is a member of the team.
func (t *Team) Check(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.members.Has(name)
}

// HasSpaceFor reports whether n more members fit.
func (t *Team) HasSpaceFor(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.members.HasSpace(roster.Neutral, n)
}

// GuildKey returns the guild every member shares; empty once tags diverge.
func (t *Team) GuildKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.guild
}

func (t *Team) IsGuild() bool { return t.GuildKey() != "" }

func (t *Team) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.members.Count()
}

// Members returns the live members in join order.
func (t *Team) Members() []*models.Member {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := t.members.Entries()
	out := make([]*models.Member, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Member)
	}
	return out
}

// Chat returns the team room, nil until the first join.
func (t *Team) Chat() chat.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.room
}

// MedianRating is the median of the members' current ratings, 0 for an
// empty team.
func (t *Team) MedianRating() float64 {
	return Median(ratings(t.Members()))
}

func ratings(members []*models.Member) []float64 {
	out := make([]float64, 0, len(members))
	for _, m := range members {
		out = append(out, m.Rating())
	}
	return out
}

// Median averages the two middle values for an even count.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// View is the serialisable state of a team.
type View struct {
	ID           int64    `json:"id"`
	Captain      string   `json:"captain"`
	Members      []string `json:"members"`
	Guild        string   `json:"guild,omitempty"`
	MedianRating float64  `json:"medianRating"`
	ChatID       string   `json:"chatId,omitempty"`
}

func (t *Team) View() View {
	t.mu.Lock()
	v := View{
		ID:      t.id,
		Captain: t.captain,
		Members: t.members.Names(),
		Guild:   t.guild,
	}
	if t.room != nil {
		v.ChatID = t.room.ID()
	}
	entries := t.members.Entries()
	t.mu.Unlock()

	values := make([]float64, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.Member.Rating())
	}
	v.MedianRating = Median(values)
	return v
}
