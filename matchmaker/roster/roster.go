// Package roster implements the bounded member container shared by lobbies
// and teams: members tracked by role with per-role counters and capacity
// enforcement.
//
// A List is not safe for concurrent use. Its owner serialises access.
package roster

import (
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
)

// Role is the position a member occupies in a roster.
type Role string

const (
	Spectator Role = "spectator"
	Neutral   Role = "neutral"
	SideA     Role = "sideA"
	SideB     Role = "sideB"
)

// ParseRole resolves a caller supplied role label. Older clients send
// "command1"/"command2" and plural forms; they map onto the same roles.
func ParseRole(label string) (Role, error) {
	switch label {
	case "spectator", "spectators":
		return Spectator, nil
	case "neutral", "neutrals":
		return Neutral, nil
	case "sideA", "command1":
		return SideA, nil
	case "sideB", "command2":
		return SideB, nil
	case "":
		return "", apperr.Invalid("role", apperr.CauseRequired)
	}
	return "", apperr.Invalid("role", apperr.CauseUnsupported)
}

// IsPlayer reports whether the role takes part in the match.
func (r Role) IsPlayer() bool {
	return r == Neutral || r == SideA || r == SideB
}

// Entry is a member's seat in a roster. Role and Ready belong to the roster;
// everything else is read from the live member.
type Entry struct {
	Member *models.Member
	Role   Role
	Ready  bool
}

// Name returns the seated member's name.
func (e Entry) Name() string {
	return e.Member.Name
}

// Capacity bounds a roster. Neutral members count against Players only.
type Capacity struct {
	Players    int
	Side       int
	Spectators int
}

// DefaultCapacity is the lobby roster: two sides of five plus five spectators.
var DefaultCapacity = Capacity{Players: 10, Side: 5, Spectators: 5}

type counters struct {
	sideA      int
	sideB      int
	neutral    int
	spectators int
}

func (c counters) players() int {
	return c.sideA + c.sideB + c.neutral
}

func (c *counters) add(role Role, delta int) {
	switch role {
	case SideA:
		c.sideA += delta
	case SideB:
		c.sideB += delta
	case Neutral:
		c.neutral += delta
	case Spectator:
		c.spectators += delta
	}
}

func (c counters) fits(capacity Capacity) bool {
	return c.sideA <= capacity.Side &&
		c.sideB <= capacity.Side &&
		c.players() <= capacity.Players &&
		c.spectators <= capacity.Spectators &&
		c.sideA >= 0 && c.sideB >= 0 && c.neutral >= 0 && c.spectators >= 0
}

// List is an ordered, bounded collection of entries.
type List struct {
	capacity Capacity
	entries  []*Entry
	counts   counters
}

// New returns an empty roster bounded by capacity.
func New(capacity Capacity) *List {
	return &List{capacity: capacity}
}

// Add admits the whole batch or nothing. Every entry is checked against the
// counters as they would stand after the entries before it, and names must
// be unique across the roster and the batch.
func (l *List) Add(entries ...Entry) bool {
	if len(entries) == 0 {
		return false
	}
	planned := l.counts
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Member == nil || !validRole(e.Role) {
			return false
		}
		if _, dup := seen[e.Member.Name]; dup || l.Has(e.Member.Name) {
			return false
		}
		planned.add(e.Role, 1)
		if !planned.fits(l.capacity) {
			return false
		}
		seen[e.Member.Name] = struct{}{}
	}

	for _, e := range entries {
		entry := e
		l.entries = append(l.entries, &entry)
	}
	l.counts = planned
	return true
}

// Delete removes the named members. Counters drop only for members that were
// present; the result is true when every name was removed.
func (l *List) Delete(names ...string) bool {
	all := true
	for _, name := range names {
		i := l.index(name)
		if i < 0 {
			all = false
			continue
		}
		l.counts.add(l.entries[i].Role, -1)
		l.entries = append(l.entries[:i], l.entries[i+1:]...)
	}
	return all && len(names) > 0
}

// ChangeRole moves a member to role. Moving to the current role succeeds
// without touching the counters; a full destination fails.
func (l *List) ChangeRole(name string, role Role) bool {
	i := l.index(name)
	if i < 0 || !validRole(role) {
		return false
	}
	entry := l.entries[i]
	if entry.Role == role {
		return true
	}

	planned := l.counts
	planned.add(entry.Role, -1)
	planned.add(role, 1)
	if !planned.fits(l.capacity) {
		return false
	}
	l.counts = planned
	entry.Role = role
	return true
}

// ChangeReady sets a member's ready flag.
func (l *List) ChangeReady(name string, ready bool) bool {
	i := l.index(name)
	if i < 0 {
		return false
	}
	l.entries[i].Ready = ready
	return true
}

// Get returns a copy of the named member's entry.
func (l *List) Get(name string) (Entry, bool) {
	i := l.index(name)
	if i < 0 {
		return Entry{}, false
	}
	return *l.entries[i], true
}

func (l *List) Has(name string) bool {
	return l.index(name) >= 0
}

// HasSpace reports whether n more members fit in role.
func (l *List) HasSpace(role Role, n int) bool {
	if !validRole(role) || n < 0 {
		return false
	}
	planned := l.counts
	planned.add(role, n)
	return planned.fits(l.capacity)
}

// Full reports whether every player slot is taken.
func (l *List) Full() bool {
	return l.counts.players() >= l.capacity.Players
}

func (l *List) Capacity() Capacity { return l.capacity }
func (l *List) Count() int         { return len(l.entries) }
func (l *List) PlayersCount() int  { return l.counts.players() }
func (l *List) SpectatorsCount() int {
	return l.counts.spectators
}
func (l *List) SideACount() int   { return l.counts.sideA }
func (l *List) SideBCount() int   { return l.counts.sideB }
func (l *List) NeutralCount() int { return l.counts.neutral }

// CountOf returns the number of members in role.
func (l *List) CountOf(role Role) int {
	switch role {
	case SideA:
		return l.counts.sideA
	case SideB:
		return l.counts.sideB
	case Neutral:
		return l.counts.neutral
	case Spectator:
		return l.counts.spectators
	}
	return 0
}

// Entries returns a snapshot of all entries in admission order.
func (l *List) Entries() []Entry {
	return l.filter(func(Entry) bool { return true })
}

// Players returns every non-spectator entry.
func (l *List) Players() []Entry {
	return l.filter(func(e Entry) bool { return e.Role.IsPlayer() })
}

// Spectators returns every spectator entry.
func (l *List) Spectators() []Entry {
	return l.filter(func(e Entry) bool { return e.Role == Spectator })
}

// Side returns the entries seated in role.
func (l *List) Side(role Role) []Entry {
	return l.filter(func(e Entry) bool { return e.Role == role })
}

// AllPlayersReady reports whether there is at least one player and every
// player has raised the ready flag.
func (l *List) AllPlayersReady() bool {
	players := 0
	for _, e := range l.entries {
		if !e.Role.IsPlayer() {
			continue
		}
		players++
		if !e.Ready {
			return false
		}
	}
	return players > 0
}

// Names returns the names of all members in admission order.
func (l *List) Names() []string {
	names := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		names = append(names, e.Member.Name)
	}
	return names
}

func (l *List) filter(keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if keep(*e) {
			out = append(out, *e)
		}
	}
	return out
}

func (l *List) index(name string) int {
	for i, e := range l.entries {
		if e.Member.Name == name {
			return i
		}
	}
	return -1
}

func validRole(role Role) bool {
	return role == Spectator || role.IsPlayer()
}
