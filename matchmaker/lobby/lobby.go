// Package lobby implements the matchmaking session state machine and the
// registry of live lobbies.
//
// A lobby moves searching -> filled -> voting -> preparing -> started. Each
// status advances inside the call that satisfies its condition: the join that
// fills the roster, the last ready flag, the last vote. Stop removes the
// lobby from any status.
package lobby

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/roster"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	log "github.com/sirupsen/logrus"
)

// Status is a lobby's lifecycle position.
type Status string

const (
	StatusSearching Status = "searching"
	StatusFilled    Status = "filled"
	StatusVoting    Status = "voting"
	StatusPreparing Status = "preparing"
	StatusStarted   Status = "started"
	StatusStopped   Status = "stopped"
)

// ErrNotReady is returned by Start when the lobby cannot start yet.
var ErrNotReady = fmt.Errorf("lobby is not ready to start: %w", apperr.ErrConflict)

// Captains names the captain of each side, empty when a side has nobody.
type Captains struct {
	SideA string `json:"sideA"`
	SideB string `json:"sideB"`
}

// Lobby is safe for concurrent use. Every mutation holds the lobby's lock
// for its whole check-and-commit.
type Lobby struct {
	id        string
	mode      string
	registry  *Registry
	room      chat.Handle
	createdAt time.Time

	mu          sync.Mutex
	status      Status
	statusSince time.Time
	region      string
	members     *roster.List
	captains    map[roster.Role]string
	votes       map[string]string
	proposed    []string
	chosenMap   string
	matchID     string
}

func (l *Lobby) ID() string           { return l.id }
func (l *Lobby) Mode() string         { return l.mode }
func (l *Lobby) CreatedAt() time.Time { return l.createdAt }

// Chat returns the lobby room.
func (l *Lobby) Chat() chat.Handle { return l.room }

func (l *Lobby) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// StatusSince returns when the lobby entered its current status.
func (l *Lobby) StatusSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusSince
}

func (l *Lobby) setStatus(status Status) {
	log.WithFields(log.Fields{"lobby": l.id, "from": l.status, "to": status}).Debug("Lobby status changed")
	l.status = status
	l.statusSince = time.Now()
}

// Region returns the lobby's region, empty until the first search claims it.
func (l *Lobby) Region() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.region
}

// ClaimRegion stamps region onto a lobby that has none. It reports whether
// the lobby's region now equals region.
func (l *Lobby) ClaimRegion(region string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.region == "" {
		l.region = region
	}
	return l.region == region
}

// MatchID returns the id of the started match, empty before Start.
func (l *Lobby) MatchID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.matchID
}

// Join seats a solo player on the side with fewer players.
func (l *Lobby) Join(ctx context.Context, member *models.Member) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusSearching {
		return false
	}
	side := l.pickSide(1, "")
	if side == "" {
		return false
	}
	return l.seat(ctx, side, member)
}

// JoinAs seats member in role. Players may only join while searching;
// spectators may join until the lobby stops.
func (l *Lobby) JoinAs(ctx context.Context, member *models.Member, role roster.Role) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.status == StatusStopped:
		return false
	case role.IsPlayer() && l.status != StatusSearching:
		return false
	}
	return l.seat(ctx, role, member)
}

// JoinGroup seats every member on one side or none of them. A non-empty
// guild restricts the choice to sides whose members all carry that guild.
func (l *Lobby) JoinGroup(ctx context.Context, members []*models.Member, guild string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusSearching || len(members) == 0 {
		return false
	}
	side := l.pickSide(len(members), guild)
	if side == "" {
		return false
	}
	return l.seat(ctx, side, members...)
}

// CanSeatGroup reports whether a group of size would currently fit on one
// side, homogeneous in guild when guild is set.
func (l *Lobby) CanSeatGroup(size int, guild string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status == StatusSearching && l.pickSide(size, guild) != ""
}

// pickSide prefers the side with fewer players.
func (l *Lobby) pickSide(size int, guild string) roster.Role {
	order := []roster.Role{roster.SideA, roster.SideB}
	if l.members.SideBCount() < l.members.SideACount() {
		order = []roster.Role{roster.SideB, roster.SideA}
	}
	for _, side := range order {
		if !l.members.HasSpace(side, size) {
			continue
		}
		if guild != "" && !l.sideOfGuild(side, guild) {
			continue
		}
		return side
	}
	return ""
}

func (l *Lobby) sideOfGuild(side roster.Role, guild string) bool {
	for _, e := range l.members.Side(side) {
		if e.Member.Guild() != guild {
			return false
		}
	}
	return true
}

// seat binds and admits members in role. Callers hold l.mu.
func (l *Lobby) seat(ctx context.Context, role roster.Role, members ...*models.Member) bool {
	for _, m := range members {
		if m == nil || l.members.Has(m.Name) {
			return false
		}
	}
	bound := 0
	for _, m := range members {
		if !m.BindLobby(l.id) {
			break
		}
		bound++
	}
	release := func() {
		for _, m := range members[:bound] {
			m.ReleaseLobby(l.id)
		}
	}
	if bound < len(members) {
		release()
		return false
	}

	entries := make([]roster.Entry, 0, len(members))
	for _, m := range members {
		entries = append(entries, roster.Entry{Member: m, Role: role})
	}
	if !l.members.Add(entries...) {
		release()
		return false
	}

	if isSide(role) && l.captains[role] == "" {
		l.captains[role] = members[0].Name
	}
	l.registry.adjustCounter(int64(len(members)))
	for _, m := range members {
		if err := l.room.Join(ctx, m.Name); err != nil {
			log.Warnf("Lobby %s: failed to add %s to chat: %v", l.id, m.Name, err)
		}
	}
	l.advance()
	return true
}

// Leave removes a member. Players may only leave while searching; spectators
// may leave at any time. The last member out stops the lobby.
func (l *Lobby) Leave(ctx context.Context, name string) bool {
	l.mu.Lock()
	entry, ok := l.members.Get(name)
	if !ok || l.status == StatusStopped || (entry.Role.IsPlayer() && l.status != StatusSearching) {
		l.mu.Unlock()
		return false
	}
	l.members.Delete(name)
	delete(l.votes, name)
	if l.captains[entry.Role] == name {
		l.reassignCaptain(entry.Role)
	}
	entry.Member.ReleaseLobby(l.id)
	l.registry.adjustCounter(-1)
	if err := l.room.Leave(ctx, name); err != nil {
		log.Warnf("Lobby %s: failed to remove %s from chat: %v", l.id, name, err)
	}

	empty := l.members.Count() == 0
	if empty {
		l.setStatus(StatusStopped)
	}
	l.mu.Unlock()

	if empty {
		l.teardown(ctx, nil)
	}
	return true
}

// Move changes a member's role. Moves are allowed while searching or
// filled; a filled lobby never gives up a player seat.
func (l *Lobby) Move(ctx context.Context, name string, role roster.Role) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusSearching && l.status != StatusFilled {
		return false
	}
	entry, ok := l.members.Get(name)
	if !ok {
		return false
	}
	if l.status == StatusFilled && entry.Role.IsPlayer() && !role.IsPlayer() {
		return false
	}
	if !l.members.ChangeRole(name, role) {
		return false
	}
	if entry.Role == role {
		return true
	}

	if l.captains[entry.Role] == name {
		l.reassignCaptain(entry.Role)
	}
	if isSide(role) && l.captains[role] == "" {
		l.captains[role] = name
	}
	l.advance()
	return true
}

// reassignCaptain hands a side's captaincy to its first remaining member.
func (l *Lobby) reassignCaptain(side roster.Role) {
	delete(l.captains, side)
	if remaining := l.members.Side(side); len(remaining) > 0 && isSide(side) {
		l.captains[side] = remaining[0].Name()
	}
}

// BecomeReady raises a player's ready flag while the lobby is filled.
func (l *Lobby) BecomeReady(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusFilled {
		return false
	}
	entry, ok := l.members.Get(name)
	if !ok || !entry.Role.IsPlayer() {
		return false
	}
	l.members.ChangeReady(name, true)
	l.advance()
	return true
}

// Vote records a player's map choice while voting. A second vote replaces
// the first.
func (l *Lobby) Vote(name, mapName string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusVoting || !slices.Contains(l.registry.controller.Maps(), mapName) {
		return false
	}
	entry, ok := l.members.Get(name)
	if !ok || !entry.Role.IsPlayer() {
		return false
	}
	if !slices.Contains(l.proposed, mapName) {
		l.proposed = append(l.proposed, mapName)
	}
	l.votes[name] = mapName
	l.advance()
	return true
}

// Votes returns the tally per map. Maps without votes are omitted.
func (l *Lobby) Votes() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tally()
}

func (l *Lobby) tally() map[string]int {
	out := make(map[string]int, len(l.proposed))
	for _, m := range l.votes {
		out[m]++
	}
	return out
}

// winner is the map with most votes, ties going to the first proposed.
func (l *Lobby) winner() string {
	counts := l.tally()
	best, bestCount := "", 0
	for _, m := range l.proposed {
		if counts[m] > bestCount {
			best, bestCount = m, counts[m]
		}
	}
	return best
}

// Map returns the chosen map, empty until voting completes.
func (l *Lobby) Map() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chosenMap
}

func (l *Lobby) advance() {
	switch l.status {
	case StatusSearching:
		if l.members.Full() {
			l.setStatus(StatusFilled)
		}
	case StatusFilled:
		if l.members.AllPlayersReady() {
			l.setStatus(StatusVoting)
		}
	case StatusVoting:
		if l.allVoted() {
			l.chosenMap = l.winner()
			l.seatNeutrals()
			l.setStatus(StatusPreparing)
		}
	}
}

// seatNeutrals moves every neutral player onto the side with fewer players.
// A full roster always has room for them, so both sides end up full.
func (l *Lobby) seatNeutrals() {
	for _, e := range l.members.Side(roster.Neutral) {
		side := roster.SideA
		if l.members.SideBCount() < l.members.SideACount() {
			side = roster.SideB
		}
		if !l.members.ChangeRole(e.Name(), side) {
			continue
		}
		if l.captains[side] == "" {
			l.captains[side] = e.Name()
		}
	}
}

func (l *Lobby) allVoted() bool {
	players := l.members.Players()
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if _, ok := l.votes[p.Name()]; !ok {
			return false
		}
	}
	return true
}

// ReadyToStart reports whether the lobby is preparing with both sides full
// and a map chosen.
func (l *Lobby) ReadyToStart() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readyToStart()
}

func (l *Lobby) readyToStart() bool {
	side := l.members.Capacity().Side
	return l.status == StatusPreparing &&
		l.members.SideACount() == side &&
		l.members.SideBCount() == side &&
		l.chosenMap != ""
}

// Start hands the lobby to the controller and marks it started.
func (l *Lobby) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.readyToStart() {
		return ErrNotReady
	}

	info := MatchInfo{LobbyID: l.id, Mode: l.mode, Region: l.region, Map: l.chosenMap}
	for _, e := range l.members.Players() {
		info.Members = append(info.Members, models.MatchMember{
			Name:   e.Name(),
			Side:   string(e.Role),
			Rating: e.Member.Rating(),
		})
	}
	matchID, err := l.registry.controller.Start(ctx, info)
	if err != nil {
		return fmt.Errorf("failed to start lobby %s: %w", l.id, err)
	}
	l.matchID = matchID
	l.setStatus(StatusStarted)
	return nil
}

// Stop tears the lobby down from any status and removes it from the
// registry. It reports false when the lobby was already stopped.
func (l *Lobby) Stop(ctx context.Context) bool {
	l.mu.Lock()
	if l.status == StatusStopped {
		l.mu.Unlock()
		return false
	}
	entries := l.members.Entries()
	l.setStatus(StatusStopped)
	l.mu.Unlock()

	l.teardown(ctx, entries)
	return true
}

// StopIfEmpty stops the lobby when nobody is seated in it. It is used to
// reap a lobby whose first join failed.
func (l *Lobby) StopIfEmpty(ctx context.Context) bool {
	l.mu.Lock()
	if l.status == StatusStopped || l.members.Count() > 0 {
		l.mu.Unlock()
		return false
	}
	l.setStatus(StatusStopped)
	l.mu.Unlock()

	l.teardown(ctx, nil)
	return true
}

// teardown runs once, after the status is set to stopped.
func (l *Lobby) teardown(ctx context.Context, entries []roster.Entry) {
	if err := l.registry.controller.Stop(ctx, l.id); err != nil {
		log.Warnf("Lobby %s: controller failed to stop: %v", l.id, err)
	}
	for _, e := range entries {
		e.Member.ReleaseLobby(l.id)
	}
	l.registry.remove(l.id, int64(len(entries)))
	if err := l.room.Delete(ctx); err != nil {
		log.Warnf("Lobby %s: failed to delete chat: %v", l.id, err)
	}
	log.Printf("Lobby %s stopped", l.id)
}

// Has reports whether name is in the lobby.
func (l *Lobby) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Has(name)
}

// Get returns the named member's roster entry.
func (l *Lobby) Get(name string) (roster.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Get(name)
}

// Members returns every entry, players and spectators, in join order.
func (l *Lobby) Members() []roster.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Entries()
}

func (l *Lobby) Players() []roster.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Players()
}

func (l *Lobby) Spectators() []roster.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Spectators()
}

func (l *Lobby) SideA() []roster.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Side(roster.SideA)
}

func (l *Lobby) SideB() []roster.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Side(roster.SideB)
}

func (l *Lobby) PlayersCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.PlayersCount()
}

func (l *Lobby) Captains() Captains {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Captains{SideA: l.captains[roster.SideA], SideB: l.captains[roster.SideB]}
}

// MedianRating is the median rating of the seated players, 0 when empty.
func (l *Lobby) MedianRating() float64 {
	players := l.Players()
	values := make([]float64, 0, len(players))
	for _, p := range players {
		values = append(values, p.Member.Rating())
	}
	return median(values)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

func isSide(role roster.Role) bool {
	return role == roster.SideA || role == roster.SideB
}
