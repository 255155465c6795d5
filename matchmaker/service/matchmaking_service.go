// Package service holds the matchmaker's use cases: the operations the HTTP
// layer exposes, expressed over the lobby and team registries.
package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/notify"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/roster"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/search"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/team"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	log "github.com/sirupsen/logrus"
)

var (
	ErrLobbyNotFound  = fmt.Errorf("lobby %w", apperr.ErrNotFound)
	ErrTeamNotFound   = fmt.Errorf("team %w", apperr.ErrNotFound)
	ErrAlreadyInLobby = fmt.Errorf("member is already in a lobby: %w", apperr.ErrConflict)
	ErrNotInLobby     = fmt.Errorf("member is not in a lobby: %w", apperr.ErrConflict)
	ErrAlreadyInTeam  = fmt.Errorf("member is already in a team: %w", apperr.ErrConflict)
	ErrNotInTeam      = fmt.Errorf("member is not in a team: %w", apperr.ErrConflict)
	ErrNotCaptain     = fmt.Errorf("only the team captain can search: %w", apperr.ErrForbidden)
	ErrCannotUpdate   = fmt.Errorf("cannot update: %w", apperr.ErrConflict)
)

// Options tunes the search use case.
type Options struct {
	RatingBracket     float64
	MaxSearchAttempts int
}

// Invite is delivered to an invited member with EventInvite.
type Invite struct {
	Label   string `json:"label"`
	LobbyID string `json:"lobbyID"`
	From    string `json:"from"`
}

// SearchResult tells a searching member where they were seated.
type SearchResult struct {
	LobbyID string `json:"lobbyId"`
	ChatID  string `json:"chatId"`
}

// MatchmakingService encapsulates the business logic for lobbies and teams.
type MatchmakingService struct {
	opts     Options
	members  *MemberDirectory
	lobbies  *lobby.Registry
	teams    *team.Registry
	engine   *search.Engine
	notifier notify.Notifier
}

// NewMatchmakingService creates a new MatchmakingService instance.
func NewMatchmakingService(
	opts Options,
	members *MemberDirectory,
	lobbies *lobby.Registry,
	teams *team.Registry,
	engine *search.Engine,
	notifier notify.Notifier,
) *MatchmakingService {
	if opts.MaxSearchAttempts <= 0 {
		opts.MaxSearchAttempts = 1
	}
	return &MatchmakingService{
		opts:     opts,
		members:  members,
		lobbies:  lobbies,
		teams:    teams,
		engine:   engine,
		notifier: notifier,
	}
}

func requireName(username string) error {
	if username == "" {
		return apperr.Invalid("username", apperr.CauseRequired)
	}
	return nil
}

// FindLobby seats the member, or the member's whole team, in a lobby that
// fits the region and mode. A member in a team must be its captain.
func (s *MatchmakingService) FindLobby(ctx context.Context, username, region, mode string) (*SearchResult, error) {
	if err := requireName(username); err != nil {
		return nil, err
	}
	region, err := lobby.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	mode, err = lobby.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	member, err := s.members.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	group := []*models.Member{member}
	var t *team.Team
	if id := member.TeamID(); id != 0 {
		if found, ok := s.teams.Get(id); ok {
			if !found.IsCaptain(username) {
				return nil, ErrNotCaptain
			}
			t = found
			group = t.Members()
		}
	}
	for _, m := range group {
		if m.LobbyID() != "" {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyInLobby, m.Name)
		}
	}

	filters := search.NewFilters(region, mode)
	rating := member.Rating()
	if t != nil {
		rating = t.MedianRating()
		filters.WithTeam(t)
	}
	filters.Add(search.ByRating(rating, s.opts.RatingBracket))

	for attempt := 1; attempt <= s.opts.MaxSearchAttempts; attempt++ {
		l, err := s.engine.FindLobby(ctx, filters)
		if err != nil {
			return nil, err
		}

		if !s.seat(ctx, l, group, t) {
			log.WithFields(log.Fields{"member": username, "lobby": l.ID(), "attempt": attempt}).Debug("Lobby filled before the join landed, searching again")
			continue
		}

		result := &SearchResult{LobbyID: l.ID(), ChatID: l.Chat().ID()}
		for _, m := range group {
			if err := s.notifier.Notify(ctx, m.Name, notify.EventJoin, result); err != nil {
				log.Warnf("Failed to notify %s about lobby %s: %v", m.Name, l.ID(), err)
			}
		}
		log.Printf("Member %s seated %d player(s) in lobby %s (%s, %s)", username, len(group), l.ID(), region, mode)
		return result, nil
	}
	return nil, fmt.Errorf("%w: no lobby could seat %s after %d attempts", ErrCannotUpdate, username, s.opts.MaxSearchAttempts)
}

// seat joins the group to l, the whole team on one side when t is set. A
// lobby left empty by a failed join is stopped so it cannot linger.
func (s *MatchmakingService) seat(ctx context.Context, l *lobby.Lobby, group []*models.Member, t *team.Team) bool {
	var joined bool
	if t != nil {
		joined = l.JoinGroup(ctx, group, t.GuildKey())
	} else {
		joined = l.Join(ctx, group[0])
	}
	if !joined && l.StopIfEmpty(ctx) {
		log.WithField("lobby", l.ID()).Debug("Stopped a lobby left empty by a failed join")
	}
	return joined
}

// JoinLobby seats the member in a specific lobby. An empty role seats a
// player on the emptier side.
func (s *MatchmakingService) JoinLobby(ctx context.Context, username, lobbyID, roleLabel string) (lobby.View, error) {
	if err := requireName(username); err != nil {
		return lobby.View{}, err
	}
	var role roster.Role
	if roleLabel != "" {
		parsed, err := roster.ParseRole(roleLabel)
		if err != nil {
			return lobby.View{}, err
		}
		role = parsed
	}

	l, err := s.lobby(lobbyID)
	if err != nil {
		return lobby.View{}, err
	}
	member, err := s.members.Get(ctx, username)
	if err != nil {
		return lobby.View{}, err
	}
	if member.LobbyID() != "" {
		return lobby.View{}, ErrAlreadyInLobby
	}

	joined := false
	if role == "" {
		joined = l.Join(ctx, member)
	} else {
		joined = l.JoinAs(ctx, member, role)
	}
	if !joined {
		return lobby.View{}, ErrCannotUpdate
	}
	return l.View(), nil
}

// memberLobby resolves the lobby the member is seated in.
func (s *MatchmakingService) memberLobby(username string) (*lobby.Lobby, error) {
	if err := requireName(username); err != nil {
		return nil, err
	}
	member, ok := s.members.Lookup(username)
	if !ok || member.LobbyID() == "" {
		return nil, ErrNotInLobby
	}
	l, ok := s.lobbies.Get(member.LobbyID())
	if !ok {
		return nil, ErrNotInLobby
	}
	return l, nil
}

func (s *MatchmakingService) Leave(ctx context.Context, username string) error {
	l, err := s.memberLobby(username)
	if err != nil {
		return err
	}
	if !l.Leave(ctx, username) {
		return ErrCannotUpdate
	}
	return nil
}

func (s *MatchmakingService) Ready(ctx context.Context, username string) error {
	l, err := s.memberLobby(username)
	if err != nil {
		return err
	}
	if !l.BecomeReady(username) {
		return ErrCannotUpdate
	}
	return nil
}

// Vote records the member's map choice. Unknown maps are a validation error.
func (s *MatchmakingService) Vote(ctx context.Context, username, mapName string) error {
	if mapName == "" {
		return apperr.Invalid("map", apperr.CauseRequired)
	}
	if !slices.Contains(s.Maps(), mapName) {
		return apperr.Invalid("map", apperr.CauseUnsupported)
	}
	l, err := s.memberLobby(username)
	if err != nil {
		return err
	}
	if !l.Vote(username, mapName) {
		return ErrCannotUpdate
	}
	return nil
}

// Move changes the member's role in their lobby.
func (s *MatchmakingService) Move(ctx context.Context, username, roleLabel string) error {
	role, err := roster.ParseRole(roleLabel)
	if err != nil {
		return err
	}
	l, err := s.memberLobby(username)
	if err != nil {
		return err
	}
	if !l.Move(ctx, username, role) {
		return ErrCannotUpdate
	}
	return nil
}

// Invite asks invitee to join the member's lobby.
func (s *MatchmakingService) Invite(ctx context.Context, username, invitee string) error {
	if invitee == "" {
		return apperr.Invalid("invitee", apperr.CauseRequired)
	}
	if invitee == username {
		return apperr.Invalid("invitee", apperr.CauseUnsupported)
	}
	l, err := s.memberLobby(username)
	if err != nil {
		return err
	}
	invite := Invite{Label: string(chat.KindLobby), LobbyID: l.ID(), From: username}
	if err := s.notifier.Notify(ctx, invitee, notify.EventInvite, invite); err != nil {
		return fmt.Errorf("failed to deliver invite from %s to %s: %w", username, invitee, err)
	}
	log.WithFields(log.Fields{"lobby": l.ID(), "from": username, "to": invitee}).Debug("Lobby invite sent")
	return nil
}

// SendToChat posts the member's message to their lobby room.
func (s *MatchmakingService) SendToChat(ctx context.Context, username, message string) error {
	if strings.TrimSpace(message) == "" {
		return apperr.Invalid("message", apperr.CauseRequired)
	}
	l, err := s.memberLobby(username)
	if err != nil {
		return err
	}
	msg := chat.Message{From: username, Text: message, SentAt: time.Now()}
	if err := l.Chat().Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to lobby %s: %w", l.ID(), err)
	}
	return nil
}

func (s *MatchmakingService) lobby(id string) (*lobby.Lobby, error) {
	if id == "" {
		return nil, apperr.Invalid("lobby", apperr.CauseRequired)
	}
	l, ok := s.lobbies.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, id)
	}
	return l, nil
}

// Sync returns the current state of a lobby.
func (s *MatchmakingService) Sync(lobbyID string) (lobby.View, error) {
	l, err := s.lobby(lobbyID)
	if err != nil {
		return lobby.View{}, err
	}
	return l.View(), nil
}

func (s *MatchmakingService) Captains(lobbyID string) (lobby.Captains, error) {
	l, err := s.lobby(lobbyID)
	if err != nil {
		return lobby.Captains{}, err
	}
	return l.Captains(), nil
}

func (s *MatchmakingService) LobbyPlayersCount(lobbyID string) (int, error) {
	l, err := s.lobby(lobbyID)
	if err != nil {
		return 0, err
	}
	return l.PlayersCount(), nil
}

func (s *MatchmakingService) LobbyCount() int     { return s.lobbies.Count() }
func (s *MatchmakingService) PlayersCount() int64 { return s.lobbies.Counter() }
func (s *MatchmakingService) Maps() []string      { return s.lobbies.Controller().Maps() }

// CreateTeam spawns a team with the member as its captain.
func (s *MatchmakingService) CreateTeam(ctx context.Context, username string) (team.View, error) {
	if err := requireName(username); err != nil {
		return team.View{}, err
	}
	member, err := s.members.Get(ctx, username)
	if err != nil {
		return team.View{}, err
	}
	if member.TeamID() != 0 {
		return team.View{}, ErrAlreadyInTeam
	}
	t := s.teams.Spawn()
	if !t.Join(ctx, member) {
		s.teams.Dispose(ctx, t.ID())
		return team.View{}, ErrCannotUpdate
	}
	log.Printf("Team %d created by %s", t.ID(), username)
	return t.View(), nil
}

func (s *MatchmakingService) JoinTeam(ctx context.Context, username string, teamID int64) (team.View, error) {
	if err := requireName(username); err != nil {
		return team.View{}, err
	}
	t, ok := s.teams.Get(teamID)
	if !ok {
		return team.View{}, fmt.Errorf("%w: %d", ErrTeamNotFound, teamID)
	}
	member, err := s.members.Get(ctx, username)
	if err != nil {
		return team.View{}, err
	}
	if member.TeamID() != 0 {
		return team.View{}, ErrAlreadyInTeam
	}
	if !t.Join(ctx, member) {
		return team.View{}, ErrCannotUpdate
	}
	return t.View(), nil
}

// LeaveTeam removes the member from their team and disposes the team once
// it is empty.
func (s *MatchmakingService) LeaveTeam(ctx context.Context, username string) error {
	if err := requireName(username); err != nil {
		return err
	}
	member, ok := s.members.Lookup(username)
	if !ok || member.TeamID() == 0 {
		return ErrNotInTeam
	}
	t, ok := s.teams.Get(member.TeamID())
	if !ok {
		return ErrNotInTeam
	}
	if !t.Leave(ctx, username) {
		return ErrCannotUpdate
	}
	if t.Size() == 0 {
		s.teams.Dispose(ctx, t.ID())
	}
	return nil
}

func (s *MatchmakingService) Team(teamID int64) (team.View, error) {
	t, ok := s.teams.Get(teamID)
	if !ok {
		return team.View{}, fmt.Errorf("%w: %d", ErrTeamNotFound, teamID)
	}
	return t.View(), nil
}
