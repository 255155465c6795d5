package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/notify"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/roster"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/search"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/team"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.PlayerProfile
	loads    int
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{profiles: make(map[string]*models.PlayerProfile)}
}

func (p *memoryProfiles) put(name string, rating float64, guild string) {
	p.profiles[name] = &models.PlayerProfile{Name: name, Rating: rating, Guild: guild}
}

func (p *memoryProfiles) EnsureProfile(_ context.Context, name string, defaultRating float64) (*models.PlayerProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	if _, ok := p.profiles[name]; !ok {
		p.profiles[name] = &models.PlayerProfile{Name: name, Rating: defaultRating}
	}
	copied := *p.profiles[name]
	return &copied, nil
}

func (p *memoryProfiles) ApplyResult(_ context.Context, name string, delta float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[name]
	if !ok {
		return errors.New("no such player")
	}
	profile.Rating += delta
	profile.Matches++
	return nil
}

type fixture struct {
	chats    *chat.MemoryService
	profiles *memoryProfiles
	recorder *notify.Recorder
	lobbies  *lobby.Registry
	teams    *team.Registry
	svc      *MatchmakingService
}

func newFixture() *fixture {
	chats := chat.NewMemoryService()
	profiles := newMemoryProfiles()
	recorder := notify.NewRecorder()
	lobbies := lobby.NewRegistry(lobby.NewStandardController(lobby.DefaultGame, lobby.DefaultMaps, nil), chats, "test")
	teams := team.NewRegistry(chats, "test")
	svc := NewMatchmakingService(
		Options{RatingBracket: 200, MaxSearchAttempts: 3},
		NewMemberDirectory(profiles, 1000),
		lobbies,
		teams,
		search.NewEngine(lobbies),
		recorder,
	)
	return &fixture{chats: chats, profiles: profiles, recorder: recorder, lobbies: lobbies, teams: teams, svc: svc}
}

func TestFindLobbyValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name                   string
		username, region, mode string
		field                  string
	}{
		{"missing username", "", lobby.RegionEurope, lobby.ModeRating, "username"},
		{"unknown region", "alice", "Mars", lobby.ModeRating, "region"},
		{"missing mode", "alice", lobby.RegionEurope, "", "mode"},
		{"unknown mode", "alice", lobby.RegionEurope, "deathmatch", "mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.FindLobby(ctx, tt.username, tt.region, tt.mode)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Zero(t, f.lobbies.Count())
}

func TestFindLobbySolo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.FindLobby(ctx, "alice", lobby.RegionEurope, lobby.ModeRating)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ChatID)

	second, err := f.svc.FindLobby(ctx, "bob", lobby.RegionEurope, lobby.ModeRating)
	require.NoError(t, err)
	assert.Equal(t, first.LobbyID, second.LobbyID)

	elsewhere, err := f.svc.FindLobby(ctx, "carol", lobby.RegionAsia, lobby.ModeRating)
	require.NoError(t, err)
	assert.NotEqual(t, first.LobbyID, elsewhere.LobbyID)

	_, err = f.svc.FindLobby(ctx, "alice", lobby.RegionEurope, lobby.ModeRating)
	assert.ErrorIs(t, err, ErrAlreadyInLobby)

	assert.Equal(t, []string{"alice", "bob", "carol"}, f.recorder.Members(notify.EventJoin))
	assert.EqualValues(t, 3, f.svc.PlayersCount())
	assert.Equal(t, 2, f.svc.LobbyCount())
}

func TestFindLobbyPrefersRatingBracket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.profiles.put("pro", 2000, "")
	f.profiles.put("rookie", 900, "")
	f.profiles.put("newcomer", 1000, "")

	pro, err := f.svc.FindLobby(ctx, "pro", lobby.RegionEurope, lobby.ModeRating)
	require.NoError(t, err)
	lobbies := f.lobbies.List()
	require.Len(t, lobbies, 1)

	// A second lobby for the lower bracket, claimed directly.
	low, err := f.lobbies.Spawn(ctx, lobby.ModeRating)
	require.NoError(t, err)
	low.ClaimRegion(lobby.RegionEurope)
	rookie, err := f.svc.JoinLobby(ctx, "rookie", low.ID(), "")
	require.NoError(t, err)

	got, err := f.svc.FindLobby(ctx, "newcomer", lobby.RegionEurope, lobby.ModeRating)
	require.NoError(t, err)
	assert.Equal(t, rookie.ID, got.LobbyID)
	assert.NotEqual(t, pro.LobbyID, got.LobbyID)
}

func TestFindLobbyWithTeam(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateTeam(ctx, "cap")
	require.NoError(t, err)
	for _, name := range []string{"m1", "m2"} {
		_, err := f.svc.JoinTeam(ctx, name, created.ID)
		require.NoError(t, err)
	}

	_, err = f.svc.FindLobby(ctx, "m1", lobby.RegionEurope, lobby.ModeArcade)
	assert.ErrorIs(t, err, ErrNotCaptain)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	result, err := f.svc.FindLobby(ctx, "cap", lobby.RegionEurope, lobby.ModeArcade)
	require.NoError(t, err)
	view, err := f.svc.Sync(result.LobbyID)
	require.NoError(t, err)
	require.Len(t, view.Players, 3)
	for _, p := range view.Players {
		assert.Equal(t, roster.SideA, p.Role, "a team is seated on one side")
	}
	assert.Equal(t, "cap", view.Captains.SideA)
	assert.ElementsMatch(t, []string{"cap", "m1", "m2"}, f.recorder.Members(notify.EventJoin))

	_, err = f.svc.FindLobby(ctx, "cap", lobby.RegionEurope, lobby.ModeArcade)
	assert.ErrorIs(t, err, ErrAlreadyInLobby)
}

func TestFindLobbyGuildTeamAvoidsMixedSides(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.profiles.put("g1", 1000, "wolves")
	f.profiles.put("g2", 1000, "wolves")

	solo, err := f.svc.FindLobby(ctx, "solo1", lobby.RegionEurope, lobby.ModeRating)
	require.NoError(t, err)
	_, err = f.svc.FindLobby(ctx, "solo2", lobby.RegionEurope, lobby.ModeRating)
	require.NoError(t, err)

	created, err := f.svc.CreateTeam(ctx, "g1")
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, "g2", created.ID)
	require.NoError(t, err)

	guild, err := f.svc.FindLobby(ctx, "g1", lobby.RegionEurope, lobby.ModeRating)
	require.NoError(t, err)
	assert.NotEqual(t, solo.LobbyID, guild.LobbyID)
}

func TestLobbyLifecycleThroughService(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var lobbyID string
	for i := 0; i < 10; i++ {
		result, err := f.svc.FindLobby(ctx, fmt.Sprintf("p%d", i), lobby.RegionEurope, lobby.ModeRating)
		require.NoError(t, err)
		lobbyID = result.LobbyID
	}
	view, err := f.svc.Sync(lobbyID)
	require.NoError(t, err)
	require.Equal(t, lobby.StatusFilled, view.Status)

	assert.ErrorIs(t, f.svc.Leave(ctx, "p0"), ErrCannotUpdate, "players cannot leave a filled lobby")
	assert.ErrorIs(t, f.svc.Vote(ctx, "p0", lobby.DefaultMaps[0]), ErrCannotUpdate)

	for i := 0; i < 10; i++ {
		require.NoError(t, f.svc.Ready(ctx, fmt.Sprintf("p%d", i)))
	}
	assert.True(t, apperr.IsValidation(f.svc.Vote(ctx, "p0", "Atlantis")))
	for i := 0; i < 10; i++ {
		require.NoError(t, f.svc.Vote(ctx, fmt.Sprintf("p%d", i), lobby.DefaultMaps[1]))
	}

	view, err = f.svc.Sync(lobbyID)
	require.NoError(t, err)
	assert.Equal(t, lobby.StatusPreparing, view.Status)
	assert.Equal(t, lobby.DefaultMaps[1], view.Map)
	assert.Equal(t, map[string]int{lobby.DefaultMaps[1]: 10}, view.Votes)

	count, err := f.svc.LobbyPlayersCount(lobbyID)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestMoveAndLeave(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.FindLobby(ctx, "alice", lobby.RegionEurope, lobby.ModeTraining)
	require.NoError(t, err)
	_, err = f.svc.JoinLobby(ctx, "bob", result.LobbyID, "")
	require.NoError(t, err)

	assert.True(t, apperr.IsValidation(f.svc.Move(ctx, "alice", "goalkeeper")))
	require.NoError(t, f.svc.Move(ctx, "alice", "command2"))
	captains, err := f.svc.Captains(result.LobbyID)
	require.NoError(t, err)
	assert.Equal(t, lobby.Captains{SideA: "", SideB: "bob"}, captains)

	require.NoError(t, f.svc.Leave(ctx, "alice"))
	assert.ErrorIs(t, f.svc.Leave(ctx, "alice"), ErrNotInLobby)
	assert.ErrorIs(t, f.svc.Ready(ctx, "stranger"), ErrNotInLobby)
}

func TestInvite(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	result, err := f.svc.FindLobby(ctx, "alice", lobby.RegionEurope, lobby.ModeArcade)
	require.NoError(t, err)

	require.NoError(t, f.svc.Invite(ctx, "alice", "bob"))
	invites := f.recorder.Events(notify.EventInvite)
	require.Len(t, invites, 1)
	assert.Equal(t, "bob", invites[0].Member)
	assert.Equal(t, Invite{Label: "lobby", LobbyID: result.LobbyID, From: "alice"}, invites[0].Payload)

	tests := []struct {
		name              string
		username, invitee string
		check             func(error) bool
	}{
		{"missing invitee", "alice", "", apperr.IsValidation},
		{"self invite", "alice", "alice", apperr.IsValidation},
		{"inviter not seated", "carol", "bob", func(err error) bool { return errors.Is(err, ErrNotInLobby) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(f.svc.Invite(ctx, tt.username, tt.invitee)))
		})
	}
	assert.Len(t, f.recorder.Events(notify.EventInvite), 1)
}

func TestSendToChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	result, err := f.svc.FindLobby(ctx, "alice", lobby.RegionEurope, lobby.ModeArcade)
	require.NoError(t, err)

	require.NoError(t, f.svc.SendToChat(ctx, "alice", "gl hf"))
	room, ok := f.chats.Room(result.ChatID)
	require.True(t, ok)
	history := room.History()
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, "alice", last.From)
	assert.Equal(t, "gl hf", last.Text)

	assert.True(t, apperr.IsValidation(f.svc.SendToChat(ctx, "alice", "   ")))
	assert.ErrorIs(t, f.svc.SendToChat(ctx, "stranger", "hi"), ErrNotInLobby)
	assert.Len(t, room.History(), len(history))
}

func TestFailedJoinStopsEmptyLobby(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	busy := models.NewMember("busy", 1000, "")
	require.True(t, busy.BindLobby("elsewhere"))

	fresh, err := f.lobbies.Spawn(ctx, lobby.ModeRating)
	require.NoError(t, err)
	assert.False(t, f.svc.seat(ctx, fresh, []*models.Member{busy}, nil))
	assert.Equal(t, lobby.StatusStopped, fresh.Status())
	assert.Zero(t, f.lobbies.Count())
	assert.Equal(t, "elsewhere", busy.LobbyID())

	occupied, err := f.lobbies.Spawn(ctx, lobby.ModeRating)
	require.NoError(t, err)
	require.True(t, occupied.Join(ctx, models.NewMember("alice", 1000, "")))
	assert.False(t, f.svc.seat(ctx, occupied, []*models.Member{busy}, nil))
	assert.Equal(t, lobby.StatusSearching, occupied.Status(), "a lobby with members is kept")
	assert.Equal(t, 1, f.lobbies.Count())
}

func TestJoinLobbyAsSpectator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.FindLobby(ctx, "alice", lobby.RegionEurope, lobby.ModeTraining)
	require.NoError(t, err)

	view, err := f.svc.JoinLobby(ctx, "watcher", result.LobbyID, "spectators")
	require.NoError(t, err)
	require.Len(t, view.Spectators, 1)
	assert.Equal(t, "watcher", view.Spectators[0].Name)

	_, err = f.svc.JoinLobby(ctx, "watcher", result.LobbyID, "")
	assert.ErrorIs(t, err, ErrAlreadyInLobby)
	_, err = f.svc.JoinLobby(ctx, "bob", "missing", "")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLookupsOnUnknownLobby(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Sync("nope")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
	_, err = f.svc.Captains("nope")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
	_, err = f.svc.LobbyPlayersCount("")
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, lobby.DefaultMaps, f.svc.Maps())
}

func TestTeamUseCases(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateTeam(ctx, "cap")
	require.NoError(t, err)
	assert.Equal(t, "cap", created.Captain)
	assert.NotEmpty(t, created.ChatID)

	_, err = f.svc.CreateTeam(ctx, "cap")
	assert.ErrorIs(t, err, ErrAlreadyInTeam)
	_, err = f.svc.JoinTeam(ctx, "other", 999)
	assert.ErrorIs(t, err, ErrTeamNotFound)

	joined, err := f.svc.JoinTeam(ctx, "mate", created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cap", "mate"}, joined.Members)

	require.NoError(t, f.svc.LeaveTeam(ctx, "cap"))
	view, err := f.svc.Team(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mate", view.Captain)

	require.NoError(t, f.svc.LeaveTeam(ctx, "mate"))
	_, err = f.svc.Team(created.ID)
	assert.ErrorIs(t, err, ErrTeamNotFound, "an empty team is disposed")
	assert.ErrorIs(t, f.svc.LeaveTeam(ctx, "mate"), ErrNotInTeam)
}

func TestTeamIsFullAtFive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateTeam(ctx, "p0")
	require.NoError(t, err)
	for i := 1; i < team.MaxSize; i++ {
		_, err := f.svc.JoinTeam(ctx, fmt.Sprintf("p%d", i), created.ID)
		require.NoError(t, err)
	}
	_, err = f.svc.JoinTeam(ctx, "p5", created.ID)
	assert.ErrorIs(t, err, ErrCannotUpdate)
}

func TestMemberDirectory(t *testing.T) {
	ctx := context.Background()
	profiles := newMemoryProfiles()
	profiles.put("vet", 1500, "wolves")
	dir := NewMemberDirectory(profiles, 1000)

	vet, err := dir.Get(ctx, "vet")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, vet.Rating())
	assert.Equal(t, "wolves", vet.Guild())

	again, err := dir.Get(ctx, "vet")
	require.NoError(t, err)
	assert.Same(t, vet, again)
	assert.Equal(t, 1, profiles.loads)

	fresh, err := dir.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, fresh.Rating())

	require.NoError(t, dir.ApplyResult(ctx, "vet", 16))
	assert.Equal(t, 1516.0, vet.Rating())
	assert.Equal(t, 1516.0, profiles.profiles["vet"].Rating)
	assert.Error(t, dir.ApplyResult(ctx, "ghost", 5))
}
