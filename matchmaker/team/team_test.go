package team

import (
	"context"
	"fmt"
	"testing"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *chat.MemoryService) {
	chats := chat.NewMemoryService()
	return NewRegistry(chats, "test"), chats
}

func TestJoinCapacity(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	team := reg.Spawn()

	for i := 0; i < MaxSize; i++ {
		require.True(t, team.Join(ctx, models.NewMember(fmt.Sprintf("p%d", i), 1000, "")))
	}
	extra := models.NewMember("extra", 1000, "")
	assert.False(t, team.Join(ctx, extra))
	assert.Equal(t, MaxSize, team.Size())
	assert.Zero(t, extra.TeamID(), "rejected member keeps no team reference")
	assert.False(t, team.HasSpaceFor(1))
}

func TestJoinRejectsDuplicatesAndForeignMembers(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	first, second := reg.Spawn(), reg.Spawn()

	m := models.NewMember("alice", 1000, "")
	require.True(t, first.Join(ctx, m))
	assert.False(t, first.Join(ctx, m))
	assert.False(t, second.Join(ctx, m))
	assert.Equal(t, first.ID(), m.TeamID())
	assert.Zero(t, second.Size())
}

func TestCaptainPassesOnLeave(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	team := reg.Spawn()

	a, b, c := models.NewMember("a", 1000, ""), models.NewMember("b", 1000, ""), models.NewMember("c", 1000, "")
	require.True(t, team.Join(ctx, a))
	require.True(t, team.Join(ctx, b))
	require.True(t, team.Join(ctx, c))
	assert.True(t, team.IsCaptain("a"))

	require.True(t, team.Leave(ctx, "a"))
	assert.Equal(t, "b", team.Captain())
	assert.Zero(t, a.TeamID())

	require.True(t, team.Leave(ctx, "c"))
	assert.Equal(t, "b", team.Captain(), "non-captain leaving keeps the captain")

	require.True(t, team.Leave(ctx, "b"))
	assert.Empty(t, team.Captain())
	assert.False(t, team.Leave(ctx, "b"), "leaving an empty team fails")
}

func TestGuildCohesion(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	team := reg.Spawn()

	require.True(t, team.Join(ctx, models.NewMember("a", 1000, "wolves")))
	assert.Equal(t, "wolves", team.GuildKey())
	require.True(t, team.Join(ctx, models.NewMember("b", 1000, "wolves")))
	assert.True(t, team.IsGuild())

	require.True(t, team.Join(ctx, models.NewMember("c", 1000, "bears")))
	assert.False(t, team.IsGuild())

	require.True(t, team.Leave(ctx, "c"))
	assert.Equal(t, "wolves", team.GuildKey(), "key is recomputed from remaining members")

	require.True(t, team.Leave(ctx, "a"))
	require.True(t, team.Join(ctx, models.NewMember("d", 1000, "")))
	assert.False(t, team.IsGuild())
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{1500}, 1500},
		{"odd", []float64{1600, 1200, 1400}, 1400},
		{"even", []float64{1400, 1200}, 1300},
		{"even unsorted", []float64{10, 40, 20, 30}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.values))
		})
	}
}

func TestMedianRatingFollowsLiveMembers(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	team := reg.Spawn()

	a := models.NewMember("a", 1200, "")
	require.True(t, team.Join(ctx, a))
	require.True(t, team.Join(ctx, models.NewMember("b", 1400, "")))
	assert.Equal(t, 1300.0, team.MedianRating())

	a.SetRating(1600)
	assert.Equal(t, 1500.0, team.MedianRating())
}

func TestChatSpawnedLazily(t *testing.T) {
	ctx := context.Background()
	reg, chats := newTestRegistry()
	team := reg.Spawn()
	assert.Nil(t, team.Chat())

	require.True(t, team.Join(ctx, models.NewMember("a", 1000, "")))
	require.True(t, team.Join(ctx, models.NewMember("b", 1000, "")))
	require.NotNil(t, team.Chat())

	room, ok := chats.Room(team.Chat().ID())
	require.True(t, ok)
	members, err := room.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	require.True(t, team.Leave(ctx, "a"))
	history := room.History()
	require.Len(t, history, 3)
	assert.Equal(t, "a joined", history[0].Text)
	assert.Equal(t, "a left", history[2].Text)
	assert.Equal(t, chat.SystemSender, history[2].From)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	reg, chats := newTestRegistry()

	first, second := reg.Spawn(), reg.Spawn()
	assert.Less(t, first.ID(), second.ID())
	assert.Equal(t, 2, reg.Count())

	got, ok := reg.Get(second.ID())
	require.True(t, ok)
	assert.Same(t, second, got)

	require.True(t, second.Join(ctx, models.NewMember("a", 1000, "")))
	roomID := second.Chat().ID()

	assert.True(t, reg.Dispose(ctx, second.ID()))
	assert.False(t, reg.Dispose(ctx, second.ID()))
	_, ok = reg.Get(second.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count())

	room, ok := chats.Room(roomID)
	require.True(t, ok)
	assert.True(t, room.Deleted())

	third := reg.Spawn()
	assert.Greater(t, third.ID(), second.ID(), "ids are never reused")
}
