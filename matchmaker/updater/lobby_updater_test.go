package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/notify"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/roster"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/config"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingController blocks Start for the lobby named in blockFor until
// unblock is closed.
type blockingController struct {
	mu       sync.Mutex
	starts   map[string]int
	blockFor string
	unblock  chan struct{}
	err      error
}

func newController() *blockingController {
	return &blockingController{starts: make(map[string]int), unblock: make(chan struct{})}
}

func (c *blockingController) Game() string   { return "test" }
func (c *blockingController) Maps() []string { return []string{"A", "B"} }

func (c *blockingController) Start(_ context.Context, info lobby.MatchInfo) (string, error) {
	c.mu.Lock()
	c.starts[info.LobbyID]++
	block, err := c.blockFor == info.LobbyID, c.err
	c.mu.Unlock()
	if block {
		<-c.unblock
	}
	if err != nil {
		return "", err
	}
	return "match-" + info.LobbyID, nil
}

func (c *blockingController) Stop(context.Context, string) error { return nil }

func (c *blockingController) startsFor(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts[id]
}

type fixture struct {
	ctrl     *blockingController
	lobbies  *lobby.Registry
	recorder *notify.Recorder
	updater  *LobbyUpdater
}

func newFixture() *fixture {
	cfg := &config.MatchmakerServiceConfig{
		TickInterval:    time.Second,
		TickConcurrency: 4,
		StallTimeout:    5 * time.Minute,
	}
	ctrl := newController()
	lobbies := lobby.NewRegistry(ctrl, chat.NewMemoryService(), "test")
	recorder := notify.NewRecorder()
	return &fixture{
		ctrl:     ctrl,
		lobbies:  lobbies,
		recorder: recorder,
		updater:  NewLobbyUpdater(cfg, lobbies, recorder),
	}
}

func (f *fixture) tick() {
	f.updater.performTick()
	f.updater.wg.Wait()
}

func (f *fixture) spawn(t *testing.T) *lobby.Lobby {
	t.Helper()
	l, err := f.lobbies.Spawn(context.Background(), lobby.ModeRating)
	require.NoError(t, err)
	return l
}

func join(t *testing.T, l *lobby.Lobby, n int) []string {
	t.Helper()
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s-p%d", l.ID()[:8], i)
		require.True(t, l.Join(context.Background(), models.NewMember(name, 1000, "")))
		names = append(names, name)
	}
	return names
}

func toVoting(t *testing.T, l *lobby.Lobby) []string {
	t.Helper()
	names := join(t, l, 10)
	for _, n := range names {
		require.True(t, l.BecomeReady(n))
	}
	return names
}

func toPreparing(t *testing.T, l *lobby.Lobby) []string {
	t.Helper()
	names := toVoting(t, l)
	for _, n := range names {
		require.True(t, l.Vote(n, "A"))
	}
	require.True(t, l.ReadyToStart())
	return names
}

func TestTickNotifiesByStatus(t *testing.T) {
	f := newFixture()
	searching := f.spawn(t)
	searchers := join(t, searching, 3)
	filled := f.spawn(t)
	waiting := join(t, filled, 10)
	voting := f.spawn(t)
	voters := toVoting(t, voting)

	f.tick()

	assert.ElementsMatch(t, searchers, f.recorder.Members(notify.EventSync))
	assert.ElementsMatch(t, waiting, f.recorder.Members(notify.EventReady))
	assert.ElementsMatch(t, voters, f.recorder.Members(notify.EventVote))

	payload, ok := f.recorder.Events(notify.EventVote)[0].Payload.(VotePayload)
	require.True(t, ok)
	assert.Equal(t, voting.ID(), payload.LobbyID)
	assert.Equal(t, []string{"A", "B"}, payload.Maps)
	assert.Equal(t, voting.Captains(), payload.Captains)
}

func TestTickStartsReadyLobbies(t *testing.T) {
	f := newFixture()
	l := f.spawn(t)
	players := toPreparing(t, l)

	f.tick()

	assert.Equal(t, lobby.StatusStarted, l.Status())
	assert.Equal(t, 1, f.ctrl.startsFor(l.ID()))
	assert.ElementsMatch(t, players, f.recorder.Members(notify.EventStart))

	f.tick()
	assert.Equal(t, 1, f.ctrl.startsFor(l.ID()), "a started lobby is left alone")
}

func TestFailedStartIsRetriedNextTick(t *testing.T) {
	f := newFixture()
	l := f.spawn(t)
	toPreparing(t, l)

	f.ctrl.err = errors.New("no game server")
	f.tick()
	assert.Equal(t, lobby.StatusPreparing, l.Status())

	f.ctrl.mu.Lock()
	f.ctrl.err = nil
	f.ctrl.mu.Unlock()
	f.tick()
	assert.Equal(t, lobby.StatusStarted, l.Status())
	assert.Equal(t, 2, f.ctrl.startsFor(l.ID()))
}

func TestSlowStartDoesNotBlockOtherLobbies(t *testing.T) {
	f := newFixture()
	slow := f.spawn(t)
	toPreparing(t, slow)
	other := f.spawn(t)
	searchers := join(t, other, 2)
	f.ctrl.blockFor = slow.ID()

	f.updater.performTick()
	assert.Eventually(t, func() bool {
		return len(f.recorder.Members(notify.EventSync)) == len(searchers)
	}, time.Second, 10*time.Millisecond)

	f.updater.performTick()
	assert.Eventually(t, func() bool {
		return len(f.recorder.Members(notify.EventSync)) == 2*len(searchers)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.ctrl.startsFor(slow.ID()), "a busy lobby is skipped")

	close(f.ctrl.unblock)
	f.updater.wg.Wait()
	assert.Equal(t, lobby.StatusStarted, slow.Status())
}

func TestStalledLobbiesAreAborted(t *testing.T) {
	f := newFixture()
	filled := f.spawn(t)
	waiting := join(t, filled, 10)
	voting := f.spawn(t)
	voters := toVoting(t, voting)
	searching := f.spawn(t)
	join(t, searching, 1)

	f.updater.now = func() time.Time { return time.Now().Add(time.Hour) }
	f.tick()

	assert.Equal(t, lobby.StatusStopped, filled.Status())
	assert.Equal(t, lobby.StatusStopped, voting.Status())
	assert.Equal(t, lobby.StatusSearching, searching.Status(), "searching lobbies never stall")
	assert.Equal(t, 1, f.lobbies.Count())
	assert.ElementsMatch(t, append(waiting, voters...), f.recorder.Members(notify.EventAborted))
	assert.Empty(t, f.recorder.Members(notify.EventReady))
}

func TestPreparingLobbyThatNeverStartsIsAborted(t *testing.T) {
	f := newFixture()
	l := f.spawn(t)
	players := toPreparing(t, l)
	f.ctrl.err = errors.New("no game server")

	f.tick()
	require.Equal(t, lobby.StatusPreparing, l.Status(), "a failed start is retried before the timeout")

	f.updater.now = func() time.Time { return time.Now().Add(time.Hour) }
	f.tick()

	assert.Equal(t, lobby.StatusStopped, l.Status())
	assert.Zero(t, f.lobbies.Count())
	assert.Equal(t, 1, f.ctrl.startsFor(l.ID()))
	assert.ElementsMatch(t, players, f.recorder.Members(notify.EventAborted))
}

func TestLobbyWithNeutralPlayerStarts(t *testing.T) {
	f := newFixture()
	l := f.spawn(t)
	ctx := context.Background()
	require.True(t, l.JoinAs(ctx, models.NewMember("neutral", 1000, ""), roster.Neutral))
	names := append(join(t, l, 9), "neutral")
	require.Equal(t, lobby.StatusFilled, l.Status())
	for _, n := range names {
		require.True(t, l.BecomeReady(n))
	}
	for _, n := range names {
		require.True(t, l.Vote(n, "B"))
	}

	f.tick()

	assert.Equal(t, lobby.StatusStarted, l.Status())
	assert.Equal(t, 1, f.ctrl.startsFor(l.ID()))
}

func TestZeroStallTimeoutDisablesAborts(t *testing.T) {
	f := newFixture()
	f.updater.config.StallTimeout = 0
	l := f.spawn(t)
	join(t, l, 10)

	f.updater.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	f.tick()

	assert.Equal(t, lobby.StatusFilled, l.Status())
	assert.Len(t, f.recorder.Members(notify.EventReady), 10)
}

func TestStopWaitsForLoop(t *testing.T) {
	f := newFixture()
	f.updater.config.TickInterval = 10 * time.Millisecond
	l := f.spawn(t)
	join(t, l, 1)

	done := make(chan struct{})
	go func() {
		f.updater.Start()
		close(done)
	}()
	assert.Eventually(t, func() bool {
		return len(f.recorder.Members(notify.EventSync)) > 0
	}, time.Second, 5*time.Millisecond)

	f.updater.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
}
