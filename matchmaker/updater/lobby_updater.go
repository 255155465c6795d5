// Package updater drives lobbies forward on a fixed tick.
package updater

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/notify"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// VotePayload is sent with every lobby_vote event.
type VotePayload struct {
	LobbyID  string         `json:"lobbyId"`
	Captains lobby.Captains `json:"captains"`
	Maps     []string       `json:"maps"`
	Votes    map[string]int `json:"votes"`
}

// AbortPayload is sent with lobby_aborted.
type AbortPayload struct {
	LobbyID string `json:"lobbyId"`
	Reason  string `json:"reason"`
}

// LobbyUpdater handles each live lobby once per tick. Lobbies are processed
// concurrently up to TickConcurrency; a lobby still being handled from an
// earlier tick is skipped.
type LobbyUpdater struct {
	config   *config.MatchmakerServiceConfig
	lobbies  *lobby.Registry
	notifier notify.Notifier
	sem      *semaphore.Weighted
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewLobbyUpdater creates a new LobbyUpdater instance.
func NewLobbyUpdater(cfg *config.MatchmakerServiceConfig, lobbies *lobby.Registry, notifier notify.Notifier) *LobbyUpdater {
	ctx, cancel := context.WithCancel(context.Background())
	return &LobbyUpdater{
		config:   cfg,
		lobbies:  lobbies,
		notifier: notifier,
		sem:      semaphore.NewWeighted(int64(cfg.TickConcurrency)),
		now:      time.Now,
		inFlight: make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the tick loop. This should be run in a goroutine.
func (lu *LobbyUpdater) Start() {
	log.Printf("Lobby Updater starting with tick interval: %v", lu.config.TickInterval)
	ticker := time.NewTicker(lu.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lu.ctx.Done():
			log.Println("Lobby Updater shutting down.")
			lu.wg.Wait()
			return
		case <-ticker.C:
			lu.performTick()
		}
	}
}

// Stop ends the tick loop. Start returns once in-flight lobby tasks finish.
func (lu *LobbyUpdater) Stop() {
	lu.cancel()
}

// performTick dispatches one task per lobby and returns without waiting
// for them.
func (lu *LobbyUpdater) performTick() {
	for _, l := range lu.lobbies.List() {
		if !lu.claim(l.ID()) {
			log.WithField("lobby", l.ID()).Debug("Lobby still busy from a previous tick, skipping")
			continue
		}
		if err := lu.sem.Acquire(lu.ctx, 1); err != nil {
			lu.release(l.ID())
			return
		}
		lu.wg.Add(1)
		go func(l *lobby.Lobby) {
			defer lu.wg.Done()
			defer lu.sem.Release(1)
			defer lu.release(l.ID())
			lu.processLobby(lu.ctx, l)
		}(l)
	}
}

func (lu *LobbyUpdater) claim(id string) bool {
	lu.mu.Lock()
	defer lu.mu.Unlock()
	if _, busy := lu.inFlight[id]; busy {
		return false
	}
	lu.inFlight[id] = struct{}{}
	return true
}

func (lu *LobbyUpdater) release(id string) {
	lu.mu.Lock()
	delete(lu.inFlight, id)
	lu.mu.Unlock()
}

func (lu *LobbyUpdater) processLobby(ctx context.Context, l *lobby.Lobby) {
	view := l.View()
	logger := log.WithFields(log.Fields{"lobby": view.ID, "status": view.Status})

	switch view.Status {
	case lobby.StatusSearching:
		lu.notifyAll(ctx, view, notify.EventSync, view)

	case lobby.StatusFilled:
		if lu.stalled(l) {
			lu.abort(ctx, l, view)
			return
		}
		lu.notifyAll(ctx, view, notify.EventReady, view)

	case lobby.StatusVoting:
		if lu.stalled(l) {
			lu.abort(ctx, l, view)
			return
		}
		lu.notifyAll(ctx, view, notify.EventVote, VotePayload{
			LobbyID:  view.ID,
			Captains: view.Captains,
			Maps:     lu.lobbies.Controller().Maps(),
			Votes:    view.Votes,
		})

	case lobby.StatusPreparing:
		if lu.stalled(l) {
			lu.abort(ctx, l, view)
			return
		}
		if !l.ReadyToStart() {
			return
		}
		lu.notifyAll(ctx, view, notify.EventStart, view)
		if err := l.Start(ctx); err != nil {
			logger.Errorf("Failed to start lobby: %v", err)
			return
		}
		logger.Info("Lobby started")
	}
}

// stalled reports whether the lobby has sat in its current status longer
// than the configured stall timeout. A preparing lobby stalls when its start
// keeps failing.
func (lu *LobbyUpdater) stalled(l *lobby.Lobby) bool {
	timeout := lu.config.StallTimeout
	return timeout > 0 && lu.now().Sub(l.StatusSince()) > timeout
}

func (lu *LobbyUpdater) abort(ctx context.Context, l *lobby.Lobby, view lobby.View) {
	if !l.Stop(ctx) {
		return
	}
	log.WithFields(log.Fields{"lobby": view.ID, "status": view.Status}).Warnf("Lobby stalled for more than %v, stopped", lu.config.StallTimeout)
	lu.notifyAll(ctx, view, notify.EventAborted, AbortPayload{
		LobbyID: view.ID,
		Reason:  fmt.Sprintf("stalled while %s", view.Status),
	})
}

// notifyAll sends event to every player and spectator in view.
func (lu *LobbyUpdater) notifyAll(ctx context.Context, view lobby.View, event string, payload any) {
	for _, group := range [][]lobby.MemberView{view.Players, view.Spectators} {
		for _, m := range group {
			if err := lu.notifier.Notify(ctx, m.Name, event, payload); err != nil {
				log.WithFields(log.Fields{"lobby": view.ID, "member": m.Name, "event": event}).Warnf("Failed to notify member: %v", err)
			}
		}
	}
}
