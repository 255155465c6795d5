// matchmaker/lobby/registry.go
package lobby

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/roster"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Registry owns every live lobby and the count of players seated across them.
type Registry struct {
	controller Controller
	chats      chat.Service
	namespace  string

	mu      sync.RWMutex
	lobbies map[string]*Lobby
	order   []string

	counter atomic.Int64
}

// NewRegistry creates an empty Registry. Every lobby it spawns runs under
// controller and gets a chat room in namespace.
func NewRegistry(controller Controller, chats chat.Service, namespace string) *Registry {
	return &Registry{
		controller: controller,
		chats:      chats,
		namespace:  namespace,
		lobbies:    make(map[string]*Lobby),
	}
}

// Spawn creates and registers a searching lobby for mode. A chat room that
// cannot be created fails the spawn.
func (r *Registry) Spawn(ctx context.Context, mode string) (*Lobby, error) {
	id := uuid.NewString()
	room, err := r.chats.Spawn(ctx, chat.KindLobby, chat.Room{Namespace: r.namespace, Name: id})
	if err != nil {
		return nil, fmt.Errorf("failed to spawn chat for lobby %s: %w", id, err)
	}

	now := time.Now()
	l := &Lobby{
		id:          id,
		mode:        mode,
		registry:    r,
		room:        room,
		createdAt:   now,
		status:      StatusSearching,
		statusSince: now,
		members:     roster.New(roster.DefaultCapacity),
		captains:    make(map[roster.Role]string, 2),
		votes:       make(map[string]string),
	}

	r.mu.Lock()
	r.lobbies[id] = l
	r.order = append(r.order, id)
	r.mu.Unlock()

	log.WithFields(log.Fields{"lobby": id, "mode": mode}).Info("Lobby spawned")
	return l, nil
}

func (r *Registry) Get(id string) (*Lobby, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lobbies[id]
	return l, ok
}

// List returns the live lobbies in spawn order.
func (r *Registry) List() []*Lobby {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Lobby, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.lobbies[id])
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobbies)
}

// Counter returns the number of members seated across all live lobbies.
func (r *Registry) Counter() int64 {
	return r.counter.Load()
}

func (r *Registry) Controller() Controller {
	return r.controller
}

func (r *Registry) adjustCounter(delta int64) {
	r.counter.Add(delta)
}

func (r *Registry) remove(id string, seated int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lobbies[id]; !ok {
		return
	}
	delete(r.lobbies, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.counter.Add(-seated)
}
