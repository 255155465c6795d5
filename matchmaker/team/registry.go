// matchmaker/team/registry.go
package team

import (
	"context"
	"sync"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	log "github.com/sirupsen/logrus"
)

// Registry owns every live team, keyed by a process-unique id.
type Registry struct {
	chats     chat.Service
	namespace string

	mu     sync.RWMutex
	teams  map[int64]*Team
	nextID int64
}

// NewRegistry creates an empty Registry. Team rooms are spawned through
// chats inside namespace.
func NewRegistry(chats chat.Service, namespace string) *Registry {
	return &Registry{
		chats:     chats,
		namespace: namespace,
		teams:     make(map[int64]*Team),
	}
}

// Spawn creates and registers an empty team.
func (r *Registry) Spawn() *Team {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t := newTeam(r.nextID, r.chats, r.namespace)
	r.teams[t.id] = t
	log.Debugf("Team %d spawned", t.id)
	return t
}

func (r *Registry) Get(id int64) (*Team, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	return t, ok
}

// Dispose unregisters the team and deletes its chat room.
func (r *Registry) Dispose(ctx context.Context, id int64) bool {
	r.mu.Lock()
	t, ok := r.teams[id]
	delete(r.teams, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if room := t.Chat(); room != nil {
		if err := room.Delete(ctx); err != nil {
			log.Warnf("Team %d: failed to delete chat: %v", id, err)
		}
	}
	log.Debugf("Team %d disposed", id)
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.teams)
}
