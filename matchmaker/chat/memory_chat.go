// matchmaker/chat/memory_chat.go
package chat

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryService keeps rooms in process. It backs single-node development
// (MATCHMAKER_CHAT_BACKEND=memory) and tests.
type MemoryService struct {
	mu    sync.Mutex
	rooms map[string]*MemoryRoom
}

func NewMemoryService() *MemoryService {
	return &MemoryService{rooms: make(map[string]*MemoryRoom)}
}

func (ms *MemoryService) Spawn(_ context.Context, kind Kind, room Room) (Handle, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	id := roomID(kind, room)
	if existing, ok := ms.rooms[id]; ok {
		return existing, nil
	}
	r := &MemoryRoom{id: id}
	ms.rooms[id] = r
	return r, nil
}

// Room returns a spawned room by id.
func (ms *MemoryService) Room(id string) (*MemoryRoom, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	r, ok := ms.rooms[id]
	return r, ok
}

// MemoryRoom is an in-process room.
type MemoryRoom struct {
	mu      sync.Mutex
	id      string
	members []string
	history []Message
	deleted bool
}

func (r *MemoryRoom) ID() string { return r.id }

func (r *MemoryRoom) Join(ctx context.Context, name string) error {
	r.mu.Lock()
	if slices.Contains(r.members, name) {
		r.mu.Unlock()
		return nil
	}
	r.members = append(r.members, name)
	r.mu.Unlock()
	return r.Send(ctx, SystemMessage("%s joined", name))
}

func (r *MemoryRoom) Leave(ctx context.Context, name string) error {
	r.mu.Lock()
	i := slices.Index(r.members, name)
	if i < 0 {
		r.mu.Unlock()
		return nil
	}
	r.members = slices.Delete(r.members, i, i+1)
	r.mu.Unlock()
	return r.Send(ctx, SystemMessage("%s left", name))
}

func (r *MemoryRoom) Send(_ context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	r.mu.Lock()
	r.history = append(r.history, msg)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRoom) Members(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members), nil
}

func (r *MemoryRoom) Delete(context.Context) error {
	r.mu.Lock()
	r.members = nil
	r.deleted = true
	r.mu.Unlock()
	return nil
}

// History returns every message sent to the room.
func (r *MemoryRoom) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history)
}

// Deleted reports whether Delete was called.
func (r *MemoryRoom) Deleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted
}
