// Package chat provides the lobby- and team-scoped chat rooms the matchmaker
// binds players into. Delivery to clients happens elsewhere; a room here is
// membership, history and a publish channel.
package chat

import (
	"context"
	"fmt"
	"time"
)

// Kind tells lobby rooms from team rooms.
type Kind string

const (
	KindLobby Kind = "lobby"
	KindTeam  Kind = "team"
)

// SystemSender is the From value of messages generated by the service.
const SystemSender = "system"

// Room addresses a chat room inside a client namespace.
type Room struct {
	Namespace string
	Name      string
}

// Message is one chat line. Structured lobby events carry a Label and Data.
type Message struct {
	From   string    `json:"from"`
	Text   string    `json:"message,omitempty"`
	Label  string    `json:"label,omitempty"`
	Data   any       `json:"data,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

// SystemMessage returns a text message from the service itself.
func SystemMessage(format string, args ...any) Message {
	return Message{From: SystemSender, Text: fmt.Sprintf(format, args...), SentAt: time.Now()}
}

// Handle is a live binding to one room.
type Handle interface {
	ID() string
	Join(ctx context.Context, name string) error
	Leave(ctx context.Context, name string) error
	Send(ctx context.Context, msg Message) error
	Members(ctx context.Context) ([]string, error)
	Delete(ctx context.Context) error
}

// Service spawns room bindings.
type Service interface {
	Spawn(ctx context.Context, kind Kind, room Room) (Handle, error)
}

func roomID(kind Kind, room Room) string {
	return fmt.Sprintf("%s#%s", kind, room.Name)
}
