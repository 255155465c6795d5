// Package notify delivers per-member lobby events. The matchmaker publishes;
// socket gateways subscribed to a member's channel push the event out.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisu "github.com/Ftotnem/GO-MATCHMAKER/shared/redis"
	"github.com/redis/go-redis/v9"
)

// Lobby events.
const (
	EventSync    = "lobby_sync"
	EventReady   = "lobby_ready"
	EventVote    = "lobby_vote"
	EventStart   = "lobby_start"
	EventJoin    = "lobby_join"
	EventAborted = "lobby_aborted"
	EventInvite  = "invite"
)

// Notifier sends one event to one member.
type Notifier interface {
	Notify(ctx context.Context, member, event string, payload any) error
}

// Envelope is the JSON published for every event.
type Envelope struct {
	Event   string    `json:"event"`
	Member  string    `json:"member"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

// RedisNotifier publishes events on notify:{<namespace>/<member>}: channels.
type RedisNotifier struct {
	client    redis.UniversalClient
	namespace string
}

func NewRedisNotifier(client redis.UniversalClient, namespace string) *RedisNotifier {
	return &RedisNotifier{client: client, namespace: namespace}
}

// Channel returns the channel a member's events are published on.
func (n *RedisNotifier) Channel(member string) string {
	return fmt.Sprintf(redisu.NotifyChannelPrefix, n.namespace+"/"+member)
}

func (n *RedisNotifier) Notify(ctx context.Context, member, event string, payload any) error {
	body, err := json.Marshal(Envelope{Event: event, Member: member, Payload: payload, SentAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event for %s: %w", event, member, err)
	}
	if err := n.client.Publish(ctx, n.Channel(member), body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event for %s: %w", event, member, err)
	}
	return nil
}
