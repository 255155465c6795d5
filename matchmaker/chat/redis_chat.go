// matchmaker/chat/redis_chat.go
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisu "github.com/Ftotnem/GO-MATCHMAKER/shared/redis"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisService keeps room membership and history in Redis and publishes every
// message on the room's channel for the socket gateways to fan out.
type RedisService struct {
	client redis.UniversalClient
}

// NewRedisService creates a RedisService on an already connected client.
func NewRedisService(client redis.UniversalClient) *RedisService {
	return &RedisService{client: client}
}

// Spawn binds a room. Rooms are created implicitly by their first write.
func (rs *RedisService) Spawn(ctx context.Context, kind Kind, room Room) (Handle, error) {
	if room.Name == "" {
		return nil, fmt.Errorf("cannot spawn %s chat without a room name", kind)
	}
	id := roomID(kind, room)
	slot := fmt.Sprintf("%s:%s", room.Namespace, id)
	log.Debugf("Chat room %s spawned in namespace %s", id, room.Namespace)
	return &redisHandle{
		client:     rs.client,
		id:         id,
		membersKey: fmt.Sprintf(redisu.ChatMembersKeyPrefix, slot),
		historyKey: fmt.Sprintf(redisu.ChatHistoryKeyPrefix, slot),
		channel:    fmt.Sprintf(redisu.ChatChannelPrefix, slot),
	}, nil
}

type redisHandle struct {
	client     redis.UniversalClient
	id         string
	membersKey string
	historyKey string
	channel    string
}

func (h *redisHandle) ID() string { return h.id }

func (h *redisHandle) Join(ctx context.Context, name string) error {
	added, err := h.client.SAdd(ctx, h.membersKey, name).Result()
	if err != nil {
		return fmt.Errorf("failed to add %s to chat %s: %w", name, h.id, err)
	}
	if added == 0 {
		return nil // already a member
	}
	return h.Send(ctx, SystemMessage("%s joined", name))
}

func (h *redisHandle) Leave(ctx context.Context, name string) error {
	removed, err := h.client.SRem(ctx, h.membersKey, name).Result()
	if err != nil {
		return fmt.Errorf("failed to remove %s from chat %s: %w", name, h.id, err)
	}
	if removed == 0 {
		return nil
	}
	return h.Send(ctx, SystemMessage("%s left", name))
}

// Send appends the message to the capped history and publishes it.
func (h *redisHandle) Send(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message for chat %s: %w", h.id, err)
	}

	pipe := h.client.Pipeline()
	pipe.LPush(ctx, h.historyKey, payload)
	pipe.LTrim(ctx, h.historyKey, 0, redisu.ChatHistoryLimit-1)
	pipe.Publish(ctx, h.channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to send message to chat %s: %w", h.id, err)
	}
	return nil
}

func (h *redisHandle) Members(ctx context.Context) ([]string, error) {
	members, err := h.client.SMembers(ctx, h.membersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list members of chat %s: %w", h.id, err)
	}
	return members, nil
}

// Delete drops the room's membership and history.
func (h *redisHandle) Delete(ctx context.Context) error {
	deleted, err := h.client.Del(ctx, h.membersKey, h.historyKey).Result()
	if err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", h.id, err)
	}
	log.Debugf("Chat %s deleted (%d keys removed)", h.id, deleted)
	return nil
}
