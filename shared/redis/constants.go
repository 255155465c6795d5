// shared/redis/constants.go
package redis

const (
	// Key constants for Redis matchmaking data. The braces pin every key of one
	// room or member to the same cluster slot.
	ChatMembersKeyPrefix = "chat_members:{%s}:" // Set of member names in a chat room: chat_members:{roomID}
	ChatHistoryKeyPrefix = "chat_history:{%s}:" // Capped list of JSON messages: chat_history:{roomID}
	ChatChannelPrefix    = "chat:{%s}:"         // Pub/sub channel a room's messages are published on
	NotifyChannelPrefix  = "notify:{%s}:"       // Pub/sub channel for one member's notifications: notify:{name}

	ChatHistoryLimit = 50 // Messages kept per room
)
