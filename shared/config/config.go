// shared/config/config.go
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// CommonConfig holds configuration fields that are shared across multiple services.
type CommonConfig struct {
	RedisAddrs              []string      // Redis server addresses (e.g., "redis-cluster:6379")
	RedisPassword           string        // Redis password for authentication
	HeartbeatInterval       time.Duration // How often to send a heartbeat to registry (e.g., 5s)
	HeartbeatTTL            time.Duration // How long an instance is considered alive without a heartbeat (e.g., 15s)
	RegistryCleanupInterval time.Duration // How often the registry actively cleans stale entries (e.g., 30s)
	ServiceIP               string        // The IP address this service advertises for registration (Kubernetes Pod IP)
	ServicePort             int           // The port this service listens on, used for registration
	LogLevel                string        // logrus level name (e.g., "info", "debug")
}

// MatchmakerServiceConfig holds configuration specific to the matchmaker-service.
type MatchmakerServiceConfig struct {
	CommonConfig                              // Embed CommonConfig
	ListenAddr                  string        // Address for the HTTP server (e.g., ":8083")
	MongoDBConnStr              string        // MongoDB connection string
	MongoDBDatabase             string        // MongoDB database name (e.g., "matchmaking")
	MongoDBPlayersCollection    string        // Player profiles (rating, guild)
	MongoDBMatchesCollection    string        // Persisted matches created when a lobby starts
	MongoDBModerationCollection string        // Externally created match moderation records
	ChatBackend                 string        // "redis" or "memory"
	ChatNamespace               string        // Namespace prefix for lobby/team chat rooms
	TickInterval                time.Duration // How often lobbies are advanced (e.g., 10s)
	TickConcurrency             int           // Max lobbies handled concurrently within one tick
	StallTimeout                time.Duration // Max time a lobby may wait in filled/voting; 0 disables
	ModerationInterval          time.Duration // How often moderation records are swept (e.g., 30m)
	ModerationTimeout           time.Duration // Timeout for one full moderation sweep
	RatingBracket               float64       // Acceptance bracket around the requester's rating
	DefaultRating               float64       // Rating given to players without a stored profile
	MaxSearchAttempts           int           // Search retries when the chosen lobby fills before the join lands
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	cfg := CommonConfig{}
	var err error

	redisAddrsStr := os.Getenv("REDIS_ADDRS")
	if redisAddrsStr == "" {
		cfg.RedisAddrs = []string{"redis-cluster-headless.matchmaking.svc.cluster.local:6379"} // Default for K8s Service
	} else {
		for _, addr := range strings.Split(redisAddrsStr, ",") {
			cfg.RedisAddrs = append(cfg.RedisAddrs, strings.TrimSpace(addr))
		}
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.HeartbeatInterval, err = getDuration("SERVICE_HEARTBEAT_INTERVAL", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.HeartbeatTTL, err = getDuration("SERVICE_HEARTBEAT_TTL", 15*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.RegistryCleanupInterval, err = getDuration("SERVICE_REGISTRY_CLEANUP_INTERVAL", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	// Service IP (for registration, from Kubernetes Pod IP)
	cfg.ServiceIP = os.Getenv("POD_IP")
	if cfg.ServiceIP == "" {
		cfg.ServiceIP = "0.0.0.0"
		log.Warnf("POD_IP not set, defaulting ServiceIP to %s", cfg.ServiceIP)
	}

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Helper function to parse duration from environment variable
func getDuration(envKey string, defaultVal time.Duration) (time.Duration, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %w", envKey, err)
	}
	return d, nil
}

// Helper function to parse int from environment variable
func getInt(envKey string, defaultVal int) (int, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format for %s: %w", envKey, err)
	}
	return i, nil
}

func getFloat(envKey string, defaultVal float64) (float64, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float format for %s: %w", envKey, err)
	}
	return f, nil
}

func getString(envKey, defaultVal string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultVal
}

// extractPort extracts the numeric port from a listen address (e.g., ":8082" -> 8082, "0.0.0.0:8082" -> 8082)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		// If SplitHostPort fails, check if ListenAddr is just a port (e.g., ":8082")
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}

// LoadMatchmakerServiceConfig loads configuration for the matchmaker-service.
func LoadMatchmakerServiceConfig() (*MatchmakerServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for matchmaker-service: %w", err)
	}

	cfg := &MatchmakerServiceConfig{
		CommonConfig:                common,
		ListenAddr:                  getString("MATCHMAKER_LISTEN_ADDR", ":8083"),
		MongoDBConnStr:              getString("MONGODB_CONN_STR", "mongodb://mongodb-service:27017"),
		MongoDBDatabase:             getString("MONGODB_DATABASE", "matchmaking"),
		MongoDBPlayersCollection:    getString("MONGODB_PLAYERS_COLLECTION", "players"),
		MongoDBMatchesCollection:    getString("MONGODB_MATCHES_COLLECTION", "matches"),
		MongoDBModerationCollection: getString("MONGODB_MODERATION_COLLECTION", "match_moderation"),
		ChatBackend:                 getString("MATCHMAKER_CHAT_BACKEND", "redis"),
		ChatNamespace:               getString("MATCHMAKER_CHAT_NAMESPACE", "client"),
	}

	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from MATCHMAKER_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	// Durations
	cfg.TickInterval, err = getDuration("MATCHMAKER_TICK_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.StallTimeout, err = getDuration("MATCHMAKER_STALL_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ModerationInterval, err = getDuration("MATCHMAKER_MODERATION_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ModerationTimeout, err = getDuration("MATCHMAKER_MODERATION_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.TickConcurrency, err = getInt("MATCHMAKER_TICK_CONCURRENCY", 16)
	if err != nil {
		return nil, err
	}
	cfg.MaxSearchAttempts, err = getInt("MATCHMAKER_MAX_SEARCH_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cfg.RatingBracket, err = getFloat("MATCHMAKER_RATING_BRACKET", 200)
	if err != nil {
		return nil, err
	}
	cfg.DefaultRating, err = getFloat("MATCHMAKER_DEFAULT_RATING", 1000)
	if err != nil {
		return nil, err
	}

	// Final validation
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("MATCHMAKER_TICK_INTERVAL must be positive (got %v)", cfg.TickInterval)
	}
	if cfg.ModerationInterval <= 0 {
		return nil, fmt.Errorf("MATCHMAKER_MODERATION_INTERVAL must be positive (got %v)", cfg.ModerationInterval)
	}
	if cfg.TickConcurrency <= 0 {
		return nil, fmt.Errorf("MATCHMAKER_TICK_CONCURRENCY must be a positive integer (got %d)", cfg.TickConcurrency)
	}
	if cfg.MaxSearchAttempts <= 0 {
		return nil, fmt.Errorf("MATCHMAKER_MAX_SEARCH_ATTEMPTS must be a positive integer (got %d)", cfg.MaxSearchAttempts)
	}
	if cfg.ChatBackend != "redis" && cfg.ChatBackend != "memory" {
		return nil, fmt.Errorf("MATCHMAKER_CHAT_BACKEND must be 'redis' or 'memory' (got %q)", cfg.ChatBackend)
	}

	return cfg, nil
}
