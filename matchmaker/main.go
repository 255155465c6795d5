package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	matchmakerapi "github.com/Ftotnem/GO-MATCHMAKER/matchmaker/api"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/chat"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/notify"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/search"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/service"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/store"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/syncer"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/team"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/updater"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/api"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/config"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/mongodb"
	redisu "github.com/Ftotnem/GO-MATCHMAKER/shared/redis"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/registry"
	log "github.com/sirupsen/logrus"
)

func main() {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadMatchmakerServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Printf("Configuration loaded for Matchmaker Service. Listening on: %s", cfg.ListenAddr)

	// --- 2. Connect to Redis Cluster ---
	redisClient, err := redisu.NewRedisClusterClient(cfg.RedisAddrs, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis Cluster: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Errorf("Error closing Redis client: %v", err)
		}
		log.Println("Redis Client closed.")
	}()

	// --- 3. Connect to MongoDB ---
	mongoClient, err := mongodb.NewClient(cfg.MongoDBConnStr, cfg.MongoDBDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Errorf("Error disconnecting MongoDB client: %v", err)
		}
	}()

	playerStore := store.NewPlayerStore(mongoClient.Collection(cfg.MongoDBPlayersCollection))
	matchStore := store.NewMatchStore(mongoClient.Collection(cfg.MongoDBMatchesCollection))
	moderationStore := store.NewModerationStore(mongoClient.Collection(cfg.MongoDBModerationCollection))

	// --- 4. Chat and notifications ---
	var chats chat.Service
	var notifier notify.Notifier
	switch cfg.ChatBackend {
	case "memory":
		chats = chat.NewMemoryService()
		notifier = notify.LogNotifier{}
	default:
		chats = chat.NewRedisService(redisClient)
		notifier = notify.NewRedisNotifier(redisClient, cfg.ChatNamespace)
	}
	log.Printf("Chat backend: %s (namespace %q)", cfg.ChatBackend, cfg.ChatNamespace)

	// --- 5. Matchmaking core ---
	controller := lobby.NewStandardController(lobby.DefaultGame, lobby.DefaultMaps, matchStore)
	lobbies := lobby.NewRegistry(controller, chats, cfg.ChatNamespace)
	teams := team.NewRegistry(chats, cfg.ChatNamespace)
	members := service.NewMemberDirectory(playerStore, cfg.DefaultRating)

	matchmakingService := service.NewMatchmakingService(
		service.Options{RatingBracket: cfg.RatingBracket, MaxSearchAttempts: cfg.MaxSearchAttempts},
		members,
		lobbies,
		teams,
		search.NewEngine(lobbies),
		notifier,
	)
	log.Println("Matchmaking Service business logic initialized.")

	// --- 6. Service Registrar ---
	registrar := registry.NewServiceRegistrar(redisClient, registry.MatchmakerServiceType, &cfg.CommonConfig, map[string]string{
		"game": controller.Game(),
		"chat": cfg.ChatBackend,
	})
	registrar.Start()
	defer registrar.Stop()

	// Lobbies live in this process only; a second instance splits players.
	directory := registry.NewDirectory(redisClient, cfg.HeartbeatTTL)
	peerCtx, peerCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if peers, err := directory.Peers(peerCtx, registry.MatchmakerServiceType, registrar.ServiceID()); err != nil {
		log.Warnf("Failed to list matchmaker peers: %v", err)
	} else if len(peers) > 0 {
		log.Warnf("%d other matchmaker instance(s) are active; lobbies are not shared between instances", len(peers))
	}
	peerCancel()

	// --- 7. Background loops ---
	lobbyUpdater := updater.NewLobbyUpdater(cfg, lobbies, notifier)
	go lobbyUpdater.Start()
	defer lobbyUpdater.Stop()

	moderationSyncer := syncer.NewModerationSyncer(cfg, matchStore, moderationStore, members, lobbies)
	go moderationSyncer.Start()
	defer moderationSyncer.Stop()

	// --- 8. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, log.StandardLogger())
	matchmakerapi.NewMatchmakerAPIHandlers(matchmakingService).RegisterRoutes(baseServer.Router)
	log.Println("HTTP routes registered.")

	go func() {
		if err := baseServer.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// --- 9. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down Matchmaker Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server graceful shutdown failed: %v", err)
	}
	log.Println("Matchmaker Service HTTP server gracefully stopped.")
}
