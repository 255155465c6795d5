package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/shared/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ServiceRegistrar keeps this instance's heartbeat record alive in Redis
// and sweeps records of instances that stopped heartbeating.
type ServiceRegistrar struct {
	redisClient redis.UniversalClient
	serviceType string
	cfg         *config.CommonConfig
	serviceID   string
	metadata    map[string]string
	now         func() time.Time
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewServiceRegistrar creates a registrar with a fresh instance ID.
// metadata is published with every heartbeat.
func NewServiceRegistrar(redisClient redis.UniversalClient, serviceType string, cfg *config.CommonConfig, metadata map[string]string) *ServiceRegistrar {
	return &ServiceRegistrar{
		redisClient: redisClient,
		serviceType: serviceType,
		cfg:         cfg,
		serviceID:   fmt.Sprintf("%s-%s", serviceType, uuid.NewString()),
		metadata:    maps.Clone(metadata),
		now:         time.Now,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start begins heartbeating in a goroutine.
func (sr *ServiceRegistrar) Start() {
	log.WithFields(log.Fields{
		"service": sr.serviceType,
		"id":      sr.serviceID,
		"ip":      sr.cfg.ServiceIP,
		"port":    sr.cfg.ServicePort,
	}).Info("Starting service registrar")

	go sr.run()
}

// Stop ends heartbeating and removes this instance's record.
func (sr *ServiceRegistrar) Stop() {
	close(sr.stopChan)
	<-sr.doneChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sr.redisClient.HDel(ctx, hashKey(sr.serviceType), sr.serviceID).Err(); err != nil {
		log.Errorf("Failed to remove service %s (ID: %s) from registry on shutdown: %v", sr.serviceType, sr.serviceID, err)
		return
	}
	log.Infof("Service %s (ID: %s) removed from registry.", sr.serviceType, sr.serviceID)
}

func (sr *ServiceRegistrar) run() {
	defer close(sr.doneChan)

	ticker := time.NewTicker(sr.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if sr.cfg.RegistryCleanupInterval > 0 {
		cleanupTicker := time.NewTicker(sr.cfg.RegistryCleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	sr.heartbeat(context.Background())
	for {
		select {
		case <-ticker.C:
			sr.heartbeat(context.Background())
		case <-cleanup:
			sr.cleanup(context.Background())
		case <-sr.stopChan:
			return
		}
	}
}

func (sr *ServiceRegistrar) heartbeat(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	info := ServiceInfo{
		ServiceID:   sr.serviceID,
		ServiceType: sr.serviceType,
		IP:          sr.cfg.ServiceIP,
		Port:        sr.cfg.ServicePort,
		LastSeen:    sr.now().UnixMilli(),
		Metadata:    sr.metadata,
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		log.Errorf("Failed to marshal ServiceInfo for %s: %v", sr.serviceID, err)
		return
	}
	if err := sr.redisClient.HSet(ctx, hashKey(sr.serviceType), sr.serviceID, infoJSON).Err(); err != nil {
		log.Errorf("Failed to heartbeat service %s (ID: %s): %v", sr.serviceType, sr.serviceID, err)
		return
	}
	log.Debugf("Service %s (ID: %s) heartbeated.", sr.serviceType, sr.serviceID)
}

// cleanup removes corrupt and stale records of this service type.
func (sr *ServiceRegistrar) cleanup(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	key := hashKey(sr.serviceType)
	results, err := sr.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		log.Errorf("Registry cleanup failed to list %s: %v", sr.serviceType, err)
		return 0
	}

	removed := 0
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		stale := json.Unmarshal([]byte(infoJSON), &info) != nil ||
			sr.now().Sub(time.UnixMilli(info.LastSeen)) > sr.cfg.HeartbeatTTL
		if !stale {
			continue
		}
		if err := sr.redisClient.HDel(ctx, key, instanceID).Err(); err != nil {
			log.Errorf("Registry cleanup failed to delete %s: %v", instanceID, err)
			continue
		}
		removed++
		log.Infof("Registry cleanup removed stale instance %s.", instanceID)
	}
	return removed
}

// ServiceID returns the unique ID assigned to this instance.
func (sr *ServiceRegistrar) ServiceID() string {
	return sr.serviceID
}
