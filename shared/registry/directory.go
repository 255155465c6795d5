package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Directory reads the registry written by ServiceRegistrar.
type Directory struct {
	redisClient    redis.UniversalClient
	serviceTimeout time.Duration
	now            func() time.Time
}

func NewDirectory(redisClient redis.UniversalClient, serviceTimeout time.Duration) *Directory {
	return &Directory{redisClient: redisClient, serviceTimeout: serviceTimeout, now: time.Now}
}

// ActiveServices returns the instances of serviceType whose last heartbeat
// is within the service timeout, keyed by instance ID. Malformed records are
// skipped; the registrar's cleanup removes them.
func (d *Directory) ActiveServices(ctx context.Context, serviceType string) (map[string]ServiceInfo, error) {
	results, err := d.redisClient.HGetAll(ctx, hashKey(serviceType)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list services of type %s: %w", serviceType, err)
	}

	active := make(map[string]ServiceInfo)
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			log.Warnf("Directory: malformed ServiceInfo for %s (type %s): %v", instanceID, serviceType, err)
			continue
		}
		if d.now().Sub(time.UnixMilli(info.LastSeen)) <= d.serviceTimeout {
			active[instanceID] = info
		}
	}
	return active, nil
}

// Peers returns the active instances of serviceType other than selfID.
func (d *Directory) Peers(ctx context.Context, serviceType, selfID string) ([]ServiceInfo, error) {
	active, err := d.ActiveServices(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	peers := make([]ServiceInfo, 0, len(active))
	for id, info := range active {
		if id != selfID {
			peers = append(peers, info)
		}
	}
	return peers, nil
}
