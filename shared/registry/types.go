// shared/registry/types.go
package registry

// ServiceInfo is the heartbeat record one service instance keeps in Redis.
type ServiceInfo struct {
	ServiceID   string            `json:"serviceId"`
	ServiceType string            `json:"serviceType"` // e.g. "matchmaker-service"
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	LastSeen    int64             `json:"last_seen"` // unix millis
	Metadata    map[string]string `json:"metadata,omitempty"`
}
