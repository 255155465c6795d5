// shared/registry/constants.go
package registry

const (
	// RedisRegistryHashPrefix prefixes the hash holding every instance of a
	// service type, e.g. "services:matchmaker-service".
	RedisRegistryHashPrefix = "services:"

	MatchmakerServiceType = "matchmaker-service"
)

func hashKey(serviceType string) string {
	return RedisRegistryHashPrefix + serviceType
}
