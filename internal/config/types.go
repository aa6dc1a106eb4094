package config

import (
	"fmt"
	"time"

	"github.com/dreamware/meshcache/internal/store"
)

// Config is the node's full startup configuration.
type Config struct {
	NodeID              string           `yaml:"node-id"`
	AdvertiseAddr       string           `yaml:"advertise-addr"`
	CommunicationPort   int              `yaml:"communication-port"`
	HeartbeatIntervalMS int              `yaml:"heartbeat-interval-ms"`
	HeartbeatTimeoutMS  int              `yaml:"heartbeat-timeout-ms"`
	FailureThreshold    int              `yaml:"failure-threshold"`
	Discovery           DiscoveryConfig  `yaml:"discovery"`
	Caches              map[string]Cache `yaml:"caches"`
	DispatchMode        string           `yaml:"dispatch-mode"` // "async" (default) or "sync"
}

// DiscoveryConfig selects how the node learns about its peers at startup.
// Only static discovery is supported: a fixed list of host:port addresses.
type DiscoveryConfig struct {
	Type  string   `yaml:"type"`
	Peers []string `yaml:"peers"`
}

// Cache is one named cache's on-disk configuration. TTL and MemoryCapMB use
// human-friendly units (an ISO-8601 duration string and megabytes,
// respectively) and are converted to store.CacheConfig's duration/byte
// fields by ToStoreConfig.
type Cache struct {
	TTL             string `yaml:"ttl"`
	EvictionPolicy  string `yaml:"eviction-policy"`
	MaxEntries      int    `yaml:"max-entries"`
	MemoryCapMB     int    `yaml:"memory-cap-mb"`
	ReplicationMode string `yaml:"replication-mode"`
}

// ToStoreConfig converts the on-disk representation into the type the
// store package operates on. Callers should only invoke this after
// Config.Validate has succeeded.
func (c Cache) ToStoreConfig() (store.CacheConfig, error) {
	ttl, err := ParseISO8601Duration(c.TTL)
	if err != nil {
		return store.CacheConfig{}, err
	}
	return store.CacheConfig{
		TTL:             ttl,
		Eviction:        store.EvictionPolicy(c.EvictionPolicy),
		MaxEntries:      c.MaxEntries,
		MemoryCapBytes:  int64(c.MemoryCapMB) << 20,
		ReplicationMode: store.ReplicationMode(c.ReplicationMode),
	}, nil
}

// HeartbeatInterval converts the millisecond field to a time.Duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// HeartbeatTimeout converts the millisecond field to a time.Duration.
func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMS) * time.Millisecond
}

// ListenAddr is the local bind address for the transport server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.CommunicationPort)
}

// AdvertiseAddress is the dialable host:port other nodes use to reach this
// one, carried inside outbound heartbeats. It defaults to NodeID, matching
// the convention of configuring node-id as the node's own host:port when
// no separate advertise-addr is given.
func (c Config) AdvertiseAddress() string {
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	return c.NodeID
}
