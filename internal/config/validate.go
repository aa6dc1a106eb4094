package config

import "fmt"

// Validate checks c for structural and semantic problems. A node must fail
// fast at startup rather than begin serving with a broken configuration.
func (c Config) Validate() error {
	if c.NodeID == "" {
		return errInvalid("node-id must not be empty")
	}
	if c.CommunicationPort <= 0 || c.CommunicationPort > 65535 {
		return errInvalid("communication-port must be in (0, 65535]")
	}
	if c.HeartbeatIntervalMS <= 0 {
		return errInvalid("heartbeat-interval-ms must be positive")
	}
	if c.HeartbeatTimeoutMS <= c.HeartbeatIntervalMS {
		return errInvalid("heartbeat-timeout-ms must exceed heartbeat-interval-ms")
	}
	if c.FailureThreshold <= 0 {
		return errInvalid("failure-threshold must be positive")
	}

	switch c.DispatchMode {
	case "", "async", "sync":
	default:
		return errInvalid(fmt.Sprintf("dispatch-mode %q must be async or sync", c.DispatchMode))
	}

	switch c.Discovery.Type {
	case "static":
		if len(c.Discovery.Peers) == 0 {
			return errInvalid("discovery.static.peers must not be empty")
		}
	case "":
		// No peers configured is valid for a single-node deployment.
	default:
		return errInvalid(fmt.Sprintf("discovery.type %q is not supported", c.Discovery.Type))
	}

	for name, cache := range c.Caches {
		cfg, err := cache.ToStoreConfig()
		if err != nil {
			return errInvalid(fmt.Sprintf("cache %q: %v", name, err))
		}
		if err := cfg.Validate(); err != nil {
			return errInvalid(fmt.Sprintf("cache %q: %v", name, err))
		}
	}

	return nil
}
