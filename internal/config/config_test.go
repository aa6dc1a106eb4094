package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
node-id: node-a
communication-port: 7050
heartbeat-interval-ms: 5000
heartbeat-timeout-ms: 15000
failure-threshold: 3
discovery:
  type: static
  peers:
    - node-b:7050
    - node-c:7050
caches:
  users:
    ttl: PT5M
    eviction-policy: LRU
    max-entries: 10000
    memory-cap-mb: 64
    replication-mode: INVALIDATE
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "node-a" {
		t.Fatalf("expected node-a, got %s", cfg.NodeID)
	}
	if cfg.HeartbeatInterval() != 5*time.Second {
		t.Fatalf("expected 5s heartbeat interval, got %s", cfg.HeartbeatInterval())
	}
	if len(cfg.Discovery.Peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(cfg.Discovery.Peers))
	}
	storeCfg, err := cfg.Caches["users"].ToStoreConfig()
	if err != nil {
		t.Fatalf("ToStoreConfig: %v", err)
	}
	if storeCfg.TTL != 5*time.Minute {
		t.Fatalf("expected 5m TTL, got %s", storeCfg.TTL)
	}
	if storeCfg.MemoryCapBytes != 64<<20 {
		t.Fatalf("expected 64MiB cap, got %d", storeCfg.MemoryCapBytes)
	}
}

func TestLoadRejectsMissingNodeID(t *testing.T) {
	path := writeTempConfig(t, `
communication-port: 7050
heartbeat-interval-ms: 5000
heartbeat-timeout-ms: 15000
failure-threshold: 3
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing node-id")
	}
	if !errors.Is(err, ErrConfigurationInvalid) {
		t.Fatalf("expected ErrConfigurationInvalid, got %v", err)
	}
}

func TestLoadRejectsTimeoutNotExceedingInterval(t *testing.T) {
	path := writeTempConfig(t, `
node-id: node-a
communication-port: 7050
heartbeat-interval-ms: 5000
heartbeat-timeout-ms: 1000
failure-threshold: 3
`)
	_, err := Load(path)
	if !errors.Is(err, ErrConfigurationInvalid) {
		t.Fatalf("expected ErrConfigurationInvalid, got %v", err)
	}
}

func TestLoadRejectsUnknownDiscoveryType(t *testing.T) {
	path := writeTempConfig(t, `
node-id: node-a
communication-port: 7050
heartbeat-interval-ms: 5000
heartbeat-timeout-ms: 15000
failure-threshold: 3
discovery:
  type: gossip
`)
	_, err := Load(path)
	if !errors.Is(err, ErrConfigurationInvalid) {
		t.Fatalf("expected ErrConfigurationInvalid, got %v", err)
	}
}

func TestParseDefersValidation(t *testing.T) {
	path := writeTempConfig(t, `
communication-port: 7050
heartbeat-interval-ms: 5000
heartbeat-timeout-ms: 15000
failure-threshold: 3
`)
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.NodeID != "" {
		t.Fatalf("expected empty node-id from file, got %q", cfg.NodeID)
	}

	if err := cfg.Validate(); !errors.Is(err, ErrConfigurationInvalid) {
		t.Fatalf("expected ErrConfigurationInvalid before an identity is injected, got %v", err)
	}

	cfg.NodeID = "node-a"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config once node-id is set, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseISO8601Duration(t *testing.T) {
	cases := map[string]time.Duration{
		"PT5M":    5 * time.Minute,
		"PT1H30M": time.Hour + 30*time.Minute,
		"P1D":     24 * time.Hour,
		"P1DT12H": 36 * time.Hour,
		"PT0.5S":  500 * time.Millisecond,
	}
	for input, want := range cases {
		got, err := ParseISO8601Duration(input)
		if err != nil {
			t.Fatalf("ParseISO8601Duration(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseISO8601Duration(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestParseISO8601DurationRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "5M", "PT", "PTX", "PT-5M"} {
		if _, err := ParseISO8601Duration(input); err == nil {
			t.Fatalf("expected error parsing %q", input)
		}
	}
}
