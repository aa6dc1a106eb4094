// Package main implements cachenode, a runnable meshcache node that embeds
// the full cache engine and peers with other nodes over a TCP mesh.
//
// The node is a symmetric member of the cluster, responsible for:
//   - Serving its local named caches (TTL, eviction, statistics)
//   - Propagating mutations to peers per each cache's replication mode
//   - Applying inbound invalidation/replication messages from peers
//   - Heartbeating every known peer and detecting failures
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│               cachenode                 │
//	├─────────────────────────────────────────┤
//	│  Configuration:                         │
//	│    YAML file     - full surface         │
//	│    environment   - scalar overrides     │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    meshcache.Engine - the full stack    │
//	│    TCP listener     - inbound messages  │
//	│    signal handler   - graceful drain    │
//	└─────────────────────────────────────────┘
//
// Configuration:
//   - CACHENODE_CONFIG: path to the YAML configuration file (default:
//     "cachenode.yaml")
//   - NODE_ID: overrides the config file's node-id; a random UUID is
//     generated if neither is set
//   - COMMUNICATION_PORT: overrides the config file's communication-port
//
// Example usage:
//
//	# Start a node
//	CACHENODE_CONFIG=./cachenode.yaml \
//	NODE_ID=127.0.0.1:7050 \
//	./cachenode
//
//	# Stop it gracefully
//	kill -TERM $(pidof cachenode)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	meshcache "github.com/dreamware/meshcache"
	"github.com/dreamware/meshcache/internal/config"
)

// logFatal is a variable to allow mocking log.Fatalf in tests.
// This indirection enables test code to intercept fatal errors
// without actually terminating the test process.
var logFatal = log.Fatalf

// shutdownGrace bounds how long cachenode waits for the engine to drain on
// SIGINT/SIGTERM before giving up: in-flight inbound handlers, pending
// async dispatches, and pooled sockets must all release within this
// budget.
const shutdownGrace = 30 * time.Second

// main initializes and runs the cache node, serving mesh traffic until a
// shutdown signal arrives.
//
// The main function:
//  1. Parses the YAML configuration file
//  2. Applies NODE_ID/COMMUNICATION_PORT environment overrides, then
//     validates the result
//  3. Builds the zap production logger
//  4. Constructs a meshcache.Engine (binds the listener, starts
//     heartbeats)
//  5. Blocks until SIGINT/SIGTERM
//  6. Drains the engine within the shutdown grace period
//
// Required configuration:
//   - A readable YAML file at CACHENODE_CONFIG (or ./cachenode.yaml)
//
// Optional environment:
//   - NODE_ID: node identity override (random UUID if nothing is set)
//   - COMMUNICATION_PORT: listener port override
//
// Exit codes:
//   - 0: Normal shutdown via signal
//   - 1: Invalid or unreadable configuration
//   - 1: Failed to bind the communication port
func main() {
	path := getenv("CACHENODE_CONFIG", "cachenode.yaml")

	// Parse first, validate after the overrides: a missing node-id in the
	// file is fine as long as NODE_ID or the generated UUID fills it in.
	cfg, err := config.Parse(path)
	if err != nil {
		logFatal("cachenode: load config %s: %v", path, err)
		return
	}

	if v := os.Getenv("NODE_ID"); v != "" {
		cfg.NodeID = v
	} else if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if v := os.Getenv("COMMUNICATION_PORT"); v != "" {
		port, convErr := strconv.Atoi(v)
		if convErr != nil {
			logFatal("cachenode: invalid COMMUNICATION_PORT %q: %v", v, convErr)
			return
		}
		cfg.CommunicationPort = port
	}

	if err := cfg.Validate(); err != nil {
		logFatal("cachenode: invalid configuration %s: %v", path, err)
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logFatal("cachenode: build logger: %v", err)
		return
	}
	defer logger.Sync() //nolint:errcheck

	log.Printf("cachenode[%s]: starting, listening on %s", cfg.NodeID, cfg.ListenAddr())

	engine, err := meshcache.New(cfg, logger)
	if err != nil {
		logFatal("cachenode: start engine: %v", err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("cachenode[%s]: received %s, shutting down", cfg.NodeID, sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := engine.Shutdown(ctx); err != nil {
		log.Printf("cachenode[%s]: shutdown error: %v", cfg.NodeID, err)
	}
	log.Printf("cachenode[%s]: stopped", cfg.NodeID)
}

// getenv retrieves an environment variable with a default fallback value,
// simplifying configuration management for optional settings.
//
// The function checks if the environment variable is set and non-empty,
// returning its value if so, otherwise returning the default value.
//
// Parameters:
//   - k: Environment variable name to look up
//   - def: Default value if variable is unset or empty
//
// Returns:
//   - Environment variable value if set and non-empty
//   - Default value otherwise
//
// Example:
//
//	path := getenv("CACHENODE_CONFIG", "cachenode.yaml")
//	// Returns $CACHENODE_CONFIG if set, otherwise "cachenode.yaml"
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
