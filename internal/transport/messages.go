package transport

import "time"

// Message type discriminators used as the frame's type field.
const (
	TypeInvalidation = "INVALIDATION"
	TypeReplication  = "REPLICATION"
	TypeHeartbeat    = "HEARTBEAT"
)

// InvalidationMessage tells the receiving node to drop one key, every key
// in a cache, or every key in a cache matching a prefix.
type InvalidationMessage struct {
	CacheName     string `msgpack:"cache_name"`
	Key           string `msgpack:"key,omitempty"`
	Prefix        string `msgpack:"prefix,omitempty"`
	InvalidateAll bool   `msgpack:"invalidate_all,omitempty"`
	OriginNodeID  string `msgpack:"origin_node_id"`
}

// ReplicationMessage carries a full key/value pair to replicate onto the
// receiving node's store.
type ReplicationMessage struct {
	CacheName    string        `msgpack:"cache_name"`
	Key          string        `msgpack:"key"`
	Value        []byte        `msgpack:"value"`
	TTL          time.Duration `msgpack:"ttl"`
	OriginNodeID string        `msgpack:"origin_node_id"`
}

// HeartbeatMessage is the periodic liveness probe exchanged between peers.
// SenderAddr carries the sender's dialable address so the receiver can
// match the heartbeat to a known peer (or register a new one) without
// assuming a node's id doubles as its host:port.
type HeartbeatMessage struct {
	SenderNodeID string    `msgpack:"sender_node_id"`
	SenderAddr   string    `msgpack:"sender_addr"`
	SentAt       time.Time `msgpack:"sent_at"`
}

// AckMessage is the in-process representation of the ASCII "OK"/"ERROR"
// acknowledgment line the server writes after processing an inbound
// message. It is never codec-encoded; see writeAck/readAck in frame.go for
// the actual wire form.
type AckMessage struct {
	OK    bool
	Error string
}
