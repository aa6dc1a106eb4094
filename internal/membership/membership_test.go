package membership

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAddPeerStartsActive(t *testing.T) {
	m := New("self", DefaultParams(), nil)
	m.AddPeer("peer-a:9000")

	if !m.IsActive("peer-a:9000") {
		t.Fatal("expected newly added peer to start active")
	}
	known := m.KnownPeers()
	if len(known) != 1 || known[0] != "peer-a:9000" {
		t.Fatalf("expected known peers to contain peer-a:9000, got %v", known)
	}
}

func TestFailureThresholdTransitionsToInactive(t *testing.T) {
	params := DefaultParams()
	params.FailureThreshold = 3
	m := New("self", params, nil)
	m.AddPeer("peer-a:9000")

	m.RecordHeartbeatFailure("peer-a:9000")
	m.RecordHeartbeatFailure("peer-a:9000")
	if !m.IsActive("peer-a:9000") {
		t.Fatal("expected peer still active before reaching failure threshold")
	}

	m.RecordHeartbeatFailure("peer-a:9000")
	if m.IsActive("peer-a:9000") {
		t.Fatal("expected peer inactive after reaching failure threshold")
	}
}

func TestHeartbeatSuccessRecoversInactivePeer(t *testing.T) {
	params := DefaultParams()
	params.FailureThreshold = 1
	m := New("self", params, nil)
	m.AddPeer("peer-a:9000")

	m.RecordHeartbeatFailure("peer-a:9000")
	if m.IsActive("peer-a:9000") {
		t.Fatal("expected peer inactive after single failure with threshold=1")
	}

	m.RecordHeartbeatSuccess("peer-a:9000")
	if !m.IsActive("peer-a:9000") {
		t.Fatal("expected peer active again after a successful heartbeat")
	}
}

func TestStalenessReevaluationMarksInactive(t *testing.T) {
	params := Params{HeartbeatInterval: time.Hour, HeartbeatTimeout: 50 * time.Millisecond, FailureThreshold: 100}
	m := New("self", params, nil)
	m.AddPeer("peer-a:9000")

	time.Sleep(100 * time.Millisecond)
	m.reevaluateStaleness(time.Now())

	if m.IsActive("peer-a:9000") {
		t.Fatal("expected peer marked inactive after stale heartbeat window")
	}
}

func TestViewNeverShowsActiveWithoutKnown(t *testing.T) {
	m := New("self", DefaultParams(), nil)
	m.AddPeer("a")
	m.AddPeer("b")
	m.RemovePeer("a")

	view := m.View()
	for _, active := range view.ActivePeers {
		found := false
		for _, known := range view.KnownPeers {
			if known == active {
				found = true
			}
		}
		if !found {
			t.Fatalf("peer %s is active but not known", active)
		}
	}
}

// TestFailureDetectionEndToEnd: a three-node cluster where one peer stops
// responding should be observed as known-but-inactive with failures >=
// threshold within ~900ms.
func TestFailureDetectionEndToEnd(t *testing.T) {
	params := Params{HeartbeatInterval: 50 * time.Millisecond, HeartbeatTimeout: 150 * time.Millisecond, FailureThreshold: 3}
	m := New("node-a", params, nil)
	m.AddPeer("node-b:9000")
	m.AddPeer("node-c:9000")

	var mu sync.Mutex
	down := map[string]bool{"node-c:9000": true}

	ping := func(ctx context.Context, addr string) error {
		mu.Lock()
		defer mu.Unlock()
		if down[addr] {
			return context.DeadlineExceeded
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx, ping)
	defer m.Stop()

	deadline := time.Now().Add(900 * time.Millisecond)
	for time.Now().Before(deadline) {
		view := m.View()
		if !contains(view.ActivePeers, "node-c:9000") && view.ConsecutiveFailures["node-c:9000"] >= 3 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected node-c to be known-but-inactive with >=3 failures within 900ms")
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
