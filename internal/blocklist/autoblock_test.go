package blocklist

import (
	"testing"
	"time"

	"github.com/relayim/socialcore/internal/config"
)

func testConfig() config.AutoBlockConfig {
	return config.AutoBlockConfig{
		Enabled:           true,
		BlockTriggerTimes: 5,
		BlockLevels: []config.BlockLevel{
			{BlockDurationSeconds: 60, GoNextLevelTriggerTimes: 3, ReduceOneTriggerTimeIntervalMillis: 60_000},
			{BlockDurationSeconds: 300, GoNextLevelTriggerTimes: 3, ReduceOneTriggerTimeIntervalMillis: 60_000},
			{BlockDurationSeconds: 600, GoNextLevelTriggerTimes: 0, ReduceOneTriggerTimeIntervalMillis: 60_000},
		},
	}
}

// fakeClock freezes the manager's clock so trigger counts never decay
// unless the test advances it.
func fakeClock(m *AutoBlockManager[string]) *int64 {
	now := int64(1_000_000_000_000)
	m.nowNanos = func() int64 { return now }
	return &now
}

func TestTryBlock_EscalatesThroughLevels(t *testing.T) {
	var blocks []int64
	m := New[string](testConfig(), func(id string, durationSeconds int64) {
		blocks = append(blocks, durationSeconds)
	})
	fakeClock(m)

	// Four failures: still below the trigger threshold.
	for i := 0; i < 4; i++ {
		m.TryBlock("client")
	}
	if len(blocks) != 0 {
		t.Fatalf("expected no block after 4 triggers, got %v", blocks)
	}

	// Fifth failure enters level 0.
	m.TryBlock("client")
	if len(blocks) != 1 || blocks[0] != 60 {
		t.Fatalf("expected one 60s block, got %v", blocks)
	}

	// Two more keep the client at level 0, sliding the deadline.
	m.TryBlock("client")
	m.TryBlock("client")
	if len(blocks) != 3 || blocks[2] != 60 {
		t.Fatalf("expected 60s blocks while at level 0, got %v", blocks)
	}

	// Third failure at level 0 escalates to level 1.
	m.TryBlock("client")
	if blocks[len(blocks)-1] != 300 {
		t.Fatalf("expected escalation to 300s, got %v", blocks)
	}

	// Ride level 1 up to level 2.
	m.TryBlock("client")
	m.TryBlock("client")
	m.TryBlock("client")
	if blocks[len(blocks)-1] != 600 {
		t.Fatalf("expected escalation to 600s, got %v", blocks)
	}

	// The top level never escalates past itself.
	for i := 0; i < 10; i++ {
		m.TryBlock("client")
	}
	if blocks[len(blocks)-1] != 600 {
		t.Fatalf("expected to stay at 600s at the top level, got %v", blocks)
	}
}

func TestTryBlock_TriggerCountDecays(t *testing.T) {
	var blocks int
	m := New[string](testConfig(), func(string, int64) { blocks++ })
	now := fakeClock(m)

	// Failures spaced two decay intervals apart never accumulate.
	for i := 0; i < 20; i++ {
		m.TryBlock("client")
		*now += 2 * int64(time.Minute)
	}
	if blocks != 0 {
		t.Fatalf("expected no block with fully decayed triggers, got %d", blocks)
	}
}

func TestTryBlock_IsolatedPerClient(t *testing.T) {
	blocked := map[string]bool{}
	m := New[string](testConfig(), func(id string, _ int64) { blocked[id] = true })
	fakeClock(m)

	for i := 0; i < 5; i++ {
		m.TryBlock("a")
	}
	m.TryBlock("b")

	if !blocked["a"] || blocked["b"] {
		t.Fatalf("expected only a to be blocked, got %v", blocked)
	}
}

func TestUnblock_ResetsHistory(t *testing.T) {
	var blocks int
	m := New[string](testConfig(), func(string, int64) { blocks++ })
	fakeClock(m)

	for i := 0; i < 5; i++ {
		m.TryBlock("client")
	}
	if blocks != 1 {
		t.Fatalf("expected one block, got %d", blocks)
	}

	m.Unblock("client")
	if m.Tracked() != 0 {
		t.Fatalf("expected no tracked clients after unblock, got %d", m.Tracked())
	}

	// The penalty history starts over.
	for i := 0; i < 4; i++ {
		m.TryBlock("client")
	}
	if blocks != 1 {
		t.Fatalf("expected no new block after reset, got %d", blocks)
	}
}

func TestEvictExpired_DropsDecayedClients(t *testing.T) {
	m := New[string](testConfig(), func(string, int64) {})
	now := fakeClock(m)

	m.TryBlock("client")
	if m.Tracked() != 1 {
		t.Fatalf("expected 1 tracked client, got %d", m.Tracked())
	}

	*now += int64(time.Hour)
	m.EvictExpired()
	if m.Tracked() != 0 {
		t.Fatalf("expected eviction after decay, got %d tracked", m.Tracked())
	}
}

func TestDisabledManagerIsNoop(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	m := New[string](cfg, func(string, int64) {
		t.Fatal("disabled manager must not block")
	})

	for i := 0; i < 100; i++ {
		m.TryBlock("client")
	}
	if m.Tracked() != 0 {
		t.Fatalf("disabled manager must not track clients, got %d", m.Tracked())
	}
}

func TestNoLevelsDisablesManager(t *testing.T) {
	cfg := testConfig()
	cfg.BlockLevels = nil
	m := New[string](cfg, func(string, int64) {
		t.Fatal("manager without levels must not block")
	})
	for i := 0; i < 10; i++ {
		m.TryBlock("client")
	}
}
