// Package blocklist tracks abusive client identities and escalates block
// penalties through an ordered list of levels.
package blocklist

import (
	"sync"
	"time"

	"github.com/relayim/socialcore/internal/config"
)

const unsetBlockLevel = -1

// AutoBlockManager keeps one in-memory penalty status per tracked client.
// Updates to any one key are atomic and isolated; the expiry sweep iterates
// under the same lock. No I/O happens inside the critical section.
type AutoBlockManager[T comparable] struct {
	onClientBlocked func(id T, durationSeconds int64)

	enabled           bool
	levels            []config.BlockLevel
	maxLevel          int
	blockTriggerTimes int

	nowNanos func() int64

	mu       sync.Mutex
	statuses map[T]*blockStatus
}

type blockStatus struct {
	currentLevel         int
	currentLevelConfig   config.BlockLevel
	triggerTimes         int
	lastTriggerTimeNanos int64
}

// New builds a manager from the given config. The manager is a no-op when
// auto-blocking is disabled or no levels are configured.
func New[T comparable](cfg config.AutoBlockConfig, onClientBlocked func(id T, durationSeconds int64)) *AutoBlockManager[T] {
	m := &AutoBlockManager[T]{
		onClientBlocked:   onClientBlocked,
		enabled:           cfg.Enabled && len(cfg.BlockLevels) > 0,
		levels:            cfg.BlockLevels,
		blockTriggerTimes: cfg.BlockTriggerTimes,
		nowNanos:          func() int64 { return time.Now().UnixNano() },
	}
	if !m.enabled {
		m.maxLevel = unsetBlockLevel
		return m
	}
	m.maxLevel = len(m.levels) - 1
	m.statuses = make(map[T]*blockStatus, 1024)
	return m
}

// TryBlock records one abusive event for id and escalates or triggers a
// block when the thresholds are crossed. onClientBlocked is invoked on
// every call made while the client is blocked, so the caller's block
// deadline keeps sliding forward.
func (m *AutoBlockManager[T]) TryBlock(id T) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowNanos()
	status, ok := m.statuses[id]
	if !ok {
		status = &blockStatus{
			currentLevel:         unsetBlockLevel,
			currentLevelConfig:   m.levels[0],
			lastTriggerTimeNanos: now,
		}
		m.statuses[id] = status
	}

	// The previous trigger time must be captured before the overwrite or
	// the decay below always subtracts zero.
	previousTriggerTimeNanos := status.lastTriggerTimeNanos
	status.lastTriggerTimeNanos = now

	times := status.triggerTimes
	reduceIntervalMillis := status.currentLevelConfig.ReduceOneTriggerTimeIntervalMillis
	if reduceIntervalMillis > 0 {
		times -= int((now - previousTriggerTimeNanos) /
			(int64(reduceIntervalMillis) * int64(time.Millisecond)))
		if times < 0 {
			times = 0
		}
	}
	status.triggerTimes = times + 1

	if status.currentLevel != unsetBlockLevel {
		if status.triggerTimes >= status.currentLevelConfig.GoNextLevelTriggerTimes &&
			status.currentLevel < m.maxLevel {
			status.currentLevel++
			status.currentLevelConfig = m.levels[status.currentLevel]
			status.triggerTimes = 0
		}
		m.onClientBlocked(id, status.currentLevelConfig.BlockDurationSeconds)
	} else if status.triggerTimes >= m.blockTriggerTimes {
		status.currentLevel = 0
		status.currentLevelConfig = m.levels[0]
		status.triggerTimes = 0
		m.onClientBlocked(id, status.currentLevelConfig.BlockDurationSeconds)
	}
}

// Unblock forgets id entirely.
func (m *AutoBlockManager[T]) Unblock(id T) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	delete(m.statuses, id)
	m.mu.Unlock()
}

// EvictExpired removes entries whose trigger count would have decayed to
// zero. Called periodically by the owner's sweep goroutine.
func (m *AutoBlockManager[T]) EvictExpired() {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowNanos()
	for id, status := range m.statuses {
		reduceIntervalMillis := status.currentLevelConfig.ReduceOneTriggerTimeIntervalMillis
		if reduceIntervalMillis <= 0 {
			continue
		}
		times := status.triggerTimes - int((now-status.lastTriggerTimeNanos)/
			(int64(reduceIntervalMillis)*int64(time.Millisecond)))
		if times <= 0 {
			delete(m.statuses, id)
		}
	}
}

// Tracked returns the number of tracked clients.
func (m *AutoBlockManager[T]) Tracked() int {
	if !m.enabled {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.statuses)
}
