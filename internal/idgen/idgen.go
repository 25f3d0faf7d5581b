// Package idgen issues 64-bit globally unique IDs without blocking.
//
// The layout is snowflake-like: a millisecond timestamp in the high bits
// keeps IDs of one service roughly time-ordered while leaving large gaps
// between the ID ranges of different service types, so entity kinds never
// collide even when generated on the same node.
package idgen

import (
	"sync"
	"time"
)

// ServiceType partitions the ID space per entity kind.
type ServiceType uint8

const (
	ServiceFriendRequest ServiceType = iota
	ServiceRelationshipGroup
)

const (
	// 2024-01-01T00:00:00Z, keeps the timestamp field small.
	epochMillis = 1704067200000

	serviceBits  = 4
	sequenceBits = 16

	maxSequence = (1 << sequenceBits) - 1
)

// Generator issues IDs. The zero value is not usable; use New.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence int64
	nowMs    func() int64
}

// New returns a Generator using the wall clock.
func New() *Generator {
	return &Generator{
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// NextLargeGapID returns the next ID for the given service type. It never
// blocks: when the per-millisecond sequence overflows it borrows from the
// next millisecond instead of sleeping.
func (g *Generator) NextLargeGapID(service ServiceType) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.nowMs()
	if ms <= g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		g.sequence++
		if g.sequence > maxSequence {
			// Borrow from the next millisecond rather than wait for it.
			ms++
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	id := (ms - epochMillis) << (serviceBits + sequenceBits)
	id |= int64(service) << sequenceBits
	id |= g.sequence
	return id
}
