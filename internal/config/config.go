// Package config holds the process-wide, hot-reloadable configuration
// snapshot. Callers read the current snapshot through Manager.Current (a
// single atomic load); the snapshot is replaced wholesale on reload and
// registered listeners are notified with the new value.
package config

import (
	"sync"
	"sync/atomic"
)

// Config is the full configuration tree. Values are immutable once
// published; a reload builds a fresh tree and swaps the pointer.
type Config struct {
	Server        ServerConfig        `json:"server"`
	FriendRequest FriendRequestConfig `json:"friendRequest"`
	Relationship  RelationshipConfig  `json:"relationship"`
	AutoBlock     AutoBlockConfig     `json:"autoBlock"`
}

type ServerConfig struct {
	HTTPAddr    string `json:"httpAddr"`
	JWTSecret   string `json:"jwtHS256Secret"`
	AdminToken  string `json:"adminToken"`
	DevMode     bool   `json:"devMode"`
	DatabaseURL string `json:"databaseUrl"`
}

type FriendRequestConfig struct {
	// Non-positive max lengths mean unbounded.
	MaxContentLength        int `json:"maxContentLength"`
	MaxResponseReasonLength int `json:"maxResponseReasonLength"`

	AllowSendRequestAfterDeclinedOrIgnoredOrExpired bool `json:"allowSendRequestAfterDeclinedOrIgnoredOrExpired"`
	AllowRecallPendingFriendRequestBySender         bool `json:"allowRecallPendingFriendRequestBySender"`

	DeleteExpiredRequestsWhenCronTriggered bool   `json:"deleteExpiredRequestsWhenCronTriggered"`
	ExpiredRequestsCleanupCron             string `json:"expiredRequestsCleanupCron"`

	// ExpireAfterSeconds <= 0 disables the expiry projection and the
	// cleanup cron.
	ExpireAfterSeconds int `json:"expireAfterSeconds"`
}

type RelationshipConfig struct {
	// Policy for removing a user from their last non-default group: keep
	// the relationship and move them to the default group (false), or
	// delete the relationship itself (true).
	DeleteWhenRemovedFromAllGroups bool `json:"deleteWhenRemovedFromAllGroups"`
}

type AutoBlockConfig struct {
	Enabled           bool         `json:"enabled"`
	BlockTriggerTimes int          `json:"blockTriggerTimes"`
	BlockLevels       []BlockLevel `json:"blockLevels"`
}

// BlockLevel configures one penalty level of the auto-block manager.
type BlockLevel struct {
	BlockDurationSeconds               int64 `json:"blockDurationSeconds"`
	GoNextLevelTriggerTimes            int   `json:"goNextLevelTriggerTimes"`
	ReduceOneTriggerTimeIntervalMillis int   `json:"reduceOneTriggerTimeIntervalMillis"`
}

// DefaultConfig returns the built-in defaults applied before file and env
// overrides.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: ":8082",
		},
		FriendRequest: FriendRequestConfig{
			MaxContentLength:                        200,
			MaxResponseReasonLength:                 200,
			AllowRecallPendingFriendRequestBySender: true,
			ExpiredRequestsCleanupCron:              "0 2 * * *",
			ExpireAfterSeconds:                      30 * 24 * 60 * 60,
		},
		AutoBlock: AutoBlockConfig{
			BlockTriggerTimes: 5,
			BlockLevels: []BlockLevel{
				{BlockDurationSeconds: 60, GoNextLevelTriggerTimes: 3, ReduceOneTriggerTimeIntervalMillis: 60_000},
				{BlockDurationSeconds: 3600, GoNextLevelTriggerTimes: 3, ReduceOneTriggerTimeIntervalMillis: 60_000},
				{BlockDurationSeconds: 86400, GoNextLevelTriggerTimes: 0, ReduceOneTriggerTimeIntervalMillis: 60_000},
			},
		},
	}
}

// Manager publishes the current snapshot and notifies listeners on
// replacement.
type Manager struct {
	current atomic.Pointer[Config]

	mu        sync.Mutex
	listeners []func(*Config)
}

// NewManager wraps an initial snapshot.
func NewManager(cfg *Config) *Manager {
	m := &Manager{}
	m.current.Store(cfg)
	return m
}

// Current returns the live snapshot. Callers must not mutate it.
func (m *Manager) Current() *Config {
	return m.current.Load()
}

// Replace swaps in a new snapshot and notifies listeners, in registration
// order, on the calling goroutine.
func (m *Manager) Replace(cfg *Config) {
	m.current.Store(cfg)
	m.mu.Lock()
	listeners := make([]func(*Config), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// OnChange registers fn and invokes it immediately with the current
// snapshot, mirroring notify-and-add-listener property plumbing.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
	fn(m.Current())
}
