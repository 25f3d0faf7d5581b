package httpapi

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/blocklist"
	"github.com/relayim/socialcore/internal/config"
)

// ClientBlocker wires the auto-block manager into the request path. Client
// failures (4xx responses) count as abusive events; once the manager blocks
// a client, every request is rejected until the deadline passes, and
// further failures slide the deadline forward.
//
// Client identity is the uuid from the X-Client-ID header; requests without
// one fall back to the remote address, so misbehaving anonymous clients are
// still throttled per host.
type ClientBlocker struct {
	manager atomic.Pointer[blocklist.AutoBlockManager[string]]

	mu        sync.Mutex
	deadlines map[string]time.Time
}

// NewClientBlocker builds the blocker and starts its periodic sweep. The
// sweep stops when the process exits; there is nothing to flush.
func NewClientBlocker(cfg config.AutoBlockConfig) *ClientBlocker {
	b := &ClientBlocker{
		deadlines: make(map[string]time.Time),
	}
	b.manager.Store(blocklist.New[string](cfg, b.onClientBlocked))
	go b.sweepLoop()
	return b
}

// Reconfigure swaps in a manager built from the new config, so a config
// reload takes effect on the request path. Penalty counters restart from
// zero; deadlines of already blocked clients stay in force unless
// auto-blocking was turned off entirely.
func (b *ClientBlocker) Reconfigure(cfg config.AutoBlockConfig) {
	b.manager.Store(blocklist.New[string](cfg, b.onClientBlocked))
	if !cfg.Enabled || len(cfg.BlockLevels) == 0 {
		b.mu.Lock()
		b.deadlines = make(map[string]time.Time)
		b.mu.Unlock()
	}
}

func (b *ClientBlocker) mgr() *blocklist.AutoBlockManager[string] {
	return b.manager.Load()
}

func (b *ClientBlocker) onClientBlocked(id string, durationSeconds int64) {
	deadline := time.Now().Add(time.Duration(durationSeconds) * time.Second)
	b.mu.Lock()
	b.deadlines[id] = deadline
	b.mu.Unlock()
	log.Warn().Str("clientId", id).Int64("durationSeconds", durationSeconds).
		Msg("client blocked")
}

// IsBlocked reports whether id is currently blocked.
func (b *ClientBlocker) IsBlocked(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	deadline, ok := b.deadlines[id]
	if !ok {
		return false
	}
	if time.Now().After(deadline) {
		delete(b.deadlines, id)
		return false
	}
	return true
}

// Unblock lifts the block and resets the client's penalty history.
func (b *ClientBlocker) Unblock(id string) {
	b.mu.Lock()
	delete(b.deadlines, id)
	b.mu.Unlock()
	b.mgr().Unblock(id)
}

func (b *ClientBlocker) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		b.mgr().EvictExpired()
		now := time.Now()
		b.mu.Lock()
		for id, deadline := range b.deadlines {
			if now.After(deadline) {
				delete(b.deadlines, id)
			}
		}
		b.mu.Unlock()
	}
}

// clientID resolves the caller's identity for blocking purposes.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return r.RemoteAddr
}

// statusRecorder captures the response status for the failure check.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware rejects blocked clients with 429 and records 4xx responses as
// abusive events.
func (b *ClientBlocker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)
		if b.IsBlocked(id) {
			// Keep the deadline sliding while the client retries.
			b.mgr().TryBlock(id)
			writeError(w, http.StatusTooManyRequests, "client is blocked")
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= 400 && rec.status < 500 && rec.status != http.StatusTooManyRequests {
			b.mgr().TryBlock(id)
		}
	})
}
