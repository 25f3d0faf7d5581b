// Package sched runs named cron tasks. Tasks are addressed by name so a
// config reload can re-arm a task under a new cron expression without the
// owner tracking entry handles.
package sched

import (
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Manager schedules named jobs. Rescheduling a name replaces its previous
// entry.
type Manager struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewManager returns a started Manager using standard 5-field cron
// expressions.
func NewManager() *Manager {
	c := cron.New()
	c.Start()
	return &Manager{
		cron:    c,
		entries: make(map[string]cron.EntryID),
	}
}

// Reschedule registers fn under name with the given cron expression,
// removing any previous schedule for that name.
func (m *Manager) Reschedule(name, cronExpr string, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.entries[name]; ok {
		m.cron.Remove(id)
		delete(m.entries, name)
	}

	id, err := m.cron.AddFunc(cronExpr, fn)
	if err != nil {
		return err
	}
	m.entries[name] = id
	log.Info().Str("task", name).Str("cron", cronExpr).Msg("task scheduled")
	return nil
}

// Remove drops the schedule for name if one exists.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.entries[name]; ok {
		m.cron.Remove(id)
		delete(m.entries, name)
	}
}

// Stop stops the underlying cron runner. Running jobs complete.
func (m *Manager) Stop() {
	m.cron.Stop()
}
