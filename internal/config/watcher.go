package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the config file whenever it changes and replaces the
// manager's snapshot. A reload that fails to parse keeps the previous
// snapshot. Watch returns when ctx is done.
func Watch(ctx context.Context, m *Manager, configPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(configPath)
				if err != nil {
					log.Error().Err(err).Str("path", configPath).
						Msg("config reload failed, keeping previous snapshot")
					continue
				}
				m.Replace(cfg)
				log.Info().Str("path", configPath).Msg("config reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("config watcher error")
			}
		}
	}()

	log.Info().Str("path", configPath).Msg("watching config file")
	return nil
}
