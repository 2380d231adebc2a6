package service

import (
	"encoding/json"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchOverrides reloads the local policy-override file whenever it changes.
// Missing file is not an error; overrides simply stay empty.
func (s *Service) WatchOverrides(path string) (func() error, error) {
	if path == "" {
		return func() error { return nil }, nil
	}

	s.loadOverrideFile(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					s.loadOverrideFile(path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("settings override watch error", zap.Error(err))
			}
		}
	}()

	return watcher.Close, nil
}

func (s *Service) loadOverrideFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("read settings override file", zap.String("path", path), zap.Error(err))
		}
		s.ReplaceOverrides(nil)
		return
	}

	var overrides map[string]map[string]any
	if err := json.Unmarshal(raw, &overrides); err != nil {
		s.log.Warn("malformed settings override file", zap.String("path", path), zap.Error(err))
		return
	}

	s.ReplaceOverrides(overrides)
	s.log.Info("settings overrides loaded", zap.String("path", path), zap.Int("keys", len(overrides)))
}
