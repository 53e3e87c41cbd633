package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce collapses bursts of writes from editors into one reload.
const DefaultDebounce = 500 * time.Millisecond

// ConfigWatcher monitors the config file and reloads it on change
type ConfigWatcher struct {
	config      *Config
	watcher     *fsnotify.Watcher
	callbacks   []func(*Config)
	stopCh      chan struct{}
	mu          sync.RWMutex
	running     bool
	lastModTime time.Time
	debounce    time.Duration
}

// NewConfigWatcher creates a new configuration watcher
func NewConfigWatcher(config *Config) (*ConfigWatcher, error) {
	if config.ConfigFile == "" {
		return nil, fmt.Errorf("config has no file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &ConfigWatcher{
		config:   config,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		debounce: DefaultDebounce,
	}, nil
}

// AddCallback adds a callback called with the reloaded configuration
func (cw *ConfigWatcher) AddCallback(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.callbacks = append(cw.callbacks, callback)
}

// Start starts watching for configuration changes. The directory is watched
// rather than the file so that atomic replaces by editors are seen.
func (cw *ConfigWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("watcher is already running")
	}

	configFile := cw.config.ConfigFile
	if stat, err := os.Stat(configFile); err == nil {
		cw.lastModTime = stat.ModTime()
	}

	if err := cw.watcher.Add(filepath.Dir(configFile)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw.running = true
	go cw.watchLoop()

	return nil
}

// Stop stops the configuration watcher
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running {
		return nil
	}

	cw.running = false
	close(cw.stopCh)

	return cw.watcher.Close()
}

// watchLoop monitors file system events
func (cw *ConfigWatcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.isConfigEvent(event) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(cw.debounce, cw.handleConfigChange)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("Config watcher error: %v", err)

		case <-cw.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

// isConfigEvent checks if an event touches the config file
func (cw *ConfigWatcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(cw.config.ConfigFile) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// handleConfigChange reloads the file if it really changed and notifies callbacks
func (cw *ConfigWatcher) handleConfigChange() {
	stat, err := os.Stat(cw.config.ConfigFile)
	if err != nil {
		// File removed or mid-replace, keep the current configuration
		return
	}

	cw.mu.Lock()
	if !stat.ModTime().After(cw.lastModTime) {
		cw.mu.Unlock()
		return
	}
	cw.lastModTime = stat.ModTime()
	cw.mu.Unlock()

	reloaded, err := Load(cw.config.ConfigFile)
	if err != nil {
		logrus.Errorf("Failed to reload configuration: %v", err)
		return
	}

	cw.mu.RLock()
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		callback(reloaded)
	}

	logrus.Infof("Configuration reloaded from %s", cw.config.ConfigFile)
}

// TriggerReload reloads the file immediately and notifies callbacks.
func (cw *ConfigWatcher) TriggerReload() error {
	reloaded, err := Load(cw.config.ConfigFile)
	if err != nil {
		return err
	}

	cw.mu.RLock()
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		callback(reloaded)
	}
	return nil
}
