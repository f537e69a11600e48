package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/rs/zerolog"
)

// Holder holds configuration with atomic hot-reload. Readers never block
// writers and never see a partially-applied configuration: Reload either
// swaps in a fully validated AppConfig or leaves the previous one in
// place, mirroring the teacher's reload-is-all-or-nothing guarantee.
type Holder struct {
	reloadMu sync.Mutex
	cfg      atomic.Pointer[AppConfig]
	loader   *Loader
	path     string
	dir      string
	file     string
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewHolder creates a Holder seeded with an already-loaded configuration.
func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	h := &Holder{loader: loader, path: configPath, logger: log.WithComponent("config")}
	h.cfg.Store(&initial)
	return h
}

// Get returns the current configuration (thread-safe, lock-free read).
func (h *Holder) Get() AppConfig {
	p := h.cfg.Load()
	if p == nil {
		return AppConfig{}
	}
	return *p
}

// Reload re-resolves configuration from file+env and, if it validates,
// atomically swaps it in and notifies registered listeners.
func (h *Holder) Reload(_ context.Context) error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.cfg.Store(&newCfg)
	h.notifyListeners(newCfg)

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
	return nil
}

// StartWatcher watches the config file's directory for atomic-replace
// writes (temp+rename, as Manager.Save performs) and debounces reloads.
// A no-op if configPath is empty (environment-only configuration).
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("no config file; watcher disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher
	h.dir = filepath.Dir(h.path)
	h.file = filepath.Base(h.path)

	if err := watcher.Add(h.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().Str("event", "config.watcher_started").Str("path", h.path).Msg("watching config file")
	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != h.file {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic reload failed")
				}
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("watcher error")
		}
	}
}

// Stop stops the file watcher, if one is running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel that receives every successfully
// reloaded configuration. Callers own the channel's lifecycle.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notifyListeners(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str("event", "config.listener_full").Msg("dropping reload notification: listener channel full")
		}
	}
}
