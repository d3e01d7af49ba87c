package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cargobot/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk.
// It watches the parent directory so editors that replace the file
// (write to temp, rename) are picked up too.
type Watcher struct {
	path        string
	debounceDur time.Duration
	onChange    func(*Config)
}

// NewWatcher creates a watcher that calls onChange with every
// successfully reloaded config. Reload errors are logged and skipped.
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:        path,
		debounceDur: 500 * time.Millisecond,
		onChange:    onChange,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer fsw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logging.ConfigInfo("Watching %s for changes", abs)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Debounce rapid saves
			if timer == nil {
				timer = time.NewTimer(w.debounceDur)
			} else {
				timer.Reset(w.debounceDur)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.reload(abs)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.ConfigWarn("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload(path string) {
	cfg, err := Load(path)
	if err != nil {
		logging.ConfigError("Config reload failed: %v", err)
		return
	}
	logging.ConfigInfo("Config reloaded from %s (%d admins)", path, len(cfg.Admins))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Watch runs a Watcher for path until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return NewWatcher(path, onChange).Run(ctx)
}
