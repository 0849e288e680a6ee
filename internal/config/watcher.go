package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/keyrush/internal/logging"
)

// ReloadHandler is called with each successfully reloaded profile.
type ReloadHandler func(*Profile)

// Watcher reloads a profile file when it changes on disk. Editors that
// write via rename are covered by watching the parent directory.
type Watcher struct {
	path     string
	debounce time.Duration

	watcher *fsnotify.Watcher
	handler ReloadHandler
	log     *logging.Logger

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long changes must settle before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watch starts watching a profile file and delivers reloads to the
// handler. A profile that fails to load or validate is logged and
// skipped; the previous tuning stays in effect.
func Watch(path string, handler ReloadHandler, log *logging.Logger, opts ...WatchOption) (*Watcher, error) {
	if log == nil {
		log = logging.Nop()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		debounce: 100 * time.Millisecond,
		watcher:  fsw,
		handler:  handler,
		log:      log.WithComponent("config"),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// loop consumes fsnotify events and schedules debounced reloads.
func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error: %v", err)
		}
	}
}

// scheduleReload restarts the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload loads the profile and hands it to the handler.
func (w *Watcher) reload() {
	profile, err := Load(w.path)
	if err != nil {
		w.log.Warn("profile reload failed: %v", err)
		return
	}

	w.log.Info("profile reloaded: %s", profile.Name)
	w.handler(profile)
}
