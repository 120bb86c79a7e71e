package am

import (
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/logger"
)

// DefaultReloadDebounce collapses the burst of events a single editor save produces
const DefaultReloadDebounce = 500 * time.Millisecond

// ReloadCallback receives a validated configuration that differs from the
// previously applied one.
type ReloadCallback func(*Config) error

// ConfigWatcher reloads one config file when it changes on disk.
//
// The parent directory is watched rather than the file: editors that save by
// renaming a temp file over the original would otherwise drop the watch after
// the first save.
type ConfigWatcher struct {
	path     string
	fs       *fsnotify.Watcher
	debounce time.Duration
	load     func() (*Config, error)

	mu        sync.Mutex
	callbacks []ReloadCallback
	applied   *Config
	timer     *time.Timer
	started   bool
	done      chan struct{}
}

// NewConfigWatcher watches path. current is the configuration already in
// effect; reloads that leave it unchanged are ignored.
func NewConfigWatcher(path string, current *Config) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	return &ConfigWatcher{
		path:     abs,
		fs:       fs,
		debounce: DefaultReloadDebounce,
		applied:  current,
		done:     make(chan struct{}),
		load: func() (*Config, error) {
			Reset()
			return Load()
		},
	}, nil
}

// OnReload registers a callback. Callbacks run in registration order on the
// watcher's goroutine.
func (cw *ConfigWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// Start begins delivering reloads until Stop
func (cw *ConfigWatcher) Start() {
	cw.mu.Lock()
	cw.started = true
	cw.mu.Unlock()
	go cw.watchLoop()
}

func (cw *ConfigWatcher) watchLoop() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.fs.Events:
			if !ok {
				return
			}
			if !cw.relevant(event) {
				continue
			}
			logger.Debugw("Config file changed", "file", event.Name, "op", event.Op.String())
			cw.scheduleReload()

		case err, ok := <-cw.fs.Errors:
			if !ok {
				return
			}
			logger.Warnw("Config watcher error", logger.FieldError, err)
		}
	}
}

// relevant filters directory events down to writes of the watched file.
// Backups written by `am set` (am.toml.back1...) have other names and fall out here.
func (cw *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != cw.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		if _, err := cw.reload(); err != nil {
			logger.Errorw("Config reload rejected, keeping previous settings",
				"path", cw.path, logger.FieldError, err)
		}
	})
}

// reload loads and validates the file and hands it to the callbacks when it
// differs from what was last applied. It reports whether callbacks ran.
func (cw *ConfigWatcher) reload() (bool, error) {
	next, err := cw.load()
	if err != nil {
		return false, errors.Wrap(err, "load config")
	}
	if err := next.Validate(); err != nil {
		return false, errors.Wrap(err, "reloaded config is invalid")
	}

	cw.mu.Lock()
	if cw.applied != nil && reflect.DeepEqual(cw.applied, next) {
		cw.mu.Unlock()
		logger.Debugw("Config unchanged after reload", "path", cw.path)
		return false, nil
	}
	cw.applied = next
	callbacks := append([]ReloadCallback(nil), cw.callbacks...)
	cw.mu.Unlock()

	logger.Infow("Config reloaded", "path", cw.path)
	for _, callback := range callbacks {
		if err := callback(next); err != nil {
			logger.Warnw("Config reload callback failed", logger.FieldError, err)
		}
	}
	return true, nil
}

// Stop ends the watch and waits for the loop to exit. A pending debounced
// reload is dropped.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	started := cw.started
	cw.mu.Unlock()

	err := cw.fs.Close()
	if started {
		<-cw.done
	}
	return err
}
