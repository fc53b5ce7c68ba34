package config

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the settings store when settings.yaml is edited outside the
// daemon. Events land on the bus as a settings-changed with the external area.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	store     *Store
	done      chan struct{}

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// NewWatcher creates a watcher for the directory holding the settings file.
func NewWatcher(store *Store) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		store:     store,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. Watching the directory rather than the file survives
// editors that replace the file on save.
func (w *Watcher) Start() error {
	dir, err := GlobalDir()
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != SettingsFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("settings watcher error: %v", err)
		}
	}
}

// scheduleReload coalesces bursts of file events into one reload.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(reloadDebounce, func() {
		if err := w.store.Reload(); err != nil {
			log.Printf("settings reload failed: %v", err)
		}
	})
}
