package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultWatchDebounce coalesces bursts of record changes.
const DefaultWatchDebounce = 250 * time.Millisecond

// DirWatcher calls onChange after records appear in or vanish from a
// sessions directory, including changes made by other processes.
type DirWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	onChange func()

	done     chan struct{}
	timerMu  sync.Mutex
	timer    *time.Timer
	stopOnce sync.Once
}

// NewDirWatcher creates a watcher for dir. It does nothing until Start.
func NewDirWatcher(dir string, debounce time.Duration, onChange func()) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &DirWatcher{
		watcher:  watcher,
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Watch returns a started DirWatcher that keeps the active session gauge in
// step with the directory.
func (s *Store) Watch(debounce time.Duration) (*DirWatcher, error) {
	w, err := NewDirWatcher(s.dir, debounce, s.refreshActiveGauge)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		w.watcher.Close()
		return nil, err
	}
	return w, nil
}

// Start starts watching the directory.
func (w *DirWatcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch sessions directory: %w", err)
	}

	go w.eventLoop()

	log.Info().Str("dir", w.dir).Msg("Session directory watcher started")
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *DirWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()

		if cerr := w.watcher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
		log.Info().Msg("Session directory watcher stopped")
	})
	return err
}

func (w *DirWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Session watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *DirWatcher) relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(filepath.Base(event.Name), recordExt) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *DirWatcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if w.onChange != nil {
			w.onChange()
		}
	})
}
