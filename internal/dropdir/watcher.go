// Package dropdir turns files dropped into a directory into upload entries.
package dropdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/file-panel/backend/internal/logging"
	"github.com/file-panel/backend/internal/upload"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long a file must be quiet before it is added.
const DefaultDebounceInterval = 250 * time.Millisecond

var logger = logging.New("dropdir")

// AddFunc receives dropped files. (*upload.Manager).Add satisfies it.
type AddFunc func(files ...upload.File) []upload.Entry

// Watcher watches one directory (not recursively) and adds each regular file
// once it stops changing. Hidden files are ignored.
type Watcher struct {
	dir              string
	add              AddFunc
	debounceInterval time.Duration

	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher for dir. The directory is created if missing.
func NewWatcher(dir string, add AddFunc) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating drop directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dir:              filepath.Clean(dir),
		add:              add,
		debounceInterval: DefaultDebounceInterval,
		watcher:          fsWatcher,
		stopChan:         make(chan struct{}),
		doneChan:         make(chan struct{}),
		pending:          make(map[string]*time.Timer),
	}, nil
}

// SetDebounceInterval changes the quiet period. Call before Start.
func (w *Watcher) SetDebounceInterval(d time.Duration) {
	w.debounceInterval = d
}

// Start adds files already in the directory and begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && !hidden(entry.Name()) {
			w.addPath(filepath.Join(w.dir, entry.Name()))
		}
	}

	go w.processEvents()

	logger.Infof("watching drop directory %s", w.dir)
	return nil
}

// Close stops the watcher and discards pending adds.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.stopChan)
		w.watcher.Close()

		w.mu.Lock()
		for _, timer := range w.pending {
			timer.Stop()
		}
		w.pending = nil
		w.mu.Unlock()

		<-w.doneChan
	})
}

func (w *Watcher) processEvents() {
	defer close(w.doneChan)

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if filepath.Dir(event.Name) != w.dir || hidden(filepath.Base(event.Name)) {
		return
	}
	w.schedule(event.Name)
}

// schedule restarts the quiet-period timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending == nil {
		return
	}
	if timer, exists := w.pending[path]; exists {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		if w.pending == nil {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.mu.Unlock()

		w.addPath(path)
	})
}

func (w *Watcher) addPath(path string) {
	f, err := upload.OpenLocal(path)
	if err != nil {
		logger.Debugf("skipping %s: %v", path, err)
		return
	}
	if added := w.add(f); len(added) > 0 {
		logger.Infof("added %s (%d bytes)", f.Name(), f.Size())
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
