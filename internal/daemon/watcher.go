package daemon

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// FileWatcher watches individual files for changes and invokes a callback
// per file. It watches the containing directories so files replaced by
// rename (as most editors save) keep being tracked.
type FileWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	files   map[string]func() // Cleaned path -> callback
	dirs    map[string]int    // Watched directory -> file count
	pending map[string]*time.Timer

	done    chan struct{}
	stopped chan struct{}
	running bool
}

// NewFileWatcher creates a new file watcher.
func NewFileWatcher(logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		watcher:  watcher,
		logger:   logger,
		debounce: DefaultDebounce,
		files:    make(map[string]func()),
		dirs:     make(map[string]int),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Watch registers fn to run after path is written, created or replaced.
// Watching the same path again replaces its callback.
func (fw *FileWatcher) Watch(path string, fn func()) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, ok := fw.files[path]; ok {
		fw.files[path] = fn
		return nil
	}
	if fw.dirs[dir] == 0 {
		if err := fw.watcher.Add(dir); err != nil {
			return err
		}
	}
	fw.dirs[dir]++
	fw.files[path] = fn
	fw.logger.Debug("watching file", "path", path)
	return nil
}

// Unwatch stops watching path.
func (fw *FileWatcher) Unwatch(path string) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, ok := fw.files[path]; !ok {
		return
	}
	delete(fw.files, path)
	if t, ok := fw.pending[path]; ok {
		t.Stop()
		delete(fw.pending, path)
	}
	fw.dirs[dir]--
	if fw.dirs[dir] <= 0 {
		delete(fw.dirs, dir)
		_ = fw.watcher.Remove(dir)
	}
}

// Start begins delivering change callbacks.
func (fw *FileWatcher) Start() {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return
	}
	fw.running = true
	fw.mu.Unlock()

	go fw.watch()
}

// watch is the main watch loop.
func (fw *FileWatcher) watch() {
	defer close(fw.stopped)

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fw.schedule(filepath.Clean(event.Name))
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

// schedule arms the debounce timer for path if it is watched.
func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, ok := fw.files[path]; !ok {
		return
	}
	if t, ok := fw.pending[path]; ok {
		t.Reset(fw.debounce)
		return
	}
	fw.pending[path] = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		delete(fw.pending, path)
		fn := fw.files[path]
		fw.mu.Unlock()

		if fn != nil {
			fw.logger.Debug("file changed", "path", path)
			fn()
		}
	})
}

// Stop stops the watcher and waits for the watch loop to exit.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	for path, t := range fw.pending {
		t.Stop()
		delete(fw.pending, path)
	}
	close(fw.done)
	fw.mu.Unlock()

	<-fw.stopped
	return fw.watcher.Close()
}
