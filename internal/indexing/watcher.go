package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/msbrefactor/internal/debug"
	"github.com/standardbeagle/msbrefactor/internal/logging"
	"github.com/standardbeagle/msbrefactor/internal/types"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

func (t FileEventType) String() string {
	switch t {
	case FileEventCreate:
		return "create"
	case FileEventWrite:
		return "write"
	case FileEventRemove:
		return "remove"
	case FileEventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileEvent is one debounced change to a project file or property sheet.
type FileEvent struct {
	Path string
	Type FileEventType
}

// FileWatcher monitors a project tree and reports batches of changes to
// project files and property sheets once the tree has been quiet for the
// debounce interval.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	scanner   *FileScanner
	root      string
	debouncer *eventDebouncer
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	onBatch func(events []FileEvent)

	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
	statsMu         sync.RWMutex
}

// NewFileWatcher creates a watcher that filters events through scanner.
func NewFileWatcher(scanner *FileScanner, debounce time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	fw := &FileWatcher{
		watcher: watcher,
		scanner: scanner,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	fw.debouncer = newEventDebouncer(debounce, fw.flush)
	return fw, nil
}

// SetCallback sets the function receiving each debounced batch, sorted by path.
func (fw *FileWatcher) SetCallback(onBatch func(events []FileEvent)) {
	fw.onBatch = onBatch
}

// Start begins watching root and every non-excluded directory below it.
func (fw *FileWatcher) Start(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	fw.root = abs
	debug.LogScan("starting file watcher for %s\n", abs)

	if err := fw.addWatches(abs); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", abs, err)
	}

	fw.wg.Add(1)
	go fw.processEvents()
	return nil
}

// Stop stops the watcher. Events still waiting for the debounce interval are dropped.
func (fw *FileWatcher) Stop() error {
	fw.cancel()
	fw.debouncer.stop()
	err := fw.watcher.Close()
	fw.wg.Wait()
	debug.LogScan("file watcher stopped\n")
	return err
}

// addWatches recursively adds watches to all relevant directories
func (fw *FileWatcher) addWatches(root string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if fw.shouldIgnoreDirectory(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to add watch", "path", path, "error", err)
		}
		return nil
	})
}

func (fw *FileWatcher) shouldIgnoreDirectory(path string) bool {
	if path == fw.root {
		return false
	}
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return false
	}
	return fw.scanner.isExcluded(filepath.ToSlash(rel), true)
}

// shouldProcessPath accepts scanned project files and any property sheet,
// since an edited sheet changes the evaluation of the projects importing it.
func (fw *FileWatcher) shouldProcessPath(path string) bool {
	if fw.scanner.Matches(fw.root, path) {
		return true
	}
	return types.KindFromPath(path) == types.KindSheet && !fw.scanner.IsIgnored(path)
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.incrementStats(0, 1)
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogScan("watcher: %v %s\n", event.Op, path)

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !fw.shouldIgnoreDirectory(path) {
			if err := fw.watcher.Add(path); err != nil {
				fw.logger.Warn("failed to add watch for new directory", "path", path, "error", err)
			}
		}
		return
	}
	if !fw.shouldProcessPath(path) {
		return
	}

	var eventType FileEventType
	switch {
	case event.Op&fsnotify.Remove != 0:
		eventType = FileEventRemove
	case event.Op&fsnotify.Create != 0:
		eventType = FileEventCreate
	case event.Op&fsnotify.Write != 0:
		eventType = FileEventWrite
	case event.Op&fsnotify.Rename != 0:
		eventType = FileEventRename
	default:
		return
	}
	fw.debouncer.addEvent(path, eventType)
}

func (fw *FileWatcher) flush(events map[string]FileEventType) {
	if fw.ctx.Err() != nil {
		return
	}
	batch := make([]FileEvent, 0, len(events))
	for path, t := range events {
		batch = append(batch, FileEvent{Path: path, Type: t})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	fw.logger.Debug("processing debounced file events", "count", len(batch))
	if fw.onBatch != nil {
		fw.onBatch(batch)
	}
	fw.incrementStats(int64(len(batch)), 0)
}

// eventDebouncer batches file events to avoid excessive processing
type eventDebouncer struct {
	events   map[string]FileEventType
	mutex    sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	stopped  bool
	onFlush  func(map[string]FileEventType)
}

func newEventDebouncer(debounce time.Duration, onFlush func(map[string]FileEventType)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]FileEventType),
		debounce: debounce,
		onFlush:  onFlush,
	}
}

// addEvent records the latest event for path and restarts the quiet period.
func (d *eventDebouncer) addEvent(path string, eventType FileEventType) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}

	d.events[path] = eventType
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) flush() {
	d.mutex.Lock()
	events := d.events
	d.events = make(map[string]FileEventType)
	stopped := d.stopped
	d.mutex.Unlock()

	if stopped || len(events) == 0 {
		return
	}
	d.onFlush(events)
}

func (d *eventDebouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (fw *FileWatcher) incrementStats(events int64, errors int64) {
	fw.statsMu.Lock()
	defer fw.statsMu.Unlock()

	fw.eventsProcessed += events
	fw.errorCount += errors
	if events > 0 {
		fw.lastEventTime = time.Now()
	}
}

// GetStats returns current watch mode statistics
func (fw *FileWatcher) GetStats() WatchStats {
	fw.statsMu.RLock()
	defer fw.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: fw.eventsProcessed,
		ErrorCount:      fw.errorCount,
		LastEventTime:   fw.lastEventTime,
		IsActive:        fw.ctx.Err() == nil,
	}
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}
