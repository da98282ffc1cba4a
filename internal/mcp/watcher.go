package mcp

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for the graph file to settle.
const DefaultDebounce = 500 * time.Millisecond

// Reloadable is an interface for components that can be reloaded.
type Reloadable interface {
	Reload(ctx context.Context) error
}

// FileWatcher reloads a component when a single file is rewritten. The parent
// directory is watched so atomic renames onto the file are seen.
type FileWatcher struct {
	reloadable   Reloadable
	watcher      *fsnotify.Watcher
	path         string
	debounceTime time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewFileWatcher creates a watcher for path. The parent directory must exist.
func NewFileWatcher(reloadable Reloadable, path string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileWatcher{
		reloadable:   reloadable,
		watcher:      watcher,
		path:         path,
		debounceTime: DefaultDebounce,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// SetDebounce changes the settle delay. Call before Start.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.debounceTime = d
}

// Start begins watching for file changes.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.watch(ctx)
}

// Stop stops the file watcher.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.stopCh)
		<-fw.doneCh
		fw.watcher.Close()
	})
}

func (fw *FileWatcher) watch(ctx context.Context) {
	defer close(fw.doneCh)

	var debounceTimer *time.Timer
	reloadCh := make(chan struct{}, 1)

	stopTimer := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-fw.stopCh:
			stopTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.shouldProcessEvent(event) {
				continue
			}
			stopTimer()
			debounceTimer = time.AfterFunc(fw.debounceTime, func() {
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			})

		case <-reloadCh:
			fw.triggerReload(ctx)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == fw.path
}

// triggerReload reloads the component, keeping the old state on failure.
func (fw *FileWatcher) triggerReload(ctx context.Context) {
	log.Printf("Reloading %s...", fw.path)
	start := time.Now()

	if err := fw.reloadable.Reload(ctx); err != nil {
		log.Printf("Error reloading: %v (keeping old state)", err)
		return
	}

	log.Printf("Reloaded successfully in %v", time.Since(start))
}
