package workspace

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// DefaultDebounce is how long the watcher waits for dumps to settle.
const DefaultDebounce = 500 * time.Millisecond

// Rebuild describes one re-analysis triggered by the watcher.
type Rebuild struct {
	Changed []string     // Units re-analyzed or removed
	Merged  *graph.Graph // Nil when the merge failed
	Err     error
}

// Watcher re-analyzes IR dumps as they change and re-merges the workspace.
type Watcher struct {
	ws           *Workspace
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	onRebuild    func(Rebuild)
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewWatcher creates a watcher over the workspace's IR directory. onRebuild
// may be nil.
func NewWatcher(ws *Workspace, onRebuild func(Rebuild)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(ws.opts.IRDir); err != nil {
		watcher.Close()
		return nil, err
	}
	if onRebuild == nil {
		onRebuild = func(Rebuild) {}
	}

	return &Watcher{
		ws:           ws,
		watcher:      watcher,
		debounceTime: DefaultDebounce,
		onRebuild:    onRebuild,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// SetDebounce changes the settle delay. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounceTime = d
}

// Start begins watching for dump changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher and waits for a running rebuild to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	rebuildCh := make(chan struct{}, 1)
	changed := make(map[string]bool)

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

		case <-w.stopCh:
			stopTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.shouldProcessEvent(event) {
				continue
			}
			changed[event.Name] = true

			stopTimer()
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				select {
				case rebuildCh <- struct{}{}:
				default:
				}
			})

		case <-rebuildCh:
			w.rebuild(ctx, changed)
			changed = make(map[string]bool)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("IR watcher error: %v", err)
		}
	}
}

// rebuild re-analyzes changed dumps, drops removed ones, and re-merges.
func (w *Watcher) rebuild(ctx context.Context, changed map[string]bool) {
	if len(changed) == 0 {
		return
	}

	paths := make([]string, 0, len(changed))
	for path := range changed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	log.Printf("Re-analyzing %d changed unit(s)...", len(paths))
	start := time.Now()

	var units []string
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			unit, err := w.ws.RemoveDump(path)
			if err != nil {
				log.Printf("Warning: failed to drop unit %s: %v", unit, err)
			}
			units = append(units, unit)
			continue
		}
		stats, err := w.ws.AnalyzeFile(ctx, path)
		if err != nil {
			log.Printf("Warning: skipping unit %s: %v", stats.Unit, err)
		}
		units = append(units, stats.Unit)
	}

	merged, err := w.ws.Merge(ctx)
	if err != nil {
		log.Printf("Error during re-merge: %v", err)
		w.onRebuild(Rebuild{Changed: units, Err: err})
		return
	}

	log.Printf("Re-merge complete in %v (%d nodes, %d edges)",
		time.Since(start), merged.NodeCount(), merged.EdgeCount())
	w.onRebuild(Rebuild{Changed: units, Merged: merged})
}

// shouldProcessEvent checks if an event concerns a selected IR dump.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if !strings.HasSuffix(event.Name, ir.DumpExt) {
		return false
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.ws.opts.IRDir) {
		return false
	}
	return w.ws.Includes(ir.UnitNameFromPath(event.Name))
}
