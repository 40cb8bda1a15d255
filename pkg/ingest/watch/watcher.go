// Package watch re-processes meeting folders when their documents change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/otherjamesbrown/council-records/pkg/ingest/batch"
	"github.com/otherjamesbrown/council-records/pkg/ingest/meeting"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

// DefaultDebounce is how long a folder must be quiet before it is processed.
const DefaultDebounce = 2 * time.Second

const tick = 100 * time.Millisecond

// Handler processes one meeting folder. *batch.Processor satisfies it.
type Handler interface {
	ProcessMeeting(ctx context.Context, m *meeting.Meeting) (*batch.ProcessResult, error)
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   logging.Logger
}

// Stats counts watcher activity.
type Stats struct {
	Events     int
	Runs       int
	Failures   int
	LastRun    time.Time
	LastFolder string
}

// Watcher watches a root folder tree with fsnotify.
type Watcher struct {
	root    string
	handler Handler
	fsw     *fsnotify.Watcher
	pending *pending
	log     logging.Logger

	mu    sync.Mutex
	stats Stats
	dirs  map[string]bool
}

// New watches root and every folder below it, except hidden folders and
// split output.
func New(root string, h Handler, opts Options) (*Watcher, error) {
	if h == nil {
		return nil, errors.New("watch handler is nil")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		root:    root,
		handler: h,
		fsw:     fsw,
		pending: newPending(opts.Debounce),
		log:     logging.OrNop(opts.Logger).With(logging.F("component", "watch")),
		dirs:    make(map[string]bool),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run handles events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.log.Info("Watching for meeting documents", logging.F("root", w.root), logging.F("folders", len(w.WatchedDirs())))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", logging.Err(err))

		case now := <-ticker.C:
			for _, dir := range w.pending.due(now) {
				w.process(ctx, dir)
			}
		}
	}
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// WatchedDirs returns the watched folders, sorted.
func (w *Watcher) WatchedDirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("Failed to watch folder", logging.Err(err), logging.F("dir", event.Name))
			}
			return
		}
	}

	if meeting.DetectFileType(filepath.Base(event.Name)) == meeting.FileUnknown {
		return
	}
	w.mu.Lock()
	w.stats.Events++
	w.mu.Unlock()
	w.pending.touch(filepath.Dir(event.Name), time.Now())
}

// addTree watches dir and its subfolders. Folders that already hold meeting
// documents are queued, since their files may predate the watch.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return fs.SkipDir
		}

		w.mu.Lock()
		seen := w.dirs[path]
		w.dirs[path] = true
		w.mu.Unlock()
		if seen {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		if dir != w.root {
			if m, err := meeting.ScanMeetingDir(w.root, path); err == nil && m != nil {
				w.pending.touch(path, time.Now())
			}
		}
		return nil
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == batch.SplitDir
}

func (w *Watcher) process(ctx context.Context, dir string) {
	m, err := meeting.ScanMeetingDir(w.root, dir)
	if err != nil || m == nil {
		return
	}

	result, err := w.handler.ProcessMeeting(ctx, m)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRun = time.Now()
	w.stats.LastFolder = dir
	if err != nil || (result != nil && !result.Success) {
		w.stats.Failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Error("Failed to process meeting", logging.Err(err), logging.F("meeting", m.Key))
		return
	}
	w.log.Info("Meeting processed",
		logging.F("meeting", m.Key),
		logging.F("parsed", result.ParsedCount),
		logging.F("skipped", result.SkippedCount),
		logging.F("failed", result.FailedCount))
}

// pending tracks folders with recent events.
type pending struct {
	mu       sync.Mutex
	debounce time.Duration
	last     map[string]time.Time
}

func newPending(d time.Duration) *pending {
	return &pending{debounce: d, last: make(map[string]time.Time)}
}

func (p *pending) touch(dir string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last[dir] = at
}

// due removes and returns the folders quiet for at least the debounce
// interval, sorted.
func (p *pending) due(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var dirs []string
	for dir, at := range p.last {
		if now.Sub(at) >= p.debounce {
			dirs = append(dirs, dir)
			delete(p.last, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}
