// Package filewatch turns filesystem notifications into pattern-routed
// change events.
package filewatch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"
)

// ChangeType describes the kind of file change observed.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

const (
	defaultMaxHistory = 100
	defaultDebounce   = 150 * time.Millisecond
)

// FileChange is one observed change.
type FileChange struct {
	Path    string
	Type    ChangeType
	Size    int64
	ModTime time.Time
}

// FileChangeHandler receives file change notifications.
type FileChangeHandler func(change FileChange)

// Subscription binds a pattern to a handler.
type Subscription struct {
	ID      string
	Pattern string
	Handler FileChangeHandler
}

// FileWatcher routes changes to subscribers and keeps a bounded history.
type FileWatcher struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	recentChanges []FileChange
	maxHistory    int

	// Debounce coalesces bursts of events for one path. Editors often
	// write a file in several steps.
	Debounce time.Duration

	fs      *fsnotify.Watcher
	pending map[string]*time.Timer
}

// NewFileWatcher creates a watcher with bounded history. Call Add and Run
// to feed it from the filesystem, or Notify directly.
func NewFileWatcher(maxHistory int) (*FileWatcher, error) {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FileWatcher{
		subscriptions: make(map[string]*Subscription),
		maxHistory:    maxHistory,
		Debounce:      defaultDebounce,
		fs:            fs,
		pending:       make(map[string]*time.Timer),
	}, nil
}

// Add watches target. A file is watched through its directory so that
// atomic rename-on-save still reports the file.
func (fw *FileWatcher) Add(target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	if err := fw.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

// Run translates filesystem events until ctx is done or the watcher closes.
func (fw *FileWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.fs.Events:
			if !ok {
				return nil
			}
			change, ok := changeFromEvent(event)
			if !ok {
				continue
			}
			fw.schedule(change)
		case err, ok := <-fw.fs.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

func (fw *FileWatcher) schedule(change FileChange) {
	if fw.Debounce <= 0 {
		fw.Notify(change)
		return
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if t, ok := fw.pending[change.Path]; ok {
		t.Stop()
	}
	fw.pending[change.Path] = time.AfterFunc(fw.Debounce, func() {
		fw.mu.Lock()
		delete(fw.pending, change.Path)
		fw.mu.Unlock()
		fw.Notify(withStat(change))
	})
}

// Close stops the filesystem watcher and pending notifications.
func (fw *FileWatcher) Close() error {
	if fw == nil {
		return nil
	}
	fw.mu.Lock()
	for p, t := range fw.pending {
		t.Stop()
		delete(fw.pending, p)
	}
	fw.mu.Unlock()
	if fw.fs == nil {
		return nil
	}
	return fw.fs.Close()
}

// Subscribe registers a file change handler for a glob pattern. A pattern
// without a slash also matches the base name.
func (fw *FileWatcher) Subscribe(pattern string, handler FileChangeHandler) string {
	if fw == nil || handler == nil {
		return ""
	}
	id := ulid.Make().String()
	sub := &Subscription{
		ID:      id,
		Pattern: strings.TrimSpace(pattern),
		Handler: handler,
	}
	fw.mu.Lock()
	if fw.subscriptions == nil {
		fw.subscriptions = make(map[string]*Subscription)
	}
	fw.subscriptions[id] = sub
	fw.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription.
func (fw *FileWatcher) Unsubscribe(id string) {
	if fw == nil || strings.TrimSpace(id) == "" {
		return
	}
	fw.mu.Lock()
	delete(fw.subscriptions, id)
	fw.mu.Unlock()
}

// Notify publishes a file change event.
func (fw *FileWatcher) Notify(change FileChange) {
	if fw == nil {
		return
	}
	fw.mu.Lock()
	if fw.maxHistory <= 0 {
		fw.maxHistory = defaultMaxHistory
	}
	fw.recentChanges = append(fw.recentChanges, change)
	if len(fw.recentChanges) > fw.maxHistory {
		fw.recentChanges = fw.recentChanges[len(fw.recentChanges)-fw.maxHistory:]
	}
	subs := make([]*Subscription, 0, len(fw.subscriptions))
	for _, sub := range fw.subscriptions {
		subs = append(subs, sub)
	}
	fw.mu.Unlock()

	for _, sub := range subs {
		if sub == nil || sub.Handler == nil {
			continue
		}
		if matchesPattern(sub.Pattern, change.Path) {
			sub.Handler(change)
		}
	}
}

// RecentChanges returns the most recent changes (newest first).
func (fw *FileWatcher) RecentChanges(limit int) []FileChange {
	if fw == nil {
		return nil
	}
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	if limit <= 0 || limit > len(fw.recentChanges) {
		limit = len(fw.recentChanges)
	}
	out := make([]FileChange, 0, limit)
	for i := len(fw.recentChanges) - 1; i >= len(fw.recentChanges)-limit; i-- {
		out = append(out, fw.recentChanges[i])
	}
	return out
}

func changeFromEvent(event fsnotify.Event) (FileChange, bool) {
	change := FileChange{Path: event.Name}
	switch {
	case event.Has(fsnotify.Create):
		change.Type = ChangeCreated
	case event.Has(fsnotify.Write):
		change.Type = ChangeModified
	case event.Has(fsnotify.Remove):
		change.Type = ChangeDeleted
	case event.Has(fsnotify.Rename):
		change.Type = ChangeRenamed
	default:
		return FileChange{}, false
	}
	return change, true
}

func withStat(change FileChange) FileChange {
	if change.Type == ChangeDeleted || change.Type == ChangeRenamed {
		return change
	}
	if info, err := os.Stat(change.Path); err == nil {
		change.Size = info.Size()
		change.ModTime = info.ModTime()
	}
	return change
}

func matchesPattern(pattern, filePath string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return true
	}
	cleanPath := filepath.ToSlash(strings.TrimSpace(filePath))
	cleanPattern := filepath.ToSlash(pattern)
	if ok, _ := path.Match(cleanPattern, cleanPath); ok {
		return true
	}
	if !strings.Contains(cleanPattern, "/") {
		base := path.Base(cleanPath)
		if ok, _ := path.Match(cleanPattern, base); ok {
			return true
		}
	}
	return false
}
