package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatcher(t *testing.T, maxHistory int) *FileWatcher {
	t.Helper()
	w, err := NewFileWatcher(maxHistory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestFileWatcher_SubscribeAndNotify(t *testing.T) {
	watcher := newWatcher(t, 10)
	var calls []FileChange
	watcher.Subscribe("*.go", func(change FileChange) {
		calls = append(calls, change)
	})

	watcher.Notify(FileChange{Path: "pkg/main.go", Type: ChangeModified})
	watcher.Notify(FileChange{Path: "README.md", Type: ChangeModified})

	if len(calls) != 1 {
		t.Fatalf("expected 1 matching change, got %d", len(calls))
	}
	if calls[0].Path != "pkg/main.go" {
		t.Fatalf("unexpected path %q", calls[0].Path)
	}
}

func TestFileWatcher_RecentChangesLimit(t *testing.T) {
	watcher := newWatcher(t, 2)
	watcher.Notify(FileChange{Path: "a", Type: ChangeModified})
	watcher.Notify(FileChange{Path: "b", Type: ChangeModified})
	watcher.Notify(FileChange{Path: "c", Type: ChangeModified})

	recent := watcher.RecentChanges(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent changes, got %d", len(recent))
	}
	if recent[0].Path != "c" || recent[1].Path != "b" {
		t.Fatalf("unexpected recent order: %q, %q", recent[0].Path, recent[1].Path)
	}
}

func TestFileWatcher_Unsubscribe(t *testing.T) {
	watcher := newWatcher(t, 10)
	called := false
	id := watcher.Subscribe("*.go", func(change FileChange) {
		called = true
	})
	watcher.Unsubscribe(id)
	watcher.Notify(FileChange{Path: "main.go", Type: ChangeModified})
	if called {
		t.Fatalf("expected handler to be unsubscribed")
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"", "/tmp/a.go", true},
		{"*", "/tmp/a.go", true},
		{"*.py", "/tmp/x/app.py", true},
		{"*.py", "/tmp/x/app.go", false},
		{"/tmp/x/app.py", "/tmp/x/app.py", true},
		{"/tmp/x/app.py", "/tmp/x/other.py", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.pattern, tt.path), "%s vs %s", tt.pattern, tt.path)
	}
}

func TestChangeFromEvent(t *testing.T) {
	c, ok := changeFromEvent(fsnotify.Event{Name: "a", Op: fsnotify.Write})
	require.True(t, ok)
	assert.Equal(t, ChangeModified, c.Type)

	c, ok = changeFromEvent(fsnotify.Event{Name: "a", Op: fsnotify.Create | fsnotify.Write})
	require.True(t, ok)
	assert.Equal(t, ChangeCreated, c.Type)

	_, ok = changeFromEvent(fsnotify.Event{Name: "a", Op: fsnotify.Chmod})
	assert.False(t, ok)
}

func TestFileWatcher_RunReportsWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(target, []byte("x = 1\n"), 0o600))

	watcher := newWatcher(t, 10)
	watcher.Debounce = 20 * time.Millisecond
	require.NoError(t, watcher.Add(target))

	var mu sync.Mutex
	var seen []FileChange
	watcher.Subscribe(target, func(change FileChange) {
		mu.Lock()
		seen = append(seen, change)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()

	require.NoError(t, os.WriteFile(target, []byte("x = 2\n"), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, target, seen[0].Path)
}

func TestFileWatcher_AddMissingPath(t *testing.T) {
	watcher := newWatcher(t, 10)
	assert.Error(t, watcher.Add(filepath.Join(t.TempDir(), "missing")))
}
