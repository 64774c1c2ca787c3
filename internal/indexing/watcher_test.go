package indexing

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_ReportsProjectChanges(t *testing.T) {
	root := writeTree(t, map[string]string{
		"A/A.csproj": minimalProject,
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0755))

	s := NewFileScanner(ScanOptions{Exclude: []string{"**/bin/**"}})
	fw, err := NewFileWatcher(s, 50*time.Millisecond, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[string]FileEventType)
	done := make(chan struct{}, 1)
	fw.SetCallback(func(events []FileEvent) {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			seen[e.Path] = e.Type
		}
		if _, ok := seen[filepath.Join(root, "A", "A.csproj")]; ok {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	require.NoError(t, fw.Start(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "Out.csproj"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Common.props"), []byte("<Project />"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "A.csproj"), []byte(minimalProject+"\n"), 0644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the modified project")
	}
	require.NoError(t, fw.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, seen, filepath.Join(root, "A", "notes.txt"))
	assert.NotContains(t, seen, filepath.Join(root, "bin", "Out.csproj"))
	assert.False(t, fw.GetStats().IsActive)
}

func TestEventDebouncer_CoalescesAndStops(t *testing.T) {
	batches := make(chan map[string]FileEventType, 4)
	d := newEventDebouncer(20*time.Millisecond, func(events map[string]FileEventType) {
		batches <- events
	})

	d.addEvent("/a.csproj", FileEventCreate)
	d.addEvent("/a.csproj", FileEventWrite)
	d.addEvent("/b.csproj", FileEventRemove)

	select {
	case events := <-batches:
		assert.Equal(t, map[string]FileEventType{
			"/a.csproj": FileEventWrite,
			"/b.csproj": FileEventRemove,
		}, events)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}

	d.stop()
	d.addEvent("/c.csproj", FileEventWrite)
	select {
	case events := <-batches:
		t.Fatalf("unexpected batch after stop: %v", events)
	case <-time.After(100 * time.Millisecond):
	}
}
