package rvmenv

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	t.Parallel()

	h := NewHub()

	var got []string
	a := h.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Path) })
	b := h.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Path) })
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, h.Len())

	h.Publish(Event{Path: "/x", Op: OpOpen})
	assert.Equal(t, []string{"a:/x", "b:/x"}, got)

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	h.Publish(Event{Path: "/y", Op: OpOpen})
	assert.Equal(t, []string{"a:/x", "b:/x", "b:/y"}, got)
	assert.Equal(t, 1, h.Len())
}

func TestHubZeroValue(t *testing.T) {
	t.Parallel()

	var h Hub
	called := false
	h.Subscribe(func(Event) { called = true })
	h.Publish(Event{Path: "/x"})

	assert.True(t, called)
}

func TestHubSubscribeFromHandler(t *testing.T) {
	t.Parallel()

	h := NewHub()
	h.Subscribe(func(Event) {
		h.Subscribe(func(Event) {})
	})

	h.Publish(Event{Path: "/x"})
	assert.Equal(t, 2, h.Len())
}

func TestOpString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "open", OpOpen.String())
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "op(42)", Op(42).String())
}

func TestFSWatcher(t *testing.T) {
	t.Parallel()

	td := t.TempDir()

	w, err := NewFSWatcher(DefaultVersionMarker, DefaultGemsetMarker)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Add(td))

	var mu sync.Mutex
	var events []Event
	w.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()

		events = append(events, ev)
	})

	writeFile(t, filepath.Join(td, "unrelated.rb"), "puts 1")
	writeFile(t, filepath.Join(td, DefaultVersionMarker), "3.2.2")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		for _, ev := range events {
			if ev.Path == filepath.Join(td, DefaultVersionMarker) {
				return true
			}
		}

		return false
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, ev := range events {
		assert.Equal(t, DefaultVersionMarker, filepath.Base(ev.Path))
	}
	mu.Unlock()

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Add(td), ErrWatcherClosed)

	_, open := <-w.Errors()
	assert.False(t, open)
}

func TestFSWatcherAddMissing(t *testing.T) {
	t.Parallel()

	w, err := NewFSWatcher()
	require.NoError(t, err)
	defer w.Close() //nolint:errcheck

	assert.Error(t, w.Add(filepath.Join(t.TempDir(), "nope")))
}

func TestFSWatcherAutodetect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "3.2.2@rails")
	svc, _, _ := f.service(t, sysPath)

	w, err := NewFSWatcher(DefaultVersionMarker, DefaultGemsetMarker)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.Add(f.project))

	svc.StartAutodetect(w)
	defer svc.StopAutodetect()

	f.markers(t, f.project, "3.2.2", "rails")

	require.Eventually(t, func() bool {
		return svc.Current().String() == "3.2.2@rails"
	}, 5*time.Second, 10*time.Millisecond)
}
