// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(it *pollingIterator, n int) []FileSystemEvent {
	var got []FileSystemEvent
	it.advance(n, func(e FileSystemEvent) { got = append(got, e) })
	return got
}

func TestPollingIteratorFirstRoundIsPriming(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))

	arena := newDirectoryArena()
	it := newPollingIterator(arena, dir, true)

	events := collectEvents(it, 10)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, it.completedRounds, 1)
}

func TestPollingIteratorDetectsCreateModifyDeleteAcrossRounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	arena := newDirectoryArena()
	it := newPollingIterator(arena, dir, true)
	collectEvents(it, 10) // priming round

	newPath := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(newPath, []byte("y"), 0644))
	events := collectEvents(it, 10)
	require.Len(t, events, 1)
	assert.Equal(t, Created, events[0].Action)
	assert.Equal(t, newPath, events[0].Path)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("much longer content now"), 0644))
	events = collectEvents(it, 10)
	require.Len(t, events, 1)
	assert.Equal(t, Modified, events[0].Action)
	assert.Equal(t, path, events[0].Path)

	require.NoError(t, os.Remove(newPath))
	events = collectEvents(it, 10)
	require.Len(t, events, 1)
	assert.Equal(t, Deleted, events[0].Action)
	assert.Equal(t, newPath, events[0].Path)
}

func TestPollingIteratorRecursesIntoSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("x"), 0644))

	arena := newDirectoryArena()
	it := newPollingIterator(arena, dir, true)

	// Run enough steps to prime both the root and the subdirectory.
	var rounds int
	for rounds < 2 {
		before := it.completedRounds
		collectEvents(it, 20)
		if it.completedRounds > before {
			rounds++
		}
	}

	newNested := filepath.Join(sub, "new.txt")
	require.NoError(t, os.WriteFile(newNested, []byte("y"), 0644))
	var events []FileSystemEvent
	for len(events) == 0 {
		events = collectEvents(it, 20)
	}
	require.Len(t, events, 1)
	assert.Equal(t, Created, events[0].Action)
	assert.Equal(t, newNested, events[0].Path)
}
