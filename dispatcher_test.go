// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelDispatcherCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	cache := NewRecentFileCache(16)
	d := newChannelDispatcher(1, dir, true, cache, newCookieRenameCorrelator(cache, 2))

	events := d.Dispatch([]RawEvent{{Path: path, Flags: FlagCreated | FlagIsFile}})

	require.Len(t, events, 1)
	assert.Equal(t, Created, events[0].Action)
	assert.Equal(t, ChannelID(1), events[0].Channel)
	assert.Equal(t, KindFile, events[0].Kind)
}

func TestChannelDispatcherModify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	cache := NewRecentFileCache(16)
	cache.CurrentAtPath(path, true, false, false)
	cache.Apply()

	require.NoError(t, os.WriteFile(path, []byte("xyz"), 0644))

	d := newChannelDispatcher(1, dir, true, cache, newCookieRenameCorrelator(cache, 2))
	events := d.Dispatch([]RawEvent{{Path: path, Flags: FlagModified | FlagIsFile}})

	require.Len(t, events, 1)
	assert.Equal(t, Modified, events[0].Action)
}

func TestChannelDispatcherDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	cache := NewRecentFileCache(16)
	cache.CurrentAtPath(path, true, false, false)
	cache.Apply()
	require.NoError(t, os.Remove(path))

	d := newChannelDispatcher(1, dir, true, cache, newCookieRenameCorrelator(cache, 2))
	events := d.Dispatch([]RawEvent{{Path: path, Flags: FlagDeleted | FlagIsFile}})

	require.Len(t, events, 1)
	assert.Equal(t, Deleted, events[0].Action)
	assert.Equal(t, 0, cache.Size())
}

func TestChannelDispatcherRenamePairsWithinOneBatch(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0644))

	cache := NewRecentFileCache(16)
	cache.CurrentAtPath(oldPath, true, false, false)
	cache.Apply()

	require.NoError(t, os.Rename(oldPath, newPath))

	d := newChannelDispatcher(1, dir, true, cache, newCookieRenameCorrelator(cache, 2))
	events := d.Dispatch([]RawEvent{
		{Path: oldPath, Flags: FlagRenamed | FlagIsFile, Cookie: 5},
		{Path: newPath, Flags: FlagRenamed | FlagIsFile, Cookie: 5},
	})

	require.Len(t, events, 1)
	assert.Equal(t, Renamed, events[0].Action)
	assert.Equal(t, oldPath, events[0].OldPath)
	assert.Equal(t, newPath, events[0].Path)
}

func TestChannelDispatcherNonRecursiveGateDropsNestedEvents(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	nested := filepath.Join(sub, "nested.txt")
	require.NoError(t, os.WriteFile(nested, []byte("x"), 0644))

	cache := NewRecentFileCache(16)
	d := newChannelDispatcher(1, dir, false, cache, newCookieRenameCorrelator(cache, 2))

	events := d.Dispatch([]RawEvent{{Path: nested, Flags: FlagCreated | FlagIsFile}})
	assert.Empty(t, events)
}
