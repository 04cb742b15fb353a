// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentFileCachePendingThenApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	c := NewRecentFileCache(16)

	former := c.FormerAtPath(path, true, false, false)
	assert.False(t, former.Present)

	current := c.CurrentAtPath(path, true, false, false)
	assert.True(t, current.Present)
	assert.Equal(t, KindFile, current.Kind)

	// Not committed yet: FormerAtPath still reports absent.
	assert.False(t, c.FormerAtPath(path, true, false, false).Present)

	c.Apply()
	assert.True(t, c.FormerAtPath(path, true, false, false).Present)
	assert.Equal(t, 1, c.Size())
}

func TestRecentFileCacheEvict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	c := NewRecentFileCache(16)
	c.CurrentAtPath(path, true, false, false)
	c.Apply()
	require.Equal(t, 1, c.Size())

	c.Evict(path)
	assert.Equal(t, 0, c.Size())
	assert.False(t, c.FormerAtPath(path, true, false, false).Present)
}

func TestRecentFileCacheUpdateForRename(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "dir")
	require.NoError(t, os.Mkdir(sub, 0755))
	file := filepath.Join(sub, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	c := NewRecentFileCache(16)
	c.CurrentAtPath(sub, false, true, false)
	c.CurrentAtPath(file, true, false, false)
	c.Apply()
	require.Equal(t, 2, c.Size())

	moved := filepath.Join(dir, "moved")
	movedFile := filepath.Join(moved, "file.txt")
	c.UpdateForRename(sub, moved)

	assert.True(t, c.FormerAtPath(moved, false, true, false).Present)
	assert.True(t, c.FormerAtPath(movedFile, true, false, false).Present)
	assert.False(t, c.FormerAtPath(sub, false, true, false).Present)
	assert.False(t, c.FormerAtPath(file, true, false, false).Present)
}

func populatedCache(t *testing.T, maximumSize, count int) (*RecentFileCache, string) {
	t.Helper()
	dir := t.TempDir()
	c := NewRecentFileCache(maximumSize)
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("file-%d.txt", i))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		c.CurrentAtPath(path, true, false, false)
		c.Apply()
	}
	return c, dir
}

func TestRecentFileCacheBoundedByMaximumSize(t *testing.T) {
	c, _ := populatedCache(t, 2, 5)
	assert.LessOrEqual(t, c.Size(), 2)
}

func TestRecentFileCacheSetMaximumSize(t *testing.T) {
	c, _ := populatedCache(t, 10, 5)
	require.Equal(t, 5, c.Size())

	c.SetMaximumSize(2)
	assert.LessOrEqual(t, c.Size(), 2)

	// Zero/negative requests are ignored rather than disabling the cache.
	c.SetMaximumSize(0)
	assert.LessOrEqual(t, c.Size(), 2)
}

func TestRecentFileCachePrepopulate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("y"), 0644))

	c := NewRecentFileCache(16)
	c.Prepopulate(dir, 16, true)

	assert.True(t, c.FormerAtPath(filepath.Join(dir, "a.txt"), true, false, false).Present)
	assert.True(t, c.FormerAtPath(filepath.Join(dir, "sub"), false, true, false).Present)
	assert.True(t, c.FormerAtPath(filepath.Join(dir, "sub", "b.txt"), true, false, false).Present)
}
