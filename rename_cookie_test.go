// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieRenameCorrelatorPairsMatchingCookie(t *testing.T) {
	cache := NewRecentFileCache(16)
	c := newCookieRenameCorrelator(cache, 2)

	var got []FileSystemEvent
	emit := func(e FileSystemEvent) { got = append(got, e) }

	c.MovedFrom(42, 1, "/root/old.txt", KindFile, emit)
	assert.Empty(t, got)

	c.MovedTo(42, 1, "/root/new.txt", KindFile, emit)
	require.Len(t, got, 1)
	assert.Equal(t, Renamed, got[0].Action)
	assert.Equal(t, "/root/old.txt", got[0].OldPath)
	assert.Equal(t, "/root/new.txt", got[0].Path)
}

func TestCookieRenameCorrelatorCrossChannelSplitsIntoDeleteCreate(t *testing.T) {
	cache := NewRecentFileCache(16)
	c := newCookieRenameCorrelator(cache, 2)

	var got []FileSystemEvent
	emit := func(e FileSystemEvent) { got = append(got, e) }

	c.MovedFrom(7, 1, "/root/old.txt", KindFile, emit)
	c.MovedTo(7, 2, "/root/new.txt", KindFile, emit)

	require.Len(t, got, 2)
	assert.Equal(t, Deleted, got[0].Action)
	assert.Equal(t, Created, got[1].Action)
}

func TestCookieRenameCorrelatorUnmatchedMovedToEmitsCreated(t *testing.T) {
	cache := NewRecentFileCache(16)
	c := newCookieRenameCorrelator(cache, 2)

	var got []FileSystemEvent
	c.MovedTo(99, 1, "/root/new.txt", KindFile, func(e FileSystemEvent) { got = append(got, e) })

	require.Len(t, got, 1)
	assert.Equal(t, Created, got[0].Action)
}

func TestCookieRenameCorrelatorRollBatchEvictsUnmatched(t *testing.T) {
	cache := NewRecentFileCache(16)
	c := newCookieRenameCorrelator(cache, 2)
	cache.CurrentAtPath("/root/old.txt", true, false, false)
	cache.Apply()

	c.MovedFrom(1, 1, "/root/old.txt", KindFile, func(FileSystemEvent) {})

	// The half is staged in the newest of the two batches: the first
	// RollBatch flushes only the older, empty batch, and the second
	// flushes the half as unmatched.
	var got []FileSystemEvent
	emit := func(e FileSystemEvent) { got = append(got, e) }
	c.RollBatch(emit)
	assert.Empty(t, got)
	c.RollBatch(emit)

	require.Len(t, got, 1)
	assert.Equal(t, Deleted, got[0].Action)
	assert.False(t, cache.FormerAtPath("/root/old.txt", true, false, false).Present)
}
