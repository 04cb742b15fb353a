// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInodeRenameCorrelatorPairsAbsentThenPresent(t *testing.T) {
	c := newInodeRenameCorrelator()

	var got []FileSystemEvent
	emit := func(e FileSystemEvent) { got = append(got, e) }

	c.Observe(renamePartial{channel: 1, path: "/root/old.txt", kind: KindFile, inode: 5, size: 10, present: false}, emit)
	assert.Empty(t, got)

	c.Observe(renamePartial{channel: 1, path: "/root/new.txt", kind: KindFile, inode: 5, size: 10, present: true}, emit)
	require.Len(t, got, 1)
	assert.Equal(t, Renamed, got[0].Action)
	assert.Equal(t, "/root/old.txt", got[0].OldPath)
	assert.Equal(t, "/root/new.txt", got[0].Path)
}

func TestInodeRenameCorrelatorMismatchedSizeDoesNotPair(t *testing.T) {
	c := newInodeRenameCorrelator()

	var got []FileSystemEvent
	emit := func(e FileSystemEvent) { got = append(got, e) }

	c.Observe(renamePartial{channel: 1, path: "/root/old.txt", kind: KindFile, inode: 5, size: 10, present: false}, emit)
	c.Observe(renamePartial{channel: 1, path: "/root/new.txt", kind: KindFile, inode: 5, size: 999, present: true}, emit)
	assert.Empty(t, got)

	c.FlushUnmatched(emit)
	require.Len(t, got, 2)
}

func TestInodeRenameCorrelatorFlushUnmatched(t *testing.T) {
	c := newInodeRenameCorrelator()
	var got []FileSystemEvent
	emit := func(e FileSystemEvent) { got = append(got, e) }

	c.Observe(renamePartial{channel: 1, path: "/root/gone.txt", kind: KindFile, inode: 3, size: 1, present: false}, emit)
	c.FlushUnmatched(emit)

	require.Len(t, got, 1)
	assert.Equal(t, Deleted, got[0].Action)
	assert.Equal(t, "/root/gone.txt", got[0].Path)
}
