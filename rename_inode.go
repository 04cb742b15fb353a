// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "sync"

// renamePartial is one side of a rename the OS flagged without
// identifying its partner. A present partial
// carries the entry's current inode/size; an absent partial carries
// its last-known values.
type renamePartial struct {
	channel ChannelID
	path    string
	kind    EntryKind
	inode   uint64
	size    int64
	present bool
}

// inodeRenameCorrelator pairs FSEvents-style rename halves by inode.
// The OS signals only "this entry participated in a rename"; pairing
// the present half (the new name) with the absent half (the old name)
// requires matching inode, equal size, compatible kind, and
// opposite presence.
type inodeRenameCorrelator struct {
	mu       sync.Mutex
	byInode  map[uint64][]renamePartial
}

func newInodeRenameCorrelator() *inodeRenameCorrelator {
	return &inodeRenameCorrelator{byInode: make(map[uint64][]renamePartial)}
}

// Observe stages one half of a rename and attempts to pair it against
// any opposite-presence partial already staged at the same inode. On a
// match it emits exactly one Renamed event (absent side is OldPath,
// present side is the new Path) and removes both partials; otherwise
// it stages this half for a later Observe or FlushUnmatched to
// resolve.
func (c *inodeRenameCorrelator) Observe(p renamePartial, emit func(FileSystemEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	staged := c.byInode[p.inode]
	for i, other := range staged {
		if other.present == p.present {
			continue
		}
		if other.size != p.size || !kindsCompatible(other.kind, p.kind) {
			continue
		}

		var from, to renamePartial
		if p.present {
			to, from = p, other
		} else {
			to, from = other, p
		}

		emit(FileSystemEvent{Channel: to.channel, Action: Renamed, Kind: to.kind, Path: to.path, OldPath: from.path})

		staged = append(staged[:i], staged[i+1:]...)
		if len(staged) == 0 {
			delete(c.byInode, p.inode)
		} else {
			c.byInode[p.inode] = staged
		}
		return
	}

	c.byInode[p.inode] = append(staged, p)
}

// FlushUnmatched converts every leftover present partial to a Created
// event and every leftover absent partial to a Deleted event, and
// clears all staged state. Called at the end of each native event
// batch.
func (c *inodeRenameCorrelator) FlushUnmatched(emit func(FileSystemEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, staged := range c.byInode {
		for _, p := range staged {
			if p.present {
				emit(FileSystemEvent{Channel: p.channel, Action: Created, Kind: p.kind, Path: p.path})
			} else {
				emit(FileSystemEvent{Channel: p.channel, Action: Deleted, Kind: p.kind, Path: p.path})
			}
		}
	}
	c.byInode = make(map[uint64][]renamePartial)
}
