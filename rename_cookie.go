// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "sync"

// renameCookieHalf is one half of a rename the OS paired with a
// short-lived cookie.
type renameCookieHalf struct {
	channel ChannelID
	path    string
	kind    EntryKind
}

func kindsCompatible(a, b EntryKind) bool {
	return a == b || a == KindUnknown || b == KindUnknown
}

// cookieRenameCorrelator pairs inotify-style "moved from"/"moved to"
// half-events that share a cookie into a single Renamed event.
// Cookies are scoped to a bounded deque of batches (default two); when
// the oldest batch is evicted, every unmatched "moved from" in it
// surfaces as a Deleted event. The bounded ring caps pending cookies,
// so a MOVED_FROM whose partner never arrives (e.g. the file moved
// outside any watched root) cannot make the correlator grow without
// bound.
type cookieRenameCorrelator struct {
	mu         sync.Mutex
	batches    []map[uint32]renameCookieHalf // oldest at index 0
	maxBatches int
	cache      *RecentFileCache
}

// newCookieRenameCorrelator returns a correlator with maxBatches kept
// batches (default 2).
func newCookieRenameCorrelator(cache *RecentFileCache, maxBatches int) *cookieRenameCorrelator {
	if maxBatches <= 0 {
		maxBatches = 2
	}
	c := &cookieRenameCorrelator{maxBatches: maxBatches, cache: cache}
	for i := 0; i < maxBatches; i++ {
		c.batches = append(c.batches, make(map[uint32]renameCookieHalf))
	}
	return c
}

// MovedFrom records the "moved from" half in the newest batch. A
// cookie collision within that same batch means the OS reused the
// cookie for two different renames before we could pair the first —
// we cannot correlate it, so the displaced half is emitted as a
// deletion.
func (c *cookieRenameCorrelator) MovedFrom(cookie uint32, channel ChannelID, path string, kind EntryKind, emit func(FileSystemEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newest := c.batches[len(c.batches)-1]
	if displaced, ok := newest[cookie]; ok {
		emit(FileSystemEvent{Channel: displaced.channel, Action: Deleted, Kind: displaced.kind, Path: displaced.path})
		c.cache.Evict(displaced.path)
	}
	newest[cookie] = renameCookieHalf{channel: channel, path: path, kind: kind}
}

// MovedTo searches newest-to-oldest for cookie's partner. A match
// requires equal channel and compatible kind; on match it emits a
// single Renamed event. A cookie match with an incompatible channel
// or kind emits Deleted(from)+Created(to) instead of guessing. No
// match at all (the partner "moved from" was never seen, e.g. the
// source was outside any watched root) emits a bare Created.
func (c *cookieRenameCorrelator) MovedTo(cookie uint32, channel ChannelID, path string, kind EntryKind, emit func(FileSystemEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.batches) - 1; i >= 0; i-- {
		from, ok := c.batches[i][cookie]
		if !ok {
			continue
		}
		delete(c.batches[i], cookie)

		if from.channel == channel && kindsCompatible(from.kind, kind) {
			emit(FileSystemEvent{Channel: channel, Action: Renamed, Kind: kind, Path: path, OldPath: from.path})
		} else {
			emit(FileSystemEvent{Channel: from.channel, Action: Deleted, Kind: from.kind, Path: from.path})
			emit(FileSystemEvent{Channel: channel, Action: Created, Kind: kind, Path: path})
		}
		return
	}
	emit(FileSystemEvent{Channel: channel, Action: Created, Kind: kind, Path: path})
}

// RollBatch flushes the oldest batch — every unmatched "moved from" in
// it becomes a Deleted event and its cache entry is evicted — then
// appends a fresh empty batch. Called at each event-batch boundary
// (native backend) or polling pass.
func (c *cookieRenameCorrelator) RollBatch(emit func(FileSystemEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldest := c.batches[0]
	for _, half := range oldest {
		emit(FileSystemEvent{Channel: half.channel, Action: Deleted, Kind: half.kind, Path: half.path})
		c.cache.Evict(half.path)
	}

	c.batches = append(c.batches[1:], make(map[uint32]renameCookieHalf))
}
