// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "path/filepath"

// channelDispatcher interprets the raw, ambiguous native events for
// one subscription and produces normalized FileSystemEvents. It
// holds a reference to the backend-wide recent-file cache and rename
// correlator, plus the subscription's own recursion bit and root.
type channelDispatcher struct {
	channel    ChannelID
	rootPath   string
	recursive  bool
	cache      *RecentFileCache
	correlator renameCorrelator
	deferred   []RawEvent
}

func newChannelDispatcher(channel ChannelID, rootPath string, recursive bool, cache *RecentFileCache, correlator renameCorrelator) *channelDispatcher {
	return &channelDispatcher{
		channel:    channel,
		rootPath:   rootPath,
		recursive:  recursive,
		cache:      cache,
		correlator: correlator,
	}
}

// Dispatch processes one raw event batch end to end: gate, gather,
// defer, emit, re-evaluate deferred events, flush the correlator, and
// commit the cache.
func (d *channelDispatcher) Dispatch(batch []RawEvent) []FileSystemEvent {
	var out []FileSystemEvent
	emit := func(e FileSystemEvent) {
		e.Channel = d.channel
		out = append(out, e)
	}

	for _, ev := range batch {
		d.processOne(ev, emit, true)
	}
	d.resolveDeferred(emit)
	d.correlator.flushBatch(emit)
	d.cache.Apply()
	d.cache.Prune()
	return out
}

// hintsFor derives the cache's stat hints from an event's is_file /
// is_directory / is_symlink bits.
func hintsFor(ev RawEvent) (file, dir, symlink bool) {
	return ev.Flags&FlagIsFile != 0, ev.Flags&FlagIsDirectory != 0, ev.Flags&FlagIsSymlink != 0
}

// processOne runs one raw event through the recursion gate, state
// gathering, deferral check, and emission rules. It returns false
// only when the event was deferred rather than processed.
func (d *channelDispatcher) processOne(ev RawEvent, emit func(FileSystemEvent), allowDefer bool) bool {
	// 1. Recursion gate.
	if !d.recursive && filepath.Dir(ev.Path) != d.rootPath {
		return true
	}

	// 2. Gather state.
	f, dir, symlink := hintsFor(ev)
	former := d.cache.FormerAtPath(ev.Path, f, dir, symlink)
	current := d.cache.CurrentAtPath(ev.Path, f, dir, symlink)

	// 3. Deferral.
	if ev.Flags&FlagRenamed != 0 && !former.Present && !current.Present && allowDefer {
		d.deferred = append(d.deferred, ev)
		return false
	}

	set := func(flag RawFlag) bool { return ev.Flags&flag != 0 }
	flagCount := 0
	for _, flag := range [4]RawFlag{FlagCreated, FlagDeleted, FlagModified, FlagRenamed} {
		if set(flag) {
			flagCount++
		}
	}

	// 4. Emission rules, in priority order.
	if flagCount == 1 {
		switch {
		case set(FlagCreated):
			emit(FileSystemEvent{Action: Created, Kind: pickKind(current, former), Path: ev.Path})
		case set(FlagDeleted):
			emit(FileSystemEvent{Action: Deleted, Kind: pickKind(current, former), Path: ev.Path})
			d.cache.Evict(ev.Path)
		case set(FlagModified):
			emit(FileSystemEvent{Action: Modified, Kind: pickKind(current, former), Path: ev.Path})
		case set(FlagRenamed):
			d.toCorrelator(ev, former, current, emit)
		}
		return true
	}

	if set(FlagRenamed) {
		d.toCorrelator(ev, former, current, emit)
		return true
	}

	if !current.Present {
		// Absent.
		switch {
		case former.Present && former.Kind != current.Kind && set(FlagDeleted) && set(FlagCreated):
			emit(FileSystemEvent{Action: Deleted, Kind: former.Kind, Path: ev.Path})
			emit(FileSystemEvent{Action: Created, Kind: current.Kind, Path: ev.Path})
		case !former.Present && set(FlagCreated):
			emit(FileSystemEvent{Action: Created, Kind: current.Kind, Path: ev.Path})
		}
		if set(FlagDeleted) {
			emit(FileSystemEvent{Action: Deleted, Kind: pickKind(current, former), Path: ev.Path})
			d.cache.Evict(ev.Path)
		}
		return true
	}

	// Present.
	if former.Present {
		switch {
		case set(FlagDeleted) && set(FlagCreated):
			emit(FileSystemEvent{Action: Deleted, Kind: former.Kind, Path: ev.Path})
			emit(FileSystemEvent{Action: Created, Kind: current.Kind, Path: ev.Path})
		case set(FlagModified):
			emit(FileSystemEvent{Action: Modified, Kind: current.Kind, Path: ev.Path})
		}
	} else {
		switch {
		case set(FlagDeleted) && set(FlagCreated):
			// Rapid churn: created, deleted, and recreated within one batch.
			emit(FileSystemEvent{Action: Created, Kind: current.Kind, Path: ev.Path})
			emit(FileSystemEvent{Action: Deleted, Kind: current.Kind, Path: ev.Path})
			emit(FileSystemEvent{Action: Created, Kind: current.Kind, Path: ev.Path})
		case set(FlagCreated):
			emit(FileSystemEvent{Action: Created, Kind: current.Kind, Path: ev.Path})
		}
	}
	return true
}

func (d *channelDispatcher) toCorrelator(ev RawEvent, former, current StatSnapshot, emit func(FileSystemEvent)) {
	if current.Present {
		d.correlator.handlePresent(d.channel, ev, current, emit)
	} else {
		d.correlator.handleAbsent(d.channel, ev, former, emit)
	}
}

// resolveDeferred re-evaluates deferred rename halves against the
// cache; nothing rewrites cache paths for renames during the batch, so
// a pass only makes progress if a fresh stat now finds the entry. It
// iterates until a full pass makes
// no progress, bounding the loop by the deferred list's length so it
// always terminates, then flushes whatever remains as
// best-effort renames.
func (d *channelDispatcher) resolveDeferred(emit func(FileSystemEvent)) {
	remaining := d.deferred
	d.deferred = nil

	for iterations := 0; len(remaining) > 0 && iterations <= len(remaining); iterations++ {
		var stillDeferred []RawEvent
		progressed := false

		for _, ev := range remaining {
			f, dir, symlink := hintsFor(ev)
			former := d.cache.FormerAtPath(ev.Path, f, dir, symlink)
			current := d.cache.CurrentAtPath(ev.Path, f, dir, symlink)

			if !former.Present && !current.Present {
				stillDeferred = append(stillDeferred, ev)
				continue
			}
			progressed = true
			d.toCorrelator(ev, former, current, emit)
		}

		remaining = stillDeferred
		if !progressed {
			break
		}
	}

	for _, ev := range remaining {
		f, dir, symlink := hintsFor(ev)
		former := d.cache.FormerAtPath(ev.Path, f, dir, symlink)
		d.correlator.handleAbsent(d.channel, ev, former, emit)
	}
}

// pickKind prefers the current snapshot's kind, falling back to the
// former snapshot's when the current one is absent or unknown.
func pickKind(current, former StatSnapshot) EntryKind {
	if current.Kind != KindUnknown {
		return current.Kind
	}
	return former.Kind
}
