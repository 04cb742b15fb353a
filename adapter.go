// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"errors"
	"sync"
	"time"
)

// RawFlag is the flag alphabet the dispatcher understands from a
// native adapter: created/deleted/modified/renamed describe the
// operation, is_file/is_directory/is_symlink hint at the entry kind
// when a stat can't be performed, and must_rescan signals a
// notification-buffer overflow.
type RawFlag uint32

const (
	FlagCreated RawFlag = 1 << iota
	FlagDeleted
	FlagModified
	FlagRenamed
	FlagIsFile
	FlagIsDirectory
	FlagIsSymlink
	FlagMustRescan
)

// RawEvent is one native notification, already reduced to the portable
// shape the dispatcher consumes: a path and a flag bitmask. Cookie is
// only meaningful to an inotify-style adapter/correlator pair; it is
// the zero value everywhere else.
type RawEvent struct {
	Path   string
	Flags  RawFlag
	Cookie uint32
}

// nativeAdapter is the external collaborator this package depends on:
// a thin, per-OS piece that turns a real OS notification API into a stream of
// RawEvents for one channel, and nothing more. The core depends only
// on this interface — never on syscalls directly — so the
// dispatcher/cache/correlator logic in this package is identical on
// every platform.
type nativeAdapter interface {
	// Listen blocks, delivering batches of RawEvents for a channel to
	// deliver until Wake is called or the adapter is closed.
	Listen(deliver func(channel ChannelID, batch []RawEvent))
	// Wake asks a blocked Listen to return control to the caller
	// early, without losing any event already queued. Every platform
	// adapter's Listen also returns on its own short timeout; the
	// Darwin and Windows adapters implement Wake as a no-op, and the
	// Linux adapter's Wake does not interrupt its pending read, so on
	// those platforms Listen returns by that timeout.
	Wake()
	// HandleAdd registers a new subscription with the OS.
	HandleAdd(channel ChannelID, root string, recursive bool) Result[bool]
	// HandleRemove unregisters a subscription.
	HandleRemove(channel ChannelID) Result[bool]
	// Close releases OS resources. Listen must return after Close.
	Close() error
}

// renameCorrelator abstracts the two rename-pairing strategies of
// behind the shape the dispatcher needs: hand it the present or
// absent half of a potential rename, and flush whatever is left
// unmatched at a batch boundary.
type renameCorrelator interface {
	handlePresent(channel ChannelID, ev RawEvent, current StatSnapshot, emit func(FileSystemEvent))
	handleAbsent(channel ChannelID, ev RawEvent, former StatSnapshot, emit func(FileSystemEvent))
	flushBatch(emit func(FileSystemEvent))
}

func (c *cookieRenameCorrelator) handlePresent(channel ChannelID, ev RawEvent, current StatSnapshot, emit func(FileSystemEvent)) {
	c.MovedTo(ev.Cookie, channel, current.Path, current.Kind, emit)
}

func (c *cookieRenameCorrelator) handleAbsent(channel ChannelID, ev RawEvent, former StatSnapshot, emit func(FileSystemEvent)) {
	kind := former.Kind
	if kind == KindUnknown {
		kind = flagKind(ev.Flags)
	}
	c.MovedFrom(ev.Cookie, channel, ev.Path, kind, emit)
}

func (c *cookieRenameCorrelator) flushBatch(emit func(FileSystemEvent)) { c.RollBatch(emit) }

func (c *inodeRenameCorrelator) handlePresent(channel ChannelID, ev RawEvent, current StatSnapshot, emit func(FileSystemEvent)) {
	c.Observe(renamePartial{
		channel: channel,
		path:    current.Path,
		kind:    current.Kind,
		inode:   current.Inode,
		size:    current.Size,
		present: true,
	}, emit)
}

func (c *inodeRenameCorrelator) handleAbsent(channel ChannelID, ev RawEvent, former StatSnapshot, emit func(FileSystemEvent)) {
	kind := former.Kind
	if kind == KindUnknown {
		kind = flagKind(ev.Flags)
	}
	c.Observe(renamePartial{
		channel: channel,
		path:    ev.Path,
		kind:    kind,
		inode:   former.Inode,
		size:    former.Size,
		present: false,
	}, emit)
}

func (c *inodeRenameCorrelator) flushBatch(emit func(FileSystemEvent)) { c.FlushUnmatched(emit) }

// channelBatch pairs a channel with the RawEvents a platform adapter
// collected for it — the shared shape the darwin and windows adapters
// push onto an internal buffered channel for Listen to drain, since
// both poll one event source per subscription rather than one shared
// descriptor the way the Linux inotify adapter does.
type channelBatch struct {
	channel ChannelID
	events  []RawEvent
}

// noopAdapter never delivers anything and rejects every subscription;
// it's the last-resort fallback a platform adapter constructor returns
// if setting up the real OS mechanism fails outright (e.g. permission
// denied on the notification device), so a Hub still starts up and the
// polling backend remains the only route for those channels. Listen
// wakes on its own short timeout so the owning thread's command loop
// keeps cycling (Submitted commands still need processing, even though
// every HandleAdd here fails) without busy-spinning.
type noopAdapter struct {
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newNoopAdapter() *noopAdapter {
	return &noopAdapter{wake: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (a *noopAdapter) Listen(deliver func(channel ChannelID, batch []RawEvent)) {
	select {
	case <-a.wake:
	case <-a.closed:
	case <-time.After(200 * time.Millisecond):
	}
}

func (a *noopAdapter) Wake() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *noopAdapter) HandleAdd(channel ChannelID, root string, recursive bool) Result[bool] {
	return Err[bool](errors.New("no native filesystem notification mechanism is available on this platform"))
}
func (a *noopAdapter) HandleRemove(channel ChannelID) Result[bool] { return Ok(true) }
func (a *noopAdapter) Close() error {
	a.once.Do(func() { close(a.closed) })
	return nil
}

// flagKind derives a best-guess EntryKind purely from the
// is_file/is_directory/is_symlink hint bits, used when neither the
// former nor the current stat snapshot knows the kind.
func flagKind(f RawFlag) EntryKind {
	switch {
	case f&FlagIsDirectory != 0:
		return KindDirectory
	case f&FlagIsSymlink != 0:
		return KindSymlink
	case f&FlagIsFile != 0:
		return KindFile
	default:
		return KindUnknown
	}
}
