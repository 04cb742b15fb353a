//go:build darwin

// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsevents"
)

func newPlatformAdapter() nativeAdapter { return newFSEventsAdapter() }

// Darwin has no rename cookie; a moved path shows up as a separate
// ItemRemoved (or bare ItemRenamed) on the old path and ItemCreated on
// the new one, so the inode+size pairing strategy correlates
// them instead.
func defaultRenameCorrelator(cache *RecentFileCache) renameCorrelator {
	return newInodeRenameCorrelator()
}

// fsEventsSubscription is one watched root's bookkeeping: FSEvents
// streams are keyed by path set, not by subscriber, so each channel
// gets its own *fsevents.EventStream rather than sharing one the way
// the inotify adapter shares one inotify instance.
type fsEventsSubscription struct {
	channel   ChannelID
	root      string
	recursive bool
	stream    *fsevents.EventStream
	done      chan struct{}
}

// fsEventsAdapter is the Darwin nativeAdapter: one fsevents.EventStream
// per watched root, with events fanned into a shared buffer that
// Listen drains.
type fsEventsAdapter struct {
	mu            sync.Mutex
	subscriptions map[ChannelID]*fsEventsSubscription

	pending chan channelBatch
	closed  chan struct{}
}

func newFSEventsAdapter() *fsEventsAdapter {
	return &fsEventsAdapter{
		subscriptions: make(map[ChannelID]*fsEventsSubscription),
		pending:       make(chan channelBatch, 64),
		closed:        make(chan struct{}),
	}
}

func (a *fsEventsAdapter) HandleAdd(channel ChannelID, root string, recursive bool) Result[bool] {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Err[bool](err)
	}
	var st syscall.Stat_t
	if err := syscall.Stat(abs, &st); err != nil {
		return Err[bool](err)
	}

	stream := &fsevents.EventStream{
		Paths:   []string{abs},
		Latency: 100 * time.Millisecond,
		Device:  st.Dev,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot,
	}
	sub := &fsEventsSubscription{channel: channel, root: abs, recursive: recursive, stream: stream, done: make(chan struct{})}

	a.mu.Lock()
	a.subscriptions[channel] = sub
	a.mu.Unlock()

	stream.Start()
	go a.pump(sub)
	return Ok(true)
}

func (a *fsEventsAdapter) HandleRemove(channel ChannelID) Result[bool] {
	a.mu.Lock()
	sub, ok := a.subscriptions[channel]
	delete(a.subscriptions, channel)
	a.mu.Unlock()
	if ok {
		sub.stream.Stop()
		close(sub.done)
	}
	return Ok(true)
}

// pump translates one subscription's fsevents.Event batches into
// RawEvent batches on the adapter's shared pending channel, until the
// subscription is removed.
func (a *fsEventsAdapter) pump(sub *fsEventsSubscription) {
	for {
		select {
		case <-sub.done:
			return
		case <-a.closed:
			return
		case batch, ok := <-sub.stream.Events:
			if !ok {
				return
			}
			out := make([]RawEvent, 0, len(batch))
			for _, e := range batch {
				if !sub.recursive && filepath.Dir(e.Path) != strings.TrimSuffix(sub.root, "/") {
					continue
				}
				out = append(out, translateFSEvent(e))
			}
			if len(out) == 0 {
				continue
			}
			select {
			case a.pending <- channelBatch{channel: sub.channel, events: out}:
			case <-sub.done:
				return
			case <-a.closed:
				return
			}
		}
	}
}

func translateFSEvent(e fsevents.Event) RawEvent {
	ev := RawEvent{Path: e.Path}
	f := e.Flags

	if f&fsevents.MustScanSubDirs != 0 || f&fsevents.KernelDropped != 0 || f&fsevents.UserDropped != 0 {
		ev.Flags |= FlagMustRescan
	}
	if f&fsevents.ItemRemoved != 0 {
		ev.Flags |= FlagDeleted
	}
	if f&fsevents.ItemCreated != 0 {
		ev.Flags |= FlagCreated
	}
	if f&fsevents.ItemModified != 0 {
		ev.Flags |= FlagModified
	}
	if f&fsevents.ItemRenamed != 0 {
		ev.Flags |= FlagRenamed
	}

	switch {
	case f&fsevents.ItemIsDir != 0:
		ev.Flags |= FlagIsDirectory
	case f&fsevents.ItemIsSymlink != 0:
		ev.Flags |= FlagIsSymlink
	default:
		ev.Flags |= FlagIsFile
	}
	return ev
}

func (a *fsEventsAdapter) Listen(deliver func(channel ChannelID, batch []RawEvent)) {
	select {
	case b := <-a.pending:
		deliver(b.channel, b.events)
	case <-a.closed:
	case <-time.After(250 * time.Millisecond):
	}
}

func (a *fsEventsAdapter) Wake() {}

func (a *fsEventsAdapter) Close() error {
	a.mu.Lock()
	subs := a.subscriptions
	a.subscriptions = make(map[ChannelID]*fsEventsSubscription)
	a.mu.Unlock()
	for _, s := range subs {
		s.stream.Stop()
		close(s.done)
	}
	close(a.closed)
	return nil
}
