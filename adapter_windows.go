//go:build windows

// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"path/filepath"
	"reflect"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

func newPlatformAdapter() nativeAdapter { return newWindowsAdapter() }

// ReadDirectoryChangesW has no rename cookie; FILE_ACTION_RENAMED_OLD_NAME
// and FILE_ACTION_RENAMED_NEW_NAME are reported as plain deleted/created
// events without the renamed flag, so they never reach this correlator
// and a rename is delivered as a Deleted event plus a Created event.
func defaultRenameCorrelator(cache *RecentFileCache) renameCorrelator {
	return newInodeRenameCorrelator()
}

const windowsNotifyFilter = windows.FILE_NOTIFY_CHANGE_FILE_NAME |
	windows.FILE_NOTIFY_CHANGE_DIR_NAME |
	windows.FILE_NOTIFY_CHANGE_ATTRIBUTES |
	windows.FILE_NOTIFY_CHANGE_LAST_WRITE

// windowsWatch owns one subscription's directory handle and read
// buffer. One handle per channel is simpler than sharing a single
// IOCP across many watches, and each channel is already an
// independent unit here.
type windowsWatch struct {
	channel ChannelID
	root    string
	handle  windows.Handle
	overlap windows.Overlapped
	event   windows.Handle
	buf     [65536]byte
	done    chan struct{}
}

type windowsAdapter struct {
	mu       sync.Mutex
	watches  map[ChannelID]*windowsWatch
	pending  chan channelBatch
	closed   chan struct{}
}

func newWindowsAdapter() *windowsAdapter {
	return &windowsAdapter{
		watches: make(map[ChannelID]*windowsWatch),
		pending: make(chan channelBatch, 64),
		closed:  make(chan struct{}),
	}
}

func (a *windowsAdapter) HandleAdd(channel ChannelID, root string, recursive bool) Result[bool] {
	dir := filepath.Clean(root)
	h, err := windows.CreateFile(windows.StringToUTF16Ptr(dir),
		windows.FILE_LIST_DIRECTORY,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OVERLAPPED, 0)
	if err != nil {
		return Err[bool](err)
	}
	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		windows.CloseHandle(h)
		return Err[bool](err)
	}

	w := &windowsWatch{channel: channel, root: dir, handle: h, event: ev, done: make(chan struct{})}
	w.overlap.HEvent = ev

	a.mu.Lock()
	a.watches[channel] = w
	a.mu.Unlock()

	go a.watchLoop(w, recursive)
	return Ok(true)
}

func (a *windowsAdapter) HandleRemove(channel ChannelID) Result[bool] {
	a.mu.Lock()
	w, ok := a.watches[channel]
	delete(a.watches, channel)
	a.mu.Unlock()
	if ok {
		close(w.done)
		windows.CancelIo(w.handle)
		windows.CloseHandle(w.handle)
		windows.CloseHandle(w.event)
	}
	return Ok(true)
}

// watchLoop repeatedly issues ReadDirectoryChangesW and blocks on the
// per-watch event handle, translating each returned buffer of
// FILE_NOTIFY_INFORMATION records into a RawEvent batch.
func (a *windowsAdapter) watchLoop(w *windowsWatch, recursive bool) {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		var bytesReturned uint32
		err := windows.ReadDirectoryChanges(w.handle, &w.buf[0], uint32(len(w.buf)), recursive,
			windowsNotifyFilter, &bytesReturned, &w.overlap, 0)
		if err != nil {
			return
		}

		waitResult, err := windows.WaitForSingleObject(w.event, windows.INFINITE)
		if err != nil || waitResult != windows.WAIT_OBJECT_0 {
			return
		}
		windows.ResetEvent(w.event)

		var n uint32
		if err := windows.GetOverlappedResult(w.handle, &w.overlap, &n, false); err != nil || n == 0 {
			continue
		}

		events := parseNotifyBuffer(w.buf[:n], w.root)
		if len(events) == 0 {
			continue
		}
		select {
		case a.pending <- channelBatch{channel: w.channel, events: events}:
		case <-w.done:
			return
		}
	}
}

func parseNotifyBuffer(buf []byte, root string) []RawEvent {
	var events []RawEvent
	var offset uint32
	for {
		raw := (*windows.FileNotifyInformation)(unsafe.Pointer(&buf[offset]))

		size := int(raw.FileNameLength / 2)
		var nameBuf []uint16
		sh := (*reflect.SliceHeader)(unsafe.Pointer(&nameBuf))
		sh.Data = uintptr(unsafe.Pointer(&raw.FileName))
		sh.Len = size
		sh.Cap = size
		name := windows.UTF16ToString(nameBuf)

		ev := RawEvent{Path: filepath.Join(root, name)}
		switch raw.Action {
		case windows.FILE_ACTION_ADDED, windows.FILE_ACTION_RENAMED_NEW_NAME:
			ev.Flags |= FlagCreated
		case windows.FILE_ACTION_REMOVED, windows.FILE_ACTION_RENAMED_OLD_NAME:
			ev.Flags |= FlagDeleted
		case windows.FILE_ACTION_MODIFIED:
			ev.Flags |= FlagModified
		}
		events = append(events, ev)

		if raw.NextEntryOffset == 0 {
			break
		}
		offset += raw.NextEntryOffset
		if offset >= uint32(len(buf)) {
			break
		}
	}
	return events
}

func (a *windowsAdapter) Listen(deliver func(channel ChannelID, batch []RawEvent)) {
	select {
	case b := <-a.pending:
		deliver(b.channel, b.events)
	case <-a.closed:
	case <-time.After(250 * time.Millisecond):
	}
}

func (a *windowsAdapter) Wake() {}

func (a *windowsAdapter) Close() error {
	a.mu.Lock()
	watches := a.watches
	a.watches = make(map[ChannelID]*windowsWatch)
	a.mu.Unlock()
	for _, w := range watches {
		close(w.done)
		windows.CancelIo(w.handle)
		windows.CloseHandle(w.handle)
		windows.CloseHandle(w.event)
	}
	close(a.closed)
	return nil
}
