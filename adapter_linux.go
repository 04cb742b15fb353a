//go:build linux

// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func newPlatformAdapter() nativeAdapter {
	a, err := newInotifyAdapter()
	if err != nil {
		return newNoopAdapter()
	}
	return a
}

func defaultRenameCorrelator(cache *RecentFileCache) renameCorrelator {
	return newCookieRenameCorrelator(cache, 2)
}

// inotifyWatch is one registered inotify watch descriptor.
type inotifyWatch struct {
	wd      uint32
	channel ChannelID
	path    string
	recurse bool
}

// inotifyAdapter is the Linux nativeAdapter: one shared inotify
// instance, a wd->watch and path->wd index pair, and a self-pipe to
// interrupt a blocked read. One instance here serves every channel at
// once, since the dispatcher (not the adapter) is what's already
// scoped per channel.
type inotifyAdapter struct {
	fd   int
	file *os.File

	mu       sync.Mutex
	byWd     map[uint32]*inotifyWatch
	byPath   map[string]uint32 // path -> wd, scoped within one channel's recurse tree
	channels map[ChannelID][]uint32

	wakeR, wakeW *os.File
	closed       bool
}

func newInotifyAdapter() (*inotifyAdapter, error) {
	fd, errno := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if fd == -1 {
		return nil, errno
	}
	r, w, err := os.Pipe()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &inotifyAdapter{
		fd:       fd,
		file:     os.NewFile(uintptr(fd), "inotify"),
		byWd:     make(map[uint32]*inotifyWatch),
		byPath:   make(map[string]uint32),
		channels: make(map[ChannelID][]uint32),
		wakeR:    r,
		wakeW:    w,
	}, nil
}

const inotifyMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_DELETE_SELF |
	unix.IN_MODIFY | unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_MOVE_SELF | unix.IN_ATTRIB

func (a *inotifyAdapter) HandleAdd(channel ChannelID, root string, recursive bool) Result[bool] {
	register := func(path string) error {
		wd, errno := unix.InotifyAddWatch(a.fd, path, inotifyMask)
		if wd == -1 {
			return errno
		}
		a.mu.Lock()
		w := &inotifyWatch{wd: uint32(wd), channel: channel, path: path, recurse: recursive}
		a.byWd[uint32(wd)] = w
		a.byPath[path] = uint32(wd)
		a.channels[channel] = append(a.channels[channel], uint32(wd))
		a.mu.Unlock()
		return nil
	}

	if err := register(root); err != nil {
		return Err[bool](err)
	}
	if recursive {
		err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
			if err != nil || p == root || !d.IsDir() {
				return nil
			}
			return register(p)
		})
		if err != nil {
			return Err[bool](err)
		}
	}
	return Ok(true)
}

func (a *inotifyAdapter) HandleRemove(channel ChannelID) Result[bool] {
	a.mu.Lock()
	wds := a.channels[channel]
	delete(a.channels, channel)
	for _, wd := range wds {
		if w, ok := a.byWd[wd]; ok {
			delete(a.byPath, w.path)
		}
		delete(a.byWd, wd)
	}
	a.mu.Unlock()

	for _, wd := range wds {
		unix.InotifyRmWatch(a.fd, wd)
	}
	return Ok(true)
}

func (a *inotifyAdapter) Wake() {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	a.wakeW.Write([]byte{0})
}

func (a *inotifyAdapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.wakeW.Close()
	a.wakeR.Close()
	return a.file.Close()
}

// Listen reads raw inotify events, translates each to a RawEvent keyed
// by the owning channel, and delivers per-channel batches once per
// read (matching the native backend's per-Listen-call batch boundary,
// which is where the correlator flush happens). A short read deadline
// bounds how long a Submit has to wait for the command loop's next
// turn. Listen does not read the self-pipe that Wake writes to, so
// Wake does not cut that wait short; the deadline alone guarantees
// forward progress.
func (a *inotifyAdapter) Listen(deliver func(channel ChannelID, batch []RawEvent)) {
	a.file.SetReadDeadline(time.Now().Add(250 * time.Millisecond))

	var buf [unix.SizeofInotifyEvent * 4096]byte
	n, err := a.file.Read(buf[:])
	if err != nil {
		return
	}
	if n < unix.SizeofInotifyEvent {
		return
	}

	batches := make(map[ChannelID][]RawEvent)

	var offset uint32
	for offset <= uint32(n)-unix.SizeofInotifyEvent {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		mask := uint32(raw.Mask)
		nameLen := uint32(raw.Len)
		next := func() { offset += unix.SizeofInotifyEvent + nameLen }

		if mask&unix.IN_IGNORED != 0 {
			next()
			continue
		}

		a.mu.Lock()
		w := a.byWd[uint32(raw.Wd)]
		a.mu.Unlock()
		if w == nil {
			next()
			continue
		}

		name := w.path
		if nameLen > 0 {
			bytes := (*[unix.PathMax]byte)(unsafe.Pointer(&buf[offset+unix.SizeofInotifyEvent]))[:nameLen:nameLen]
			name += "/" + strings.TrimRight(string(bytes[:nameLen]), "\x00")
		}

		if mask&unix.IN_ISDIR != 0 && mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 && w.recurse {
			if newWd, _ := unix.InotifyAddWatch(a.fd, name, inotifyMask); newWd != -1 {
				a.mu.Lock()
				nw := &inotifyWatch{wd: uint32(newWd), channel: w.channel, path: name, recurse: true}
				a.byWd[uint32(newWd)] = nw
				a.byPath[name] = uint32(newWd)
				a.channels[w.channel] = append(a.channels[w.channel], uint32(newWd))
				a.mu.Unlock()
			}
		}

		ev := RawEvent{Path: name, Cookie: raw.Cookie}
		switch {
		case mask&unix.IN_CREATE != 0:
			ev.Flags |= FlagCreated
		case mask&(unix.IN_DELETE|unix.IN_DELETE_SELF) != 0:
			ev.Flags |= FlagDeleted
		case mask&unix.IN_MODIFY != 0, mask&unix.IN_ATTRIB != 0:
			ev.Flags |= FlagModified
		case mask&(unix.IN_MOVED_FROM|unix.IN_MOVED_TO|unix.IN_MOVE_SELF) != 0:
			ev.Flags |= FlagRenamed
		}
		if mask&unix.IN_ISDIR != 0 {
			ev.Flags |= FlagIsDirectory
		} else {
			ev.Flags |= FlagIsFile
		}

		batches[w.channel] = append(batches[w.channel], ev)
		next()
	}

	for channel, evs := range batches {
		deliver(channel, evs)
	}
}
