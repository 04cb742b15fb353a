// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// allCallback is a counted join barrier: a user-facing operation that
// fans out to both backends (or to several independent Commands
// against one backend) fires its single caller-visible callback only
// once every part has reported in, and reports the first non-nil
// error seen.
type allCallback struct {
	mu        sync.Mutex
	remaining int
	err       error
	fire      func(error)
	fired     bool
}

func newAllCallback(n int, fire func(error)) *allCallback {
	a := &allCallback{remaining: n, fire: fire}
	if n == 0 {
		a.fired = true
		fire(nil)
	}
	return a
}

func (a *allCallback) done(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil && a.err == nil {
		a.err = err
	}
	a.remaining--
	if a.remaining <= 0 && !a.fired {
		a.fired = true
		a.fire(a.err)
	}
}

func ackErr(a Ack) error {
	if a.Success {
		return nil
	}
	return errors.New(a.Message)
}

// EventHandler receives the normalized events delivered on one channel.
type EventHandler func(events []FileSystemEvent)

// AckHandler receives the outcome of watch/unwatch/configure.
type AckHandler func(err error)

// Hub is the process-wide coordinator: it allocates channel and
// command ids, owns the one native backend and one polling backend,
// routes Commands to whichever backend(s) a request targets, and fans
// each backend's output queue out to the registered per-channel event
// handlers and per-command ack handlers.
type Hub struct {
	nextChannel uint32
	nextCommand uint32

	native  *nativeBackend
	polling *pollingThread
	mainLog *logrus.Logger

	mu             sync.Mutex
	eventHandlers  map[ChannelID]EventHandler
	channelBackend map[ChannelID]Backend
	pendingAcks    map[CommandID]func(Ack)
}

// NewHub constructs a Hub. adapter and correlator may be left nil to
// use the platform default (newPlatformAdapter and
// defaultRenameCorrelator, both provided per-OS by adapter_linux.go /
// adapter_darwin.go / adapter_windows.go / adapter_other.go). cacheSize
// bounds the native backend's recent-file cache; zero selects
// the cache's own default.
func NewHub(adapter nativeAdapter, cacheSize int, correlator renameCorrelator) *Hub {
	mainLog := newComponentLogger("main")
	workerLog := newComponentLogger("worker")
	pollingLog := newComponentLogger("polling")

	cache := NewRecentFileCache(cacheSize)
	if adapter == nil {
		adapter = newPlatformAdapter()
	}
	if correlator == nil {
		correlator = defaultRenameCorrelator(cache)
	}

	h := &Hub{
		native:         newNativeBackend(adapter, cache, correlator, workerLog),
		polling:        newPollingThread(newPollingBackend(0, 0), pollingLog),
		mainLog:        mainLog,
		eventHandlers:  make(map[ChannelID]EventHandler),
		channelBackend: make(map[ChannelID]Backend),
		pendingAcks:    make(map[CommandID]func(Ack)),
	}

	go h.drain(h.native.out)
	go h.drain(h.polling.out)

	return h
}

func (h *Hub) nextChannelID() ChannelID {
	return ChannelID(atomic.AddUint32(&h.nextChannel, 1))
}

func (h *Hub) nextCommandID() CommandID {
	return CommandID(atomic.AddUint32(&h.nextCommand, 1))
}

// drain continuously fans Acks and FileSystemEvents off q to the
// registered handlers, for the life of the process. Both backends'
// output queues outlive individual start/stop cycles, so one goroutine
// per queue, started once in NewHub, is enough.
func (h *Hub) drain(q *Queue) {
	backoff := 2 * time.Millisecond
	for {
		msgs, err := q.AcceptAll()
		if err != nil {
			return
		}
		if len(msgs) == 0 {
			select {
			case <-q.Notify():
			case <-time.After(backoff):
			}
			continue
		}
		h.deliver(msgs)
	}
}

func (h *Hub) deliver(msgs []Message) {
	byChannel := make(map[ChannelID][]FileSystemEvent)
	for _, m := range msgs {
		if ack, ok := m.IsAck(); ok {
			h.mu.Lock()
			cb := h.pendingAcks[ack.CommandID]
			delete(h.pendingAcks, ack.CommandID)
			h.mu.Unlock()
			if cb != nil {
				cb(ack)
			}
			continue
		}
		if ev, ok := m.IsEvent(); ok {
			byChannel[ev.Channel] = append(byChannel[ev.Channel], ev)
		}
	}
	for channel, events := range byChannel {
		h.mu.Lock()
		handler := h.eventHandlers[channel]
		h.mu.Unlock()
		if handler != nil {
			handler(events)
		}
	}
}

func (h *Hub) backendFor(b Backend) interface {
	Submit(Command)
} {
	if b == BackendPolling {
		return h.polling
	}
	return h.native
}

// Watch starts a new subscription rooted at root on the chosen
// backend, delivering future events to onEvent and reporting the
// ADD's outcome to onAck. The returned ChannelID is valid
// immediately, though no events are delivered for it until onAck
// reports success.
func (h *Hub) Watch(root string, recursive bool, backend Backend, onEvent EventHandler, onAck AckHandler) ChannelID {
	channel := h.nextChannelID()
	cmdID := h.nextCommandID()

	h.mu.Lock()
	h.eventHandlers[channel] = onEvent
	h.channelBackend[channel] = backend
	h.pendingAcks[cmdID] = func(a Ack) {
		if !a.Success {
			h.mu.Lock()
			delete(h.eventHandlers, channel)
			delete(h.channelBackend, channel)
			h.mu.Unlock()
		}
		onAck(ackErr(a))
	}
	h.mu.Unlock()

	h.backendFor(backend).Submit(Command{ID: cmdID, Action: CmdAdd, Root: root, Channel: channel, Recursive: recursive})
	return channel
}

// Unwatch tears down channel on both backends — the channel may have
// migrated since Watch, so both are asked to forget it regardless of
// which one actually holds a live subscription — joined so onAck
// fires exactly once, after both acks arrive. No further events reach
// onAck's caller's event handler once onAck fires.
func (h *Hub) Unwatch(channel ChannelID, onAck AckHandler) {
	join := newAllCallback(2, func(err error) {
		h.mu.Lock()
		delete(h.eventHandlers, channel)
		delete(h.channelBackend, channel)
		h.mu.Unlock()
		onAck(err)
	})

	for _, backend := range []interface{ Submit(Command) }{h.native, h.polling} {
		cmdID := h.nextCommandID()
		h.mu.Lock()
		h.pendingAcks[cmdID] = func(a Ack) { join.done(ackErr(a)) }
		h.mu.Unlock()
		backend.Submit(Command{ID: cmdID, Action: CmdRemove, Channel: channel})
	}
}

// Configure applies opts: main-log options take effect
// synchronously against the Hub's own logger, cache-size is applied
// directly to the native backend's cache, and every other option is
// translated into one or more Commands against the backend(s) it
// targets, joined into a single onAck call.
func (h *Hub) Configure(opts Options, onAck AckHandler) {
	if err := applyMainLogOption(h.mainLog, opts.MainLogFile, opts.MainLogDisable, opts.MainLogStderr, opts.MainLogStdout); err != nil {
		onAck(err)
		return
	}
	if opts.CacheSize > 0 {
		h.native.cache.SetMaximumSize(opts.CacheSize)
	}

	type dispatch struct {
		backend interface{ Submit(Command) }
		cmd     Command
	}
	var dispatches []dispatch

	if action, ok := logCommand(opts.WorkerLogFile, opts.WorkerLogDisable, opts.WorkerLogStderr, opts.WorkerLogStdout); ok {
		dispatches = append(dispatches, dispatch{h.native, Command{Action: action, LogPath: opts.WorkerLogFile}})
	}
	if action, ok := logCommand(opts.PollingLogFile, opts.PollingLogDisable, opts.PollingLogStderr, opts.PollingLogStdout); ok {
		dispatches = append(dispatches, dispatch{h.polling, Command{Action: action, LogPath: opts.PollingLogFile}})
	}
	if opts.PollingInterval > 0 {
		dispatches = append(dispatches, dispatch{h.polling, Command{Action: CmdPollingInterval, IntervalMS: opts.PollingInterval}})
	}
	if opts.PollingThrottle > 0 {
		dispatches = append(dispatches, dispatch{h.polling, Command{Action: CmdPollingThrottle, Throttle: opts.PollingThrottle}})
	}

	join := newAllCallback(len(dispatches), onAck)
	for _, d := range dispatches {
		cmdID := h.nextCommandID()
		cmd := d.cmd
		cmd.ID = cmdID
		h.mu.Lock()
		h.pendingAcks[cmdID] = func(a Ack) { join.done(ackErr(a)) }
		h.mu.Unlock()
		d.backend.Submit(cmd)
	}
}
