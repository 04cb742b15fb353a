// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "github.com/sirupsen/logrus"

// nativeSubscription records the two ADD parameters a native backend
// needs to keep once a channel is live.
type nativeSubscription struct {
	root      string
	recursive bool
}

// nativeBackend receives raw events from the OS (via its pluggable
// nativeAdapter) and feeds them to the per-channel dispatcher.
// It owns the one recent-file cache and one rename correlator shared
// by every subscription it holds: both are per-backend, not
// per-channel.
type nativeBackend struct {
	*thread
	adapter       nativeAdapter
	cache         *RecentFileCache
	correlator    renameCorrelator
	subscriptions map[ChannelID]nativeSubscription
	dispatchers   map[ChannelID]*channelDispatcher

	doneCh chan struct{}
}

// newNativeBackend takes a pre-built cache rather than a size, since
// the cookie correlator evicts from the cache it was built with and
// must share that exact cache instance for eviction to stay consistent
// (the inode correlator holds no cache) — the caller builds the cache
// once and hands it to both.
func newNativeBackend(adapter nativeAdapter, cache *RecentFileCache, correlator renameCorrelator, log *logrus.Logger) *nativeBackend {
	return &nativeBackend{
		thread:        newThread(log),
		adapter:       adapter,
		cache:         cache,
		correlator:    correlator,
		subscriptions: make(map[ChannelID]nativeSubscription),
		dispatchers:   make(map[ChannelID]*channelDispatcher),
	}
}

func (b *nativeBackend) handlerTable() handlerTable {
	logFile, logStderr, logStdout, logDisable, drain := sharedLogHandlers(b.log)
	return handlerTable{
		add:        b.handleAdd,
		remove:     b.handleRemove,
		logFile:    logFile,
		logStderr:  logStderr,
		logStdout:  logStdout,
		logDisable: logDisable,
		drain:      drain,
		// Polling-only parameters are accepted here as no-ops that ack
		// successfully; the Hub itself sends them only to the polling
		// thread.
		extra: func(cmd Command) (CommandOutcome, error) { return okOutcome(), nil },
	}
}

func (b *nativeBackend) handleAdd(cmd Command) (CommandOutcome, error) {
	res := b.adapter.HandleAdd(cmd.Channel, cmd.Root, cmd.Recursive)
	if _, err := res.Unwrap(); err != nil {
		return CommandOutcome{}, err
	}
	b.subscriptions[cmd.Channel] = nativeSubscription{root: cmd.Root, recursive: cmd.Recursive}
	b.dispatchers[cmd.Channel] = newChannelDispatcher(cmd.Channel, cmd.Root, cmd.Recursive, b.cache, b.correlator)
	return okOutcome(), nil
}

func (b *nativeBackend) handleRemove(cmd Command) (CommandOutcome, error) {
	res := b.adapter.HandleRemove(cmd.Channel)
	delete(b.subscriptions, cmd.Channel)
	delete(b.dispatchers, cmd.Channel)
	if _, err := res.Unwrap(); err != nil {
		return CommandOutcome{}, err
	}
	return CommandOutcome{Ack: true, Success: true, ShouldStop: len(b.subscriptions) == 0}, nil
}

// Submit enqueues cmd, auto-restarting a fully stopped thread for any
// command (Unwatch fans a REMOVE out to both backends regardless of
// which one actually holds the channel, and Configure may target a
// backend with no subscription at all, yet every Command still owes
// its caller an Ack in finite time), and wakes the adapter's blocking
// Listen so the command is handled promptly.
func (b *nativeBackend) Submit(cmd Command) {
	if b.State() == threadStopped {
		b.start()
	}
	b.thread.Submit(cmd)
	if b.State() != threadStopped {
		b.adapter.Wake()
	}
}

func (b *nativeBackend) start() {
	b.setState(threadStarting)
	b.doneCh = make(chan struct{})
	go b.run()
}

func (b *nativeBackend) run() {
	b.setState(threadRunning)
	b.drainDeadLetter()

	for {
		acks := b.processCommands(b.handlerTable())
		if len(acks) > 0 {
			_ = b.out.EnqueueAll(acks)
		}
		if b.State() == threadStopping {
			break
		}

		b.adapter.Listen(func(channel ChannelID, batch []RawEvent) {
			d, ok := b.dispatchers[channel]
			if !ok {
				b.log.WithField("channel", channel).Warn("native event for unknown channel; dropped")
				return
			}
			events := d.Dispatch(batch)
			if len(events) == 0 {
				return
			}
			msgs := make([]Message, 0, len(events))
			for _, e := range events {
				msgs = append(msgs, NewEventMessage(e))
			}
			_ = b.out.EnqueueAll(msgs)
		})
	}

	b.setState(threadStopped)
	close(b.doneCh)

	b.mu.Lock()
	replay := len(b.deadLetter) > 0
	b.mu.Unlock()
	if replay {
		b.start()
	}
}
