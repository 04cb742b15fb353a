// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// polledRoot owns one subscription's directoryRecord tree and
// iterator.
type polledRoot struct {
	channel    ChannelID
	rootPath   string
	recursive  bool
	arena      *directoryArena
	iter       *pollingIterator
	pendingAdd CommandID
	acked      bool
}

// readyAck reports a polledRoot whose first full traversal just
// finished, so its deferred ADD ack can fire.
type readyAck struct {
	commandID CommandID
	channel   ChannelID
}

// pollingBackend emulates the native event stream on platforms (or
// subscriptions) without OS notifications by diffing directory scans.
// On each tick it allocates pollThrottle work units across live roots
// proportionally and advances each iterator by its share.
type pollingBackend struct {
	mu             sync.Mutex
	roots          map[ChannelID]*polledRoot
	pollIntervalMS int
	pollThrottle   int
}

func newPollingBackend(intervalMS, throttle int) *pollingBackend {
	if intervalMS <= 0 {
		intervalMS = 500
	}
	if throttle <= 0 {
		throttle = 1000
	}
	return &pollingBackend{
		roots:          make(map[ChannelID]*polledRoot),
		pollIntervalMS: intervalMS,
		pollThrottle:   throttle,
	}
}

// handleAdd constructs a new polledRoot with a pending CommandID; its
// Ack is deferred until the tree finishes its first full traversal,
// so this does not itself return an immediately-ackable outcome — the
// caller (nativeBackend-equivalent thread loop) tracks pendingAdd and
// emits the Ack from tick's ready list.
func (b *pollingBackend) handleAdd(cmd Command) {
	b.mu.Lock()
	defer b.mu.Unlock()

	arena := newDirectoryArena()
	b.roots[cmd.Channel] = &polledRoot{
		channel:    cmd.Channel,
		rootPath:   cmd.Root,
		recursive:  cmd.Recursive,
		arena:      arena,
		iter:       newPollingIterator(arena, cmd.Root, cmd.Recursive),
		pendingAdd: cmd.ID,
	}
}

// handleRemove drops the polled root for channel, if any.
func (b *pollingBackend) handleRemove(channel ChannelID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.roots, channel)
}

// empty reports whether no roots remain, signalling the owning thread
// to stop.
func (b *pollingBackend) empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.roots) == 0
}

func (b *pollingBackend) setInterval(ms int) { b.mu.Lock(); b.pollIntervalMS = ms; b.mu.Unlock() }
func (b *pollingBackend) setThrottle(n int)  { b.mu.Lock(); b.pollThrottle = n; b.mu.Unlock() }

func (b *pollingBackend) interval() int { b.mu.Lock(); defer b.mu.Unlock(); return b.pollIntervalMS }

func (b *pollingBackend) rootCount() int { b.mu.Lock(); defer b.mu.Unlock(); return len(b.roots) }

// tick advances every live root by its proportional share of the
// throttle budget for this pass. Roots advance concurrently, each in
// its own goroutine against its own arena, with a weighted semaphore
// gating how many total work units run at once across the whole tick
// — a literal acquired/released budget rather than an informally
// trusted arithmetic split. A mutex protects the shared events/ready
// accumulators that every goroutine appends to.
func (b *pollingBackend) tick() ([]FileSystemEvent, []readyAck) {
	b.mu.Lock()
	roots := make([]*polledRoot, 0, len(b.roots))
	for _, r := range b.roots {
		roots = append(roots, r)
	}
	throttle := b.pollThrottle
	b.mu.Unlock()

	if len(roots) == 0 {
		return nil, nil
	}

	share := throttle / len(roots)
	if share < 1 {
		share = 1
	}

	sem := semaphore.NewWeighted(int64(throttle))
	ctx := context.Background()

	var mu sync.Mutex
	var wg sync.WaitGroup
	var events []FileSystemEvent
	var ready []readyAck

	for _, r := range roots {
		weight := int64(share)
		if weight > int64(throttle) {
			weight = int64(throttle)
		}
		if err := sem.Acquire(ctx, weight); err != nil {
			continue
		}

		wg.Add(1)
		go func(r *polledRoot, weight int64) {
			defer wg.Done()
			defer sem.Release(weight)

			var local []FileSystemEvent
			r.iter.advance(share, func(ev FileSystemEvent) {
				ev.Channel = r.channel
				local = append(local, ev)
			})

			mu.Lock()
			events = append(events, local...)
			if !r.acked && r.pendingAdd != NullCommandID && r.iter.completedRounds >= 1 {
				r.acked = true
				ready = append(ready, readyAck{commandID: r.pendingAdd, channel: r.channel})
			}
			mu.Unlock()
		}(r, weight)
	}

	wg.Wait()
	return events, ready
}
