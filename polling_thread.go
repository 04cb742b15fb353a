// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"time"

	"github.com/sirupsen/logrus"
)

// pollingThread is the thread substrate wrapping a pollingBackend: it
// sleeps between ticks instead of blocking in an OS event loop, and a
// channel ADD's Ack is deferred until that root's first full
// traversal finishes rather than fired immediately.
type pollingThread struct {
	*thread
	backend *pollingBackend

	wakeCh chan struct{}
	doneCh chan struct{}
}

func newPollingThread(backend *pollingBackend, log *logrus.Logger) *pollingThread {
	return &pollingThread{
		thread:  newThread(log),
		backend: backend,
	}
}

func (p *pollingThread) handlerTable() handlerTable {
	logFile, logStderr, logStdout, logDisable, drain := sharedLogHandlers(p.log)
	return handlerTable{
		add:        p.handleAdd,
		remove:     p.handleRemove,
		logFile:    logFile,
		logStderr:  logStderr,
		logStdout:  logStdout,
		logDisable: logDisable,
		drain:      drain,
		extra:      p.handleExtra,
	}
}

// handleAdd never acks immediately — the Ack fires once the root's
// first traversal completes, surfaced via pollingBackend.tick's
// readyAck list.
func (p *pollingThread) handleAdd(cmd Command) (CommandOutcome, error) {
	p.backend.handleAdd(cmd)
	return CommandOutcome{}, nil
}

func (p *pollingThread) handleRemove(cmd Command) (CommandOutcome, error) {
	p.backend.handleRemove(cmd.Channel)
	return CommandOutcome{Ack: true, Success: true, ShouldStop: p.backend.empty()}, nil
}

func (p *pollingThread) handleExtra(cmd Command) (CommandOutcome, error) {
	switch cmd.Action {
	case CmdPollingInterval:
		p.backend.setInterval(cmd.IntervalMS)
		return okOutcome(), nil
	case CmdPollingThrottle:
		p.backend.setThrottle(cmd.Throttle)
		return okOutcome(), nil
	default:
		return failOutcome("unsupported polling command"), nil
	}
}

// Submit enqueues cmd, auto-restarting a fully stopped thread for any
// command (Unwatch fans a REMOVE out to both backends regardless of
// which one actually holds the channel, and Configure may target a
// backend with no subscription at all, yet every Command still owes
// its caller an Ack in finite time), and wakes the tick loop so it's
// handled before the next scheduled tick.
func (p *pollingThread) Submit(cmd Command) {
	if p.State() == threadStopped {
		p.start()
	}
	p.thread.Submit(cmd)
	if p.State() != threadStopped {
		p.wake()
	}
}

func (p *pollingThread) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *pollingThread) start() {
	p.setState(threadStarting)
	p.wakeCh = make(chan struct{}, 1)
	p.doneCh = make(chan struct{})
	go p.run()
}

func (p *pollingThread) run() {
	p.setState(threadRunning)
	p.drainDeadLetter()

	ticker := time.NewTicker(time.Duration(p.backend.interval()) * time.Millisecond)
	defer ticker.Stop()

	for {
		acks := p.processCommands(p.handlerTable())
		if len(acks) > 0 {
			_ = p.out.EnqueueAll(acks)
		}
		if p.State() == threadStopping {
			break
		}

		select {
		case <-p.wakeCh:
		case <-ticker.C:
			p.runTick()
			ticker.Reset(time.Duration(p.backend.interval()) * time.Millisecond)
		}
	}

	p.setState(threadStopped)
	close(p.doneCh)

	p.mu.Lock()
	replay := len(p.deadLetter) > 0
	p.mu.Unlock()
	if replay {
		p.start()
	}
}

func (p *pollingThread) runTick() {
	events, ready := p.backend.tick()
	if len(events) == 0 && len(ready) == 0 {
		return
	}
	msgs := make([]Message, 0, len(events)+len(ready))
	for _, e := range events {
		msgs = append(msgs, NewEventMessage(e))
	}
	for _, r := range ready {
		msgs = append(msgs, NewAckMessage(Ack{CommandID: r.commandID, Channel: r.channel, Success: true}))
	}
	_ = p.out.EnqueueAll(msgs)
}
