// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// threadState is one of the four lifecycle states a background worker
// moves through: stopped -> starting -> running -> stopping ->
// stopped.
type threadState int32

const (
	threadStopped threadState = iota
	threadStarting
	threadRunning
	threadStopping
)

func (s threadState) String() string {
	switch s {
	case threadStarting:
		return "starting"
	case threadRunning:
		return "running"
	case threadStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// CommandOutcome is what a command handler reports back to the thread
// dispatch loop.
type CommandOutcome struct {
	Ack        bool
	Success    bool
	Message    string
	ShouldStop bool
}

func okOutcome() CommandOutcome          { return CommandOutcome{Ack: true, Success: true} }
func failOutcome(msg string) CommandOutcome { return CommandOutcome{Ack: true, Success: false, Message: msg} }

// handlerFunc processes one Command and reports its outcome, or an
// error — which the thread converts into a failed Ack without marking
// itself unhealthy.
type handlerFunc func(cmd Command) (CommandOutcome, error)

// handlerTable is the per-action dispatch table: Thread
// subclasses (nativeBackend, pollingThread) override add/remove and
// inherit the five logging/control handlers, which this package
// implements once against a shared *logrus.Logger.
type handlerTable struct {
	add        handlerFunc
	remove     handlerFunc
	logFile    handlerFunc
	logStderr  handlerFunc
	logStdout  handlerFunc
	logDisable handlerFunc
	drain      handlerFunc
	// extra handles any action not covered above (POLLING_INTERVAL /
	// POLLING_THROTTLE on the polling thread); nil means unsupported.
	extra handlerFunc
}

// sharedLogHandlers builds the five inherited logging/control handlers
// against log.
func sharedLogHandlers(log *logrus.Logger) (logFile, logStderr, logStdout, logDisable, drain handlerFunc) {
	logFile = func(cmd Command) (CommandOutcome, error) {
		if err := redirectLogToFile(log, cmd.LogPath); err != nil {
			return CommandOutcome{}, err
		}
		return okOutcome(), nil
	}
	logStderr = func(cmd Command) (CommandOutcome, error) {
		redirectLogToStderr(log)
		return okOutcome(), nil
	}
	logStdout = func(cmd Command) (CommandOutcome, error) {
		redirectLogToStdout(log)
		return okOutcome(), nil
	}
	logDisable = func(cmd Command) (CommandOutcome, error) {
		redirectLogDisable(log)
		return okOutcome(), nil
	}
	drain = func(cmd Command) (CommandOutcome, error) {
		return okOutcome(), nil
	}
	return
}

// thread is the abstract background worker: an input queue,
// an output queue, a state machine, and a dead-letter office for
// commands that arrive while stopping. The blocking listen()/wake()
// loop itself is owned by the embedding backend (nativeBackend,
// pollingThread), since what "listen" blocks on is platform- and
// backend-specific; thread supplies only the state machine and command
// dispatch every backend shares.
type thread struct {
	mu         sync.Mutex
	state      threadState
	in         *Queue
	out        *Queue
	deadLetter []Message
	healthy    bool
	log        *logrus.Logger
}

func newThread(log *logrus.Logger) *thread {
	return &thread{
		in:      NewQueue(),
		out:     NewQueue(),
		healthy: true,
		log:     log,
	}
}

func (t *thread) State() threadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *thread) setState(s threadState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *thread) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.healthy && t.in.Healthy() && t.out.Healthy()
}

func (t *thread) markUnhealthy() {
	t.mu.Lock()
	t.healthy = false
	t.mu.Unlock()
}

// Submit routes an incoming Command to the input queue, or — if the
// thread is currently stopping — to the dead-letter office, to be
// replayed once the thread fully stops and restarts.
func (t *thread) Submit(cmd Command) {
	if t.State() == threadStopping {
		t.mu.Lock()
		t.deadLetter = append(t.deadLetter, NewCommandMessage(cmd))
		t.mu.Unlock()
		return
	}
	_ = t.in.Enqueue(NewCommandMessage(cmd))
}

// drainDeadLetter replays buffered commands, in original order, back
// onto the input queue. Called once a restarted thread reaches
// threadRunning.
func (t *thread) drainDeadLetter() {
	t.mu.Lock()
	letters := t.deadLetter
	t.deadLetter = nil
	t.mu.Unlock()
	for _, m := range letters {
		_ = t.in.Enqueue(m)
	}
}

// processCommands drains the input queue and dispatches each Command
// against table, table-driven on Action. It returns the Ack
// messages to enqueue on the output queue. If any handler reports
// ShouldStop, the thread's state flips to threadStopping immediately,
// so any command Submitted after this point — even later in the same
// caller's loop — lands in the dead-letter office instead of the input
// queue.
func (t *thread) processCommands(table handlerTable) []Message {
	cmds, err := t.in.AcceptAll()
	if err != nil {
		t.markUnhealthy()
		return nil
	}

	var acks []Message
	for _, m := range cmds {
		cmd, ok := m.IsCommand()
		if !ok {
			continue
		}

		handler := table.dispatch(cmd.Action)
		if handler == nil {
			acks = append(acks, NewAckMessage(Ack{
				CommandID: cmd.ID,
				Channel:   cmd.Channel,
				Success:   false,
				Message:   fmt.Sprintf("unsupported command action %d", cmd.Action),
			}))
			continue
		}

		outcome, err := handler(cmd)
		if err != nil {
			acks = append(acks, NewAckMessage(Ack{CommandID: cmd.ID, Channel: cmd.Channel, Success: false, Message: err.Error()}))
			continue
		}
		if outcome.Ack {
			acks = append(acks, NewAckMessage(Ack{
				CommandID: cmd.ID,
				Channel:   cmd.Channel,
				Success:   outcome.Success,
				Message:   outcome.Message,
			}))
		}
		if outcome.ShouldStop {
			t.setState(threadStopping)
		}
	}
	return acks
}

func (h handlerTable) dispatch(action CommandAction) handlerFunc {
	switch action {
	case CmdAdd:
		return h.add
	case CmdRemove:
		return h.remove
	case CmdLogFile:
		return h.logFile
	case CmdLogStderr:
		return h.logStderr
	case CmdLogStdout:
		return h.logStdout
	case CmdLogDisable:
		return h.logDisable
	case CmdDrain:
		return h.drain
	default:
		return h.extra
	}
}
