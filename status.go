// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

// Status is a point-in-time snapshot of the Hub's internal health:
// enough detail to tell a caller whether either worker thread has
// wedged or gone unhealthy, without exposing any internal type.
type Status struct {
	ChannelCount         int
	PendingCallbackCount int

	WorkerThreadState  string
	WorkerThreadOK     bool
	WorkerInQueueSize  int
	WorkerInQueueOK    bool
	WorkerOutQueueSize int
	WorkerOutQueueOK   bool
	WorkerCacheSize    int

	PollingThreadActive  bool
	PollingThreadState   string
	PollingThreadOK      bool
	PollingInQueueSize   int
	PollingOutQueueSize  int
	PollingRootCount     int
	PollingIntervalMS    int
}

// Status reports a snapshot of the Hub's workers and queues.
func (h *Hub) Status() Status {
	h.mu.Lock()
	channelCount := len(h.eventHandlers)
	pendingCallbackCount := len(h.pendingAcks)
	h.mu.Unlock()

	pollingActive := h.polling.State() != threadStopped

	return Status{
		ChannelCount:         channelCount,
		PendingCallbackCount: pendingCallbackCount,

		WorkerThreadState:  h.native.State().String(),
		WorkerThreadOK:     h.native.Healthy(),
		WorkerInQueueSize:  h.native.in.Len(),
		WorkerInQueueOK:    h.native.in.Healthy(),
		WorkerOutQueueSize: h.native.out.Len(),
		WorkerOutQueueOK:   h.native.out.Healthy(),
		WorkerCacheSize:    h.native.cache.Size(),

		PollingThreadActive: pollingActive,
		PollingThreadState:  h.polling.State().String(),
		PollingThreadOK:     h.polling.Healthy(),
		PollingInQueueSize:  h.polling.in.Len(),
		PollingOutQueueSize: h.polling.out.Len(),
		PollingRootCount:    h.polling.backend.rootCount(),
		PollingIntervalMS:   h.polling.backend.interval(),
	}
}
