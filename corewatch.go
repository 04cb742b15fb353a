// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "sync"

var (
	defaultHub     *Hub
	defaultHubOnce sync.Once
)

// Default returns the process-wide Hub, constructing it on first use
// with the platform-default adapter, correlator, and cache size. Most
// programs only ever need this one Hub; Watch/Unwatch/Configure/
// StatusSnapshot are thin wrappers around it.
func Default() *Hub {
	defaultHubOnce.Do(func() {
		defaultHub = NewHub(nil, 0, nil)
	})
	return defaultHub
}

// Watch subscribes to root on the default Hub. See (*Hub).Watch.
func Watch(root string, recursive bool, backend Backend, onEvent EventHandler, onAck AckHandler) ChannelID {
	return Default().Watch(root, recursive, backend, onEvent, onAck)
}

// Unwatch tears down channel on the default Hub. See (*Hub).Unwatch.
func Unwatch(channel ChannelID, onAck AckHandler) {
	Default().Unwatch(channel, onAck)
}

// Configure applies opts to the default Hub. See (*Hub).Configure.
func Configure(opts Options, onAck AckHandler) {
	Default().Configure(opts, onAck)
}

// StatusSnapshot reports the default Hub's current status.
func StatusSnapshot() Status {
	return Default().Status()
}
