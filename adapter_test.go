// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopAdapterAlwaysRejectsAdd(t *testing.T) {
	a := newNoopAdapter()
	defer a.Close()

	_, err := a.HandleAdd(1, "/tmp", true).Unwrap()
	assert.Error(t, err)

	_, err = a.HandleRemove(1).Unwrap()
	assert.NoError(t, err)
}

func TestNoopAdapterListenNeverBlocksForever(t *testing.T) {
	a := newNoopAdapter()
	defer a.Close()

	done := make(chan struct{})
	go func() {
		a.Listen(func(ChannelID, []RawEvent) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen blocked with no way for a caller to ever unblock it")
	}
}

func TestNoopAdapterCloseUnblocksListen(t *testing.T) {
	a := newNoopAdapter()

	done := make(chan struct{})
	go func() {
		a.Listen(func(ChannelID, []RawEvent) {})
		close(done)
	}()
	require.NoError(t, a.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock a pending Listen")
	}
}
