//go:build linux

// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestInotifyAdapterWatchesNestedSubdirectoriesCreatedAfterAdd exercises
// the recursive-watch bookkeeping directly: a subdirectory created
// after HandleAdd must itself get a live inotify watch registered for
// it, so that anything created inside it in turn is also reported.
// Before wiring InotifyAddWatch's returned descriptor into byWd/
// byPath/channels, any event carrying that new watch descriptor
// would be looked up as unknown and dropped, so this test would only
// ever observe the first-level "sub" creation and time out waiting
// for "sub/nested".
func TestInotifyAdapterWatchesNestedSubdirectoriesCreatedAfterAdd(t *testing.T) {
	root := t.TempDir()

	a, err := newInotifyAdapter()
	require.NoError(t, err)
	defer a.Close()

	_, err = a.HandleAdd(1, root, true).Unwrap()
	require.NoError(t, err)

	type seen struct {
		channel ChannelID
		path    string
		isDir   bool
	}
	events := make(chan seen, 16)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			a.Listen(func(channel ChannelID, batch []RawEvent) {
				for _, ev := range batch {
					if ev.Flags&FlagCreated == 0 {
						continue
					}
					events <- seen{channel: channel, path: ev.Path, isDir: ev.Flags&FlagIsDirectory != 0}
				}
			})
		}
	}()
	defer close(stop)

	subDir := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(subDir, 0755))

	sawSub := false
	for !sawSub {
		select {
		case e := <-events:
			if e.path == subDir && e.isDir {
				sawSub = true
			}
		case <-time.After(2 * time.Second):
			t.Fatal("never observed creation of the 'sub' directory itself")
		}
	}

	nestedDir := filepath.Join(subDir, "nested")
	require.NoError(t, os.Mkdir(nestedDir, 0755))

	sawNested := false
	for !sawNested {
		select {
		case e := <-events:
			if e.path == nestedDir && e.isDir {
				sawNested = true
			}
		case <-time.After(2 * time.Second):
			t.Fatal("never observed creation of 'sub/nested' — recursive watch on the new subdirectory was not registered")
		}
	}
}
