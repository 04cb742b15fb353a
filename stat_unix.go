// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows && !plan9
// +build !windows,!plan9

package corewatch

import (
	"os"
	"syscall"
)

// inodeOf extracts the inode number backing fi, used both as a
// rename-correlation key and as a change signal in
// DirectoryRecord.entry: "inode changed" is one of the modified
// triggers.
func inodeOf(fi os.FileInfo) uint64 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(st.Ino)
}
