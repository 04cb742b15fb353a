// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows || plan9
// +build windows plan9

package corewatch

import "os"

// inodeOf has no portable equivalent on these platforms through
// os.FileInfo alone; the rename correlator degrades to size+kind
// pairing only, an accepted bounded lossiness on these platforms.
func inodeOf(fi os.FileInfo) uint64 { return 0 }
