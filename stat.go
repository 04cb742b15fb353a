// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "os"

// kindOf classifies an os.FileInfo into EntryKind: file, directory, or
// symlink. os.Lstat never follows the final
// symlink, so a symlink's own FileInfo reports ModeSymlink rather than
// the mode of whatever it points to.
func kindOf(fi os.FileInfo) EntryKind {
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		return KindSymlink
	case fi.IsDir():
		return KindDirectory
	default:
		return KindFile
	}
}
