// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "os"

// recordID indexes into a directoryArena. noRecord is the sentinel for
// "no parent" (the root).
type recordID int

const noRecord recordID = -1

// directoryRecord scans a directory and diffs against its prior stat
// snapshot. Rather than the cyclic parent-pointer /
// shared-owned-children shape the design notes warn off in a
// strict-ownership language, it's modelled as an arena entry: parent
// and children are indices into the owning directoryArena, and a path
// is recomputed by walking parent indices rather than stored per
// record.
type directoryRecord struct {
	name      string // basename; "" for the root
	parent    recordID
	entries   map[string]StatSnapshot // basename -> last-observed stat
	children  map[string]recordID     // basename -> child record
	populated bool
}

// directoryArena owns every directoryRecord for one polled root.
type directoryArena struct {
	records []directoryRecord
}

func newDirectoryArena() *directoryArena {
	a := &directoryArena{}
	a.records = append(a.records, directoryRecord{
		parent:   noRecord,
		entries:  make(map[string]StatSnapshot),
		children: make(map[string]recordID),
	})
	return a
}

const rootRecord recordID = 0

func (a *directoryArena) get(id recordID) *directoryRecord { return &a.records[id] }

func (a *directoryArena) newChild(parent recordID, name string) recordID {
	a.records = append(a.records, directoryRecord{
		name:     name,
		parent:   parent,
		entries:  make(map[string]StatSnapshot),
		children: make(map[string]recordID),
	})
	return recordID(len(a.records) - 1)
}

func (a *directoryArena) childOrCreate(parent recordID, name string) recordID {
	p := a.get(parent)
	if id, ok := p.children[name]; ok {
		return id
	}
	id := a.newChild(parent, name)
	a.get(parent).children[name] = id
	return id
}

// path reconstructs the absolute path of id by walking parent indices.
func (a *directoryArena) path(id recordID, rootPath string) string {
	var segs []string
	for id != rootRecord {
		r := a.get(id)
		segs = append([]string{r.name}, segs...)
		id = r.parent
	}
	if len(segs) == 0 {
		return rootPath
	}
	p := rootPath
	for _, s := range segs {
		p += "/" + s
	}
	return p
}

// listedEntry is one basename discovered by scan, awaiting diffing in
// the ENTRIES phase.
type listedEntry struct {
	name    string
	hintDir bool
}

// scan lists the directory at id and returns its basenames with a
// directory hint. Errors reading the
// directory (it may have just been removed) are transient and yield no
// entries rather than an error.
func (a *directoryArena) scan(id recordID, rootPath string) []listedEntry {
	dirEntries, err := os.ReadDir(a.path(id, rootPath))
	if err != nil {
		return nil
	}
	out := make([]listedEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		out = append(out, listedEntry{name: e.Name(), hintDir: e.IsDir()})
	}
	return out
}

// entry stats one basename within directory id, diffs it against the
// record's prior stat, and reports the normalized event (if any). It
// mutates the record's stored stat and, for a directory entry, ensures
// a matching child record exists.
func (a *directoryArena) entry(id recordID, rootPath string, le listedEntry) (FileSystemEvent, bool) {
	rec := a.get(id)
	path := a.path(id, rootPath) + "/" + le.name

	fi, statErr := os.Lstat(path)
	existedBefore, hadStat := rec.entries[le.name]
	existsNow := statErr == nil

	var ev FileSystemEvent
	var emitted bool

	switch {
	case !hadStat && existsNow:
		if rec.populated {
			ev = FileSystemEvent{Action: Created, Kind: kindOf(fi), Path: path}
			emitted = true
		}
	case hadStat && !existsNow:
		ev = FileSystemEvent{Action: Deleted, Kind: existedBefore.Kind, Path: path}
		emitted = true
	case hadStat && existsNow:
		if entryChanged(existedBefore, fi) {
			ev = FileSystemEvent{Action: Modified, Kind: kindOf(fi), Path: path}
			emitted = true
		}
	}

	if existsNow {
		rec.entries[le.name] = StatSnapshot{
			Path:     path,
			Kind:     kindOf(fi),
			Inode:    inodeOf(fi),
			Size:     fi.Size(),
			LastSeen: fi.ModTime(),
			Present:  true,
		}
		if fi.IsDir() {
			a.childOrCreate(id, le.name)
		}
	} else {
		delete(rec.entries, le.name)
		delete(rec.children, le.name)
	}

	return ev, emitted
}

// entryChanged reports whether fi looks different from prior: mtime
// differs, size changed, inode changed, or entry kind changed.
// Permission-only mode changes and ctime are not compared.
func entryChanged(prior StatSnapshot, fi os.FileInfo) bool {
	if !fi.ModTime().Equal(prior.LastSeen) {
		return true
	}
	if fi.Size() != prior.Size {
		return true
	}
	if inodeOf(fi) != prior.Inode {
		return true
	}
	if kindOf(fi) != prior.Kind {
		return true
	}
	return false
}

// appendRemovals extends listed with a synthetic listedEntry for every
// basename this record last saw present that doesn't appear in the
// current scan — the only way a deletion reaches entry()'s
// hadStat-but-!existsNow branch, since scan only ever reports names
// still on disk.
func (a *directoryArena) appendRemovals(id recordID, listed []listedEntry) []listedEntry {
	rec := a.get(id)
	if len(rec.entries) == 0 {
		return listed
	}
	seen := make(map[string]bool, len(listed))
	for _, le := range listed {
		seen[le.name] = true
	}
	for name := range rec.entries {
		if !seen[name] {
			listed = append(listed, listedEntry{name: name})
		}
	}
	return listed
}

// markPopulated marks record id as having completed its first full
// ENTRIES pass: its very first scan is priming, not change.
func (a *directoryArena) markPopulated(id recordID) { a.get(id).populated = true }

func (a *directoryArena) allPopulated() bool {
	for i := range a.records {
		if !a.records[i].populated {
			return false
		}
	}
	return true
}
