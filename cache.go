// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// StatSnapshot is an immutable-once-constructed view of a path's
// metadata, or its absence. A present snapshot carries Inode,
// Size, and LastSeen; an absent one carries only a best-effort Kind
// guess derived from the caller's hints.
type StatSnapshot struct {
	Path     string
	Kind     EntryKind
	Inode    uint64
	Size     int64
	LastSeen time.Time
	Present  bool
}

// hints lets a caller tell current_at_path/former_at_path what kind to
// assume when a path can't be stat'd.
type hints struct {
	file      bool
	directory bool
	symlink   bool
}

func (h hints) guessKind() EntryKind {
	switch {
	case h.directory:
		return KindDirectory
	case h.symlink:
		return KindSymlink
	case h.file:
		return KindFile
	default:
		return KindUnknown
	}
}

// RecentFileCache is a two-index structure: a bounded,
// recency-ordered map by path (backed by an LRU so eviction always
// drops the entry least recently committed by Apply or rewritten by
// UpdateForRename; Peek reads never disturb that order. This is commit
// order, not the order of the LastSeen field, which holds the entry's
// modification time), plus a pending staging map so a whole event
// batch can collect new snapshots and commit them atomically.
type RecentFileCache struct {
	mu          sync.Mutex
	committed   *lru.Cache[string, StatSnapshot]
	pending     map[string]StatSnapshot
	maximumSize int
}

// NewRecentFileCache returns a cache bounded to maximumSize committed
// entries.
func NewRecentFileCache(maximumSize int) *RecentFileCache {
	if maximumSize <= 0 {
		maximumSize = 2048
	}
	c, _ := lru.New[string, StatSnapshot](maximumSize)
	return &RecentFileCache{
		committed:   c,
		pending:     make(map[string]StatSnapshot),
		maximumSize: maximumSize,
	}
}

// CurrentAtPath returns the pending snapshot for path if one was
// already staged this batch; otherwise it stats path, stages a
// present snapshot on success, and returns an absent one (kind guessed
// from hintFile/hintDir/hintSymlink) on failure. Stat errors are
// treated as transient OS failures and never propagated.
func (c *RecentFileCache) CurrentAtPath(path string, hintFile, hintDir, hintSymlink bool) StatSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.pending[path]; ok {
		return s
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return StatSnapshot{
			Path: path,
			Kind: hints{hintFile, hintDir, hintSymlink}.guessKind(),
		}
	}

	s := StatSnapshot{
		Path:     path,
		Kind:     kindOf(fi),
		Inode:    inodeOf(fi),
		Size:     fi.Size(),
		LastSeen: fi.ModTime(),
		Present:  true,
	}
	c.pending[path] = s
	return s
}

// FormerAtPath returns the committed snapshot for path (without
// disturbing eviction order), or an absent snapshot with a
// hint-derived kind if none is committed.
func (c *RecentFileCache) FormerAtPath(path string, hintFile, hintDir, hintSymlink bool) StatSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.committed.Peek(path); ok {
		return s
	}
	return StatSnapshot{
		Path: path,
		Kind: hints{hintFile, hintDir, hintSymlink}.guessKind(),
	}
}

// Evict removes any committed or pending entry at path.
func (c *RecentFileCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed.Remove(path)
	delete(c.pending, path)
}

// UpdateForRename rewrites the path of every committed entry whose
// path is fromDir or begins with fromDir+"/" to the corresponding path
// under toDir.
func (c *RecentFileCache) UpdateForRename(fromDir, toDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := fromDir + "/"
	for _, key := range c.committed.Keys() {
		var newPath string
		switch {
		case key == fromDir:
			newPath = toDir
		case strings.HasPrefix(key, prefix):
			newPath = toDir + "/" + strings.TrimPrefix(key, prefix)
		default:
			continue
		}
		s, ok := c.committed.Peek(key)
		if !ok {
			continue
		}
		c.committed.Remove(key)
		s.Path = newPath
		c.committed.Add(newPath, s)
	}
}

// Apply commits the pending snapshots into the committed index,
// evicting any prior entry at each staged path, then clears pending.
func (c *RecentFileCache) Apply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, s := range c.pending {
		c.committed.Remove(path)
		c.committed.Add(path, s)
	}
	c.pending = make(map[string]StatSnapshot)
}

// Prune evicts the oldest committed entries until the cache is within
// maximumSize. The LRU already enforces this on every Add, but Prune
// gives callers (and tests) an explicit point to assert the bound
// holds after arbitrary UpdateForRename churn.
func (c *RecentFileCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.committed.Len() > c.maximumSize {
		c.committed.RemoveOldest()
	}
}

// SetMaximumSize changes the committed bound, resizing the underlying
// LRU immediately (evicting oldest entries if the new size is
// smaller). Safe to call concurrently with any other method — it's the
// only way cacheSize reconfiguration reaches an already-running
// cache, since Command.action has no member for it.
func (c *RecentFileCache) SetMaximumSize(maximumSize int) {
	if maximumSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maximumSize = maximumSize
	c.committed.Resize(maximumSize)
}

// Size returns the number of committed entries.
func (c *RecentFileCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed.Len()
}

// Prepopulate performs a breadth-first walk from root (optionally
// recursive) up to max entries, stats each, and commits them — used to
// warm the cache before a subscription's first native events arrive.
func (c *RecentFileCache) Prepopulate(root string, max int, recursive bool) {
	queue := []string{root}
	seen := 0
	for len(queue) > 0 && seen < max {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if seen >= max {
				break
			}
			path := dir + "/" + e.Name()
			c.CurrentAtPath(path, !e.IsDir(), e.IsDir(), e.Type()&os.ModeSymlink != 0)
			seen++
			if recursive && e.IsDir() {
				queue = append(queue, path)
			}
		}
	}
	c.Apply()
}
