// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import "github.com/sirupsen/logrus"

// Options is the argument to Configure. Every field is optional;
// unknown keys in a host-language binding's options object are simply
// never copied into one of these fields, which is how "unknown keys
// are ignored" is realized here.
//
// Within one log destination (main/worker/polling) at most one of
// File/Disable/Stderr/Stdout should be set; if more than one is,
// Disable wins, then File, then Stderr, then Stdout.
type Options struct {
	MainLogFile    string
	MainLogDisable bool
	MainLogStderr  bool
	MainLogStdout  bool

	WorkerLogFile    string
	WorkerLogDisable bool
	WorkerLogStderr  bool
	WorkerLogStdout  bool

	PollingLogFile    string
	PollingLogDisable bool
	PollingLogStderr  bool
	PollingLogStdout  bool

	// PollingInterval is in milliseconds; zero means "leave unchanged".
	PollingInterval int
	// PollingThrottle is work units per tick; zero means "leave
	// unchanged".
	PollingThrottle int
	// CacheSize is the recent-file cache's entry bound; zero means
	// "leave unchanged". Unlike every other option, this isn't threaded
	// through a Command (Command.action has no cache-size member) —
	// it's applied directly against the cache's own mutex, which is
	// safe from any goroutine.
	CacheSize int
}

// applyMainLogOption mutates the Hub's own logger synchronously — the
// main logger isn't owned by any worker thread, so this doesn't go
// through a Command the way worker/polling log options do.
func applyMainLogOption(log *logrus.Logger, file string, disable, stderrOut, stdoutOut bool) error {
	switch {
	case disable:
		redirectLogDisable(log)
	case file != "":
		return redirectLogToFile(log, file)
	case stderrOut:
		redirectLogToStderr(log)
	case stdoutOut:
		redirectLogToStdout(log)
	}
	return nil
}

// logCommand builds the Command a worker/polling thread needs to
// change its own log destination, or reports that nothing was
// requested (ok == false).
func logCommand(file string, disable, stderrOut, stdoutOut bool) (action CommandAction, ok bool) {
	switch {
	case disable:
		return CmdLogDisable, true
	case file != "":
		return CmdLogFile, true
	case stderrOut:
		return CmdLogStderr, true
	case stdoutOut:
		return CmdLogStdout, true
	default:
		return 0, false
	}
}
