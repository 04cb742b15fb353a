// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// newComponentLogger returns a logrus.Logger writing to stderr by
// default, one of three independently configurable destinations (main,
// worker, polling — configure() options).
func newComponentLogger(name string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return l.WithField("component", name).Logger
}

// redirectLogToFile switches a logger's destination to a file, opening it
// for append, creating it if necessary.
func redirectLogToFile(l *logrus.Logger, path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.SetOutput(f)
	return nil
}

func redirectLogToStderr(l *logrus.Logger) { l.SetOutput(os.Stderr) }
func redirectLogToStdout(l *logrus.Logger) { l.SetOutput(os.Stdout) }

// redirectLogDisable suppresses output entirely on every thread,
// including main: disable means io.Discard, not a reroute to stderr.
func redirectLogDisable(l *logrus.Logger) { l.SetOutput(io.Discard) }
