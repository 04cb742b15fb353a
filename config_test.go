// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corewatch

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCommandPrecedence(t *testing.T) {
	action, ok := logCommand("", false, false, false)
	assert.False(t, ok)

	action, ok = logCommand("/tmp/worker.log", false, false, false)
	require.True(t, ok)
	assert.Equal(t, CmdLogFile, action)

	action, ok = logCommand("", false, true, false)
	require.True(t, ok)
	assert.Equal(t, CmdLogStderr, action)

	action, ok = logCommand("", false, false, true)
	require.True(t, ok)
	assert.Equal(t, CmdLogStdout, action)

	action, ok = logCommand("", true, false, false)
	require.True(t, ok)
	assert.Equal(t, CmdLogDisable, action)

	// Disable wins over every other field when several are set.
	action, ok = logCommand("/tmp/worker.log", true, true, true)
	require.True(t, ok)
	assert.Equal(t, CmdLogDisable, action)
}

func TestApplyMainLogOptionRedirectsToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.log")

	log := logrus.New()
	require.NoError(t, applyMainLogOption(log, path, false, false, false))
	log.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestApplyMainLogOptionDisable(t *testing.T) {
	log := logrus.New()
	require.NoError(t, applyMainLogOption(log, "", true, false, false))
	assert.Equal(t, io.Discard, log.Out)
}
