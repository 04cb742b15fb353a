// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command corewatch is a small demonstration CLI over the corewatch
// package: watch prints normalized filesystem events as they arrive,
// status reports one snapshot of the Hub's internal health.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/corewatch"
	"github.com/spf13/cobra"
)

func init() {
	rootCommand.AddCommand(watchCommand)
	rootCommand.AddCommand(statusCommand)

	watchFlags := watchCommand.Flags()
	watchFlags.BoolP("recursive", "r", true, "watch subdirectories")
	watchFlags.Bool("poll", false, "use the polling backend instead of native OS notifications")
	watchFlags.Int("poll-interval", 0, "polling interval in milliseconds (only with --poll)")
}

var rootCommand = &cobra.Command{
	Use:   "corewatch",
	Short: "Cross-platform recursive filesystem watcher",
}

var watchCommand = &cobra.Command{
	Use:   "watch path",
	Short: "Watch a directory tree and print events as they happen",
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		recursive, _ := command.Flags().GetBool("recursive")
		poll, _ := command.Flags().GetBool("poll")
		interval, _ := command.Flags().GetInt("poll-interval")

		backend := corewatch.BackendNative
		if poll {
			backend = corewatch.BackendPolling
		}
		if interval > 0 {
			ackCh := make(chan error, 1)
			corewatch.Configure(corewatch.Options{PollingInterval: interval}, func(err error) { ackCh <- err })
			if err := <-ackCh; err != nil {
				return fmt.Errorf("configure: %w", err)
			}
		}

		ackCh := make(chan error, 1)
		channel := corewatch.Watch(args[0], recursive, backend, printEvents, func(err error) { ackCh <- err })
		if err := <-ackCh; err != nil {
			return fmt.Errorf("watch %s: %w", args[0], err)
		}
		fmt.Printf("watching %s (channel %d)\n", args[0], channel)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		doneCh := make(chan error, 1)
		corewatch.Unwatch(channel, func(err error) { doneCh <- err })
		return <-doneCh
	},
}

var statusCommand = &cobra.Command{
	Use:   "status",
	Short: "Print one snapshot of the watcher's internal health",
	RunE: func(command *cobra.Command, args []string) error {
		s := corewatch.StatusSnapshot()
		fmt.Printf("channels:         %d\n", s.ChannelCount)
		fmt.Printf("worker thread:    %s (ok=%t)\n", s.WorkerThreadState, s.WorkerThreadOK)
		fmt.Printf("worker in/out:    %d/%d\n", s.WorkerInQueueSize, s.WorkerOutQueueSize)
		fmt.Printf("worker cache:     %d entries\n", s.WorkerCacheSize)
		fmt.Printf("polling thread:   %s (active=%t ok=%t)\n", s.PollingThreadState, s.PollingThreadActive, s.PollingThreadOK)
		fmt.Printf("polling roots:    %d (interval=%dms)\n", s.PollingRootCount, s.PollingIntervalMS)
		return nil
	},
}

func printEvents(events []corewatch.FileSystemEvent) {
	for _, e := range events {
		fmt.Println(e)
	}
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
