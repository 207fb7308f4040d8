// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// luadec decodes Lua 5.4 binary chunks and prints a listing of their contents.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"zb.256lights.llc/luachunk/internal/luadec"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := luadec.New(initLogging)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(false)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "luadec: ", log.StdFlags, nil),
		})
	})
}
