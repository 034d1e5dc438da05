// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kraklabs/contextengine/internal/ui"
	"github.com/kraklabs/contextengine/pkg/engine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runIndex executes the 'index' CLI command, scanning and analyzing the
// project into the knowledge graph and vector index.
//
// By default it resyncs incrementally from the git delta since the last
// indexed commit; outside a git repository, or with --full, it performs a
// full re-scan.
//
// Flags:
//   - --full: Force a full re-scan (default: false)
//   - --debug: Enable debug logging (default: false)
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//
// Examples:
//
//	cie index                  Incremental index (only changed files)
//	cie index --full           Force full re-scan
//	cie index --metrics-addr :9090
func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Force full re-scan")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie index [options]

Indexes the current project using configuration from
.contextengine/config.yaml. State is stored in .contextengine/.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := projectRoot()
	cfg := loadConfig(root)
	logger := setupLogger(*debug)

	// Start Prometheus metrics endpoint (optional)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	if !*full {
		if eng, err := engine.Open(ctx, root, cfg, logger); err == nil {
			if result, rerr := eng.Resync(ctx); rerr == nil {
				stats := statsLine(eng)
				_ = eng.Shutdown()
				ui.Successf("Incremental index complete: +%d ~%d -%d files (%s)",
					result.Added+result.Renamed, result.Modified, result.Deleted, stats)
				return
			} else {
				logger.Info("index.incremental.unavailable", "reason", rerr)
				_ = eng.Shutdown()
			}
		} else {
			logger.Info("index.open.failed", "err", err)
		}
	}

	eng, err := engine.Initialize(ctx, root, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = eng.Shutdown() }()

	ui.Successf("Full index complete (%s)", statsLine(eng))
}

// statsLine formats the post-index summary counts.
func statsLine(eng *engine.Engine) string {
	s := eng.Statistics()
	total := 0
	for _, n := range s.NodesByKind {
		total += n
	}
	edges := 0
	for _, n := range s.EdgesByKind {
		edges += n
	}
	return fmt.Sprintf("%d files, %d nodes, %d edges, %d documents",
		s.FileCount, total, edges, s.DocCount)
}
