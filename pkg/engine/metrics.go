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

package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics holds Prometheus metrics for ingestion and retrieval.
type engineMetrics struct {
	once sync.Once

	parseErrors   prometheus.Counter
	nodesIngested prometheus.Counter
	edgesIngested prometheus.Counter
	updateEvents  prometheus.Counter

	scanDuration  prometheus.Histogram
	parseDuration prometheus.Histogram
	queryDuration prometheus.Histogram
}

var metrics engineMetrics

func (m *engineMetrics) init() {
	m.once.Do(func() {
		m.parseErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "contextengine_parse_errors_total", Help: "Files that failed to parse"})
		m.nodesIngested = prometheus.NewCounter(prometheus.CounterOpts{Name: "contextengine_nodes_ingested_total", Help: "Nodes upserted into the graph"})
		m.edgesIngested = prometheus.NewCounter(prometheus.CounterOpts{Name: "contextengine_edges_ingested_total", Help: "Relations added to the graph"})
		m.updateEvents = prometheus.NewCounter(prometheus.CounterOpts{Name: "contextengine_update_events_total", Help: "File-change notifications processed"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "contextengine_scan_seconds", Help: "Project scan duration", Buckets: buckets})
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "contextengine_parse_seconds", Help: "Batch analysis duration", Buckets: buckets})
		m.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "contextengine_query_seconds", Help: "Retrieval query duration", Buckets: buckets})

		prometheus.MustRegister(
			m.parseErrors, m.nodesIngested, m.edgesIngested, m.updateEvents,
			m.scanDuration, m.parseDuration, m.queryDuration,
		)
	})
}

// record helpers - used by the engine for metrics tracking
func recordParseError() { metrics.init(); metrics.parseErrors.Inc() }

func recordUpdateEvent() { metrics.init(); metrics.updateEvents.Inc() }

func recordIngest(nodes, edges int) {
	metrics.init()
	metrics.nodesIngested.Add(float64(nodes))
	metrics.edgesIngested.Add(float64(edges))
}

func observeScanSeconds(s float64) { metrics.init(); metrics.scanDuration.Observe(s) }

func observeParseSeconds(s float64) { metrics.init(); metrics.parseDuration.Observe(s) }

func observeQuerySeconds(s float64) { metrics.init(); metrics.queryDuration.Observe(s) }
