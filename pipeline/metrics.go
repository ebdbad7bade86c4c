// Copyright 2026 Blink Labs Software
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

package pipeline

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// PipelineStats is a snapshot of the pipeline metrics
type PipelineStats struct {
	// Runs is the total number of pipeline runs started.
	Runs uint64
	// Succeeded is the number of runs that produced bindings.
	Succeeded uint64
	// Failed is the number of runs that failed.
	Failed uint64
	// FailuresByKind counts failed runs by error kind.
	FailuresByKind map[Kind]uint64
	// StageDurations is the total time spent in each stage.
	StageDurations map[string]time.Duration
	// LastRunTime is the time the last run finished.
	LastRunTime time.Time
	// StartTime is when the pipeline was created or the metrics were reset.
	StartTime time.Time
}

// PipelineMetrics collects metrics for pipeline runs. It is safe for concurrent use
type PipelineMetrics struct {
	// Counters (atomic)
	runs      atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64

	// Maps and timing (requires mutex)
	mu             sync.RWMutex
	failuresByKind map[Kind]uint64
	stageDurations map[string]time.Duration
	lastRunTime    time.Time
	startTime      time.Time
}

// NewPipelineMetrics creates a new metrics collector
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		failuresByKind: make(map[Kind]uint64),
		stageDurations: make(map[string]time.Duration),
		startTime:      time.Now(),
	}
}

// RecordStart records the start of a run
func (m *PipelineMetrics) RecordStart() {
	m.runs.Add(1)
}

// RecordStage adds the time spent in a stage
func (m *PipelineMetrics) RecordStage(stage string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageDurations[stage] += duration
}

// RecordResult records the outcome of a run
func (m *PipelineMetrics) RecordResult(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed.Add(1)
		m.failuresByKind[Classify(err)]++
	} else {
		m.succeeded.Add(1)
	}
	m.lastRunTime = time.Now()
}

// Stats returns the current pipeline statistics
func (m *PipelineMetrics) Stats() PipelineStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return PipelineStats{
		Runs:           m.runs.Load(),
		Succeeded:      m.succeeded.Load(),
		Failed:         m.failed.Load(),
		FailuresByKind: maps.Clone(m.failuresByKind),
		StageDurations: maps.Clone(m.stageDurations),
		LastRunTime:    m.lastRunTime,
		StartTime:      m.startTime,
	}
}

// Reset resets all metrics
func (m *PipelineMetrics) Reset() {
	m.runs.Store(0)
	m.succeeded.Store(0)
	m.failed.Store(0)

	m.mu.Lock()
	m.failuresByKind = make(map[Kind]uint64)
	m.stageDurations = make(map[string]time.Duration)
	m.lastRunTime = time.Time{}
	m.startTime = time.Now()
	m.mu.Unlock()
}
