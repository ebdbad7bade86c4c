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
	"context"
	"time"
)

// Stage is a single step of the pipeline
type Stage interface {
	// Name returns the name of the stage for logging and metrics.
	Name() string
	// Process processes the job. Returns an error if processing fails.
	Process(ctx context.Context, job *Job) error
}

// StageFunc adapts a function to the Stage interface. The time spent in the function is recorded as
// the stage duration
type StageFunc struct {
	name string
	fn   func(ctx context.Context, job *Job) error
}

// NewStageFunc creates a new StageFunc
func NewStageFunc(name string, fn func(ctx context.Context, job *Job) error) *StageFunc {
	return &StageFunc{
		name: name,
		fn:   fn,
	}
}

// Name returns the stage name
func (s *StageFunc) Name() string {
	return s.name
}

// Process calls the wrapped function
func (s *StageFunc) Process(ctx context.Context, job *Job) error {
	start := time.Now()
	err := s.fn(ctx, job)
	job.setDuration(s.name, time.Since(start))
	return err
}

// Stage names
const (
	StageFetch   = "fetch"
	StageLookup  = "lookup"
	StageCheck   = "check"
	StageCompile = "compile"
)
