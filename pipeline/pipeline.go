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

// Package pipeline runs the steps that turn a canister's certified interface metadata into Go bindings:
// fetch, lookup, check and compile. Each step fails fast and the first error ends the run
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/blinklabs-io/icdef/bindings"
	"github.com/blinklabs-io/icdef/principal"
)

// ErrNoStateReader is returned by Run when the pipeline has no StateReader
var ErrNoStateReader = errors.New("pipeline: no state reader configured")

// Pipeline generates bindings for canister interfaces. Runs share nothing but the configuration and
// metrics, so a Pipeline can be used from multiple goroutines
type Pipeline struct {
	config  PipelineConfig
	logger  *slog.Logger
	metrics *PipelineMetrics
}

// NewPipeline creates a new Pipeline using functional options
//
// Example:
//
//	p := NewPipeline(
//	    WithStateReader(myAgent),
//	    WithTarget(bindings.TargetDirectCall),
//	)
func NewPipeline(opts ...PipelineOption) *Pipeline {
	config := DefaultPipelineConfig()
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		config:  config,
		logger:  logger.With("component", "pipeline"),
		metrics: NewPipelineMetrics(),
	}
}

// Run fetches the interface of the canister named by its textual ID and compiles it. The ID is
// validated before any network access
func (p *Pipeline) Run(ctx context.Context, canisterText string) (*Job, error) {
	return p.run(ctx, canisterText, p.config.Bindings)
}

func (p *Pipeline) run(ctx context.Context, canisterText string, cfg bindings.Config) (*Job, error) {
	p.metrics.RecordStart()
	canisterID, err := principal.FromText(canisterText)
	if err != nil {
		err = &Error{
			Kind:       KindInvalidIdentifier,
			CanisterID: canisterText,
			Cause:      err,
		}
		p.metrics.RecordResult(err)
		return nil, err
	}
	if p.config.Reader == nil {
		err = &Error{
			Kind:       KindConfig,
			Stage:      StageFetch,
			CanisterID: canisterText,
			Cause:      ErrNoStateReader,
		}
		p.metrics.RecordResult(err)
		return nil, err
	}
	job := NewJob(canisterID)
	stages := []Stage{
		NewFetchStage(p.config.Reader, p.logger),
		NewLookupStage(p.logger),
		NewCheckStage(p.logger),
		NewCompileStage(cfg),
	}
	stages = append(stages, p.config.Stages...)
	if err := p.process(ctx, job, stages); err != nil {
		return job, err
	}
	return job, nil
}

// RunSource checks and compiles interface text that is already available, such as a local .did file.
// The canister ID is optional unless the target requires one
func (p *Pipeline) RunSource(
	ctx context.Context,
	source string,
	canisterID *principal.Principal,
) (*Job, error) {
	return p.runSource(ctx, source, canisterID, p.config.Bindings)
}

func (p *Pipeline) runSource(
	ctx context.Context,
	source string,
	canisterID *principal.Principal,
	cfg bindings.Config,
) (*Job, error) {
	p.metrics.RecordStart()
	job := NewSourceJob(source, canisterID)
	stages := []Stage{
		NewCheckStage(p.logger),
		NewCompileStage(cfg),
	}
	stages = append(stages, p.config.Stages...)
	if err := p.process(ctx, job, stages); err != nil {
		return job, err
	}
	return job, nil
}

// process runs the stages in order, stopping at the first failure
func (p *Pipeline) process(ctx context.Context, job *Job, stages []Stage) error {
	for _, stage := range stages {
		err := ctx.Err()
		if err == nil {
			err = stage.Process(ctx, job)
			p.metrics.RecordStage(stage.Name(), job.Duration(stage.Name()))
		}
		if err != nil {
			err = wrapError(err, stage.Name(), job.canisterText())
			p.metrics.RecordResult(err)
			p.logger.Debug(
				"stage failed",
				"stage", stage.Name(),
				"canister_id", job.canisterText(),
				"kind", Classify(err).String(),
			)
			return err
		}
	}
	p.metrics.RecordResult(nil)
	p.logger.Info(
		"generated bindings",
		"canister_id", job.canisterText(),
		"bytes", len(job.Output()),
		"duration", job.TotalDuration(),
	)
	return nil
}

// Stats returns the current pipeline statistics
func (p *Pipeline) Stats() PipelineStats {
	return p.metrics.Stats()
}
