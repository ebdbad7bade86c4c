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
	"log/slog"
	"time"

	"github.com/blinklabs-io/icdef/bindings"
	"github.com/blinklabs-io/icdef/candid"
)

// CheckStage parses and type checks the job's interface text
type CheckStage struct {
	logger *slog.Logger
}

// NewCheckStage creates a new CheckStage
func NewCheckStage(logger *slog.Logger) *CheckStage {
	return &CheckStage{
		logger: logger,
	}
}

// Name returns the stage name
func (s *CheckStage) Name() string {
	return StageCheck
}

// Process checks the interface text
func (s *CheckStage) Process(ctx context.Context, job *Job) error {
	start := time.Now()
	env, sig, err := candid.Check(job.Source())
	job.setDuration(StageCheck, time.Since(start))
	if err != nil {
		return err
	}
	job.SetChecked(env, sig)
	methods := 0
	if sig != nil {
		methods = len(sig.Methods)
	}
	s.logger.Debug(
		"checked interface",
		"canister_id", job.canisterText(),
		"types", env.Len(),
		"methods", methods,
	)
	return nil
}

// CompileStage generates Go bindings for the checked interface
type CompileStage struct {
	config bindings.Config
}

// NewCompileStage creates a new CompileStage. The job's canister ID is used when the config has none
func NewCompileStage(config bindings.Config) *CompileStage {
	return &CompileStage{
		config: config,
	}
}

// Name returns the stage name
func (s *CompileStage) Name() string {
	return StageCompile
}

// Process compiles the job's type environment and signature
func (s *CompileStage) Process(ctx context.Context, job *Job) error {
	cfg := s.config
	if cfg.CanisterID == nil {
		cfg.CanisterID = job.CanisterID()
	}
	start := time.Now()
	output, err := bindings.Compile(cfg, job.TypeEnv(), job.Signature())
	job.setDuration(StageCompile, time.Since(start))
	if err != nil {
		return err
	}
	job.SetOutput(output)
	return nil
}
