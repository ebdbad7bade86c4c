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
	"log/slog"
	"runtime"

	"github.com/blinklabs-io/icdef/bindings"
)

// PipelineConfig holds the pipeline configuration
type PipelineConfig struct {
	// Reader performs the certified state query. It is required for Run.
	Reader StateReader
	// Logger is used for stage logging. Defaults to slog.Default().
	Logger *slog.Logger
	// Bindings controls code generation. The canister ID of each run is used when it has none.
	Bindings bindings.Config
	// Workers is the number of runs RunAll processes concurrently.
	Workers int
	// Stages run in order after a successful compile, for both Run and RunSource.
	Stages []Stage
}

// DefaultPipelineConfig returns the default configuration
func DefaultPipelineConfig() PipelineConfig {
	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}
	return PipelineConfig{
		Bindings: bindings.Config{
			Target:      bindings.TargetAgent,
			PackageName: bindings.DefaultPackageName,
			ServiceName: bindings.DefaultServiceName,
		},
		Workers: workers,
	}
}

// PipelineOption is a function that modifies the pipeline configuration
type PipelineOption func(*PipelineConfig)

// WithConfig replaces the whole configuration
func WithConfig(config PipelineConfig) PipelineOption {
	return func(c *PipelineConfig) {
		*c = config
	}
}

// WithStateReader specifies the certified state reader, usually an *agent.Agent
func WithStateReader(reader StateReader) PipelineOption {
	return func(c *PipelineConfig) {
		c.Reader = reader
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(c *PipelineConfig) {
		c.Logger = logger
	}
}

// WithTarget specifies the bindings target
func WithTarget(target bindings.Target) PipelineOption {
	return func(c *PipelineConfig) {
		c.Bindings.Target = target
	}
}

// WithPackageName specifies the package name of the generated source
func WithPackageName(name string) PipelineOption {
	return func(c *PipelineConfig) {
		if name != "" {
			c.Bindings.PackageName = name
		}
	}
}

// WithServiceName specifies the name of the generated service type
func WithServiceName(name string) PipelineOption {
	return func(c *PipelineConfig) {
		if name != "" {
			c.Bindings.ServiceName = name
		}
	}
}

// WithWorkers specifies the number of concurrent runs for RunAll
func WithWorkers(n int) PipelineOption {
	return func(c *PipelineConfig) {
		if n > 0 {
			c.Workers = n
		}
	}
}

// WithStage adds a stage that runs after the compile stage. Stages run in the order they were added
func WithStage(stage Stage) PipelineOption {
	return func(c *PipelineConfig) {
		c.Stages = append(c.Stages, stage)
	}
}
