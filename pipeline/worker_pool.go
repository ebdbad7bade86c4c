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
	"sync"

	"github.com/blinklabs-io/icdef/bindings"
	"github.com/blinklabs-io/icdef/principal"
)

// Request names one interface for RunAll. Source, when set, is compiled instead of fetching the
// interface, and CanisterID may then be empty
type Request struct {
	CanisterID string
	Source     string
	// Bindings overrides the pipeline's bindings configuration when set
	Bindings *bindings.Config
}

// Result is the outcome of one Request
type Result struct {
	Request Request
	Job     *Job
	Err     error
}

// RunAll runs the requests using the configured number of workers. Each request gets its own
// independent run and the results are returned in request order. Requests not started before the
// context is done fail with the context error
func (p *Pipeline) RunAll(ctx context.Context, requests []Request) []Result {
	results := make([]Result, len(requests))
	numWorkers := min(max(p.config.Workers, 1), len(requests))
	input := make(chan int)
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range input {
				results[idx] = p.runRequest(ctx, requests[idx])
			}
		}()
	}
	sent := 0
send:
	for sent < len(requests) {
		select {
		case input <- sent:
			sent++
		case <-ctx.Done():
			break send
		}
	}
	close(input)
	wg.Wait()
	for idx := sent; idx < len(requests); idx++ {
		results[idx] = Result{
			Request: requests[idx],
			Err:     wrapError(ctx.Err(), "", requests[idx].CanisterID),
		}
	}
	return results
}

func (p *Pipeline) runRequest(ctx context.Context, req Request) Result {
	cfg := p.config.Bindings
	if req.Bindings != nil {
		cfg = *req.Bindings
	}
	result := Result{Request: req}
	if req.Source == "" {
		result.Job, result.Err = p.run(ctx, req.CanisterID, cfg)
		return result
	}
	var canisterID *principal.Principal
	if req.CanisterID != "" {
		tmpID, err := principal.FromText(req.CanisterID)
		if err != nil {
			result.Err = &Error{
				Kind:       KindInvalidIdentifier,
				CanisterID: req.CanisterID,
				Cause:      err,
			}
			p.metrics.RecordStart()
			p.metrics.RecordResult(result.Err)
			return result
		}
		canisterID = &tmpID
	}
	result.Job, result.Err = p.runSource(ctx, req.Source, canisterID, cfg)
	return result
}
