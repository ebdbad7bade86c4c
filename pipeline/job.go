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
	"sync"
	"time"

	"github.com/blinklabs-io/icdef/candid"
	"github.com/blinklabs-io/icdef/certificate"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/principal"
)

// Job holds the state of one pipeline run as it moves through the stages. Each run owns its Job
// exclusively, so nothing in it is shared with other runs
type Job struct {
	// Immutable fields (set at construction)
	canisterID *principal.Principal
	source     string
	receivedAt time.Time

	mu sync.RWMutex

	// Fetch stage results
	certificate *certificate.Certificate

	// Lookup stage results
	lookup hashtree.LookupResult

	// Check stage results
	env       *candid.TypeEnv
	signature *candid.ServiceSignature

	// Compile stage results
	output []byte

	durations map[string]time.Duration
}

// NewJob creates a Job for the interface of the specified canister
func NewJob(canisterID principal.Principal) *Job {
	return &Job{
		canisterID: &canisterID,
		receivedAt: time.Now(),
		durations:  make(map[string]time.Duration),
	}
}

// NewSourceJob creates a Job for interface text that is already available. The fetch and lookup stages
// do not apply to it. The canister ID is optional
func NewSourceJob(source string, canisterID *principal.Principal) *Job {
	job := &Job{
		source:     source,
		receivedAt: time.Now(),
		durations:  make(map[string]time.Duration),
	}
	if canisterID != nil {
		tmpID := *canisterID
		job.canisterID = &tmpID
	}
	return job
}

// CanisterID returns the canister ID, or nil if the job has none
func (j *Job) CanisterID() *principal.Principal {
	return j.canisterID
}

func (j *Job) canisterText() string {
	if j.canisterID == nil {
		return ""
	}
	return j.canisterID.String()
}

// ReceivedAt returns the time when this job was created
func (j *Job) ReceivedAt() time.Time {
	return j.receivedAt
}

// Certificate returns the verified certificate, or nil if the fetch stage has not succeeded
func (j *Job) Certificate() *certificate.Certificate {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.certificate
}

// SetCertificate sets the verified certificate
func (j *Job) SetCertificate(cert *certificate.Certificate) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.certificate = cert
}

// CertificateCbor returns the CBOR encoding of the verified certificate as it was received, or nil if
// the fetch stage has not succeeded
func (j *Job) CertificateCbor() []byte {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.certificate == nil {
		return nil
	}
	return j.certificate.Cbor()
}

// Lookup returns the outcome of the metadata lookup
func (j *Job) Lookup() hashtree.LookupResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lookup
}

// SetLookup sets the outcome of the metadata lookup. A found value also becomes the job's source
func (j *Job) SetLookup(result hashtree.LookupResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lookup = result
	if result.Found() {
		j.source = string(result.Value)
	}
}

// Source returns the Candid interface text
func (j *Job) Source() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.source
}

// SetChecked sets the type environment and service signature produced by the checker
func (j *Job) SetChecked(env *candid.TypeEnv, sig *candid.ServiceSignature) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.env = env
	j.signature = sig
}

// TypeEnv returns the checked type environment
func (j *Job) TypeEnv() *candid.TypeEnv {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.env
}

// Signature returns the checked service signature. It is nil when the interface declares no service
func (j *Job) Signature() *candid.ServiceSignature {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.signature
}

// SetOutput sets the generated source
func (j *Job) SetOutput(output []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = output
}

// Output returns the generated source, or nil if compilation has not succeeded
func (j *Job) Output() []byte {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.output
}

func (j *Job) setDuration(stage string, duration time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.durations[stage] = duration
}

// Duration returns the time spent in the named stage
func (j *Job) Duration(stage string) time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.durations[stage]
}

// TotalDuration returns the time since the job was created
func (j *Job) TotalDuration() time.Duration {
	return time.Since(j.receivedAt)
}
