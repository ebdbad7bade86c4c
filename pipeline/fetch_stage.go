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
	"encoding/hex"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/minio/sha256-simd"

	"github.com/blinklabs-io/icdef/certificate"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/principal"
)

// CandidServiceMetadata is the name of the metadata section holding a canister's public interface
const CandidServiceMetadata = "candid:service"

// ErrNoCanister is returned by the certified state stages for a job without a canister ID
var ErrNoCanister = errors.New("pipeline: job has no canister ID")

// StateReader reads paths from the certified state tree. *agent.Agent satisfies it
type StateReader interface {
	ReadStateRaw(
		ctx context.Context,
		paths []hashtree.Path,
		canisterID principal.Principal,
	) (*certificate.Certificate, error)
}

// MetadataPath returns the state tree path of the named metadata section of a canister
func MetadataPath(canisterID principal.Principal, name string) hashtree.Path {
	return hashtree.Path{
		hashtree.Label("canister"),
		hashtree.Label(canisterID.Bytes()),
		hashtree.Label("metadata"),
		hashtree.Label(name),
	}
}

// FetchStage reads the interface metadata path and stores the verified certificate in the job
type FetchStage struct {
	reader StateReader
	logger *slog.Logger
}

// NewFetchStage creates a new FetchStage
func NewFetchStage(reader StateReader, logger *slog.Logger) *FetchStage {
	return &FetchStage{
		reader: reader,
		logger: logger,
	}
}

// Name returns the stage name
func (s *FetchStage) Name() string {
	return StageFetch
}

// Process performs the state query. On failure the job is left without a certificate
func (s *FetchStage) Process(ctx context.Context, job *Job) error {
	canisterID := job.CanisterID()
	if canisterID == nil {
		return ErrNoCanister
	}
	start := time.Now()
	path := MetadataPath(*canisterID, CandidServiceMetadata)
	cert, err := s.reader.ReadStateRaw(ctx, []hashtree.Path{path}, *canisterID)
	job.setDuration(StageFetch, time.Since(start))
	if err != nil {
		return err
	}
	job.SetCertificate(cert)
	certCbor := cert.Cbor()
	certDigest := sha256.Sum256(certCbor)
	s.logger.Debug(
		"fetched certificate",
		"canister_id", canisterID.String(),
		"certificate_size", len(certCbor),
		"certificate_sha256", hex.EncodeToString(certDigest[:]),
		"duration", job.Duration(StageFetch),
	)
	return nil
}

// LookupStage extracts the interface text from the verified certificate
type LookupStage struct {
	logger *slog.Logger
}

// NewLookupStage creates a new LookupStage
func NewLookupStage(logger *slog.Logger) *LookupStage {
	return &LookupStage{
		logger: logger,
	}
}

// Name returns the stage name
func (s *LookupStage) Name() string {
	return StageLookup
}

// Process looks up the interface metadata path. Every outcome other than found fails the job, but
// the outcome itself is kept in the job and the error
func (s *LookupStage) Process(ctx context.Context, job *Job) error {
	canisterID := job.CanisterID()
	if canisterID == nil {
		return ErrNoCanister
	}
	cert := job.Certificate()
	if cert == nil {
		return errors.New("pipeline: lookup without a verified certificate")
	}
	start := time.Now()
	path := MetadataPath(*canisterID, CandidServiceMetadata)
	result := cert.Lookup(path)
	job.setDuration(StageLookup, time.Since(start))
	job.SetLookup(result)
	if !result.Found() {
		s.logger.Warn(
			"interface metadata not available",
			"canister_id", canisterID.String(),
			"path", path.String(),
			"outcome", result.Status.String(),
		)
		return &InterfaceUnavailableError{
			Outcome: result.Status,
			Path:    path,
		}
	}
	if offset := invalidUTF8Offset(result.Value); offset >= 0 {
		return &InvalidEncodingError{
			Path:   path,
			Offset: offset,
		}
	}
	return nil
}

// invalidUTF8Offset returns the offset of the first invalid UTF-8 sequence, or -1 if there is none
func invalidUTF8Offset(data []byte) int {
	for offset := 0; offset < len(data); {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size <= 1 {
			return offset
		}
		offset += size
	}
	return -1
}
