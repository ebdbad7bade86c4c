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

package pipeline_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/icdef/agent"
	"github.com/blinklabs-io/icdef/bindings"
	"github.com/blinklabs-io/icdef/candid"
	"github.com/blinklabs-io/icdef/certificate"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/internal/test"
	"github.com/blinklabs-io/icdef/pipeline"
	"github.com/blinklabs-io/icdef/principal"
	"github.com/minio/sha256-simd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const greetSrc = "service : { greet : (text) -> (text) query }"

var (
	testNow   = time.Unix(1_700_000_000, 0)
	testRoot  = test.NewKeyPair(1)
	testOther = test.NewKeyPair(2)
)

var _ pipeline.StateReader = (*agent.Agent)(nil)

// fakeReader certifies a fixed tree and verifies it the way the agent does
type fakeReader struct {
	tree   hashtree.Node
	err    error
	tamper bool
	// verifyKey defaults to the signing key
	verifyKey []byte
	calls     atomic.Int32
}

func (r *fakeReader) ReadStateRaw(
	ctx context.Context,
	paths []hashtree.Path,
	canisterID principal.Principal,
) (*certificate.Certificate, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	_, certCbor := testRoot.Certify(r.tree, nil)
	cert, err := certificate.NewCertificateFromCbor(certCbor)
	if err != nil {
		return nil, err
	}
	if r.tamper {
		cert.Signature[len(cert.Signature)-1] ^= 0x01
	}
	verifyKey := r.verifyKey
	if verifyKey == nil {
		verifyKey = testRoot.PublicKeyDER
	}
	err = cert.Verify(certificate.VerifyConfig{
		RootKey:    verifyKey,
		CanisterId: canisterID,
	})
	if err != nil {
		return nil, err
	}
	return cert, nil
}

func canisterSubtree(canisterID principal.Principal, value hashtree.Node) hashtree.Node {
	return test.LabeledFork(
		test.Labeled(string(canisterID.Bytes()), test.LabeledFork(
			test.Labeled("metadata", test.LabeledFork(
				test.Labeled(test.CandidServiceLabel, value),
			)),
		)),
	)
}

func stateTree(canisterSubtree hashtree.Node) hashtree.Node {
	return test.LabeledFork(
		test.Labeled("canister", canisterSubtree),
		test.TimeLabel(testNow),
	)
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func findFunc(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if ok && funcDecl.Name.Name == name {
			return funcDecl
		}
	}
	return nil
}

func TestRunAgentGreet(t *testing.T) {
	canisterID := principal.ManagementCanister()
	reader := &fakeReader{tree: test.CanisterMetadataTree(canisterID, greetSrc, testNow)}
	p := pipeline.NewPipeline(pipeline.WithStateReader(reader))

	job, err := p.Run(context.Background(), "aaaaa-aa")
	require.NoError(t, err)
	assert.Equal(t, int32(1), reader.calls.Load())
	assert.True(t, job.Lookup().Found())
	assert.Equal(t, greetSrc, job.Source())
	require.NotNil(t, job.Signature())
	require.Len(t, job.Signature().Methods, 1)
	assert.Equal(t, "greet", job.Signature().Methods[0].Name)

	file, err := parser.ParseFile(token.NewFileSet(), "def.go", job.Output(), parser.ParseComments)
	require.NoError(t, err)
	greet := findFunc(file, "Greet")
	require.NotNil(t, greet)
	assert.Equal(t, "func(ctx context.Context, arg0 string) (ret0 string, err error)", types.ExprString(greet.Type))
	require.NotNil(t, greet.Recv)
	assert.Equal(t, "*Service", types.ExprString(greet.Recv.List[0].Type))

	extracted, err := bindings.ExtractInterface(job.Output())
	require.NoError(t, err)
	_, sig, err := candid.Check(extracted)
	require.NoError(t, err)
	_, ok := sig.Method("greet")
	assert.True(t, ok)
}

func TestRunDirectCall(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	reader := &fakeReader{tree: test.CanisterMetadataTree(canisterID, greetSrc, testNow)}
	p := pipeline.NewPipeline(
		pipeline.WithStateReader(reader),
		pipeline.WithTarget(bindings.TargetDirectCall),
		pipeline.WithPackageName("ledger"),
	)
	job, err := p.Run(context.Background(), canisterID.String())
	require.NoError(t, err)
	src := string(job.Output())
	assert.Contains(t, src, "package ledger\n")
	assert.Contains(t, src, `var CanisterID = principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")`)
	assert.Contains(t, src, "func Greet(ctx context.Context, arg0 string) (ret0 string, err error)")
}

func TestRunDeterministic(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	src := `type Tree = variant { leaf : nat; node : record { left : Tree; right : Tree } };
service : { sum : (Tree) -> (nat) query; reset : () -> () }`
	reader := &fakeReader{tree: test.CanisterMetadataTree(canisterID, src, testNow)}
	p := pipeline.NewPipeline(pipeline.WithStateReader(reader))
	first, err := p.Run(context.Background(), canisterID.String())
	require.NoError(t, err)
	second, err := p.Run(context.Background(), canisterID.String())
	require.NoError(t, err)
	assert.Equal(t, first.Output(), second.Output())
}

func TestRunInvalidIdentifier(t *testing.T) {
	reader := &fakeReader{}
	p := pipeline.NewPipeline(pipeline.WithStateReader(reader))
	for _, text := range []string{"", "not-a-principal", "aaaaa-ab", "AAAAA-AA"} {
		job, err := p.Run(context.Background(), text)
		assert.Nil(t, job)
		assert.True(t, pipeline.IsKind(err, pipeline.KindInvalidIdentifier), "text %q: got %v", text, err)
		var identifierErr *principal.InvalidIdentifierError
		assert.True(t, errors.As(err, &identifierErr))
	}
	assert.Equal(t, int32(0), reader.calls.Load())
}

func TestRunNoStateReader(t *testing.T) {
	p := pipeline.NewPipeline()
	_, err := p.Run(context.Background(), "aaaaa-aa")
	assert.True(t, pipeline.IsKind(err, pipeline.KindConfig))
	assert.ErrorIs(t, err, pipeline.ErrNoStateReader)
}

func TestRunUnreachableHost(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()
	a, err := agent.New(
		agent.WithURL(serverURL),
		agent.WithHTTPClient(&http.Client{Transport: &http.Transport{DisableKeepAlives: true}}),
	)
	require.NoError(t, err)
	p := pipeline.NewPipeline(pipeline.WithStateReader(a))
	job, err := p.Run(context.Background(), "ryjl3-tyaaa-aaaaa-aaaba-cai")
	assert.True(t, pipeline.IsKind(err, pipeline.KindTransport), "got %v", err)
	var pipelineErr *pipeline.Error
	require.True(t, errors.As(err, &pipelineErr))
	assert.Equal(t, pipeline.StageFetch, pipelineErr.Stage)
	assert.Equal(t, "ryjl3-tyaaa-aaaaa-aaaba-cai", pipelineErr.CanisterID)
	require.NotNil(t, job)
	assert.Nil(t, job.Certificate())
	assert.Nil(t, job.Output())
}

func TestRunCertificateInvalid(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	testDefs := []struct {
		name   string
		reader *fakeReader
	}{
		{
			name: "tampered signature",
			reader: &fakeReader{
				tree:   test.CanisterMetadataTree(canisterID, greetSrc, testNow),
				tamper: true,
			},
		},
		{
			name: "wrong root key",
			reader: &fakeReader{
				tree:      test.CanisterMetadataTree(canisterID, greetSrc, testNow),
				verifyKey: testOther.PublicKeyDER,
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			p := pipeline.NewPipeline(pipeline.WithStateReader(testDef.reader))
			job, err := p.Run(context.Background(), canisterID.String())
			assert.True(t, pipeline.IsKind(err, pipeline.KindCertificateInvalid), "got %v", err)
			require.NotNil(t, job)
			assert.Nil(t, job.Certificate())
			assert.Equal(t, hashtree.LookupNotPerformed, job.Lookup().Status)
			assert.Equal(t, "not performed", job.Lookup().String())
			assert.Equal(t, time.Duration(0), job.Duration(pipeline.StageLookup))
			assert.Nil(t, job.Output())
		})
	}
}

func TestRunInterfaceUnavailable(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	otherID := principal.MustFromText("rrkah-fqaaa-aaaaa-aaaaq-cai")
	leaf := hashtree.Leaf{Value: []byte(greetSrc)}
	testDefs := []struct {
		name      string
		tree      hashtree.Node
		outcome   hashtree.LookupStatus
		retryable bool
	}{
		{
			name:      "pruned at depth 2",
			tree:      stateTree(hashtree.Prune(canisterSubtree(canisterID, leaf))),
			outcome:   hashtree.LookupUnknown,
			retryable: true,
		},
		{
			name:    "absent",
			tree:    stateTree(canisterSubtree(otherID, leaf)),
			outcome: hashtree.LookupAbsent,
		},
		{
			name: "inner node",
			tree: stateTree(canisterSubtree(
				canisterID,
				test.LabeledFork(test.Labeled("nested", leaf)),
			)),
			outcome: hashtree.LookupError,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			p := pipeline.NewPipeline(
				pipeline.WithStateReader(&fakeReader{tree: testDef.tree}),
				pipeline.WithLogger(testLogger(&logBuf)),
			)
			job, err := p.Run(context.Background(), canisterID.String())
			assert.True(t, pipeline.IsKind(err, pipeline.KindInterfaceUnavailable), "got %v", err)
			var unavailableErr *pipeline.InterfaceUnavailableError
			require.True(t, errors.As(err, &unavailableErr))
			assert.Equal(t, testDef.outcome, unavailableErr.Outcome)
			assert.Equal(t, testDef.retryable, unavailableErr.Retryable())
			assert.Equal(t, pipeline.MetadataPath(canisterID, pipeline.CandidServiceMetadata), unavailableErr.Path)
			assert.Equal(t, testDef.outcome, job.Lookup().Status)
			assert.Nil(t, job.Output())
			assert.Contains(t, logBuf.String(), "level=WARN")
			assert.Contains(t, logBuf.String(), "outcome="+testDef.outcome.String())
			assert.Contains(t, logBuf.String(), "canister_id="+canisterID.String())
		})
	}
}

func TestRunLookupDeterministic(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	leaf := hashtree.Leaf{Value: []byte(greetSrc)}
	reader := &fakeReader{tree: stateTree(hashtree.Prune(canisterSubtree(canisterID, leaf)))}
	p := pipeline.NewPipeline(pipeline.WithStateReader(reader))
	for range 3 {
		job, err := p.Run(context.Background(), canisterID.String())
		require.Error(t, err)
		assert.Equal(t, hashtree.LookupUnknown, job.Lookup().Status)
	}
}

func TestRunInvalidEncoding(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	reader := &fakeReader{tree: test.CanisterMetadataTree(canisterID, "service : {}\xff", testNow)}
	p := pipeline.NewPipeline(pipeline.WithStateReader(reader))
	_, err := p.Run(context.Background(), canisterID.String())
	assert.True(t, pipeline.IsKind(err, pipeline.KindInvalidEncoding), "got %v", err)
	var encodingErr *pipeline.InvalidEncodingError
	require.True(t, errors.As(err, &encodingErr))
	assert.Equal(t, 12, encodingErr.Offset)
}

func TestRunUnresolvedType(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	reader := &fakeReader{
		tree: test.CanisterMetadataTree(canisterID, "service : { get : () -> (Foo) query }", testNow),
	}
	p := pipeline.NewPipeline(pipeline.WithStateReader(reader))
	job, err := p.Run(context.Background(), canisterID.String())
	assert.True(t, pipeline.IsKind(err, pipeline.KindUnresolvedType), "got %v", err)
	var unresolvedErr *candid.UnresolvedTypeError
	require.True(t, errors.As(err, &unresolvedErr))
	assert.Equal(t, "Foo", unresolvedErr.Name)
	assert.Contains(t, err.Error(), "Foo")
	assert.Empty(t, job.Output())
}

func TestRunSourceErrors(t *testing.T) {
	testDefs := []struct {
		name   string
		source string
		kind   pipeline.Kind
	}{
		{name: "syntax", source: "service : { greet : (text) -> (text) query", kind: pipeline.KindSyntax},
		{name: "import", source: `import "other.did"; service : {}`, kind: pipeline.KindSyntax},
		{name: "duplicate", source: "type A = nat; type A = int; service : {}", kind: pipeline.KindDuplicateDefinition},
		{name: "recursion", source: "type A = B; type B = A; service : {}", kind: pipeline.KindInvalidRecursion},
		{name: "mismatch", source: "type A = nat; service : { f : A }", kind: pipeline.KindTypeMismatch},
	}
	p := pipeline.NewPipeline()
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			job, err := p.RunSource(context.Background(), testDef.source, nil)
			assert.True(t, pipeline.IsKind(err, testDef.kind), "got %v", err)
			var pipelineErr *pipeline.Error
			require.True(t, errors.As(err, &pipelineErr))
			assert.Equal(t, pipeline.StageCheck, pipelineErr.Stage)
			assert.Nil(t, job.Output())
		})
	}
}

func TestRunSourceDirectCallRequiresCanister(t *testing.T) {
	p := pipeline.NewPipeline(pipeline.WithTarget(bindings.TargetDirectCall))
	_, err := p.RunSource(context.Background(), greetSrc, nil)
	assert.True(t, pipeline.IsKind(err, pipeline.KindConfig), "got %v", err)

	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	job, err := p.RunSource(context.Background(), greetSrc, &canisterID)
	require.NoError(t, err)
	assert.Contains(t, string(job.Output()), "func Greet(")
}

func TestRunCancelled(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	reader := &fakeReader{tree: test.CanisterMetadataTree(canisterID, greetSrc, testNow)}
	p := pipeline.NewPipeline(pipeline.WithStateReader(reader))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, err := p.Run(ctx, canisterID.String())
	assert.True(t, pipeline.IsKind(err, pipeline.KindTransport), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, job.Certificate())
	assert.Equal(t, int32(0), reader.calls.Load())
}

func TestRunAll(t *testing.T) {
	defer goleak.VerifyNone(t)
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	reader := &fakeReader{tree: test.CanisterMetadataTree(canisterID, greetSrc, testNow)}
	p := pipeline.NewPipeline(
		pipeline.WithStateReader(reader),
		pipeline.WithWorkers(3),
	)
	directCall := bindings.Config{Target: bindings.TargetDirectCall, PackageName: "direct"}
	requests := []pipeline.Request{
		{CanisterID: canisterID.String()},
		{CanisterID: "bogus"},
		{Source: "service : { f : (Foo) -> () }"},
		{CanisterID: canisterID.String(), Source: greetSrc, Bindings: &directCall},
		{CanisterID: "rrkah-fqaaa-aaaaa-aaaaq-cai"},
	}
	results := p.RunAll(context.Background(), requests)
	require.Len(t, results, len(requests))
	for idx, result := range results {
		assert.Equal(t, requests[idx], result.Request)
	}
	assert.NoError(t, results[0].Err)
	assert.True(t, pipeline.IsKind(results[1].Err, pipeline.KindInvalidIdentifier))
	assert.True(t, pipeline.IsKind(results[2].Err, pipeline.KindUnresolvedType))
	require.NoError(t, results[3].Err)
	assert.Contains(t, string(results[3].Job.Output()), "package direct\n")
	assert.True(t, pipeline.IsKind(results[4].Err, pipeline.KindInterfaceUnavailable))

	stats := p.Stats()
	assert.Equal(t, uint64(5), stats.Runs)
	assert.Equal(t, uint64(2), stats.Succeeded)
	assert.Equal(t, uint64(3), stats.Failed)
	assert.Equal(t, uint64(1), stats.FailuresByKind[pipeline.KindInvalidIdentifier])
	assert.Equal(t, uint64(1), stats.FailuresByKind[pipeline.KindUnresolvedType])
	assert.Equal(t, uint64(1), stats.FailuresByKind[pipeline.KindInterfaceUnavailable])
	assert.Contains(t, stats.StageDurations, pipeline.StageCompile)
}

func TestRunAllCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := pipeline.NewPipeline(pipeline.WithStateReader(&fakeReader{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := p.RunAll(ctx, []pipeline.Request{{CanisterID: "aaaaa-aa"}, {CanisterID: "aaaaa-aa"}})
	for _, result := range results {
		assert.True(t, pipeline.IsKind(result.Err, pipeline.KindTransport), "got %v", result.Err)
		assert.ErrorIs(t, result.Err, context.Canceled)
	}
	assert.Empty(t, p.RunAll(context.Background(), nil))
}

func TestClassify(t *testing.T) {
	testDefs := []struct {
		err  error
		kind pipeline.Kind
	}{
		{err: nil, kind: pipeline.KindUnknown},
		{err: errors.New("other"), kind: pipeline.KindUnknown},
		{err: &principal.InvalidIdentifierError{Text: "x"}, kind: pipeline.KindInvalidIdentifier},
		{err: &agent.TransportError{Op: "GET"}, kind: pipeline.KindTransport},
		{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), kind: pipeline.KindTransport},
		{err: &agent.ProtocolError{Op: "POST"}, kind: pipeline.KindProtocol},
		{err: &certificate.CertificateInvalidError{Reason: "signature"}, kind: pipeline.KindCertificateInvalid},
		{err: &pipeline.InterfaceUnavailableError{}, kind: pipeline.KindInterfaceUnavailable},
		{err: &pipeline.InvalidEncodingError{}, kind: pipeline.KindInvalidEncoding},
		{err: &candid.SyntaxError{Message: "x"}, kind: pipeline.KindSyntax},
		{err: fmt.Errorf("check: %w", &candid.UnresolvedTypeError{Name: "Foo"}), kind: pipeline.KindUnresolvedType},
		{err: &candid.DuplicateDefinitionError{Kind: "type", Name: "A"}, kind: pipeline.KindDuplicateDefinition},
		{err: &candid.InvalidRecursionError{Cycle: []string{"A"}}, kind: pipeline.KindInvalidRecursion},
		{err: &candid.TypeMismatchError{Message: "x"}, kind: pipeline.KindTypeMismatch},
		{err: &bindings.UnsupportedConstructError{Construct: "x"}, kind: pipeline.KindUnsupportedConstruct},
		{err: &bindings.ConfigError{Field: "target"}, kind: pipeline.KindConfig},
		{err: &pipeline.Error{Kind: pipeline.KindProtocol}, kind: pipeline.KindProtocol},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.kind, pipeline.Classify(testDef.err), "error: %v", testDef.err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &pipeline.Error{
		Kind:       pipeline.KindUnresolvedType,
		Stage:      pipeline.StageCheck,
		CanisterID: "aaaaa-aa",
		Cause:      &candid.UnresolvedTypeError{Name: "Foo"},
	}
	assert.Contains(t, err.Error(), "UnresolvedType in check for canister aaaaa-aa: ")
	assert.Contains(t, err.Error(), "Foo")
	assert.Equal(t, "Kind(99)", pipeline.Kind(99).String())
}

func TestStageFunc(t *testing.T) {
	errStage := errors.New("stage error")
	var seen *principal.Principal
	stage := pipeline.NewStageFunc("custom", func(ctx context.Context, job *pipeline.Job) error {
		seen = job.CanisterID()
		return errStage
	})
	assert.Equal(t, "custom", stage.Name())
	canisterID := principal.ManagementCanister()
	job := pipeline.NewJob(canisterID)
	assert.ErrorIs(t, stage.Process(context.Background(), job), errStage)
	require.NotNil(t, seen)
	assert.True(t, seen.IsManagementCanister())
}

func TestRunCustomStage(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	reader := &fakeReader{tree: test.CanisterMetadataTree(canisterID, greetSrc, testNow)}
	var certCbor, output []byte
	var logBuf bytes.Buffer
	p := pipeline.NewPipeline(
		pipeline.WithStateReader(reader),
		pipeline.WithLogger(testLogger(&logBuf)),
		pipeline.WithStage(pipeline.NewStageFunc("audit", func(ctx context.Context, job *pipeline.Job) error {
			certCbor = job.CertificateCbor()
			output = job.Output()
			return nil
		})),
	)
	job, err := p.Run(context.Background(), canisterID.String())
	require.NoError(t, err)
	// The stage runs after compile and sees the certificate bytes as received
	assert.Equal(t, job.Output(), output)
	require.NotEmpty(t, certCbor)
	assert.Equal(t, job.CertificateCbor(), certCbor)
	cert, err := certificate.NewCertificateFromCbor(certCbor)
	require.NoError(t, err)
	require.NoError(t, cert.Verify(certificate.VerifyConfig{RootKey: testRoot.PublicKeyDER, CanisterId: canisterID}))
	assert.Equal(t, greetSrc, string(cert.Lookup(pipeline.MetadataPath(canisterID, pipeline.CandidServiceMetadata)).Value))
	assert.Contains(t, p.Stats().StageDurations, "audit")

	digest := sha256.Sum256(certCbor)
	assert.Contains(t, logBuf.String(), "certificate_sha256="+hex.EncodeToString(digest[:]))
	assert.Contains(t, logBuf.String(), fmt.Sprintf("certificate_size=%d", len(certCbor)))
}

func TestRunCustomStageError(t *testing.T) {
	errAudit := errors.New("audit failed")
	var calls int
	p := pipeline.NewPipeline(
		pipeline.WithStage(pipeline.NewStageFunc("audit", func(ctx context.Context, job *pipeline.Job) error {
			calls++
			// Jobs built from local source carry no certificate
			assert.Nil(t, job.CertificateCbor())
			return errAudit
		})),
	)
	job, err := p.RunSource(context.Background(), greetSrc, nil)
	assert.ErrorIs(t, err, errAudit)
	var pipelineErr *pipeline.Error
	require.True(t, errors.As(err, &pipelineErr))
	assert.Equal(t, "audit", pipelineErr.Stage)
	assert.Equal(t, pipeline.KindUnknown, pipelineErr.Kind)
	assert.NotNil(t, job.Output())
	assert.Equal(t, 1, calls)

	// Stages after a failed one do not run
	_, err = p.RunSource(context.Background(), "service : { f : (Missing) -> () }", nil)
	assert.True(t, pipeline.IsKind(err, pipeline.KindUnresolvedType), "got %v", err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(2), p.Stats().Failed)
}

func TestJob(t *testing.T) {
	job := pipeline.NewSourceJob(greetSrc, nil)
	assert.Nil(t, job.CanisterID())
	assert.Equal(t, greetSrc, job.Source())
	assert.False(t, job.ReceivedAt().IsZero())
	assert.Nil(t, job.Certificate())
	assert.Nil(t, job.CertificateCbor())
	assert.Equal(t, hashtree.LookupNotPerformed, job.Lookup().Status)
	assert.Nil(t, job.TypeEnv())

	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	job = pipeline.NewJob(canisterID)
	assert.Empty(t, job.Source())
	job.SetLookup(hashtree.LookupResult{Status: hashtree.LookupUnknown})
	assert.Empty(t, job.Source())
	job.SetLookup(hashtree.LookupResult{Status: hashtree.LookupFound, Value: []byte(greetSrc)})
	assert.Equal(t, greetSrc, job.Source())
	job.SetOutput([]byte("package canister\n"))
	assert.Equal(t, []byte("package canister\n"), job.Output())
}
