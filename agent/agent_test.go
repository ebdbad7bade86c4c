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

package agent_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/icdef/agent"
	"github.com/blinklabs-io/icdef/cbor"
	"github.com/blinklabs-io/icdef/certificate"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/internal/test"
	"github.com/blinklabs-io/icdef/principal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testCandid = "service : { greet : (text) -> (text) query }"

var (
	testNow        = time.Unix(1_700_000_000, 0)
	testCanisterId = principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
)

type readStateRequest struct {
	Content struct {
		RequestType   string              `cbor:"request_type"`
		Sender        principal.Principal `cbor:"sender"`
		Paths         [][][]byte          `cbor:"paths"`
		IngressExpiry uint64              `cbor:"ingress_expiry"`
	} `cbor:"content"`
}

type fakeGateway struct {
	rootKey       *test.KeyPair
	certCbor      []byte
	statusHits    atomic.Int32
	readStateHits atomic.Int32
	lastRequest   readStateRequest
	requestMutex  sync.Mutex
	// Overrides the read_state response status when set
	readStateStatus int
	readStateBody   []byte
	// When set, status requests signal statusStarted and block until statusRelease is closed
	statusStarted chan struct{}
	statusRelease chan struct{}
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	root := test.NewKeyPair(1)
	_, certCbor := root.Certify(test.CanisterMetadataTree(testCanisterId, testCandid, testNow), nil)
	return &fakeGateway{
		rootKey:  root,
		certCbor: certCbor,
	}
}

func (g *fakeGateway) writeCbor(w http.ResponseWriter, status int, v any) {
	data, err := cbor.EncodeSelfDescribed(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v2/status":
		g.statusHits.Add(1)
		if g.statusRelease != nil {
			g.statusStarted <- struct{}{}
			select {
			case <-g.statusRelease:
			case <-r.Context().Done():
				return
			}
		}
		g.writeCbor(w, http.StatusOK, map[string]any{
			"ic_api_version": "0.18.0",
			"root_key":       g.rootKey.PublicKeyDER,
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v2/canister/"+testCanisterId.String()+"/read_state":
		g.readStateHits.Add(1)
		if r.Header.Get("Content-Type") != "application/cbor" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil || !cbor.HasSelfDescribeTag(body) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		var req readStateRequest
		if _, err := cbor.Decode(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.requestMutex.Lock()
		g.lastRequest = req
		g.requestMutex.Unlock()
		if g.readStateStatus != 0 {
			w.Header().Set("Content-Type", "application/cbor")
			w.WriteHeader(g.readStateStatus)
			_, _ = w.Write(g.readStateBody)
			return
		}
		if g.readStateBody != nil {
			w.Header().Set("Content-Type", "application/cbor")
			_, _ = w.Write(g.readStateBody)
			return
		}
		g.writeCbor(w, http.StatusOK, map[string]any{"certificate": g.certCbor})
	default:
		http.NotFound(w, r)
	}
}

func newTestAgent(t *testing.T, serverURL string, opts ...agent.AgentOptionFunc) *agent.Agent {
	t.Helper()
	allOpts := []agent.AgentOptionFunc{
		agent.WithURL(serverURL),
		agent.WithHTTPClient(&http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
			Timeout:   5 * time.Second,
		}),
		agent.WithClock(func() time.Time { return testNow }),
	}
	a, err := agent.New(append(allOpts, opts...)...)
	require.NoError(t, err)
	return a
}

func candidPath() hashtree.Path {
	return hashtree.Path{
		hashtree.Label("canister"),
		hashtree.Label(testCanisterId.Bytes()),
		hashtree.Label("metadata"),
		hashtree.Label("candid:service"),
	}
}

func TestReadStateRaw(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(t, server.URL)

	cert, err := a.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
	require.NoError(t, err)
	result := cert.Lookup(candidPath())
	require.True(t, result.Found(), "lookup result: %s", result)
	assert.Equal(t, testCandid, string(result.Value))

	gateway.requestMutex.Lock()
	req := gateway.lastRequest.Content
	gateway.requestMutex.Unlock()
	assert.Equal(t, "read_state", req.RequestType)
	assert.True(t, req.Sender.IsAnonymous())
	require.Len(t, req.Paths, 1)
	assert.Equal(
		t,
		[][]byte{[]byte("canister"), testCanisterId.Bytes(), []byte("metadata"), []byte("candid:service")},
		req.Paths[0],
	)
	assert.Equal(t, uint64(testNow.Add(agent.DefaultIngressExpiry).UnixNano()), req.IngressExpiry)
}

func TestRootKeyCached(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(t, server.URL)

	for range 3 {
		_, err := a.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), gateway.statusHits.Load())
	assert.Equal(t, int32(3), gateway.readStateHits.Load())
}

func TestRootKeyWaiterCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	gateway.statusStarted = make(chan struct{}, 1)
	gateway.statusRelease = make(chan struct{})
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(t, server.URL)

	type rootKeyResult struct {
		key []byte
		err error
	}
	leaderDone := make(chan rootKeyResult, 1)
	go func() {
		key, err := a.RootKey(context.Background())
		leaderDone <- rootKeyResult{key: key, err: err}
	}()
	<-gateway.statusStarted

	// A second caller gives up when its own context ends, while the first fetch is still in flight
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	key, err := a.RootKey(ctx)
	assert.Nil(t, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, agent.IsTransportError(err))
	assert.Less(t, time.Since(start), 2*time.Second)

	close(gateway.statusRelease)
	result := <-leaderDone
	require.NoError(t, result.err)
	assert.Equal(t, gateway.rootKey.PublicKeyDER, result.key)
	key, err = a.RootKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gateway.rootKey.PublicKeyDER, key)
	assert.Equal(t, int32(1), gateway.statusHits.Load())
}

func TestRootKeyRetriedAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.RootKey(ctx)
	require.ErrorIs(t, err, context.Canceled)
	// Failures are not cached
	key, err := a.RootKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gateway.rootKey.PublicKeyDER, key)
}

func TestWithRootKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(t, server.URL, agent.WithRootKey(gateway.rootKey.PublicKeyDER))

	_, err := a.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
	require.NoError(t, err)
	assert.Equal(t, int32(0), gateway.statusHits.Load())
}

func TestReadStateWrongRootKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	other := test.NewKeyPair(2)
	a := newTestAgent(t, server.URL, agent.WithRootKey(other.PublicKeyDER))

	cert, err := a.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
	assert.Nil(t, cert)
	var invalidErr *certificate.CertificateInvalidError
	assert.True(t, errors.As(err, &invalidErr), "did not get expected error type: got %T", err)
}

func TestReadStateStaleCertificate(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(
		t,
		server.URL,
		agent.WithClock(func() time.Time { return testNow.Add(time.Hour) }),
	)
	_, err := a.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
	assert.ErrorIs(t, err, certificate.ErrCertificateExpired)

	relaxed := newTestAgent(
		t,
		server.URL,
		agent.WithClock(func() time.Time { return testNow.Add(time.Hour) }),
		agent.WithMaxCertificateAge(0),
	)
	_, err = relaxed.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
	assert.NoError(t, err)
}

func TestReadStateErrorResponses(t *testing.T) {
	defer goleak.VerifyNone(t)
	malformed := []byte{0x85, 0x00}
	noCert, err := cbor.Encode(map[string]any{"other": 1})
	require.NoError(t, err)
	testDefs := []struct {
		name      string
		status    int
		body      []byte
		transport bool
	}{
		{name: "unavailable", status: http.StatusServiceUnavailable, body: []byte("overloaded"), transport: true},
		{name: "rate limited", status: http.StatusTooManyRequests, transport: true},
		{name: "bad request", status: http.StatusBadRequest, body: []byte("invalid request")},
		{name: "not found", status: http.StatusNotFound},
		{name: "malformed body", body: malformed},
		{name: "missing certificate", body: noCert},
		{name: "malformed certificate", body: mustEncode(t, map[string]any{"certificate": malformed})},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			gateway := newFakeGateway(t)
			gateway.readStateStatus = testDef.status
			gateway.readStateBody = testDef.body
			if gateway.readStateBody == nil {
				gateway.readStateBody = []byte{}
			}
			server := httptest.NewServer(gateway)
			defer server.Close()
			a := newTestAgent(t, server.URL)
			cert, err := a.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
			require.Error(t, err)
			assert.Nil(t, cert)
			var transportErr *agent.TransportError
			var protocolErr *agent.ProtocolError
			if testDef.transport {
				assert.True(t, errors.As(err, &transportErr), "expected TransportError, got %T: %s", err, err)
				assert.Equal(t, testDef.status, transportErr.StatusCode)
			} else {
				assert.True(t, errors.As(err, &protocolErr), "expected ProtocolError, got %T: %s", err, err)
			}
		})
	}
}

func mustEncode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := cbor.Encode(v)
	require.NoError(t, err)
	return data
}

func TestReadStateUnreachable(t *testing.T) {
	defer goleak.VerifyNone(t)
	// Grab an address that nothing is listening on
	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()
	a := newTestAgent(t, serverURL)
	cert, err := a.ReadStateRaw(context.Background(), []hashtree.Path{candidPath()}, testCanisterId)
	assert.Nil(t, cert)
	var transportErr *agent.TransportError
	require.True(t, errors.As(err, &transportErr), "did not get expected error type: got %T", err)
	assert.True(t, agent.IsTransportError(err))
}

func TestReadStateCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(t, server.URL, agent.WithRootKey(gateway.rootKey.PublicKeyDER))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cert, err := a.ReadStateRaw(ctx, []hashtree.Path{candidPath()}, testCanisterId)
	assert.Nil(t, cert)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, agent.IsTransportError(err))
}

func TestStatus(t *testing.T) {
	defer goleak.VerifyNone(t)
	gateway := newFakeGateway(t)
	server := httptest.NewServer(gateway)
	defer server.Close()
	a := newTestAgent(t, server.URL)
	status, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.18.0", status.ICAPIVersion)
	assert.Equal(t, gateway.rootKey.PublicKeyDER, status.RootKey)
}

func TestNewInvalidOptions(t *testing.T) {
	_, err := agent.New(agent.WithURL("ftp://example.com"))
	assert.Error(t, err)
	_, err = agent.New(agent.WithURL("://"))
	assert.Error(t, err)
	_, err = agent.New(agent.WithRootKey([]byte{0x01, 0x02}))
	assert.Error(t, err)
	a, err := agent.New()
	require.NoError(t, err)
	assert.Equal(t, agent.DefaultURL, a.URL())
}
