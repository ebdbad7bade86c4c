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

// Package agent implements an anonymous client for the Internet Computer HTTP interface, limited to
// certified state reads
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/icdef/cbor"
	"github.com/blinklabs-io/icdef/certificate"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/principal"
)

const (
	DefaultURL               = "https://icp-api.io"
	DefaultIngressExpiry     = 3 * time.Minute
	DefaultMaxCertificateAge = 5 * time.Minute
	DefaultTimeout           = 30 * time.Second

	contentTypeCbor = "application/cbor"
	// Responses larger than this are rejected
	maxResponseSize = 16 * 1024 * 1024
	// Amount of an error response body included in errors
	maxErrorMessageSize = 512
)

// Agent reads certified state from the Internet Computer. It is safe for concurrent use
type Agent struct {
	rawURL            string
	baseURL           *url.URL
	httpClient        *http.Client
	logger            *slog.Logger
	ingressExpiry     time.Duration
	maxCertificateAge time.Duration
	now               func() time.Time
	// The root key is fetched at most once. rootKeyFetch is closed when an in-flight fetch ends
	rootKey      []byte
	rootKeyFetch chan struct{}
	rootKeyMutex sync.Mutex
}

// New returns an Agent configured with the specified options
func New(opts ...AgentOptionFunc) (*Agent, error) {
	a := &Agent{
		rawURL:            DefaultURL,
		ingressExpiry:     DefaultIngressExpiry,
		maxCertificateAge: DefaultMaxCertificateAge,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "agent")
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if a.now == nil {
		a.now = time.Now
	}
	baseURL, err := url.Parse(a.rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", a.rawURL, err)
	}
	if (baseURL.Scheme != "http" && baseURL.Scheme != "https") || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: expected http or https URL with a host", a.rawURL)
	}
	a.baseURL = baseURL
	if a.rootKey != nil {
		if _, err := certificate.ParsePublicKeyDER(a.rootKey); err != nil {
			return nil, fmt.Errorf("invalid root key: %w", err)
		}
	}
	return a, nil
}

// URL returns the base URL of the gateway
func (a *Agent) URL() string {
	return a.baseURL.String()
}

// Status is the response of the status endpoint
type Status struct {
	ICAPIVersion        string `cbor:"ic_api_version"`
	ImplVersion         string `cbor:"impl_version,omitempty"`
	ReplicaHealthStatus string `cbor:"replica_health_status,omitempty"`
	RootKey             []byte `cbor:"root_key,omitempty"`
}

// Status queries the status endpoint
func (a *Agent) Status(ctx context.Context) (*Status, error) {
	statusURL := a.statusURL()
	body, err := a.do(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, err
	}
	var status Status
	if _, err := cbor.Decode(body, &status); err != nil {
		return nil, &ProtocolError{Op: http.MethodGet, URL: statusURL, Message: "decode status", Cause: err}
	}
	return &status, nil
}

// RootKey returns the DER-encoded root key, fetching it from the status endpoint if it was not
// configured. The fetched key is cached for the lifetime of the Agent. Concurrent callers share a
// single fetch, and each stops waiting when its own context is done
func (a *Agent) RootKey(ctx context.Context) ([]byte, error) {
	for {
		a.rootKeyMutex.Lock()
		if a.rootKey != nil {
			rootKey := a.rootKey
			a.rootKeyMutex.Unlock()
			return rootKey, nil
		}
		fetch := a.rootKeyFetch
		if fetch == nil {
			fetch = make(chan struct{})
			a.rootKeyFetch = fetch
			a.rootKeyMutex.Unlock()
			rootKey, err := a.fetchRootKey(ctx)
			a.rootKeyMutex.Lock()
			if err == nil {
				a.rootKey = rootKey
			}
			a.rootKeyFetch = nil
			a.rootKeyMutex.Unlock()
			close(fetch)
			return rootKey, err
		}
		a.rootKeyMutex.Unlock()
		select {
		case <-ctx.Done():
			return nil, &TransportError{Op: http.MethodGet, URL: a.statusURL(), Cause: ctx.Err()}
		case <-fetch:
			// A failed fetch is retried by the next waiter
		}
	}
}

func (a *Agent) fetchRootKey(ctx context.Context) ([]byte, error) {
	status, err := a.Status(ctx)
	if err != nil {
		return nil, err
	}
	statusURL := a.statusURL()
	if len(status.RootKey) == 0 {
		return nil, &ProtocolError{Op: http.MethodGet, URL: statusURL, Message: "status does not contain a root key"}
	}
	if _, err := certificate.ParsePublicKeyDER(status.RootKey); err != nil {
		return nil, &ProtocolError{Op: http.MethodGet, URL: statusURL, Message: "invalid root key", Cause: err}
	}
	a.logger.Debug(
		"fetched root key",
		"url", statusURL,
		"impl_version", status.ImplVersion,
	)
	return status.RootKey, nil
}

func (a *Agent) statusURL() string {
	return a.baseURL.JoinPath("api", "v2", "status").String()
}

type readStateContent struct {
	RequestType   string              `cbor:"request_type"`
	Sender        principal.Principal `cbor:"sender"`
	Paths         []hashtree.Path     `cbor:"paths"`
	IngressExpiry uint64              `cbor:"ingress_expiry"`
}

type readStateEnvelope struct {
	Content readStateContent `cbor:"content"`
}

type readStateResponse struct {
	Certificate []byte `cbor:"certificate"`
}

// ReadStateRaw reads the specified paths from the state tree of the subnet hosting the canister. The
// returned certificate has been verified against the root key
func (a *Agent) ReadStateRaw(
	ctx context.Context,
	paths []hashtree.Path,
	canisterID principal.Principal,
) (*certificate.Certificate, error) {
	rootKey, err := a.RootKey(ctx)
	if err != nil {
		return nil, err
	}
	envelope := readStateEnvelope{
		Content: readStateContent{
			RequestType:   "read_state",
			Sender:        principal.Anonymous(),
			Paths:         paths,
			IngressExpiry: uint64(a.now().Add(a.ingressExpiry).UnixNano()), //nolint:gosec // G115: current time is positive
		},
	}
	reqBody, err := cbor.EncodeSelfDescribed(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode read_state request: %w", err)
	}
	readStateURL := a.baseURL.JoinPath("api", "v2", "canister", canisterID.String(), "read_state").String()
	a.logger.Debug(
		"reading state",
		"canister_id", canisterID.String(),
		"paths", len(paths),
	)
	respBody, err := a.do(ctx, http.MethodPost, readStateURL, reqBody)
	if err != nil {
		return nil, err
	}
	var resp readStateResponse
	if _, err := cbor.Decode(respBody, &resp); err != nil {
		return nil, &ProtocolError{Op: http.MethodPost, URL: readStateURL, Message: "decode response", Cause: err}
	}
	if len(resp.Certificate) == 0 {
		return nil, &ProtocolError{Op: http.MethodPost, URL: readStateURL, Message: "response does not contain a certificate"}
	}
	cert, err := certificate.NewCertificateFromCbor(resp.Certificate)
	if err != nil {
		return nil, &ProtocolError{Op: http.MethodPost, URL: readStateURL, Message: "decode certificate", Cause: err}
	}
	verifyConfig := certificate.VerifyConfig{
		RootKey:    rootKey,
		CanisterId: canisterID,
		MaxAge:     a.maxCertificateAge,
		Now:        a.now,
	}
	if err := cert.Verify(verifyConfig); err != nil {
		return nil, err
	}
	return cert, nil
}

// do performs a request and returns the body of a successful response
func (a *Agent) do(ctx context.Context, method string, reqURL string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, &TransportError{Op: method, URL: reqURL, Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeCbor)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &TransportError{Op: method, URL: reqURL, Cause: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, &TransportError{Op: method, URL: reqURL, StatusCode: resp.StatusCode, Cause: err}
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		a.logger.Debug(
			"gateway unavailable",
			"url", reqURL,
			"status", resp.StatusCode,
		)
		return nil, &TransportError{Op: method, URL: reqURL, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ProtocolError{
			Op:         method,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}
	if len(respBody) > maxResponseSize {
		return nil, &ProtocolError{
			Op:      method,
			URL:     reqURL,
			Message: fmt.Sprintf("response exceeds %d bytes", maxResponseSize),
		}
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "" &&
		!strings.HasPrefix(contentType, contentTypeCbor) {
		return nil, &ProtocolError{
			Op:         method,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Message:    "unexpected content type " + contentType,
		}
	}
	return respBody, nil
}

func errorMessage(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessageSize {
		msg = msg[:maxErrorMessageSize] + "..."
	}
	return msg
}

// IsTransportError reports whether the error is a TransportError
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
