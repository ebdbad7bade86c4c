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

package agent

import (
	"log/slog"
	"net/http"
	"time"
)

type AgentOptionFunc func(*Agent)

// WithURL specifies the base URL of the IC HTTP gateway
func WithURL(url string) AgentOptionFunc {
	return func(a *Agent) {
		a.rawURL = url
	}
}

// WithHTTPClient specifies the HTTP client used for requests
func WithHTTPClient(client *http.Client) AgentOptionFunc {
	return func(a *Agent) {
		a.httpClient = client
	}
}

// WithLogger specifies the logger. The default is slog.Default()
func WithLogger(logger *slog.Logger) AgentOptionFunc {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithRootKey specifies the DER-encoded root key used to verify certificates. When not given, the
// key is fetched from the status endpoint on first use
func WithRootKey(rootKey []byte) AgentOptionFunc {
	return func(a *Agent) {
		a.rootKey = rootKey
	}
}

// WithIngressExpiry specifies how far in the future requests expire
func WithIngressExpiry(expiry time.Duration) AgentOptionFunc {
	return func(a *Agent) {
		a.ingressExpiry = expiry
	}
}

// WithMaxCertificateAge specifies how much a certificate's time may differ from the local time. Zero
// disables the check
func WithMaxCertificateAge(maxAge time.Duration) AgentOptionFunc {
	return func(a *Agent) {
		a.maxCertificateAge = maxAge
	}
}

// WithClock specifies the source of the current time
func WithClock(now func() time.Time) AgentOptionFunc {
	return func(a *Agent) {
		a.now = now
	}
}
