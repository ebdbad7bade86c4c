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
	"fmt"
)

// TransportError is returned when a request could not be completed: connection failures, I/O errors,
// cancellation, or a server that reports being unavailable (5xx or 429)
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("transport error: %s %s: %s", e.Op, e.URL, e.Cause)
	default:
		return fmt.Sprintf("transport error: %s %s: HTTP status %d", e.Op, e.URL, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ProtocolError is returned when the server's response does not follow the HTTP interface
type ProtocolError struct {
	Op         string
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol error: %s %s", e.Op, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}
