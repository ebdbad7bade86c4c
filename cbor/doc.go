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

// Package cbor provides CBOR encoding/decoding utilities for Internet Computer HTTP API messages.
//
// This package wraps github.com/fxamacker/cbor/v2 with the conventions used by the replica:
//
//   - Requests and responses are usually prefixed with the self-describe tag (55799).
//     Decode strips it transparently and EncodeSelfDescribed adds it.
//   - Map keys are encoded in core deterministic order so request envelopes are reproducible.
//   - Unknown map fields are tolerated on decode, since replicas add fields over time.
//
// # Key Types
//
//   - RawMessage: Deferred decoding (like json.RawMessage)
//   - Tag: CBOR semantic tags
//   - DecodeStoreCbor: Embed to preserve original CBOR bytes (used for nested certificates)
package cbor
