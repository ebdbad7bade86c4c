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

// Package principal implements Internet Computer principals, the opaque identifiers naming canisters
// and users, including their checksummed textual encoding.
package principal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/blinklabs-io/icdef/cbor"
	"github.com/multiformats/go-base32"
)

const (
	// MaxLength is the maximum length of a principal in bytes
	MaxLength = 29

	checksumLength = 4
	groupLength    = 5
)

// Class suffixes for the last byte of a principal
const (
	ClassOpaque    byte = 0x01
	ClassSelfAuth  byte = 0x02
	ClassDerived   byte = 0x03
	ClassAnonymous byte = 0x04
	ClassReserved  byte = 0x7f
)

var textEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").
	WithPadding(base32.NoPadding)

// Principal identifies a canister or a user
type Principal struct {
	Raw []byte
}

// Anonymous returns the anonymous principal, used as the sender of unauthenticated requests
func Anonymous() Principal {
	return Principal{Raw: []byte{ClassAnonymous}}
}

// ManagementCanister returns the principal of the management canister (aaaaa-aa)
func ManagementCanister() Principal {
	return Principal{Raw: []byte{}}
}

// New returns a principal for the specified bytes
func New(raw []byte) (Principal, error) {
	if len(raw) > MaxLength {
		return Principal{}, &InvalidIdentifierError{
			Text:   fmt.Sprintf("%x", raw),
			Reason: fmt.Sprintf("length %d exceeds maximum of %d bytes", len(raw), MaxLength),
		}
	}
	tmp := make([]byte, len(raw))
	copy(tmp, raw)
	return Principal{Raw: tmp}, nil
}

// FromText decodes a principal from its canonical textual form. The text must be lowercase,
// dash-grouped and carry a valid checksum
func FromText(text string) (Principal, error) {
	if text == "" {
		return Principal{}, &InvalidIdentifierError{Text: text, Reason: "empty identifier"}
	}
	undashed := strings.ReplaceAll(text, "-", "")
	decoded, err := textEncoding.DecodeString(strings.ToLower(undashed))
	if err != nil {
		return Principal{}, &InvalidIdentifierError{Text: text, Reason: "invalid base32 encoding", Cause: err}
	}
	if len(decoded) < checksumLength {
		return Principal{}, &InvalidIdentifierError{Text: text, Reason: "too short to contain a checksum"}
	}
	raw := decoded[checksumLength:]
	if len(raw) > MaxLength {
		return Principal{}, &InvalidIdentifierError{
			Text:   text,
			Reason: fmt.Sprintf("length %d exceeds maximum of %d bytes", len(raw), MaxLength),
		}
	}
	expected := checksum(raw)
	if !bytes.Equal(expected, decoded[:checksumLength]) {
		return Principal{}, &InvalidIdentifierError{
			Text:   text,
			Reason: fmt.Sprintf("checksum mismatch: got %x, expected %x", decoded[:checksumLength], expected),
		}
	}
	p := Principal{Raw: raw}
	if p.String() != text {
		return Principal{}, &InvalidIdentifierError{
			Text:   text,
			Reason: fmt.Sprintf("not in canonical form, expected %q", p.String()),
		}
	}
	return p, nil
}

// MustFromText is like FromText but panics on invalid input. It is intended for use with constants
func MustFromText(text string) Principal {
	p, err := FromText(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Bytes returns the raw principal bytes
func (p Principal) Bytes() []byte {
	return p.Raw
}

// String returns the canonical textual encoding of the principal
func (p Principal) String() string {
	data := make([]byte, 0, checksumLength+len(p.Raw))
	data = append(data, checksum(p.Raw)...)
	data = append(data, p.Raw...)
	encoded := textEncoding.EncodeToString(data)
	var sb strings.Builder
	for i := 0; i < len(encoded); i += groupLength {
		if i > 0 {
			sb.WriteByte('-')
		}
		end := min(i+groupLength, len(encoded))
		sb.WriteString(encoded[i:end])
	}
	return sb.String()
}

// Equal reports whether two principals have the same bytes
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p.Raw, other.Raw)
}

// Compare compares principals by their raw bytes, as used for canister ID ranges
func (p Principal) Compare(other Principal) int {
	return bytes.Compare(p.Raw, other.Raw)
}

// IsAnonymous reports whether this is the anonymous principal
func (p Principal) IsAnonymous() bool {
	return len(p.Raw) == 1 && p.Raw[0] == ClassAnonymous
}

// IsManagementCanister reports whether this is the management canister
func (p Principal) IsManagementCanister() bool {
	return len(p.Raw) == 0
}

func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	tmp, err := FromText(string(text))
	if err != nil {
		return err
	}
	*p = tmp
	return nil
}

func (p Principal) MarshalCBOR() ([]byte, error) {
	raw := p.Raw
	if raw == nil {
		raw = []byte{}
	}
	return cbor.Encode(raw)
}

func (p *Principal) UnmarshalCBOR(cborData []byte) error {
	var raw []byte
	if _, err := cbor.Decode(cborData, &raw); err != nil {
		return err
	}
	tmp, err := New(raw)
	if err != nil {
		return err
	}
	*p = tmp
	return nil
}

func checksum(raw []byte) []byte {
	ret := make([]byte, checksumLength)
	binary.BigEndian.PutUint32(ret, crc32.ChecksumIEEE(raw))
	return ret
}
