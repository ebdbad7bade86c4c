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

package certificate

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/blinklabs-io/icdef/cbor"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/principal"
)

// VerifyConfig holds the trust anchor and policy used to verify a certificate
type VerifyConfig struct {
	// RootKey is the DER-encoded root public key
	RootKey []byte
	// CanisterId is the canister the certificate is expected to speak for. It must fall within a
	// delegated subnet's canister ranges
	CanisterId principal.Principal
	// MaxAge is the maximum allowed difference between the certificate time and Now. Zero disables
	// the check
	MaxAge time.Duration
	// Now returns the current time. Defaults to time.Now
	Now func() time.Time
}

// Verify checks the certificate's signature, following a delegation if present. It returns a
// *CertificateInvalidError on failure
func (c *Certificate) Verify(cfg VerifyConfig) error {
	if len(cfg.RootKey) == 0 {
		return invalid("no trust anchor", ErrMissingRootKey)
	}
	signingKey, err := c.signingKey(cfg)
	if err != nil {
		return err
	}
	rawKey, err := ParsePublicKeyDER(signingKey)
	if err != nil {
		return invalid("signing key", err)
	}
	if err := VerifyBLSSignature(rawKey, c.SignedMessage(), c.Signature); err != nil {
		return invalid("signature", err)
	}
	if err := c.checkTime(cfg); err != nil {
		return err
	}
	return nil
}

// Time returns the certificate time
func (c *Certificate) Time() (time.Time, error) {
	result := c.Lookup(hashtree.Path{hashtree.Label("time")})
	if !result.Found() {
		return time.Time{}, fmt.Errorf("%w (lookup %s)", ErrMissingTime, result.Status)
	}
	nanos, n := binary.Uvarint(result.Value)
	if n <= 0 || n != len(result.Value) {
		return time.Time{}, fmt.Errorf("%w: malformed LEB128 value", ErrMissingTime)
	}
	return time.Unix(0, int64(nanos)), nil //nolint:gosec // G115: nanoseconds fit until year 2262
}

func (c *Certificate) checkTime(cfg VerifyConfig) error {
	if cfg.MaxAge <= 0 {
		return nil
	}
	certTime, err := c.Time()
	if err != nil {
		return invalid("time", err)
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	skew := now().Sub(certTime)
	if skew > cfg.MaxAge || skew < -cfg.MaxAge {
		return invalid(
			fmt.Sprintf("time %s differs from local time by %s", certTime.UTC(), skew),
			ErrCertificateExpired,
		)
	}
	return nil
}

// signingKey returns the DER key that should have signed the certificate
func (c *Certificate) signingKey(cfg VerifyConfig) ([]byte, error) {
	if c.Delegation == nil {
		return cfg.RootKey, nil
	}
	delegated, err := NewCertificateFromCbor(c.Delegation.Certificate)
	if err != nil {
		return nil, invalid("delegation", err)
	}
	if delegated.Delegation != nil {
		return nil, invalid("delegation", ErrNestedDelegation)
	}
	// The delegation is checked against the root key only. Its time is not checked, since
	// delegations are long-lived
	if err := delegated.Verify(VerifyConfig{RootKey: cfg.RootKey}); err != nil {
		return nil, invalid("delegation", err)
	}
	subnetId, err := principal.New(c.Delegation.SubnetId)
	if err != nil {
		return nil, invalid("delegation subnet ID", err)
	}
	if err := delegated.checkCanisterRanges(subnetId, cfg.CanisterId); err != nil {
		return nil, err
	}
	keyResult := delegated.Lookup(hashtree.Path{
		hashtree.Label("subnet"),
		hashtree.Label(subnetId.Bytes()),
		hashtree.Label("public_key"),
	})
	if !keyResult.Found() {
		return nil, invalid(
			fmt.Sprintf("subnet %s public key lookup: %s", subnetId, keyResult.Status),
			ErrMissingSubnetKey,
		)
	}
	return keyResult.Value, nil
}

// checkCanisterRanges makes sure the subnet is responsible for the canister
func (c *Certificate) checkCanisterRanges(subnetId principal.Principal, canisterId principal.Principal) error {
	rangesResult := c.Lookup(hashtree.Path{
		hashtree.Label("subnet"),
		hashtree.Label(subnetId.Bytes()),
		hashtree.Label("canister_ranges"),
	})
	if !rangesResult.Found() {
		return invalid(
			fmt.Sprintf("subnet %s canister ranges lookup: %s", subnetId, rangesResult.Status),
			ErrCanisterNotInRange,
		)
	}
	var ranges [][]principal.Principal
	if _, err := cbor.Decode(rangesResult.Value, &ranges); err != nil {
		return invalid("decode canister ranges", err)
	}
	for _, r := range ranges {
		if len(r) != 2 {
			return invalid("decode canister ranges", fmt.Errorf("range has %d bounds", len(r)))
		}
		if canisterId.Compare(r[0]) >= 0 && canisterId.Compare(r[1]) <= 0 {
			return nil
		}
	}
	return invalid(
		fmt.Sprintf("canister %s, subnet %s", canisterId, subnetId),
		ErrCanisterNotInRange,
	)
}
