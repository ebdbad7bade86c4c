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
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// BLSDomainSeparationTag is the hash-to-curve DST for IC signatures (minimal-signature-size scheme,
// signatures in G1 and keys in G2)
const BLSDomainSeparationTag = "BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_"

const (
	BLSSignatureSize = bls12381.SizeOfG1AffineCompressed
	BLSPublicKeySize = bls12381.SizeOfG2AffineCompressed
)

// VerifyBLSSignature verifies a BLS signature made over msg with the raw (compressed G2) public key
func VerifyBLSSignature(publicKey []byte, msg []byte, signature []byte) error {
	if len(signature) != BLSSignatureSize {
		return fmt.Errorf(
			"%w: signature has length %d, expected %d",
			ErrInvalidSignature,
			len(signature),
			BLSSignatureSize,
		)
	}
	if len(publicKey) != BLSPublicKeySize {
		return fmt.Errorf(
			"%w: key has length %d, expected %d",
			ErrInvalidPublicKey,
			len(publicKey),
			BLSPublicKeySize,
		)
	}
	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(signature); err != nil {
		return fmt.Errorf("%w: decode signature: %s", ErrInvalidSignature, err)
	}
	var pubKey bls12381.G2Affine
	if _, err := pubKey.SetBytes(publicKey); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	if pubKey.IsInfinity() {
		return fmt.Errorf("%w: point at infinity", ErrInvalidPublicKey)
	}
	hashPoint, err := bls12381.HashToG1(msg, []byte(BLSDomainSeparationTag))
	if err != nil {
		return fmt.Errorf("hash to G1: %w", err)
	}
	// e(sig, g2) == e(H(m), pubKey), checked as e(sig, -g2) * e(H(m), pubKey) == 1
	_, _, _, g2Gen := bls12381.Generators()
	var negG2Gen bls12381.G2Affine
	negG2Gen.Neg(&g2Gen)
	valid, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig, hashPoint},
		[]bls12381.G2Affine{negG2Gen, pubKey},
	)
	if err != nil {
		return fmt.Errorf("pairing check: %w", err)
	}
	if !valid {
		return ErrInvalidSignature
	}
	return nil
}
