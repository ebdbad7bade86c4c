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
	encasn1 "encoding/asn1"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidBLS12381Algorithm = encasn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 44668, 5, 3, 1, 2, 1}
	oidBLS12381Curve     = encasn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 44668, 5, 3, 2, 1}
)

// ParsePublicKeyDER extracts the raw BLS public key from a DER-encoded SubjectPublicKeyInfo, as
// served by the status endpoint and stored in delegation certificates
func ParsePublicKeyDER(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var spki, algorithm cryptobyte.String
	if !input.ReadASN1(&spki, asn1.SEQUENCE) || !input.Empty() {
		return nil, fmt.Errorf("%w: malformed SubjectPublicKeyInfo", ErrInvalidPublicKey)
	}
	if !spki.ReadASN1(&algorithm, asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: malformed algorithm identifier", ErrInvalidPublicKey)
	}
	var algorithmOid, curveOid encasn1.ObjectIdentifier
	if !algorithm.ReadASN1ObjectIdentifier(&algorithmOid) ||
		!algorithm.ReadASN1ObjectIdentifier(&curveOid) ||
		!algorithm.Empty() {
		return nil, fmt.Errorf("%w: malformed algorithm identifier", ErrInvalidPublicKey)
	}
	if !algorithmOid.Equal(oidBLS12381Algorithm) {
		return nil, fmt.Errorf("%w: unexpected algorithm %s", ErrInvalidPublicKey, algorithmOid)
	}
	if !curveOid.Equal(oidBLS12381Curve) {
		return nil, fmt.Errorf("%w: unexpected curve %s", ErrInvalidPublicKey, curveOid)
	}
	var key encasn1.BitString
	if !spki.ReadASN1BitString(&key) || !spki.Empty() {
		return nil, fmt.Errorf("%w: malformed key bit string", ErrInvalidPublicKey)
	}
	if key.BitLength != BLSPublicKeySize*8 {
		return nil, fmt.Errorf(
			"%w: key has %d bits, expected %d",
			ErrInvalidPublicKey,
			key.BitLength,
			BLSPublicKeySize*8,
		)
	}
	return key.Bytes, nil
}

// MarshalPublicKeyDER wraps a raw BLS public key in a DER-encoded SubjectPublicKeyInfo
func MarshalPublicKeyDER(publicKey []byte) ([]byte, error) {
	if len(publicKey) != BLSPublicKeySize {
		return nil, errors.New("invalid BLS public key length")
	}
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidBLS12381Algorithm)
			b.AddASN1ObjectIdentifier(oidBLS12381Curve)
		})
		b.AddASN1BitString(publicKey)
	})
	return b.Bytes()
}
