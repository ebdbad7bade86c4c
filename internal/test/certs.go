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

package test

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/blinklabs-io/icdef/cbor"
	"github.com/blinklabs-io/icdef/certificate"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/principal"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// CandidServiceLabel is the metadata label holding a canister's public interface
const CandidServiceLabel = "candid:service"

// KeyPair is a deterministic BLS key pair used to sign test certificates
type KeyPair struct {
	secret       *big.Int
	PublicKey    []byte
	PublicKeyDER []byte
}

// NewKeyPair returns a key pair derived from the specified seed
func NewKeyPair(seed int64) *KeyPair {
	return NewKeyPairFromSecret(seed*0x5eed5eed + 7)
}

// NewKeyPairFromSecret returns the key pair with the specified secret scalar
func NewKeyPairFromSecret(secretValue int64) *KeyPair {
	secret := big.NewInt(secretValue)
	_, _, _, g2Gen := bls12381.Generators()
	var pubKey bls12381.G2Affine
	pubKey.ScalarMultiplication(&g2Gen, secret)
	pubKeyBytes := pubKey.Bytes()
	der, err := certificate.MarshalPublicKeyDER(pubKeyBytes[:])
	if err != nil {
		panic(fmt.Sprintf("error encoding public key: %s", err))
	}
	return &KeyPair{
		secret:       secret,
		PublicKey:    pubKeyBytes[:],
		PublicKeyDER: der,
	}
}

// Sign signs the message
func (k *KeyPair) Sign(msg []byte) []byte {
	hashPoint, err := bls12381.HashToG1(msg, []byte(certificate.BLSDomainSeparationTag))
	if err != nil {
		panic(fmt.Sprintf("error hashing message: %s", err))
	}
	var sig bls12381.G1Affine
	sig.ScalarMultiplication(&hashPoint, k.secret)
	sigBytes := sig.Bytes()
	return sigBytes[:]
}

// Certify builds a signed certificate over the tree and returns it along with its CBOR encoding
func (k *KeyPair) Certify(root hashtree.Node, delegation *certificate.Delegation) (*certificate.Certificate, []byte) {
	cert := &certificate.Certificate{
		Tree:       hashtree.New(root),
		Delegation: delegation,
	}
	cert.Signature = k.Sign(cert.SignedMessage())
	cborData, err := cbor.Encode(cert)
	if err != nil {
		panic(fmt.Sprintf("error encoding certificate: %s", err))
	}
	return cert, cborData
}

// Delegate builds a delegation from the key pair (acting as root) to the subnet key
func (k *KeyPair) Delegate(
	subnetId principal.Principal,
	subnetKey *KeyPair,
	ranges [][2]principal.Principal,
	now time.Time,
) *certificate.Delegation {
	rangesData, err := cbor.Encode(ranges)
	if err != nil {
		panic(fmt.Sprintf("error encoding canister ranges: %s", err))
	}
	tree := LabeledFork(
		Labeled("subnet", LabeledFork(
			Labeled(string(subnetId.Bytes()), LabeledFork(
				Labeled("canister_ranges", hashtree.Leaf{Value: rangesData}),
				Labeled("public_key", hashtree.Leaf{Value: subnetKey.PublicKeyDER}),
			)),
		)),
		TimeLabel(now),
	)
	_, cborData := k.Certify(tree, nil)
	return &certificate.Delegation{
		SubnetId:    subnetId.Bytes(),
		Certificate: cborData,
	}
}

// Labeled returns a labeled node
func Labeled(label string, node hashtree.Node) hashtree.Labeled {
	return hashtree.Labeled{Label: hashtree.Label(label), Tree: node}
}

// LabeledFork builds a well-formed subtree out of labeled children, sorted by label
func LabeledFork(children ...hashtree.Labeled) hashtree.Node {
	if len(children) == 0 {
		return hashtree.Empty{}
	}
	sorted := slices.Clone(children)
	slices.SortFunc(sorted, func(a, b hashtree.Labeled) int {
		return compareBytes(a.Label, b.Label)
	})
	nodes := make([]hashtree.Node, 0, len(sorted))
	for _, child := range sorted {
		nodes = append(nodes, child)
	}
	for len(nodes) > 1 {
		next := make([]hashtree.Node, 0, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			if i+1 < len(nodes) {
				next = append(next, hashtree.Fork{Left: nodes[i], Right: nodes[i+1]})
			} else {
				next = append(next, nodes[i])
			}
		}
		nodes = next
	}
	return nodes[0]
}

// TimeLabel returns the "time" entry of a state tree
func TimeLabel(now time.Time) hashtree.Labeled {
	buf := binary.AppendUvarint(nil, uint64(now.UnixNano())) //nolint:gosec // G115: test times are positive
	return Labeled("time", hashtree.Leaf{Value: buf})
}

// CanisterMetadataTree returns a state tree with the canister's candid:service metadata and the time
func CanisterMetadataTree(canisterId principal.Principal, candid string, now time.Time) hashtree.Node {
	return LabeledFork(
		Labeled("canister", LabeledFork(
			Labeled(string(canisterId.Bytes()), LabeledFork(
				Labeled("metadata", LabeledFork(
					Labeled(CandidServiceLabel, hashtree.Leaf{Value: []byte(candid)}),
				)),
			)),
		)),
		TimeLabel(now),
	)
}

func compareBytes(a, b []byte) int {
	return slices.Compare(a, b)
}
