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

// Package certificate implements decoding and verification of Internet Computer state certificates.
//
// A certificate carries a hash tree and a BLS signature over the tree's root digest. The signature is
// made either by the root (NNS) key or by a subnet key, in which case the certificate carries a
// delegation: a second certificate, signed by the root key, that vouches for the subnet key and for the
// canister ID ranges the subnet is responsible for.
package certificate

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/icdef/cbor"
	"github.com/blinklabs-io/icdef/hashtree"
)

// Certificate is a certified hash tree
type Certificate struct {
	cbor.DecodeStoreCbor
	Tree       hashtree.HashTree `cbor:"tree"`
	Signature  []byte            `cbor:"signature"`
	Delegation *Delegation       `cbor:"delegation,omitempty"`
}

// Delegation vouches for the subnet key that signed a certificate
type Delegation struct {
	SubnetId    []byte `cbor:"subnet_id"`
	Certificate []byte `cbor:"certificate"`
}

// NewCertificateFromCbor decodes a certificate from CBOR
func NewCertificateFromCbor(cborData []byte) (*Certificate, error) {
	var c Certificate
	if _, err := cbor.Decode(cborData, &c); err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	if c.Tree.Root == nil {
		return nil, errors.New("decode certificate: missing tree")
	}
	if len(c.Signature) == 0 {
		return nil, errors.New("decode certificate: missing signature")
	}
	if c.Delegation != nil {
		if len(c.Delegation.SubnetId) == 0 || len(c.Delegation.Certificate) == 0 {
			return nil, errors.New("decode certificate: incomplete delegation")
		}
	}
	return &c, nil
}

func (c *Certificate) UnmarshalCBOR(cborData []byte) error {
	return c.UnmarshalCborGeneric(cborData, c)
}

// Lookup looks up the specified path in the certificate's tree
func (c *Certificate) Lookup(path hashtree.Path) hashtree.LookupResult {
	return c.Tree.Lookup(path)
}

// RootDigest returns the root digest of the certificate's tree
func (c *Certificate) RootDigest() hashtree.Digest {
	return c.Tree.Digest()
}

// SignedMessage returns the message that the certificate's signature covers
func (c *Certificate) SignedMessage() []byte {
	root := c.RootDigest()
	ret := make([]byte, 0, len(domainStateRoot)+len(root))
	ret = append(ret, domainStateRoot...)
	ret = append(ret, root[:]...)
	return ret
}

// domainStateRoot is the domain separator for certificate signatures
var domainStateRoot = append([]byte{byte(len("ic-state-root"))}, "ic-state-root"...)
