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

// Package hashtree implements the certified state hash tree returned by Internet Computer replicas,
// including its CBOR decoding, root digest computation and path lookup.
package hashtree

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/blinklabs-io/icdef/cbor"
	"github.com/minio/sha256-simd"
)

const (
	NodeTypeEmpty   = 0
	NodeTypeFork    = 1
	NodeTypeLabeled = 2
	NodeTypeLeaf    = 3
	NodeTypePruned  = 4

	DigestSize = sha256.Size
)

var (
	domainEmpty   = domainSep("ic-hashtree-empty")
	domainFork    = domainSep("ic-hashtree-fork")
	domainLabeled = domainSep("ic-hashtree-labeled")
	domainLeaf    = domainSep("ic-hashtree-leaf")
)

// Digest is the SHA-256 digest of a (sub)tree
type Digest [DigestSize]byte

// Label is a single path segment
type Label []byte

// Path is a sequence of labels from the root of the tree
type Path []Label

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('/')
	for i, label := range p {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(label.String())
	}
	return sb.String()
}

// String returns the label as text when printable and as hex otherwise
func (l Label) String() string {
	for _, b := range l {
		if b < 0x20 || b > 0x7e {
			return fmt.Sprintf("0x%x", []byte(l))
		}
	}
	return string(l)
}

// Node is a single node of a hash tree
type Node interface {
	Digest() Digest
	isNode()
}

type Empty struct{}

type Fork struct {
	Left  Node
	Right Node
}

type Labeled struct {
	Label Label
	Tree  Node
}

type Leaf struct {
	Value []byte
}

// Pruned replaces a subtree with its digest. Its contents are unknown, not absent
type Pruned struct {
	Hash Digest
}

func (Empty) isNode()   {}
func (Fork) isNode()    {}
func (Labeled) isNode() {}
func (Leaf) isNode()    {}
func (Pruned) isNode()  {}

func (Empty) Digest() Digest {
	return hashParts(domainEmpty)
}

func (f Fork) Digest() Digest {
	left := f.Left.Digest()
	right := f.Right.Digest()
	return hashParts(domainFork, left[:], right[:])
}

func (l Labeled) Digest() Digest {
	sub := l.Tree.Digest()
	return hashParts(domainLabeled, l.Label, sub[:])
}

func (l Leaf) Digest() Digest {
	return hashParts(domainLeaf, l.Value)
}

func (p Pruned) Digest() Digest {
	return p.Hash
}

// Prune returns a pruned node standing in for the specified node
func Prune(n Node) Pruned {
	return Pruned{Hash: n.Digest()}
}

func (Empty) MarshalCBOR() ([]byte, error) {
	return cbor.Encode([]any{NodeTypeEmpty})
}

func (f Fork) MarshalCBOR() ([]byte, error) {
	return cbor.Encode([]any{NodeTypeFork, f.Left, f.Right})
}

func (l Labeled) MarshalCBOR() ([]byte, error) {
	return cbor.Encode([]any{NodeTypeLabeled, nonNil(l.Label), l.Tree})
}

func (l Leaf) MarshalCBOR() ([]byte, error) {
	return cbor.Encode([]any{NodeTypeLeaf, nonNil(l.Value)})
}

func (p Pruned) MarshalCBOR() ([]byte, error) {
	return cbor.Encode([]any{NodeTypePruned, p.Hash[:]})
}

// HashTree wraps the root node of a tree so it can be embedded in CBOR structures
type HashTree struct {
	Root Node
}

// New returns a HashTree with the specified root node
func New(root Node) HashTree {
	return HashTree{Root: root}
}

// Digest returns the root digest of the tree
func (t HashTree) Digest() Digest {
	if t.Root == nil {
		return Empty{}.Digest()
	}
	return t.Root.Digest()
}

// Lookup looks up the specified path in the tree
func (t HashTree) Lookup(path Path) LookupResult {
	if t.Root == nil {
		return LookupPath(Empty{}, path)
	}
	return LookupPath(t.Root, path)
}

func (t *HashTree) UnmarshalCBOR(cborData []byte) error {
	root, err := DecodeNode(cborData)
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

func (t HashTree) MarshalCBOR() ([]byte, error) {
	if t.Root == nil {
		return Empty{}.MarshalCBOR()
	}
	return cbor.Encode(t.Root)
}

type forkCbor struct {
	cbor.StructAsArray
	Type  uint
	Left  cbor.RawMessage
	Right cbor.RawMessage
}

type labeledCbor struct {
	cbor.StructAsArray
	Type  uint
	Label []byte
	Tree  cbor.RawMessage
}

type leafCbor struct {
	cbor.StructAsArray
	Type  uint
	Value []byte
}

type emptyCbor struct {
	cbor.StructAsArray
	Type uint
}

// DecodeNode decodes a hash tree node and its children from CBOR
func DecodeNode(cborData []byte) (Node, error) {
	nodeType, err := cbor.DecodeIdFromList(cborData)
	if err != nil {
		return nil, fmt.Errorf("hash tree: %w", err)
	}
	switch nodeType {
	case NodeTypeEmpty:
		var tmp emptyCbor
		if _, err := cbor.Decode(cborData, &tmp); err != nil {
			return nil, fmt.Errorf("hash tree: empty node: %w", err)
		}
		return Empty{}, nil
	case NodeTypeFork:
		var tmp forkCbor
		if _, err := cbor.Decode(cborData, &tmp); err != nil {
			return nil, fmt.Errorf("hash tree: fork node: %w", err)
		}
		left, err := DecodeNode(tmp.Left)
		if err != nil {
			return nil, err
		}
		right, err := DecodeNode(tmp.Right)
		if err != nil {
			return nil, err
		}
		return Fork{Left: left, Right: right}, nil
	case NodeTypeLabeled:
		var tmp labeledCbor
		if _, err := cbor.Decode(cborData, &tmp); err != nil {
			return nil, fmt.Errorf("hash tree: labeled node: %w", err)
		}
		sub, err := DecodeNode(tmp.Tree)
		if err != nil {
			return nil, err
		}
		return Labeled{Label: Label(tmp.Label), Tree: sub}, nil
	case NodeTypeLeaf:
		var tmp leafCbor
		if _, err := cbor.Decode(cborData, &tmp); err != nil {
			return nil, fmt.Errorf("hash tree: leaf node: %w", err)
		}
		return Leaf{Value: tmp.Value}, nil
	case NodeTypePruned:
		var tmp leafCbor
		if _, err := cbor.Decode(cborData, &tmp); err != nil {
			return nil, fmt.Errorf("hash tree: pruned node: %w", err)
		}
		if len(tmp.Value) != DigestSize {
			return nil, fmt.Errorf(
				"hash tree: pruned node digest has length %d, expected %d",
				len(tmp.Value),
				DigestSize,
			)
		}
		var ret Pruned
		copy(ret.Hash[:], tmp.Value)
		return ret, nil
	default:
		return nil, fmt.Errorf("hash tree: unknown node type %d", nodeType)
	}
}

func domainSep(s string) []byte {
	ret := make([]byte, 0, len(s)+1)
	ret = append(ret, byte(len(s)))
	ret = append(ret, s...)
	return ret
}

func hashParts(parts ...[]byte) Digest {
	h := sha256.New()
	for _, part := range parts {
		h.Write(part)
	}
	var ret Digest
	copy(ret[:], h.Sum(nil))
	return ret
}

// nonNil avoids nil slices being encoded as CBOR null
func nonNil(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}

func compareLabels(a, b Label) int {
	return bytes.Compare(a, b)
}
