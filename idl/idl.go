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

// Package idl provides the runtime types referenced by generated canister bindings
package idl

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/icdef/principal"
)

// Nat is an unbounded natural number
type Nat struct {
	value *big.Int
}

// NewNat returns a Nat with the specified value
func NewNat(v uint64) Nat {
	return Nat{value: new(big.Int).SetUint64(v)}
}

// NatFromBigInt returns a Nat with the specified value. It fails for negative values
func NatFromBigInt(v *big.Int) (Nat, error) {
	if v.Sign() < 0 {
		return Nat{}, fmt.Errorf("nat value cannot be negative: %s", v)
	}
	return Nat{value: new(big.Int).Set(v)}, nil
}

// BigInt returns a copy of the value as a *big.Int
func (n Nat) BigInt() *big.Int {
	if n.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(n.value)
}

func (n Nat) String() string {
	return n.BigInt().String()
}

func (n Nat) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Nat) UnmarshalText(text []byte) error {
	v, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("invalid nat value: %q", text)
	}
	tmp, err := NatFromBigInt(v)
	if err != nil {
		return err
	}
	*n = tmp
	return nil
}

// Int is an unbounded integer
type Int struct {
	value *big.Int
}

// NewInt returns an Int with the specified value
func NewInt(v int64) Int {
	return Int{value: big.NewInt(v)}
}

// IntFromBigInt returns an Int with the specified value
func IntFromBigInt(v *big.Int) Int {
	return Int{value: new(big.Int).Set(v)}
}

// BigInt returns a copy of the value as a *big.Int
func (i Int) BigInt() *big.Int {
	if i.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.value)
}

func (i Int) String() string {
	return i.BigInt().String()
}

func (i Int) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Int) UnmarshalText(text []byte) error {
	v, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("invalid int value: %q", text)
	}
	i.value = v
	return nil
}

// Null is the Candid null type
type Null struct{}

// Reserved is the Candid reserved type. Values of this type carry no information
type Reserved struct{}

// Empty is the Candid empty type, which has no values
type Empty struct{}

// Func is a reference to a public method of a service
type Func struct {
	Service principal.Principal
	Method  string
}

func (f Func) String() string {
	return fmt.Sprintf("%s.%s", f.Service, f.Method)
}

// Service is a reference to a service
type Service struct {
	ID principal.Principal
}

func (s Service) String() string {
	return s.ID.String()
}

// ErrNoCaller is returned by direct-call bindings when no default caller has been configured
var ErrNoCaller = errors.New("no default caller configured")
