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

package idl

import (
	"context"
	"fmt"
	"sync"

	"github.com/blinklabs-io/icdef/principal"
)

// Caller executes canister method calls on behalf of generated bindings. Arguments are passed as
// values in declaration order and results are decoded into the pointers in rets
type Caller interface {
	// Query performs a read-only call
	Query(ctx context.Context, canisterID principal.Principal, method string, args []any, rets []any) error
	// Update performs a call that may modify canister state
	Update(ctx context.Context, canisterID principal.Principal, method string, args []any, rets []any) error
}

// RawCaller performs calls with Candid-encoded arguments and replies, such as an agent that signs and
// submits requests
type RawCaller interface {
	QueryRaw(ctx context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error)
	UpdateRaw(ctx context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error)
}

// NewCaller returns a Caller that encodes arguments and decodes replies for raw
func NewCaller(raw RawCaller) Caller {
	return &codecCaller{raw: raw}
}

type codecCaller struct {
	raw RawCaller
}

func (c *codecCaller) Query(
	ctx context.Context,
	canisterID principal.Principal,
	method string,
	args []any,
	rets []any,
) error {
	return c.call(ctx, c.raw.QueryRaw, canisterID, method, args, rets)
}

func (c *codecCaller) Update(
	ctx context.Context,
	canisterID principal.Principal,
	method string,
	args []any,
	rets []any,
) error {
	return c.call(ctx, c.raw.UpdateRaw, canisterID, method, args, rets)
}

func (c *codecCaller) call(
	ctx context.Context,
	fn func(context.Context, principal.Principal, string, []byte) ([]byte, error),
	canisterID principal.Principal,
	method string,
	args []any,
	rets []any,
) error {
	arg, err := Marshal(args...)
	if err != nil {
		return fmt.Errorf("encode arguments of %s: %w", method, err)
	}
	reply, err := fn(ctx, canisterID, method, arg)
	if err != nil {
		return err
	}
	// Oneway calls have no reply
	if len(reply) == 0 && len(rets) == 0 {
		return nil
	}
	if err := Unmarshal(reply, rets...); err != nil {
		return fmt.Errorf("decode reply of %s: %w", method, err)
	}
	return nil
}

var (
	defaultCaller      Caller
	defaultCallerMutex sync.RWMutex
)

// SetDefaultCaller sets the caller used by direct-call bindings
func SetDefaultCaller(caller Caller) {
	defaultCallerMutex.Lock()
	defer defaultCallerMutex.Unlock()
	defaultCaller = caller
}

// DefaultCaller returns the caller used by direct-call bindings. If none has been set, a caller that
// always fails with ErrNoCaller is returned
func DefaultCaller() Caller {
	defaultCallerMutex.RLock()
	defer defaultCallerMutex.RUnlock()
	if defaultCaller == nil {
		return noCaller{}
	}
	return defaultCaller
}

type noCaller struct{}

func (noCaller) Query(context.Context, principal.Principal, string, []any, []any) error {
	return ErrNoCaller
}

func (noCaller) Update(context.Context, principal.Principal, string, []any, []any) error {
	return ErrNoCaller
}
