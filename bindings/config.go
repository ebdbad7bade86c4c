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

// Package bindings compiles checked Candid interfaces into Go client source code
package bindings

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/blinklabs-io/icdef/principal"
)

// Target selects the shape of the generated client
type Target int

const (
	// TargetAgent generates a Service type whose methods call through an idl.Caller it holds
	TargetAgent Target = iota
	// TargetDirectCall generates package-level functions bound to CanisterID, which call through
	// idl.DefaultCaller()
	TargetDirectCall
)

func (t Target) String() string {
	switch t {
	case TargetAgent:
		return "agent"
	case TargetDirectCall:
		return "canister"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

var targetNames = map[string]Target{
	"agent":             TargetAgent,
	"agent-style":       TargetAgent,
	"canister":          TargetDirectCall,
	"direct-call":       TargetDirectCall,
	"direct-call-style": TargetDirectCall,
}

// ParseTarget parses a target name
func ParseTarget(name string) (Target, error) {
	target, ok := targetNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &ConfigError{
			Field:  "target",
			Reason: fmt.Sprintf("unknown target %q (expected agent or canister)", name),
		}
	}
	return target, nil
}

func (t *Target) UnmarshalText(text []byte) error {
	tmp, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = tmp
	return nil
}

func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

const (
	DefaultPackageName = "canister"
	DefaultServiceName = "Service"
)

// Config controls code generation
type Config struct {
	// CanisterID is emitted as the CanisterID variable. It is required for TargetDirectCall
	CanisterID  *principal.Principal
	Target      Target
	PackageName string
	ServiceName string
}

func (c Config) withDefaults() Config {
	if c.PackageName == "" {
		c.PackageName = DefaultPackageName
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	return c
}

func (c Config) validate() error {
	if !token.IsIdentifier(c.PackageName) || c.PackageName == "_" {
		return &ConfigError{Field: "package", Reason: fmt.Sprintf("%q is not a valid package name", c.PackageName)}
	}
	if !token.IsIdentifier(c.ServiceName) || !token.IsExported(c.ServiceName) {
		return &ConfigError{
			Field:  "service",
			Reason: fmt.Sprintf("%q is not a valid exported type name", c.ServiceName),
		}
	}
	switch c.Target {
	case TargetAgent:
	case TargetDirectCall:
		if c.CanisterID == nil {
			return &ConfigError{Field: "canister", Reason: "direct-call bindings require a canister ID"}
		}
	default:
		return &ConfigError{Field: "target", Reason: fmt.Sprintf("unknown target %s", c.Target)}
	}
	return nil
}

// ConfigError is returned for invalid code generation settings
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s setting: %s", e.Field, e.Reason)
}

// UnsupportedConstructError is returned when a type has no Go representation
type UnsupportedConstructError struct {
	Construct string
}

func (e *UnsupportedConstructError) Error() string {
	return "unsupported Candid construct: " + e.Construct
}
