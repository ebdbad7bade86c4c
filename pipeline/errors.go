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

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/icdef/agent"
	"github.com/blinklabs-io/icdef/bindings"
	"github.com/blinklabs-io/icdef/candid"
	"github.com/blinklabs-io/icdef/certificate"
	"github.com/blinklabs-io/icdef/hashtree"
	"github.com/blinklabs-io/icdef/principal"
)

// Kind is the category of a pipeline failure
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidIdentifier
	KindTransport
	KindCertificateInvalid
	KindProtocol
	KindInterfaceUnavailable
	KindInvalidEncoding
	KindSyntax
	KindUnresolvedType
	KindDuplicateDefinition
	KindInvalidRecursion
	KindTypeMismatch
	KindUnsupportedConstruct
	KindConfig
)

var kindNames = map[Kind]string{
	KindUnknown:              "Unknown",
	KindInvalidIdentifier:    "InvalidIdentifier",
	KindTransport:            "Transport",
	KindCertificateInvalid:   "CertificateInvalid",
	KindProtocol:             "Protocol",
	KindInterfaceUnavailable: "InterfaceUnavailable",
	KindInvalidEncoding:      "InvalidEncoding",
	KindSyntax:               "Syntax",
	KindUnresolvedType:       "UnresolvedType",
	KindDuplicateDefinition:  "DuplicateDefinition",
	KindInvalidRecursion:     "InvalidRecursion",
	KindTypeMismatch:         "TypeMismatch",
	KindUnsupportedConstruct: "UnsupportedConstruct",
	KindConfig:               "Config",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every pipeline run that fails. Cause holds the error from the failing stage
type Error struct {
	Kind       Kind
	Stage      string
	CanisterID string
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Stage != "" {
		msg += " in " + e.Stage
	}
	if e.CanisterID != "" {
		msg += " for canister " + e.CanisterID
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a pipeline Error of the specified kind
func IsKind(err error, kind Kind) bool {
	var pipelineErr *Error
	if !errors.As(err, &pipelineErr) {
		return false
	}
	return pipelineErr.Kind == kind
}

// InterfaceUnavailableError is returned when the certified tree does not contain the interface. Outcome
// keeps the lookup result: LookupAbsent is permanent, while LookupUnknown may change once the tree is
// pruned differently
type InterfaceUnavailableError struct {
	Outcome hashtree.LookupStatus
	Path    hashtree.Path
}

func (e *InterfaceUnavailableError) Error() string {
	return fmt.Sprintf("interface unavailable at %s: lookup outcome %s", e.Path, e.Outcome)
}

// Retryable reports whether a later query could return the interface
func (e *InterfaceUnavailableError) Retryable() bool {
	return e.Outcome == hashtree.LookupUnknown
}

// InvalidEncodingError is returned when the interface metadata is not valid UTF-8 text
type InvalidEncodingError struct {
	Path   hashtree.Path
	Offset int
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("metadata at %s is not valid UTF-8 (offset %d)", e.Path, e.Offset)
}

// Classify returns the Kind for an error produced by one of the stages
func Classify(err error) Kind {
	var (
		pipelineErr    *Error
		identifierErr  *principal.InvalidIdentifierError
		certErr        *certificate.CertificateInvalidError
		transportErr   *agent.TransportError
		protocolErr    *agent.ProtocolError
		unavailableErr *InterfaceUnavailableError
		encodingErr    *InvalidEncodingError
		syntaxErr      *candid.SyntaxError
		unresolvedErr  *candid.UnresolvedTypeError
		duplicateErr   *candid.DuplicateDefinitionError
		recursionErr   *candid.InvalidRecursionError
		mismatchErr    *candid.TypeMismatchError
		unsupportedErr *bindings.UnsupportedConstructError
		configErr      *bindings.ConfigError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &pipelineErr):
		return pipelineErr.Kind
	case errors.As(err, &identifierErr):
		return KindInvalidIdentifier
	case errors.As(err, &certErr):
		return KindCertificateInvalid
	case errors.As(err, &transportErr),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	case errors.As(err, &protocolErr):
		return KindProtocol
	case errors.As(err, &unavailableErr):
		return KindInterfaceUnavailable
	case errors.As(err, &encodingErr):
		return KindInvalidEncoding
	case errors.As(err, &syntaxErr):
		return KindSyntax
	case errors.As(err, &unresolvedErr):
		return KindUnresolvedType
	case errors.As(err, &duplicateErr):
		return KindDuplicateDefinition
	case errors.As(err, &recursionErr):
		return KindInvalidRecursion
	case errors.As(err, &mismatchErr):
		return KindTypeMismatch
	case errors.As(err, &unsupportedErr):
		return KindUnsupportedConstruct
	case errors.As(err, &configErr):
		return KindConfig
	default:
		return KindUnknown
	}
}

// wrapError wraps a stage error into an Error, leaving existing pipeline errors untouched
func wrapError(err error, stage string, canisterID string) error {
	if err == nil {
		return nil
	}
	var pipelineErr *Error
	if errors.As(err, &pipelineErr) {
		return err
	}
	return &Error{
		Kind:       Classify(err),
		Stage:      stage,
		CanisterID: canisterID,
		Cause:      err,
	}
}
