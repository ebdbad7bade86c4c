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
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrInvalidPublicKey   = errors.New("invalid BLS public key")
	ErrNestedDelegation   = errors.New("delegation certificate contains a nested delegation")
	ErrMissingSubnetKey   = errors.New("delegation certificate does not contain the subnet public key")
	ErrCanisterNotInRange = errors.New("canister is not in the delegated subnet's ranges")
	ErrMissingTime        = errors.New("certificate does not contain a time")
	ErrCertificateExpired = errors.New("certificate time is outside the allowed window")
	ErrMissingRootKey     = errors.New("no root key configured")
)

// CertificateInvalidError is returned when a certificate fails verification. The certificate's
// contents must not be used in that case
type CertificateInvalidError struct {
	Reason string
	Cause  error
}

func (e *CertificateInvalidError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("certificate invalid: %s: %s", e.Reason, e.Cause)
	}
	return "certificate invalid: " + e.Reason
}

func (e *CertificateInvalidError) Unwrap() error {
	return e.Cause
}

func invalid(reason string, cause error) error {
	return &CertificateInvalidError{Reason: reason, Cause: cause}
}
