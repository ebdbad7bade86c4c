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

package candid

import (
	"fmt"
	"strings"
)

// SyntaxError is returned when the source text does not conform to the Candid grammar
type SyntaxError struct {
	Pos     Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Pos, e.Message)
}

func syntaxErrorf(pos Position, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// UnresolvedTypeError is returned when a type reference does not name a definition
type UnresolvedTypeError struct {
	Name string
	Pos  Position
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("unbound type identifier %q at %s", e.Name, e.Pos)
}

// DuplicateDefinitionError is returned when a type name, field label or method name is defined more
// than once. Kind is one of "type", "field" or "method"
type DuplicateDefinitionError struct {
	Kind     string
	Name     string
	Pos      Position
	Previous Position
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf(
		"duplicate %s %q at %s (previously defined at %s)",
		e.Kind,
		e.Name,
		e.Pos,
		e.Previous,
	)
}

// InvalidRecursionError is returned when type definitions refer to each other without an intervening
// type constructor, such as "type A = B; type B = A"
type InvalidRecursionError struct {
	Cycle []string
}

func (e *InvalidRecursionError) Error() string {
	return "invalid recursive type definition: " + strings.Join(e.Cycle, " -> ")
}

// TypeMismatchError is returned when a type is used where a different kind of type is required
type TypeMismatchError struct {
	Pos     Position
	Message string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type error at %s: %s", e.Pos, e.Message)
}
