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

// Package candid parses and type checks Candid interface descriptions.
//
// Parse turns source text into a Prog. CheckProg resolves the program's definitions into a TypeEnv and
// returns the ServiceSignature of its actor, if any. The Type values produced by the checker are
// normalized: record and variant fields are sorted by field ID and service methods by name.
package candid

import (
	"strconv"

	"github.com/blinklabs-io/icdef/idl"
)

// Type is a Candid type
type Type interface {
	isType()
}

// PrimType is a primitive Candid type
type PrimType int

const (
	Nat PrimType = iota
	Nat8
	Nat16
	Nat32
	Nat64
	Int
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Bool
	Text
	Null
	Reserved
	Empty
	Principal
)

var primNames = []string{
	Nat:       "nat",
	Nat8:      "nat8",
	Nat16:     "nat16",
	Nat32:     "nat32",
	Nat64:     "nat64",
	Int:       "int",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Float32:   "float32",
	Float64:   "float64",
	Bool:      "bool",
	Text:      "text",
	Null:      "null",
	Reserved:  "reserved",
	Empty:     "empty",
	Principal: "principal",
}

var primByName = func() map[string]PrimType {
	ret := make(map[string]PrimType, len(primNames))
	for i, name := range primNames {
		ret[name] = PrimType(i)
	}
	return ret
}()

func (p PrimType) String() string {
	if int(p) < 0 || int(p) >= len(primNames) {
		return "PrimType(" + strconv.Itoa(int(p)) + ")"
	}
	return primNames[p]
}

// VarType is a reference to a named type definition
type VarType struct {
	Name string
	Pos  Position
}

// OptType is an optional value
type OptType struct {
	Elem Type
}

// VecType is a sequence of values. blob is parsed as vec nat8
type VecType struct {
	Elem Type
}

// RecordType is a record. Fields without a label are positional
type RecordType struct {
	Fields []Field
}

// VariantType is a tagged union
type VariantType struct {
	Fields []Field
}

// FuncType is a function reference or a service method signature
type FuncType struct {
	Args    []ArgType
	Results []ArgType
	Modes   []FuncMode
}

// ServiceType is a service reference or an actor's interface
type ServiceType struct {
	Methods []Method
}

// ClassType is a service constructor, only valid as the type of an actor
type ClassType struct {
	Args    []ArgType
	Service Type
}

func (PrimType) isType()    {}
func (VarType) isType()     {}
func (OptType) isType()     {}
func (VecType) isType()     {}
func (RecordType) isType()  {}
func (VariantType) isType() {}
func (FuncType) isType()    {}
func (ServiceType) isType() {}
func (ClassType) isType()   {}

// IsBlob reports whether the type is vec nat8
func IsBlob(t Type) bool {
	vec, ok := t.(VecType)
	if !ok {
		return false
	}
	prim, ok := vec.Elem.(PrimType)
	return ok && prim == Nat8
}

// IsTuple reports whether the record only has positional fields, numbered from 0
func (r RecordType) IsTuple() bool {
	if len(r.Fields) == 0 {
		return false
	}
	for i, field := range r.Fields {
		if field.Label.Kind != LabelUnnamed || field.Label.ID != uint32(i) { //nolint:gosec // G115: field count fits in uint32
			return false
		}
	}
	return true
}

// FuncMode is a function annotation
type FuncMode int

const (
	ModeQuery FuncMode = iota
	ModeCompositeQuery
	ModeOneway
)

func (m FuncMode) String() string {
	switch m {
	case ModeQuery:
		return "query"
	case ModeCompositeQuery:
		return "composite_query"
	case ModeOneway:
		return "oneway"
	default:
		return "FuncMode(" + strconv.Itoa(int(m)) + ")"
	}
}

// IsQuery reports whether the function is a query or composite query
func (f FuncType) IsQuery() bool {
	for _, mode := range f.Modes {
		if mode == ModeQuery || mode == ModeCompositeQuery {
			return true
		}
	}
	return false
}

// IsOneway reports whether the function is oneway
func (f FuncType) IsOneway() bool {
	for _, mode := range f.Modes {
		if mode == ModeOneway {
			return true
		}
	}
	return false
}

// ArgType is a function argument or result. Name is optional and has no effect on the type
type ArgType struct {
	Name string
	Type Type
}

// Method is a service method. Type is a FuncType, or a VarType that resolves to one
type Method struct {
	Name string
	Type Type
	Pos  Position
}

// LabelKind is the form a field label was written in
type LabelKind int

const (
	// LabelNamed is an identifier or quoted text
	LabelNamed LabelKind = iota
	// LabelId is an explicit numeric field ID
	LabelId
	// LabelUnnamed is a positional record field
	LabelUnnamed
)

// Label is a record or variant field label
type Label struct {
	Kind LabelKind
	Name string
	ID   uint32
}

// NamedLabel returns a label for the specified field name
func NamedLabel(name string) Label {
	return Label{Kind: LabelNamed, Name: name, ID: IdlHash(name)}
}

func (l Label) String() string {
	if l.Kind == LabelNamed {
		return l.Name
	}
	return strconv.FormatUint(uint64(l.ID), 10)
}

// Field is a record or variant field
type Field struct {
	Label Label
	Type  Type
	Pos   Position
}

// IdlHash returns the field ID of a field name
func IdlHash(name string) uint32 {
	return idl.Hash(name)
}
