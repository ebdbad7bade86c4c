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
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/blinklabs-io/icdef/principal"
)

// Type opcodes of the binary format. Primitive types are referenced by their opcode, composite
// types by their index in the type table
const (
	opNull      int64 = -1
	opBool      int64 = -2
	opNat       int64 = -3
	opInt       int64 = -4
	opNat8      int64 = -5
	opNat16     int64 = -6
	opNat32     int64 = -7
	opNat64     int64 = -8
	opInt8      int64 = -9
	opInt16     int64 = -10
	opInt32     int64 = -11
	opInt64     int64 = -12
	opFloat32   int64 = -13
	opFloat64   int64 = -14
	opText      int64 = -15
	opReserved  int64 = -16
	opEmpty     int64 = -17
	opOpt       int64 = -18
	opVec       int64 = -19
	opRecord    int64 = -20
	opVariant   int64 = -21
	opFunc      int64 = -22
	opService   int64 = -23
	opPrincipal int64 = -24
)

const magic = "DIDL"

var (
	// ErrInvalidEncoding is returned for messages that are not valid Candid
	ErrInvalidEncoding = errors.New("invalid Candid encoding")
	// ErrTypeMismatch is returned when a value cannot be encoded or decoded as the Go type
	ErrTypeMismatch = errors.New("Candid type mismatch")
)

var (
	natType       = reflect.TypeFor[Nat]()
	intType       = reflect.TypeFor[Int]()
	nullType      = reflect.TypeFor[Null]()
	reservedType  = reflect.TypeFor[Reserved]()
	emptyType     = reflect.TypeFor[Empty]()
	funcType      = reflect.TypeFor[Func]()
	serviceType   = reflect.TypeFor[Service]()
	principalType = reflect.TypeFor[principal.Principal]()
	byteType      = reflect.TypeFor[byte]()
)

// primOps maps Go types with a fixed Candid primitive type to its opcode
var primOps = map[reflect.Type]int64{
	natType:       opNat,
	intType:       opInt,
	nullType:      opNull,
	reservedType:  opReserved,
	emptyType:     opEmpty,
	principalType: opPrincipal,
}

var kindOps = map[reflect.Kind]int64{
	reflect.Bool:    opBool,
	reflect.String:  opText,
	reflect.Uint8:   opNat8,
	reflect.Uint16:  opNat16,
	reflect.Uint32:  opNat32,
	reflect.Uint64:  opNat64,
	reflect.Int8:    opInt8,
	reflect.Int16:   opInt16,
	reflect.Int32:   opInt32,
	reflect.Int64:   opInt64,
	reflect.Float32: opFloat32,
	reflect.Float64: opFloat64,
}

// fieldInfo is a struct field holding a record field or variant case
type fieldInfo struct {
	index int
	id    uint32
	name  string
}

// structInfo describes how a struct maps to a record or variant. Fields are sorted by ID
type structInfo struct {
	variant bool
	fields  []fieldInfo
}

func (s *structInfo) field(id uint32) (fieldInfo, bool) {
	idx, ok := slices.BinarySearchFunc(s.fields, id, func(f fieldInfo, id uint32) int {
		switch {
		case f.id < id:
			return -1
		case f.id > id:
			return 1
		}
		return 0
	})
	if !ok {
		return fieldInfo{}, false
	}
	return s.fields[idx], true
}

var structInfoCache sync.Map

// getStructInfo returns the record or variant layout of a struct type. Fields are labeled by their
// ic tag, which holds the Candid name or numeric ID and a variant flag. Untagged exported fields use
// the Go field name and fields tagged "-" are skipped
func getStructInfo(t reflect.Type) (*structInfo, error) {
	if cached, ok := structInfoCache.Load(t); ok {
		return cached.(*structInfo), nil
	}
	info := &structInfo{}
	variantFields := 0
	for i := range t.NumField() {
		field := t.Field(i)
		tag, hasTag := field.Tag.Lookup("ic")
		if !field.IsExported() || tag == "-" {
			continue
		}
		label := field.Name
		if hasTag {
			name, opts, _ := strings.Cut(tag, ",")
			if name != "" {
				label = name
			}
			if opts == "variant" {
				if field.Type.Kind() != reflect.Pointer {
					return nil, fmt.Errorf("%w: variant field %s.%s is not a pointer", ErrTypeMismatch, t, field.Name)
				}
				variantFields++
			}
		}
		info.fields = append(info.fields, fieldInfo{index: i, id: labelID(label), name: label})
	}
	if variantFields > 0 && variantFields != len(info.fields) {
		return nil, fmt.Errorf("%w: struct %s mixes variant and record fields", ErrTypeMismatch, t)
	}
	info.variant = variantFields > 0
	slices.SortStableFunc(info.fields, func(a, b fieldInfo) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	for i := 1; i < len(info.fields); i++ {
		if info.fields[i].id == info.fields[i-1].id {
			return nil, fmt.Errorf(
				"%w: fields %s and %s of %s have the same ID",
				ErrTypeMismatch,
				info.fields[i-1].name,
				info.fields[i].name,
				t,
			)
		}
	}
	cached, _ := structInfoCache.LoadOrStore(t, info)
	return cached.(*structInfo), nil
}

// labelID returns the field ID of a label, which is either a decimal ID or a name
func labelID(label string) uint32 {
	if id, err := strconv.ParseUint(label, 10, 32); err == nil {
		return uint32(id)
	}
	return Hash(label)
}
