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
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/blinklabs-io/icdef/principal"
)

// Marshal encodes the values as a Candid argument sequence. The Candid type of each value follows
// from its Go type, the way generated bindings declare them
func Marshal(args ...any) ([]byte, error) {
	e := &encoder{index: make(map[reflect.Type]int64)}
	refs := make([]int64, len(args))
	values := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			return nil, fmt.Errorf("%w: argument %d is nil", ErrTypeMismatch, i)
		}
		values[i] = reflect.ValueOf(arg)
		ref, err := e.typeRef(values[i].Type())
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		refs[i] = ref
	}
	buf := []byte(magic)
	buf = appendUleb(buf, uint64(len(e.table)))
	for _, entry := range e.table {
		buf = append(buf, entry...)
	}
	buf = appendUleb(buf, uint64(len(args)))
	for _, ref := range refs {
		buf = appendSleb(buf, ref)
	}
	for i, v := range values {
		var err error
		buf, err = e.appendValue(buf, v, 0)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return buf, nil
}

type encoder struct {
	table [][]byte
	index map[reflect.Type]int64
}

// typeRef returns the opcode or type table index for a Go type, adding table entries as needed
func (e *encoder) typeRef(t reflect.Type) (int64, error) {
	if op, ok := primOps[t]; ok {
		return op, nil
	}
	if idx, ok := e.index[t]; ok {
		return idx, nil
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		// blob
		return e.entry(t, func() ([]byte, error) {
			return appendSleb(appendSleb(nil, opVec), opNat8), nil
		})
	}
	switch t {
	case funcType:
		// References carry no signature, so they are sent as the most general function type
		return e.entry(t, func() ([]byte, error) {
			return append(appendSleb(nil, opFunc), 0, 0, 0), nil
		})
	case serviceType:
		return e.entry(t, func() ([]byte, error) {
			return append(appendSleb(nil, opService), 0), nil
		})
	}
	if op, ok := kindOps[t.Kind()]; ok {
		return op, nil
	}
	switch t.Kind() {
	case reflect.Pointer:
		return e.entry(t, func() ([]byte, error) {
			elem, err := e.typeRef(t.Elem())
			if err != nil {
				return nil, err
			}
			return appendSleb(appendSleb(nil, opOpt), elem), nil
		})
	case reflect.Slice:
		return e.entry(t, func() ([]byte, error) {
			elem, err := e.typeRef(t.Elem())
			if err != nil {
				return nil, err
			}
			return appendSleb(appendSleb(nil, opVec), elem), nil
		})
	case reflect.Struct:
		info, err := getStructInfo(t)
		if err != nil {
			return 0, err
		}
		return e.entry(t, func() ([]byte, error) {
			op := opRecord
			if info.variant {
				op = opVariant
			}
			entry := appendSleb(nil, op)
			entry = appendUleb(entry, uint64(len(info.fields)))
			for _, field := range info.fields {
				fieldType := t.Field(field.index).Type
				if info.variant {
					fieldType = fieldType.Elem()
				}
				ref, err := e.typeRef(fieldType)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", field.name, err)
				}
				entry = appendUleb(entry, uint64(field.id))
				entry = appendSleb(entry, ref)
			}
			return entry, nil
		})
	}
	return 0, fmt.Errorf("%w: Go type %s has no Candid equivalent", ErrTypeMismatch, t)
}

// entry reserves a type table slot for t before building it, so recursive types refer to themselves
func (e *encoder) entry(t reflect.Type, build func() ([]byte, error)) (int64, error) {
	idx := int64(len(e.table))
	e.index[t] = idx
	e.table = append(e.table, nil)
	data, err := build()
	if err != nil {
		return 0, err
	}
	e.table[idx] = data
	return idx, nil
}

func (e *encoder) appendValue(buf []byte, v reflect.Value, depth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: value nested deeper than %d levels", ErrTypeMismatch, maxDepth)
	}
	switch v.Type() {
	case natType:
		return appendBigUleb(buf, v.Interface().(Nat).BigInt()), nil
	case intType:
		return appendBigSleb(buf, v.Interface().(Int).BigInt()), nil
	case nullType, reservedType:
		return buf, nil
	case emptyType:
		return nil, fmt.Errorf("%w: empty has no values", ErrTypeMismatch)
	case principalType:
		return appendPrincipal(buf, v.Interface().(principal.Principal)), nil
	case funcType:
		f := v.Interface().(Func)
		buf = append(buf, 1)
		buf = appendPrincipal(buf, f.Service)
		return appendText(buf, f.Method)
	case serviceType:
		return appendPrincipal(buf, v.Interface().(Service).ID), nil
	}
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case reflect.String:
		return appendText(buf, v.String())
	case reflect.Uint8:
		return append(buf, byte(v.Uint())), nil
	case reflect.Uint16:
		return binary.LittleEndian.AppendUint16(buf, uint16(v.Uint())), nil
	case reflect.Uint32:
		return binary.LittleEndian.AppendUint32(buf, uint32(v.Uint())), nil
	case reflect.Uint64:
		return binary.LittleEndian.AppendUint64(buf, v.Uint()), nil
	case reflect.Int8:
		return append(buf, byte(v.Int())), nil //nolint:gosec // G115: two's complement byte
	case reflect.Int16:
		return binary.LittleEndian.AppendUint16(buf, uint16(v.Int())), nil //nolint:gosec // G115: two's complement
	case reflect.Int32:
		return binary.LittleEndian.AppendUint32(buf, uint32(v.Int())), nil //nolint:gosec // G115: two's complement
	case reflect.Int64:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.Int())), nil //nolint:gosec // G115: two's complement
	case reflect.Float32:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.Float()))), nil
	case reflect.Float64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float())), nil
	case reflect.Pointer:
		if v.IsNil() {
			return append(buf, 0), nil
		}
		return e.appendValue(append(buf, 1), v.Elem(), depth+1)
	case reflect.Slice:
		buf = appendUleb(buf, uint64(v.Len()))
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return append(buf, v.Bytes()...), nil
		}
		var err error
		for i := range v.Len() {
			buf, err = e.appendValue(buf, v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case reflect.Struct:
		return e.appendStruct(buf, v, depth)
	}
	return nil, fmt.Errorf("%w: Go type %s has no Candid equivalent", ErrTypeMismatch, v.Type())
}

func (e *encoder) appendStruct(buf []byte, v reflect.Value, depth int) ([]byte, error) {
	info, err := getStructInfo(v.Type())
	if err != nil {
		return nil, err
	}
	if !info.variant {
		for _, field := range info.fields {
			buf, err = e.appendValue(buf, v.Field(field.index), depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.name, err)
			}
		}
		return buf, nil
	}
	selected := -1
	for i, field := range info.fields {
		if v.Field(field.index).IsNil() {
			continue
		}
		if selected >= 0 {
			return nil, fmt.Errorf(
				"%w: variant %s has both %s and %s set",
				ErrTypeMismatch,
				v.Type(),
				info.fields[selected].name,
				field.name,
			)
		}
		selected = i
	}
	if selected < 0 {
		return nil, fmt.Errorf("%w: variant %s has no case set", ErrTypeMismatch, v.Type())
	}
	field := info.fields[selected]
	buf = appendUleb(buf, uint64(selected))
	buf, err = e.appendValue(buf, v.Field(field.index).Elem(), depth+1)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", field.name, err)
	}
	return buf, nil
}

func appendText(buf []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrTypeMismatch)
	}
	buf = appendUleb(buf, uint64(len(s)))
	return append(buf, s...), nil
}

// appendPrincipal appends a transparent principal reference
func appendPrincipal(buf []byte, p principal.Principal) []byte {
	raw := p.Bytes()
	buf = append(buf, 1)
	buf = appendUleb(buf, uint64(len(raw)))
	return append(buf, raw...)
}
