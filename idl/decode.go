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
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/blinklabs-io/icdef/principal"
)

const (
	// Limit on the nesting of values and type references
	maxDepth = 512
	// Limit on the length of vectors whose elements take no space on the wire
	maxZeroSizedLen = 1 << 20
)

type wireField struct {
	id  uint32
	ref int64
}

// wireType is an entry of a message's type table
type wireType struct {
	op     int64
	elem   int64
	fields []wireField
}

// Unmarshal decodes a Candid argument sequence into the values pointed to by rets. Missing trailing
// values are accepted for optional results, and extra values are skipped. Record fields the Go type
// does not have are skipped, and optional fields missing from the message are left nil
func Unmarshal(data []byte, rets ...any) error {
	r := &reader{data: data}
	if !bytes.HasPrefix(data, []byte(magic)) {
		return r.errorf("missing DIDL header")
	}
	r.offset = len(magic)
	d := &decoder{r: r}
	if err := d.readTypeTable(); err != nil {
		return err
	}
	count, err := r.uleb()
	if err != nil {
		return err
	}
	if count > uint64(r.remaining()) {
		return r.errorf("argument count %d exceeds message size", count)
	}
	refs := make([]int64, count)
	for i := range refs {
		if refs[i], err = r.sleb(); err != nil {
			return err
		}
		if err := d.checkRef(refs[i]); err != nil {
			return err
		}
	}
	for i, ret := range rets {
		v := reflect.ValueOf(ret)
		if v.Kind() != reflect.Pointer || v.IsNil() {
			return fmt.Errorf("%w: result %d is not a non-nil pointer", ErrTypeMismatch, i)
		}
		target := v.Elem()
		if i >= len(refs) {
			if !optional(target.Type()) {
				return fmt.Errorf("%w: message has %d values, result %d is required", ErrTypeMismatch, len(refs), i)
			}
			target.SetZero()
			continue
		}
		if err := d.decode(refs[i], target, 0); err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
	}
	for i := len(rets); i < len(refs); i++ {
		if err := d.skip(refs[i], 0); err != nil {
			return err
		}
	}
	if r.remaining() > 0 {
		return r.errorf("%d trailing bytes", r.remaining())
	}
	return nil
}

// optional reports whether a Go type accepts a missing value
func optional(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer || t == reservedType || t == nullType
}

type decoder struct {
	r     *reader
	table []wireType
}

func (d *decoder) readTypeTable() error {
	r := d.r
	count, err := r.uleb()
	if err != nil {
		return err
	}
	if count > uint64(r.remaining()) {
		return r.errorf("type table size %d exceeds message size", count)
	}
	d.table = make([]wireType, count)
	var refs []int64
	for i := range d.table {
		entry := &d.table[i]
		if entry.op, err = r.sleb(); err != nil {
			return err
		}
		switch entry.op {
		case opOpt, opVec:
			if entry.elem, err = r.sleb(); err != nil {
				return err
			}
			refs = append(refs, entry.elem)
		case opRecord, opVariant:
			n, err := r.uleb()
			if err != nil {
				return err
			}
			if n > uint64(r.remaining()) {
				return r.errorf("field count %d exceeds message size", n)
			}
			for j := range n {
				id, err := r.uleb()
				if err != nil {
					return err
				}
				if id > math.MaxUint32 {
					return r.errorf("field ID %d out of range", id)
				}
				if j > 0 && uint32(id) <= entry.fields[j-1].id {
					return r.errorf("field IDs are not strictly increasing")
				}
				ref, err := r.sleb()
				if err != nil {
					return err
				}
				entry.fields = append(entry.fields, wireField{id: uint32(id), ref: ref})
				refs = append(refs, ref)
			}
		case opFunc:
			for range 2 {
				n, err := r.uleb()
				if err != nil {
					return err
				}
				for range n {
					ref, err := r.sleb()
					if err != nil {
						return err
					}
					refs = append(refs, ref)
				}
			}
			n, err := r.uleb()
			if err != nil {
				return err
			}
			annotations, err := r.bytes(n)
			if err != nil {
				return err
			}
			for _, annotation := range annotations {
				if annotation < 1 || annotation > 3 {
					return r.errorf("invalid function annotation %d", annotation)
				}
			}
		case opService:
			n, err := r.uleb()
			if err != nil {
				return err
			}
			for range n {
				if _, err := d.readText(); err != nil {
					return err
				}
				ref, err := r.sleb()
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}
		default:
			return r.errorf("unsupported type opcode %d", entry.op)
		}
	}
	for _, ref := range refs {
		if err := d.checkRef(ref); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) checkRef(ref int64) error {
	switch {
	case ref >= 0 && ref < int64(len(d.table)):
		return nil
	case ref <= opNull && ref >= opEmpty, ref == opPrincipal:
		return nil
	}
	return d.r.errorf("invalid type reference %d", ref)
}

// wire returns the opcode of a type reference and its table entry, if it has one
func (d *decoder) wire(ref int64) (int64, *wireType) {
	if ref < 0 {
		return ref, nil
	}
	return d.table[ref].op, &d.table[ref]
}

func (d *decoder) decode(ref int64, v reflect.Value, depth int) error {
	if depth > maxDepth {
		return d.r.errorf("value nested deeper than %d levels", maxDepth)
	}
	t := v.Type()
	if t == reservedType {
		return d.skip(ref, depth)
	}
	op, wt := d.wire(ref)
	if t.Kind() == reflect.Pointer {
		return d.decodeOpt(op, wt, ref, v, depth)
	}
	r := d.r
	switch op {
	case opNull:
		if t == nullType {
			return nil
		}
	case opBool:
		if t.Kind() == reflect.Bool {
			b, err := r.byte()
			if err != nil {
				return err
			}
			if b > 1 {
				return r.errorf("invalid bool value %d", b)
			}
			v.SetBool(b == 1)
			return nil
		}
	case opNat:
		if t == natType || t == intType {
			n, err := r.bigUleb()
			if err != nil {
				return err
			}
			if t == natType {
				v.Set(reflect.ValueOf(Nat{value: n}))
			} else {
				v.Set(reflect.ValueOf(Int{value: n}))
			}
			return nil
		}
	case opInt:
		if t == intType {
			n, err := r.bigSleb()
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(Int{value: n}))
			return nil
		}
	case opNat8, opNat16, opNat32, opNat64:
		if kindOps[t.Kind()] == op {
			raw, err := d.fixed(op)
			if err != nil {
				return err
			}
			v.SetUint(raw)
			return nil
		}
	case opInt8, opInt16, opInt32, opInt64:
		if kindOps[t.Kind()] == op {
			raw, err := d.fixed(op)
			if err != nil {
				return err
			}
			v.SetInt(signExtend(raw, op))
			return nil
		}
	case opFloat32:
		if t.Kind() == reflect.Float32 {
			raw, err := d.fixed(op)
			if err != nil {
				return err
			}
			v.SetFloat(float64(math.Float32frombits(uint32(raw)))) //nolint:gosec // G115: 4 byte value
			return nil
		}
	case opFloat64:
		if t.Kind() == reflect.Float64 {
			raw, err := d.fixed(op)
			if err != nil {
				return err
			}
			v.SetFloat(math.Float64frombits(raw))
			return nil
		}
	case opText:
		if t.Kind() == reflect.String {
			s, err := d.readText()
			if err != nil {
				return err
			}
			v.SetString(s)
			return nil
		}
	case opEmpty:
		return r.errorf("empty has no values")
	case opPrincipal:
		if t == principalType {
			p, err := d.readPrincipal()
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(p))
			return nil
		}
	case opVec:
		if t.Kind() == reflect.Slice {
			return d.decodeVec(wt, v, depth)
		}
	case opRecord:
		if t.Kind() == reflect.Struct && !isReference(t) {
			return d.decodeRecord(wt, v, depth)
		}
	case opVariant:
		if t.Kind() == reflect.Struct && !isReference(t) {
			return d.decodeVariant(wt, v, depth)
		}
	case opFunc:
		if t == funcType {
			f, err := d.readFunc()
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(f))
			return nil
		}
	case opService:
		if t == serviceType {
			p, err := d.readPrincipal()
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(Service{ID: p}))
			return nil
		}
	}
	return fmt.Errorf("%w: cannot decode %s into %s", ErrTypeMismatch, opName(op), t)
}

// isReference reports whether a struct type is one of the types with a fixed Candid encoding
func isReference(t reflect.Type) bool {
	_, ok := primOps[t]
	return ok || t == funcType || t == serviceType
}

// decodeOpt decodes into a pointer, which holds an optional value
func (d *decoder) decodeOpt(op int64, wt *wireType, ref int64, v reflect.Value, depth int) error {
	t := v.Type()
	switch op {
	case opNull, opReserved:
		v.SetZero()
		return nil
	case opOpt:
		flag, err := d.r.byte()
		if err != nil {
			return err
		}
		switch flag {
		case 0:
			v.SetZero()
			return nil
		case 1:
			elem := reflect.New(t.Elem())
			if err := d.decode(wt.elem, elem.Elem(), depth+1); err != nil {
				return err
			}
			v.Set(elem.Convert(t))
			return nil
		default:
			return d.r.errorf("invalid opt flag %d", flag)
		}
	}
	// A plain value is accepted where an optional one is expected
	elem := reflect.New(t.Elem())
	if err := d.decode(ref, elem.Elem(), depth+1); err != nil {
		return err
	}
	v.Set(elem.Convert(t))
	return nil
}

func (d *decoder) decodeVec(wt *wireType, v reflect.Value, depth int) error {
	n, err := d.vecLen(wt)
	if err != nil {
		return err
	}
	t := v.Type()
	if t.Elem() == byteType && wt.elem == opNat8 {
		raw, err := d.r.bytes(n)
		if err != nil {
			return err
		}
		v.SetBytes(bytes.Clone(raw))
		return nil
	}
	slice := reflect.MakeSlice(t, int(n), int(n)) //nolint:gosec // G115: bounded by vecLen
	for i := range slice.Len() {
		if err := d.decode(wt.elem, slice.Index(i), depth+1); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	v.Set(slice)
	return nil
}

// vecLen reads a vector length, bounding it by the space its elements need
func (d *decoder) vecLen(wt *wireType) (uint64, error) {
	n, err := d.r.uleb()
	if err != nil {
		return 0, err
	}
	limit := uint64(d.r.remaining())
	if d.zeroSized(wt.elem) {
		limit = maxZeroSizedLen
	}
	if n > limit {
		return 0, d.r.errorf("vector length %d exceeds limit %d", n, limit)
	}
	return n, nil
}

func (d *decoder) zeroSized(ref int64) bool {
	op, wt := d.wire(ref)
	switch op {
	case opNull, opReserved:
		return true
	case opRecord:
		return len(wt.fields) == 0
	}
	return false
}

func (d *decoder) decodeRecord(wt *wireType, v reflect.Value, depth int) error {
	t := v.Type()
	info, err := getStructInfo(t)
	if err != nil {
		return err
	}
	if info.variant {
		return fmt.Errorf("%w: cannot decode record into variant %s", ErrTypeMismatch, t)
	}
	v.SetZero()
	seen := make(map[uint32]bool, len(wt.fields))
	for _, wf := range wt.fields {
		field, ok := info.field(wf.id)
		if !ok {
			if err := d.skip(wf.ref, depth+1); err != nil {
				return err
			}
			continue
		}
		seen[wf.id] = true
		if err := d.decode(wf.ref, v.Field(field.index), depth+1); err != nil {
			return fmt.Errorf("field %s: %w", field.name, err)
		}
	}
	for _, field := range info.fields {
		if !seen[field.id] && !optional(t.Field(field.index).Type) {
			return fmt.Errorf("%w: record has no field %s required by %s", ErrTypeMismatch, field.name, t)
		}
	}
	return nil
}

func (d *decoder) decodeVariant(wt *wireType, v reflect.Value, depth int) error {
	t := v.Type()
	info, err := getStructInfo(t)
	if err != nil {
		return err
	}
	if !info.variant {
		return fmt.Errorf("%w: cannot decode variant into record %s", ErrTypeMismatch, t)
	}
	idx, err := d.r.uleb()
	if err != nil {
		return err
	}
	if idx >= uint64(len(wt.fields)) {
		return d.r.errorf("variant index %d out of range", idx)
	}
	wf := wt.fields[idx]
	field, ok := info.field(wf.id)
	if !ok {
		return fmt.Errorf("%w: variant case %d is not a case of %s", ErrTypeMismatch, wf.id, t)
	}
	v.SetZero()
	fieldType := t.Field(field.index).Type
	elem := reflect.New(fieldType.Elem())
	if err := d.decode(wf.ref, elem.Elem(), depth+1); err != nil {
		return fmt.Errorf("case %s: %w", field.name, err)
	}
	v.Field(field.index).Set(elem.Convert(fieldType))
	return nil
}

// skip consumes a value the Go type has no place for
func (d *decoder) skip(ref int64, depth int) error {
	if depth > maxDepth {
		return d.r.errorf("value nested deeper than %d levels", maxDepth)
	}
	r := d.r
	op, wt := d.wire(ref)
	switch op {
	case opNull, opReserved:
		return nil
	case opBool, opNat8, opNat16, opNat32, opNat64, opInt8, opInt16, opInt32, opInt64, opFloat32, opFloat64:
		_, err := r.bytes(fixedSize(op))
		return err
	case opNat, opInt:
		_, _, _, err := r.bigLeb()
		return err
	case opText:
		_, err := d.readText()
		return err
	case opPrincipal, opService:
		_, err := d.readPrincipal()
		return err
	case opFunc:
		_, err := d.readFunc()
		return err
	case opEmpty:
		return r.errorf("empty has no values")
	case opOpt:
		flag, err := r.byte()
		if err != nil {
			return err
		}
		switch flag {
		case 0:
			return nil
		case 1:
			return d.skip(wt.elem, depth+1)
		}
		return r.errorf("invalid opt flag %d", flag)
	case opVec:
		n, err := d.vecLen(wt)
		if err != nil {
			return err
		}
		for range n {
			if err := d.skip(wt.elem, depth+1); err != nil {
				return err
			}
		}
		return nil
	case opRecord:
		for _, wf := range wt.fields {
			if err := d.skip(wf.ref, depth+1); err != nil {
				return err
			}
		}
		return nil
	case opVariant:
		idx, err := r.uleb()
		if err != nil {
			return err
		}
		if idx >= uint64(len(wt.fields)) {
			return r.errorf("variant index %d out of range", idx)
		}
		return d.skip(wt.fields[idx].ref, depth+1)
	}
	return r.errorf("cannot skip value of type %d", op)
}

func fixedSize(op int64) uint64 {
	switch op {
	case opBool, opNat8, opInt8:
		return 1
	case opNat16, opInt16:
		return 2
	case opNat32, opInt32, opFloat32:
		return 4
	}
	return 8
}

// fixed reads a little-endian fixed size number
func (d *decoder) fixed(op int64) (uint64, error) {
	raw, err := d.r.bytes(fixedSize(op))
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[:], raw)
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func signExtend(raw uint64, op int64) int64 {
	switch op {
	case opInt8:
		return int64(int8(raw)) //nolint:gosec // G115: truncation is the point
	case opInt16:
		return int64(int16(raw)) //nolint:gosec // G115: truncation is the point
	case opInt32:
		return int64(int32(raw)) //nolint:gosec // G115: truncation is the point
	}
	return int64(raw) //nolint:gosec // G115: two's complement
}

func (d *decoder) readText() (string, error) {
	n, err := d.r.uleb()
	if err != nil {
		return "", err
	}
	raw, err := d.r.bytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", d.r.errorf("text is not valid UTF-8")
	}
	return string(raw), nil
}

func (d *decoder) readPrincipal() (principal.Principal, error) {
	flag, err := d.r.byte()
	if err != nil {
		return principal.Principal{}, err
	}
	if flag != 1 {
		return principal.Principal{}, d.r.errorf("opaque references are not supported")
	}
	n, err := d.r.uleb()
	if err != nil {
		return principal.Principal{}, err
	}
	raw, err := d.r.bytes(n)
	if err != nil {
		return principal.Principal{}, err
	}
	p, err := principal.New(raw)
	if err != nil {
		return principal.Principal{}, d.r.errorf("%s", err)
	}
	return p, nil
}

func (d *decoder) readFunc() (Func, error) {
	flag, err := d.r.byte()
	if err != nil {
		return Func{}, err
	}
	if flag != 1 {
		return Func{}, d.r.errorf("opaque references are not supported")
	}
	service, err := d.readPrincipal()
	if err != nil {
		return Func{}, err
	}
	method, err := d.readText()
	if err != nil {
		return Func{}, err
	}
	return Func{Service: service, Method: method}, nil
}

var opNames = map[int64]string{
	opNull:      "null",
	opBool:      "bool",
	opNat:       "nat",
	opInt:       "int",
	opNat8:      "nat8",
	opNat16:     "nat16",
	opNat32:     "nat32",
	opNat64:     "nat64",
	opInt8:      "int8",
	opInt16:     "int16",
	opInt32:     "int32",
	opInt64:     "int64",
	opFloat32:   "float32",
	opFloat64:   "float64",
	opText:      "text",
	opReserved:  "reserved",
	opEmpty:     "empty",
	opOpt:       "opt",
	opVec:       "vec",
	opRecord:    "record",
	opVariant:   "variant",
	opFunc:      "func",
	opService:   "service",
	opPrincipal: "principal",
}

func opName(op int64) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("type %d", op)
}
