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

package bindings

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"github.com/blinklabs-io/icdef/candid"
)

var primGoTypes = map[candid.PrimType]string{
	candid.Nat:       "idl.Nat",
	candid.Nat8:      "uint8",
	candid.Nat16:     "uint16",
	candid.Nat32:     "uint32",
	candid.Nat64:     "uint64",
	candid.Int:       "idl.Int",
	candid.Int8:      "int8",
	candid.Int16:     "int16",
	candid.Int32:     "int32",
	candid.Int64:     "int64",
	candid.Float32:   "float32",
	candid.Float64:   "float64",
	candid.Bool:      "bool",
	candid.Text:      "string",
	candid.Null:      "idl.Null",
	candid.Reserved:  "idl.Reserved",
	candid.Empty:     "idl.Empty",
	candid.Principal: "principal.Principal",
}

// goType returns the Go type expression for a Candid type. byValue is set when the value is stored
// directly in the definition being generated, rather than behind a pointer or slice
func (g *generator) goType(t candid.Type, byValue bool) (string, error) {
	switch t := t.(type) {
	case candid.PrimType:
		ret, ok := primGoTypes[t]
		if !ok {
			return "", &UnsupportedConstructError{Construct: t.String()}
		}
		switch {
		case strings.HasPrefix(ret, "idl."):
			g.imports[idlImportPath] = true
		case strings.HasPrefix(ret, "principal."):
			g.imports[principalImportPath] = true
		}
		return ret, nil
	case candid.VarType:
		name, ok := g.typeNames[t.Name]
		if !ok {
			return "", &candid.UnresolvedTypeError{Name: t.Name, Pos: t.Pos}
		}
		// Go types cannot contain themselves by value
		if byValue && g.current != "" &&
			(t.Name == g.current || g.reaches(t.Name, g.current, true)) {
			return "*" + name, nil
		}
		return name, nil
	case candid.OptType:
		elem, err := g.goType(t.Elem, false)
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case candid.VecType:
		if candid.IsBlob(t) {
			return "[]byte", nil
		}
		elem, err := g.goType(t.Elem, false)
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case candid.RecordType:
		return g.structType(t.Fields, t.IsTuple(), false, byValue)
	case candid.VariantType:
		return g.structType(t.Fields, false, true, false)
	case candid.FuncType:
		g.imports[idlImportPath] = true
		return "idl.Func", nil
	case candid.ServiceType:
		g.imports[idlImportPath] = true
		return "idl.Service", nil
	case candid.ClassType:
		return "", &UnsupportedConstructError{Construct: "service constructor in type position"}
	default:
		return "", &UnsupportedConstructError{Construct: fmt.Sprintf("%T", t)}
	}
}

// structType returns a struct for a record or variant. Variant fields are pointers, of which exactly
// one is set
func (g *generator) structType(fields []candid.Field, tuple bool, variant bool, byValue bool) (string, error) {
	if len(fields) == 0 {
		return "struct{}", nil
	}
	var sb strings.Builder
	sb.WriteString("struct {\n")
	names := make(namespace)
	for _, field := range fields {
		var fieldName, tag string
		switch {
		case tuple:
			fieldName = names.claim("Field" + strconv.FormatUint(uint64(field.Label.ID), 10))
			tag = strconv.FormatUint(uint64(field.Label.ID), 10)
		case field.Label.Kind == candid.LabelNamed:
			fieldName = names.claim(exportedName(field.Label.Name))
			tag = field.Label.Name
		default:
			fieldName = names.claim("Field" + strconv.FormatUint(uint64(field.Label.ID), 10))
			tag = strconv.FormatUint(uint64(field.Label.ID), 10)
		}
		var goType string
		var err error
		if variant {
			goType, err = g.goType(field.Type, false)
			goType = "*" + goType
			tag += ",variant"
		} else {
			goType, err = g.goType(field.Type, byValue)
		}
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field.Label, err)
		}
		fmt.Fprintf(&sb, "%s %s %s\n", fieldName, goType, structTag(tag))
	}
	sb.WriteString("}")
	return sb.String(), nil
}

func structTag(value string) string {
	tag := "ic:" + strconv.Quote(value)
	if strings.Contains(tag, "`") {
		return strconv.Quote(tag)
	}
	return "`" + tag + "`"
}

// reaches reports whether the definition of target can be reached by following type references from
// the definition of from. With byValue set, only references stored by value are followed
func (g *generator) reaches(from string, target string, byValue bool) bool {
	visited := map[string]bool{}
	pending := []string{from}
	for len(pending) > 0 {
		name := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if visited[name] {
			continue
		}
		visited[name] = true
		t, ok := g.env.Find(name)
		if !ok {
			continue
		}
		for _, ref := range typeRefs(t, byValue) {
			if ref == target {
				return true
			}
			pending = append(pending, ref)
		}
	}
	return false
}

// typeRefs returns the names of the definitions referenced by a type
func typeRefs(t candid.Type, byValue bool) []string {
	var ret []string
	switch t := t.(type) {
	case candid.VarType:
		ret = append(ret, t.Name)
	case candid.OptType:
		if !byValue {
			ret = append(ret, typeRefs(t.Elem, byValue)...)
		}
	case candid.VecType:
		if !byValue {
			ret = append(ret, typeRefs(t.Elem, byValue)...)
		}
	case candid.RecordType:
		for _, field := range t.Fields {
			ret = append(ret, typeRefs(field.Type, byValue)...)
		}
	case candid.VariantType:
		if !byValue {
			for _, field := range t.Fields {
				ret = append(ret, typeRefs(field.Type, byValue)...)
			}
		}
	case candid.FuncType:
		if !byValue {
			for _, arg := range append(append([]candid.ArgType{}, t.Args...), t.Results...) {
				ret = append(ret, typeRefs(arg.Type, byValue)...)
			}
		}
	case candid.ServiceType:
		if !byValue {
			for _, method := range t.Methods {
				ret = append(ret, typeRefs(method.Type, byValue)...)
			}
		}
	}
	return ret
}

// namespace hands out unique identifiers
type namespace map[string]bool

func (n namespace) claim(base string) string {
	name := base
	for i := 2; n[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	n[name] = true
	return name
}

// Identifiers that generated parameters must not shadow
var reservedLocals = []string{
	"ctx",
	"err",
	"s",
	"context",
	"idl",
	"principal",
	"any",
	"bool",
	"byte",
	"error",
	"float32",
	"float64",
	"int",
	"int8",
	"int16",
	"int32",
	"int64",
	"rune",
	"string",
	"uint",
	"uint8",
	"uint16",
	"uint32",
	"uint64",
	"uintptr",
	"nil",
	"true",
	"false",
	"iota",
	"append",
	"cap",
	"len",
	"make",
	"new",
	"panic",
}

func newLocalNamespace() namespace {
	ret := make(namespace)
	for _, name := range reservedLocals {
		ret[name] = true
	}
	return ret
}

// exportedName converts a Candid name to an exported Go identifier
func exportedName(name string) string {
	var sb strings.Builder
	upperNext := true
	for _, r := range name {
		if r > unicode.MaxASCII || (!unicode.IsLetter(r) && !unicode.IsDigit(r)) {
			upperNext = true
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
		}
		sb.WriteRune(r)
		upperNext = false
	}
	ret := sb.String()
	if ret == "" || !unicode.IsUpper(rune(ret[0])) {
		ret = "X" + ret
	}
	return ret
}

// unexportedName converts a Candid name to an unexported Go identifier
func unexportedName(name string) string {
	base := exportedName(name)
	if !strings.HasPrefix(strings.ToUpper(strings.TrimLeft(name, "_")), "X") {
		base = strings.TrimPrefix(base, "X")
	}
	if base == "" {
		return "arg"
	}
	ret := strings.ToLower(base[:1]) + base[1:]
	switch {
	case !token.IsIdentifier(ret):
		return "arg" + base
	case token.IsKeyword(ret):
		return ret + "Arg"
	}
	return ret
}
