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
	"strconv"
	"strings"
	"unicode"
)

// Pretty renders a type as single-line Candid text
func Pretty(t Type) string {
	var sb strings.Builder
	writeType(&sb, t)
	return sb.String()
}

// PrettyArgs renders an argument or result list
func PrettyArgs(args []ArgType) string {
	var sb strings.Builder
	writeArgs(&sb, args)
	return sb.String()
}

// PrettyMethod renders a service method, as it appears inside a service body
func PrettyMethod(m Method) string {
	var sb strings.Builder
	sb.WriteString(PrettyName(m.Name))
	sb.WriteString(" : ")
	writeMethodType(&sb, m.Type)
	return sb.String()
}

// PrettyDef renders a type definition
func PrettyDef(name string, t Type) string {
	return fmt.Sprintf("type %s = %s;", PrettyName(name), Pretty(t))
}

// PrettyProg renders all definitions in the environment, sorted by name, followed by the service
func PrettyProg(env *TypeEnv, sig *ServiceSignature) string {
	var sb strings.Builder
	for _, name := range env.Names() {
		t, _ := env.Find(name)
		sb.WriteString(PrettyDef(name, t))
		sb.WriteByte('\n')
	}
	if sig == nil {
		return sb.String()
	}
	sb.WriteString(PrettyServiceHeader(sig))
	sb.WriteString(" {\n")
	for _, method := range sig.Methods {
		sb.WriteString("  ")
		sb.WriteString(PrettyMethod(method))
		sb.WriteString(";\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// PrettyServiceHeader renders the part of a service definition that precedes its body
func PrettyServiceHeader(sig *ServiceSignature) string {
	var sb strings.Builder
	sb.WriteString("service")
	if sig.Name != "" {
		sb.WriteByte(' ')
		sb.WriteString(sig.Name)
	}
	sb.WriteString(" :")
	if sig.IsClass {
		sb.WriteByte(' ')
		writeArgs(&sb, sig.InitArgs)
		sb.WriteString(" ->")
	}
	return sb.String()
}

// PrettyName renders a name, quoting it when it is not a plain identifier
func PrettyName(name string) string {
	if isPlainId(name) && !IsKeyword(name) {
		return name
	}
	return quoteText(name)
}

func writeType(sb *strings.Builder, t Type) {
	switch t := t.(type) {
	case PrimType:
		sb.WriteString(t.String())
	case VarType:
		sb.WriteString(PrettyName(t.Name))
	case OptType:
		sb.WriteString("opt ")
		writeType(sb, t.Elem)
	case VecType:
		if IsBlob(t) {
			sb.WriteString("blob")
			return
		}
		sb.WriteString("vec ")
		writeType(sb, t.Elem)
	case RecordType:
		sb.WriteString("record")
		writeFields(sb, t.Fields, t.IsTuple(), false)
	case VariantType:
		sb.WriteString("variant")
		writeFields(sb, t.Fields, false, true)
	case FuncType:
		sb.WriteString("func ")
		writeFuncType(sb, t)
	case ServiceType:
		sb.WriteString("service {")
		for i, method := range t.Methods {
			if i > 0 {
				sb.WriteByte(';')
			}
			sb.WriteByte(' ')
			sb.WriteString(PrettyMethod(method))
		}
		if len(t.Methods) > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('}')
	case ClassType:
		writeArgs(sb, t.Args)
		sb.WriteString(" -> ")
		writeType(sb, t.Service)
	default:
		fmt.Fprintf(sb, "<%T>", t)
	}
}

func writeFields(sb *strings.Builder, fields []Field, tuple bool, variant bool) {
	if len(fields) == 0 {
		sb.WriteString(" {}")
		return
	}
	sb.WriteString(" {")
	for i, field := range fields {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteByte(' ')
		if tuple {
			writeType(sb, field.Type)
			continue
		}
		if field.Label.Kind == LabelNamed {
			sb.WriteString(PrettyName(field.Label.Name))
		} else {
			sb.WriteString(strconv.FormatUint(uint64(field.Label.ID), 10))
		}
		if prim, ok := field.Type.(PrimType); variant && ok && prim == Null {
			continue
		}
		sb.WriteString(" : ")
		writeType(sb, field.Type)
	}
	sb.WriteString(" }")
}

func writeMethodType(sb *strings.Builder, t Type) {
	if f, ok := t.(FuncType); ok {
		writeFuncType(sb, f)
		return
	}
	writeType(sb, t)
}

func writeFuncType(sb *strings.Builder, f FuncType) {
	writeArgs(sb, f.Args)
	sb.WriteString(" -> ")
	writeArgs(sb, f.Results)
	for _, mode := range f.Modes {
		sb.WriteByte(' ')
		sb.WriteString(mode.String())
	}
}

func writeArgs(sb *strings.Builder, args []ArgType) {
	sb.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		if arg.Name != "" {
			sb.WriteString(PrettyName(arg.Name))
			sb.WriteString(" : ")
		}
		writeType(sb, arg.Type)
	}
	sb.WriteByte(')')
}

func isPlainId(name string) bool {
	if name == "" || !isIdStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdContinue(name[i]) {
			return false
		}
	}
	return true
}

func quoteText(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if unicode.IsPrint(r) {
				sb.WriteRune(r)
			} else {
				fmt.Fprintf(&sb, `\u{%x}`, r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
