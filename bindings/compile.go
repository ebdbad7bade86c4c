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
	"bytes"
	"fmt"
	"go/format"
	"slices"
	"strconv"
	"strings"

	"github.com/blinklabs-io/icdef/candid"
)

const (
	idlImportPath       = "github.com/blinklabs-io/icdef/idl"
	principalImportPath = "github.com/blinklabs-io/icdef/principal"
	contextImportPath   = "context"

	directivePrefix        = "//candid:"
	typeDirectivePrefix    = directivePrefix + "type "
	serviceDirectivePrefix = directivePrefix + "service "
	methodDirectivePrefix  = directivePrefix + "method "
)

// Compile generates Go source for the checked interface. sig may be nil, in which case only the type
// definitions are generated. The output is gofmt-formatted and depends only on its inputs
func Compile(cfg Config, env *candid.TypeEnv, sig *candid.ServiceSignature) ([]byte, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if env == nil {
		env = candid.NewTypeEnv()
	}
	g := newGenerator(cfg, env, sig)
	if err := g.generate(); err != nil {
		return nil, err
	}
	ret, err := format.Source(g.source())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return ret, nil
}

type generator struct {
	cfg     Config
	env     *candid.TypeEnv
	sig     *candid.ServiceSignature
	body    bytes.Buffer
	imports map[string]bool
	// Go names of Candid type definitions
	typeNames map[string]string
	// Package-level Go identifiers
	names namespace
	// Methods of the generated service type
	methodNames namespace
	recursive   map[string]bool
	// Definition currently being generated
	current string
}

func newGenerator(cfg Config, env *candid.TypeEnv, sig *candid.ServiceSignature) *generator {
	g := &generator{
		cfg:         cfg,
		env:         env,
		sig:         sig,
		imports:     make(map[string]bool),
		typeNames:   make(map[string]string),
		names:       make(namespace),
		methodNames: make(namespace),
		recursive:   make(map[string]bool),
	}
	g.names.claim("CanisterID")
	if cfg.Target == TargetAgent && sig != nil {
		g.names.claim(cfg.ServiceName)
		g.names.claim("New" + cfg.ServiceName)
		g.names.claim("NewDefault" + cfg.ServiceName)
	}
	for _, name := range env.Names() {
		g.typeNames[name] = g.names.claim(exportedName(name))
		g.recursive[name] = g.reaches(name, name, false)
	}
	return g
}

func (g *generator) source() []byte {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by icdefgen")
	if g.cfg.CanisterID != nil {
		fmt.Fprintf(&buf, " from the interface of canister %s", g.cfg.CanisterID)
	}
	buf.WriteString(". DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", g.cfg.PackageName)
	if len(g.imports) > 0 {
		var std, other []string
		for path := range g.imports {
			if strings.Contains(path, ".") {
				other = append(other, path)
			} else {
				std = append(std, path)
			}
		}
		slices.Sort(std)
		slices.Sort(other)
		buf.WriteString("import (\n")
		for _, path := range std {
			fmt.Fprintf(&buf, "\t%q\n", path)
		}
		if len(std) > 0 && len(other) > 0 {
			buf.WriteString("\n")
		}
		for _, path := range other {
			fmt.Fprintf(&buf, "\t%q\n", path)
		}
		buf.WriteString(")\n\n")
	}
	buf.Write(g.body.Bytes())
	return buf.Bytes()
}

func (g *generator) generate() error {
	if g.cfg.CanisterID != nil {
		g.imports[principalImportPath] = true
		g.body.WriteString("// CanisterID is the ID of the canister these bindings were generated for\n")
		fmt.Fprintf(&g.body, "var CanisterID = principal.MustFromText(%q)\n\n", g.cfg.CanisterID.String())
	}
	for _, name := range g.env.Names() {
		if err := g.typeDef(name); err != nil {
			return err
		}
	}
	if g.sig == nil {
		return nil
	}
	switch g.cfg.Target {
	case TargetAgent:
		g.agentService()
	case TargetDirectCall:
		g.body.WriteString(serviceDirectivePrefix + candid.PrettyServiceHeader(g.sig) + "\n\n")
	}
	for _, method := range g.sig.Methods {
		if err := g.method(method); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) typeDef(name string) error {
	t, _ := g.env.Find(name)
	g.current = name
	defer func() { g.current = "" }()
	// A reference to another definition stays an alias. Any indirection a cycle needs is placed on
	// the by-value field that closes it
	_, isRef := t.(candid.VarType)
	goType, err := g.goType(t, !isRef)
	if err != nil {
		return fmt.Errorf("type %s: %w", name, err)
	}
	g.body.WriteString(typeDirectivePrefix + strings.TrimPrefix(candid.PrettyDef(name, t), "type ") + "\n")
	switch t.(type) {
	case candid.VarType:
		fmt.Fprintf(&g.body, "type %s = %s\n\n", g.typeNames[name], goType)
	case candid.RecordType, candid.VariantType:
		fmt.Fprintf(&g.body, "type %s %s\n\n", g.typeNames[name], goType)
	default:
		if g.recursive[name] {
			fmt.Fprintf(&g.body, "type %s %s\n\n", g.typeNames[name], goType)
		} else {
			fmt.Fprintf(&g.body, "type %s = %s\n\n", g.typeNames[name], goType)
		}
	}
	return nil
}

func (g *generator) agentService() {
	g.imports[idlImportPath] = true
	g.imports[principalImportPath] = true
	name := g.cfg.ServiceName
	g.body.WriteString(serviceDirectivePrefix + candid.PrettyServiceHeader(g.sig) + "\n")
	fmt.Fprintf(&g.body, "type %s struct {\n\tagent idl.Caller\n\tcanisterID principal.Principal\n}\n\n", name)
	fmt.Fprintf(
		&g.body,
		"// New%[1]s returns a %[1]s that calls the canister with the specified ID through agent\n"+
			"func New%[1]s(agent idl.Caller, canisterID principal.Principal) *%[1]s {\n"+
			"\treturn &%[1]s{agent: agent, canisterID: canisterID}\n}\n\n",
		name,
	)
	if g.cfg.CanisterID != nil {
		fmt.Fprintf(
			&g.body,
			"// NewDefault%[1]s returns a %[1]s for CanisterID\n"+
				"func NewDefault%[1]s(agent idl.Caller) *%[1]s {\n"+
				"\treturn New%[1]s(agent, CanisterID)\n}\n\n",
			name,
		)
	}
}

func (g *generator) method(method candid.Method) error {
	funcType, err := g.env.AsFunc(method.Type)
	if err != nil {
		return fmt.Errorf("method %s: %w", method.Name, err)
	}
	g.imports[contextImportPath] = true
	g.imports[idlImportPath] = true
	locals := newLocalNamespace()
	var retNames, retTypes []string
	if !funcType.IsOneway() {
		for i, result := range funcType.Results {
			goType, err := g.goType(result.Type, false)
			if err != nil {
				return fmt.Errorf("method %s: %w", method.Name, err)
			}
			retNames = append(retNames, locals.claim("ret"+strconv.Itoa(i)))
			retTypes = append(retTypes, goType)
		}
	}
	var argNames, params []string
	params = append(params, "ctx context.Context")
	for i, arg := range funcType.Args {
		goType, err := g.goType(arg.Type, false)
		if err != nil {
			return fmt.Errorf("method %s: %w", method.Name, err)
		}
		base := "arg" + strconv.Itoa(i)
		if arg.Name != "" {
			base = unexportedName(arg.Name)
		}
		argName := locals.claim(base)
		argNames = append(argNames, argName)
		params = append(params, argName+" "+goType)
	}

	var funcName, caller, canisterID string
	switch g.cfg.Target {
	case TargetAgent:
		funcName = fmt.Sprintf("(s *%s) %s", g.cfg.ServiceName, g.methodNames.claim(exportedName(method.Name)))
		caller = "s.agent"
		canisterID = "s.canisterID"
	case TargetDirectCall:
		funcName = g.names.claim(exportedName(method.Name))
		caller = "idl.DefaultCaller()"
		canisterID = "CanisterID"
	}
	callKind := "Update"
	if funcType.IsQuery() {
		callKind = "Query"
	}
	argsExpr := "nil"
	if len(argNames) > 0 {
		argsExpr = "[]any{" + strings.Join(argNames, ", ") + "}"
	}
	retsExpr := "nil"
	if len(retNames) > 0 {
		refs := make([]string, len(retNames))
		for i, name := range retNames {
			refs[i] = "&" + name
		}
		retsExpr = "[]any{" + strings.Join(refs, ", ") + "}"
	}
	call := fmt.Sprintf(
		"%s.%s(ctx, %s, %s, %s, %s)",
		caller,
		callKind,
		canisterID,
		strconv.Quote(method.Name),
		argsExpr,
		retsExpr,
	)

	g.body.WriteString(methodDirectivePrefix + candid.PrettyMethod(method) + ";\n")
	if len(retNames) == 0 {
		fmt.Fprintf(&g.body, "func %s(%s) error {\n\treturn %s\n}\n\n", funcName, strings.Join(params, ", "), call)
		return nil
	}
	results := make([]string, 0, len(retNames)+1)
	for i, name := range retNames {
		results = append(results, name+" "+retTypes[i])
	}
	results = append(results, "err error")
	fmt.Fprintf(
		&g.body,
		"func %s(%s) (%s) {\n\terr = %s\n\treturn\n}\n\n",
		funcName,
		strings.Join(params, ", "),
		strings.Join(results, ", "),
		call,
	)
	return nil
}
