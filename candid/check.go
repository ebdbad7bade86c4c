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
	"slices"
	"strings"
)

// TypeEnv maps type names to their checked definitions
type TypeEnv struct {
	defs map[string]Type
	pos  map[string]Position
}

// NewTypeEnv returns an empty TypeEnv
func NewTypeEnv() *TypeEnv {
	return &TypeEnv{
		defs: make(map[string]Type),
		pos:  make(map[string]Position),
	}
}

// Len returns the number of definitions
func (e *TypeEnv) Len() int {
	return len(e.defs)
}

// Find returns the definition of the named type
func (e *TypeEnv) Find(name string) (Type, bool) {
	t, ok := e.defs[name]
	return t, ok && t != nil
}

// Names returns the names of all definitions, sorted
func (e *TypeEnv) Names() []string {
	ret := make([]string, 0, len(e.defs))
	for name := range e.defs {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

// Resolve follows type references until it reaches a type that is not a reference
func (e *TypeEnv) Resolve(t Type) (Type, error) {
	var seen []string
	for {
		v, ok := t.(VarType)
		if !ok {
			return t, nil
		}
		if slices.Contains(seen, v.Name) {
			return nil, &InvalidRecursionError{Cycle: append(seen, v.Name)}
		}
		seen = append(seen, v.Name)
		def, ok := e.Find(v.Name)
		if !ok {
			return nil, &UnresolvedTypeError{Name: v.Name, Pos: v.Pos}
		}
		t = def
	}
}

// AsFunc resolves the type to a function type
func (e *TypeEnv) AsFunc(t Type) (FuncType, error) {
	resolved, err := e.Resolve(t)
	if err != nil {
		return FuncType{}, err
	}
	ret, ok := resolved.(FuncType)
	if !ok {
		return FuncType{}, &TypeMismatchError{
			Pos:     typePos(t),
			Message: fmt.Sprintf("%s is not a function type", Pretty(t)),
		}
	}
	return ret, nil
}

// AsService resolves the type to a service type
func (e *TypeEnv) AsService(t Type) (ServiceType, error) {
	resolved, err := e.Resolve(t)
	if err != nil {
		return ServiceType{}, err
	}
	ret, ok := resolved.(ServiceType)
	if !ok {
		return ServiceType{}, &TypeMismatchError{
			Pos:     typePos(t),
			Message: fmt.Sprintf("%s is not a service type", Pretty(t)),
		}
	}
	return ret, nil
}

// ServiceSignature is the checked interface of a program's actor
type ServiceSignature struct {
	// Name is the actor's optional name
	Name string
	// IsClass is set when the actor is a service constructor taking InitArgs
	IsClass  bool
	InitArgs []ArgType
	// Methods are sorted by name. A method's Type is a FuncType or a reference to one
	Methods []Method
}

// Method returns the named method
func (s *ServiceSignature) Method(name string) (Method, bool) {
	idx, found := slices.BinarySearchFunc(s.Methods, name, func(m Method, name string) int {
		return strings.Compare(m.Name, name)
	})
	if !found {
		return Method{}, false
	}
	return s.Methods[idx], true
}

// Check parses and checks Candid source text into a new TypeEnv
func Check(src string) (*TypeEnv, *ServiceSignature, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, nil, err
	}
	env := NewTypeEnv()
	sig, err := CheckProg(env, prog)
	if err != nil {
		return nil, nil, err
	}
	return env, sig, nil
}

// CheckProg adds the program's definitions to the TypeEnv and checks them. It returns the
// signature of the program's actor, or nil if the program has none
func CheckProg(env *TypeEnv, prog *Prog) (*ServiceSignature, error) {
	c := &checker{env: env}
	// Collect names first so that definitions can refer to each other in any order
	for _, def := range prog.Defs {
		if _, exists := env.defs[def.Name]; exists {
			return nil, &DuplicateDefinitionError{
				Kind:     "type",
				Name:     def.Name,
				Pos:      def.Pos,
				Previous: env.pos[def.Name],
			}
		}
		env.defs[def.Name] = nil
		env.pos[def.Name] = def.Pos
	}
	for _, def := range prog.Defs {
		t, err := c.checkType(def.Type, def.Pos)
		if err != nil {
			return nil, err
		}
		env.defs[def.Name] = t
	}
	for _, def := range prog.Defs {
		if _, err := env.Resolve(VarType{Name: def.Name, Pos: def.Pos}); err != nil {
			return nil, err
		}
	}
	for _, ref := range c.methodRefs {
		if _, err := env.AsFunc(ref); err != nil {
			return nil, err
		}
	}
	if prog.Actor == nil {
		return nil, nil
	}
	return c.checkActor(prog.Actor)
}

type checker struct {
	env *TypeEnv
	// Method types given by reference, checked once all definitions are known
	methodRefs []VarType
}

func (c *checker) checkActor(actor *Actor) (*ServiceSignature, error) {
	sig := &ServiceSignature{Name: actor.Name}
	serviceType := actor.Type
	if class, ok := actor.Type.(ClassType); ok {
		args, err := c.checkArgs(class.Args, actor.Pos)
		if err != nil {
			return nil, err
		}
		sig.IsClass = true
		sig.InitArgs = args
		serviceType = class.Service
	}
	c.methodRefs = nil
	checked, err := c.checkType(serviceType, actor.Pos)
	if err != nil {
		return nil, err
	}
	for _, ref := range c.methodRefs {
		if _, err := c.env.AsFunc(ref); err != nil {
			return nil, err
		}
	}
	service, err := c.env.AsService(checked)
	if err != nil {
		return nil, err
	}
	sig.Methods = service.Methods
	return sig, nil
}

func (c *checker) checkType(t Type, pos Position) (Type, error) {
	switch t := t.(type) {
	case PrimType:
		return t, nil
	case VarType:
		if _, ok := c.env.defs[t.Name]; !ok {
			return nil, &UnresolvedTypeError{Name: t.Name, Pos: t.Pos}
		}
		return t, nil
	case OptType:
		elem, err := c.checkType(t.Elem, pos)
		if err != nil {
			return nil, err
		}
		return OptType{Elem: elem}, nil
	case VecType:
		elem, err := c.checkType(t.Elem, pos)
		if err != nil {
			return nil, err
		}
		return VecType{Elem: elem}, nil
	case RecordType:
		fields, err := c.checkFields(t.Fields)
		if err != nil {
			return nil, err
		}
		return RecordType{Fields: fields}, nil
	case VariantType:
		fields, err := c.checkFields(t.Fields)
		if err != nil {
			return nil, err
		}
		return VariantType{Fields: fields}, nil
	case FuncType:
		return c.checkFunc(t, pos)
	case ServiceType:
		return c.checkService(t)
	case ClassType:
		return nil, &TypeMismatchError{Pos: pos, Message: "service constructor is only allowed as the main service"}
	default:
		return nil, &TypeMismatchError{Pos: pos, Message: fmt.Sprintf("unknown type %T", t)}
	}
}

func (c *checker) checkFields(fields []Field) ([]Field, error) {
	ret := make([]Field, 0, len(fields))
	for _, field := range fields {
		t, err := c.checkType(field.Type, field.Pos)
		if err != nil {
			return nil, err
		}
		ret = append(ret, Field{Label: field.Label, Type: t, Pos: field.Pos})
	}
	slices.SortStableFunc(ret, func(a, b Field) int {
		switch {
		case a.Label.ID < b.Label.ID:
			return -1
		case a.Label.ID > b.Label.ID:
			return 1
		}
		return 0
	})
	for i := 1; i < len(ret); i++ {
		if ret[i].Label.ID == ret[i-1].Label.ID {
			// The sort is stable, so the later definition comes second
			return nil, &DuplicateDefinitionError{
				Kind:     "field",
				Name:     ret[i].Label.String(),
				Pos:      ret[i].Pos,
				Previous: ret[i-1].Pos,
			}
		}
	}
	return ret, nil
}

func (c *checker) checkArgs(args []ArgType, pos Position) ([]ArgType, error) {
	ret := make([]ArgType, 0, len(args))
	for _, arg := range args {
		t, err := c.checkType(arg.Type, pos)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ArgType{Name: arg.Name, Type: t})
	}
	return ret, nil
}

func (c *checker) checkFunc(f FuncType, pos Position) (FuncType, error) {
	args, err := c.checkArgs(f.Args, pos)
	if err != nil {
		return FuncType{}, err
	}
	results, err := c.checkArgs(f.Results, pos)
	if err != nil {
		return FuncType{}, err
	}
	ret := FuncType{Args: args, Results: results, Modes: slices.Clone(f.Modes)}
	if ret.IsOneway() && len(ret.Results) > 0 {
		return FuncType{}, &TypeMismatchError{Pos: pos, Message: "oneway function must have no results"}
	}
	return ret, nil
}

func (c *checker) checkService(s ServiceType) (ServiceType, error) {
	methods := make([]Method, 0, len(s.Methods))
	for _, method := range s.Methods {
		var t Type
		switch mt := method.Type.(type) {
		case FuncType:
			checked, err := c.checkFunc(mt, method.Pos)
			if err != nil {
				return ServiceType{}, err
			}
			t = checked
		case VarType:
			if _, err := c.checkType(mt, method.Pos); err != nil {
				return ServiceType{}, err
			}
			c.methodRefs = append(c.methodRefs, mt)
			t = mt
		default:
			return ServiceType{}, &TypeMismatchError{
				Pos:     method.Pos,
				Message: fmt.Sprintf("method %q must have a function type", method.Name),
			}
		}
		methods = append(methods, Method{Name: method.Name, Type: t, Pos: method.Pos})
	}
	slices.SortStableFunc(methods, func(a, b Method) int {
		return strings.Compare(a.Name, b.Name)
	})
	for i := 1; i < len(methods); i++ {
		if methods[i].Name == methods[i-1].Name {
			return ServiceType{}, &DuplicateDefinitionError{
				Kind:     "method",
				Name:     methods[i].Name,
				Pos:      methods[i].Pos,
				Previous: methods[i-1].Pos,
			}
		}
	}
	return ServiceType{Methods: methods}, nil
}

func typePos(t Type) Position {
	if v, ok := t.(VarType); ok {
		return v.Pos
	}
	return Position{}
}
