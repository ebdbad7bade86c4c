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
	"slices"
	"strconv"
)

// Prog is a parsed Candid program
type Prog struct {
	Defs  []TypeDef
	Actor *Actor
}

// TypeDef is a named type definition
type TypeDef struct {
	Name string
	Type Type
	Pos  Position
}

// Actor is the main service of a program. Type is a ServiceType, a ClassType or a VarType
type Actor struct {
	Name string
	Type Type
	Pos  Position
}

var keywords = []string{
	"type",
	"import",
	"service",
	"func",
	"query",
	"composite_query",
	"oneway",
	"opt",
	"vec",
	"record",
	"variant",
	"blob",
	"principal",
	"null",
}

// IsKeyword reports whether the identifier is reserved by the grammar. Other
// primitive type names are plain identifiers and may be used as labels
func IsKeyword(id string) bool {
	return slices.Contains(keywords, id)
}

func isTypeName(id string) bool {
	_, ok := primByName[id]
	return ok || IsKeyword(id)
}

// Parse parses Candid source text
func Parse(src string) (*Prog, error) {
	tokens, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.prog()
}

type parser struct {
	tokens []token
	idx    int
}

func (p *parser) peek() token {
	return p.peekN(0)
}

func (p *parser) peekN(n int) token {
	if p.idx+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.idx+n]
}

func (p *parser) next() token {
	tok := p.peek()
	if p.idx < len(p.tokens)-1 {
		p.idx++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, syntaxErrorf(tok.pos, "expected %s, found %s", kind, tok)
	}
	return tok, nil
}

func (p *parser) atKeyword(keyword string) bool {
	tok := p.peek()
	return tok.kind == tokenId && tok.value == keyword
}

// atLabel reports whether the next token is a field label or argument name followed by ':'
func (p *parser) atLabel() bool {
	tok := p.peek()
	switch tok.kind {
	case tokenText, tokenNumber:
	case tokenId:
		if IsKeyword(tok.value) {
			return false
		}
	default:
		return false
	}
	return p.peekN(1).kind == tokenColon
}

func (p *parser) name() (token, error) {
	tok := p.next()
	switch tok.kind {
	case tokenText:
		return tok, nil
	case tokenId:
		if IsKeyword(tok.value) {
			return tok, syntaxErrorf(tok.pos, "keyword %s cannot be used as a name without quotes", tok)
		}
		return tok, nil
	default:
		return tok, syntaxErrorf(tok.pos, "expected name, found %s", tok)
	}
}

func (p *parser) prog() (*Prog, error) {
	prog := &Prog{}
	for {
		tok := p.peek()
		switch {
		case tok.kind == tokenEOF:
			return prog, nil
		case p.atKeyword("type"):
			def, err := p.typeDef()
			if err != nil {
				return nil, err
			}
			prog.Defs = append(prog.Defs, def)
		case p.atKeyword("import"):
			return nil, syntaxErrorf(tok.pos, "import is not supported")
		case p.atKeyword("service"):
			actor, err := p.actor()
			if err != nil {
				return nil, err
			}
			prog.Actor = actor
			if p.peek().kind == tokenSemi {
				p.next()
			}
			if tok := p.peek(); tok.kind != tokenEOF {
				return nil, syntaxErrorf(tok.pos, "unexpected %s after service definition", tok)
			}
			return prog, nil
		default:
			return nil, syntaxErrorf(tok.pos, "expected 'type' or 'service', found %s", tok)
		}
	}
}

func (p *parser) typeDef() (TypeDef, error) {
	// type keyword
	p.next()
	nameTok, err := p.expect(tokenId)
	if err != nil {
		return TypeDef{}, err
	}
	if isTypeName(nameTok.value) {
		return TypeDef{}, syntaxErrorf(nameTok.pos, "reserved name %s cannot be used as a type name", nameTok)
	}
	if _, err := p.expect(tokenEquals); err != nil {
		return TypeDef{}, err
	}
	t, err := p.dataType()
	if err != nil {
		return TypeDef{}, err
	}
	if _, err := p.expect(tokenSemi); err != nil {
		return TypeDef{}, err
	}
	return TypeDef{Name: nameTok.value, Type: t, Pos: nameTok.pos}, nil
}

func (p *parser) actor() (*Actor, error) {
	serviceTok := p.next()
	actor := &Actor{Pos: serviceTok.pos}
	if tok := p.peek(); tok.kind == tokenId {
		if IsKeyword(tok.value) {
			return nil, syntaxErrorf(tok.pos, "keyword %s cannot be used as a service name", tok)
		}
		actor.Name = tok.value
		p.next()
	}
	if _, err := p.expect(tokenColon); err != nil {
		return nil, err
	}
	if p.peek().kind == tokenLParen {
		args, err := p.tupleType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenArrow); err != nil {
			return nil, err
		}
		service, err := p.actorRef()
		if err != nil {
			return nil, err
		}
		actor.Type = ClassType{Args: args, Service: service}
		return actor, nil
	}
	service, err := p.actorRef()
	if err != nil {
		return nil, err
	}
	actor.Type = service
	return actor, nil
}

// actorRef parses an actor type or a reference to one
func (p *parser) actorRef() (Type, error) {
	tok := p.peek()
	if tok.kind == tokenLBrace {
		return p.actorType()
	}
	nameTok, err := p.expect(tokenId)
	if err != nil {
		return nil, err
	}
	if isTypeName(nameTok.value) {
		return nil, syntaxErrorf(nameTok.pos, "expected service type, found %s", nameTok)
	}
	return VarType{Name: nameTok.value, Pos: nameTok.pos}, nil
}

func (p *parser) actorType() (ServiceType, error) {
	if _, err := p.expect(tokenLBrace); err != nil {
		return ServiceType{}, err
	}
	var ret ServiceType
	for p.peek().kind != tokenRBrace {
		nameTok, err := p.name()
		if err != nil {
			return ServiceType{}, err
		}
		if _, err := p.expect(tokenColon); err != nil {
			return ServiceType{}, err
		}
		var methodType Type
		if p.peek().kind == tokenLParen {
			methodType, err = p.funcType()
		} else {
			methodType, err = p.actorMethodRef()
		}
		if err != nil {
			return ServiceType{}, err
		}
		ret.Methods = append(
			ret.Methods,
			Method{Name: nameTok.value, Type: methodType, Pos: nameTok.pos},
		)
		if err := p.separator(tokenSemi, tokenRBrace); err != nil {
			return ServiceType{}, err
		}
	}
	// Closing brace
	p.next()
	return ret, nil
}

func (p *parser) actorMethodRef() (Type, error) {
	tok, err := p.expect(tokenId)
	if err != nil {
		return nil, err
	}
	if isTypeName(tok.value) {
		return nil, syntaxErrorf(tok.pos, "expected function type, found %s", tok)
	}
	return VarType{Name: tok.value, Pos: tok.pos}, nil
}

// separator consumes sep if present and otherwise requires the closing token to follow
func (p *parser) separator(sep tokenKind, closing tokenKind) error {
	tok := p.peek()
	switch tok.kind {
	case sep:
		p.next()
		return nil
	case closing:
		return nil
	default:
		return syntaxErrorf(tok.pos, "expected %s or %s, found %s", sep, closing, tok)
	}
}

func (p *parser) funcType() (FuncType, error) {
	args, err := p.tupleType()
	if err != nil {
		return FuncType{}, err
	}
	if _, err := p.expect(tokenArrow); err != nil {
		return FuncType{}, err
	}
	results, err := p.tupleType()
	if err != nil {
		return FuncType{}, err
	}
	ret := FuncType{Args: args, Results: results}
	for {
		tok := p.peek()
		var mode FuncMode
		switch {
		case p.atKeyword("query"):
			mode = ModeQuery
		case p.atKeyword("composite_query"):
			mode = ModeCompositeQuery
		case p.atKeyword("oneway"):
			mode = ModeOneway
		default:
			return ret, nil
		}
		p.next()
		if len(ret.Modes) > 0 {
			return FuncType{}, syntaxErrorf(tok.pos, "function can have at most one annotation, found %s", tok)
		}
		ret.Modes = append(ret.Modes, mode)
	}
}

func (p *parser) tupleType() ([]ArgType, error) {
	if _, err := p.expect(tokenLParen); err != nil {
		return nil, err
	}
	ret := []ArgType{}
	for p.peek().kind != tokenRParen {
		var arg ArgType
		if p.atLabel() && p.peek().kind != tokenNumber {
			arg.Name = p.next().value
			// Colon
			p.next()
		}
		t, err := p.dataType()
		if err != nil {
			return nil, err
		}
		arg.Type = t
		ret = append(ret, arg)
		if err := p.separator(tokenComma, tokenRParen); err != nil {
			return nil, err
		}
	}
	// Closing paren
	p.next()
	return ret, nil
}

func (p *parser) dataType() (Type, error) {
	tok := p.next()
	if tok.kind != tokenId {
		return nil, syntaxErrorf(tok.pos, "expected type, found %s", tok)
	}
	if prim, ok := primByName[tok.value]; ok {
		return prim, nil
	}
	switch tok.value {
	case "opt":
		elem, err := p.dataType()
		if err != nil {
			return nil, err
		}
		return OptType{Elem: elem}, nil
	case "vec":
		elem, err := p.dataType()
		if err != nil {
			return nil, err
		}
		return VecType{Elem: elem}, nil
	case "blob":
		return VecType{Elem: Nat8}, nil
	case "record":
		fields, err := p.fields(true)
		if err != nil {
			return nil, err
		}
		return RecordType{Fields: fields}, nil
	case "variant":
		fields, err := p.fields(false)
		if err != nil {
			return nil, err
		}
		return VariantType{Fields: fields}, nil
	case "func":
		return p.funcType()
	case "service":
		return p.actorType()
	}
	if IsKeyword(tok.value) {
		return nil, syntaxErrorf(tok.pos, "expected type, found keyword %s", tok)
	}
	return VarType{Name: tok.value, Pos: tok.pos}, nil
}

// fields parses the body of a record or variant
func (p *parser) fields(record bool) ([]Field, error) {
	if _, err := p.expect(tokenLBrace); err != nil {
		return nil, err
	}
	var ret []Field
	var nextId uint32
	for p.peek().kind != tokenRBrace {
		field := Field{Pos: p.peek().pos}
		if record && !p.atLabel() {
			// Positional field
			t, err := p.dataType()
			if err != nil {
				return nil, err
			}
			field.Label = Label{Kind: LabelUnnamed, ID: nextId}
			field.Type = t
		} else {
			label, err := p.fieldLabel()
			if err != nil {
				return nil, err
			}
			field.Label = label
			switch {
			case p.peek().kind == tokenColon:
				p.next()
				t, err := p.dataType()
				if err != nil {
					return nil, err
				}
				field.Type = t
			case record:
				tok := p.peek()
				return nil, syntaxErrorf(tok.pos, "expected ':', found %s", tok)
			default:
				// Variant cases without a type carry null
				field.Type = Null
			}
		}
		nextId = field.Label.ID + 1
		ret = append(ret, field)
		if err := p.separator(tokenSemi, tokenRBrace); err != nil {
			return nil, err
		}
	}
	// Closing brace
	p.next()
	return ret, nil
}

func (p *parser) fieldLabel() (Label, error) {
	tok := p.peek()
	if tok.kind == tokenNumber {
		p.next()
		id, err := strconv.ParseUint(tok.value, 10, 32)
		if err != nil {
			return Label{}, syntaxErrorf(tok.pos, "invalid field ID %s", tok)
		}
		return Label{Kind: LabelId, ID: uint32(id)}, nil //nolint:gosec // G115: parsed with a 32-bit limit
	}
	nameTok, err := p.name()
	if err != nil {
		return Label{}, err
	}
	return NamedLabel(nameTok.value), nil
}
