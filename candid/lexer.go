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
	"unicode/utf8"
)

// Position identifies a location in Candid source text. Line and Column are 1-based
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenId
	tokenText
	tokenNumber
	tokenLBrace
	tokenRBrace
	tokenLParen
	tokenRParen
	tokenColon
	tokenSemi
	tokenComma
	tokenEquals
	tokenArrow
)

var tokenKindNames = map[tokenKind]string{
	tokenEOF:    "end of input",
	tokenId:     "identifier",
	tokenText:   "text",
	tokenNumber: "number",
	tokenLBrace: "'{'",
	tokenRBrace: "'}'",
	tokenLParen: "'('",
	tokenRParen: "')'",
	tokenColon:  "':'",
	tokenSemi:   "';'",
	tokenComma:  "','",
	tokenEquals: "'='",
	tokenArrow:  "'->'",
}

func (k tokenKind) String() string {
	return tokenKindNames[k]
}

type token struct {
	kind tokenKind
	// Identifier name, decoded text literal or number digits
	value string
	pos   Position
}

func (t token) String() string {
	switch t.kind {
	case tokenId:
		return fmt.Sprintf("'%s'", t.value)
	case tokenText:
		return strconv.Quote(t.value)
	case tokenNumber:
		return t.value
	default:
		return t.kind.String()
	}
}

var punctuation = map[byte]tokenKind{
	'{': tokenLBrace,
	'}': tokenRBrace,
	'(': tokenLParen,
	')': tokenRParen,
	':': tokenColon,
	';': tokenSemi,
	',': tokenComma,
	'=': tokenEquals,
}

type lexer struct {
	src    string
	offset int
	line   int
	column int
}

func newLexer(src string) *lexer {
	return &lexer{
		src:    src,
		line:   1,
		column: 1,
	}
}

func (l *lexer) pos() Position {
	return Position{Offset: l.offset, Line: l.line, Column: l.column}
}

func (l *lexer) peekByte(n int) byte {
	if l.offset+n >= len(l.src) {
		return 0
	}
	return l.src[l.offset+n]
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.offset:])
	l.offset += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

// tokenize splits the whole input into tokens, ending with tokenEOF
func (l *lexer) tokenize() ([]token, error) {
	var ret []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		ret = append(ret, tok)
		if tok.kind == tokenEOF {
			return ret, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	start := l.pos()
	if l.offset >= len(l.src) {
		return token{kind: tokenEOF, pos: start}, nil
	}
	c := l.src[l.offset]
	if kind, ok := punctuation[c]; ok {
		l.advance()
		return token{kind: kind, pos: start}, nil
	}
	switch {
	case c == '-' && l.peekByte(1) == '>':
		l.advance()
		l.advance()
		return token{kind: tokenArrow, pos: start}, nil
	case c == '"':
		value, err := l.text()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokenText, value: value, pos: start}, nil
	case isDigit(c):
		value, err := l.number()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokenNumber, value: value, pos: start}, nil
	case isIdStart(c):
		begin := l.offset
		for l.offset < len(l.src) && isIdContinue(l.src[l.offset]) {
			l.advance()
		}
		return token{kind: tokenId, value: l.src[begin:l.offset], pos: start}, nil
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.offset:])
	return token{}, syntaxErrorf(start, "unexpected character %q", r)
}

func (l *lexer) skipSpaceAndComments() error {
	for l.offset < len(l.src) {
		c := l.src[l.offset]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()
		case c == '/' && l.peekByte(1) == '/':
			for l.offset < len(l.src) && l.src[l.offset] != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByte(1) == '*':
			if err := l.blockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// blockComment skips a block comment, which may be nested
func (l *lexer) blockComment() error {
	start := l.pos()
	depth := 0
	for l.offset < len(l.src) {
		switch {
		case l.src[l.offset] == '/' && l.peekByte(1) == '*':
			depth++
			l.advance()
			l.advance()
		case l.src[l.offset] == '*' && l.peekByte(1) == '/':
			depth--
			l.advance()
			l.advance()
			if depth == 0 {
				return nil
			}
		default:
			l.advance()
		}
	}
	return syntaxErrorf(start, "unterminated comment")
}

func (l *lexer) number() (string, error) {
	start := l.pos()
	var sb strings.Builder
	base := 10
	if l.src[l.offset] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		base = 16
		l.advance()
		l.advance()
	}
	for l.offset < len(l.src) {
		c := l.src[l.offset]
		if c == '_' {
			l.advance()
			continue
		}
		if !isDigit(c) && (base != 16 || !isHexDigit(c)) {
			break
		}
		sb.WriteByte(c)
		l.advance()
	}
	if sb.Len() == 0 {
		return "", syntaxErrorf(start, "malformed number")
	}
	if l.offset < len(l.src) && isIdContinue(l.src[l.offset]) {
		return "", syntaxErrorf(start, "malformed number")
	}
	value, err := strconv.ParseUint(sb.String(), base, 32)
	if err != nil {
		return "", syntaxErrorf(start, "number out of range for a field ID")
	}
	return strconv.FormatUint(value, 10), nil
}

func (l *lexer) text() (string, error) {
	start := l.pos()
	// Opening quote
	l.advance()
	var sb strings.Builder
	for {
		if l.offset >= len(l.src) {
			return "", syntaxErrorf(start, "unterminated text literal")
		}
		c := l.src[l.offset]
		switch c {
		case '"':
			l.advance()
			value := sb.String()
			if !utf8.ValidString(value) {
				return "", syntaxErrorf(start, "text literal is not valid UTF-8")
			}
			return value, nil
		case '\n':
			return "", syntaxErrorf(start, "unterminated text literal")
		case '\\':
			if err := l.escape(&sb); err != nil {
				return "", err
			}
		default:
			sb.WriteRune(l.advance())
		}
	}
}

func (l *lexer) escape(sb *strings.Builder) error {
	start := l.pos()
	// Backslash
	l.advance()
	if l.offset >= len(l.src) {
		return syntaxErrorf(start, "unterminated escape sequence")
	}
	c := l.src[l.offset]
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case '\\', '"', '\'':
		sb.WriteByte(c)
	case 'u':
		l.advance()
		if l.peekByte(0) != '{' {
			return syntaxErrorf(start, "malformed unicode escape")
		}
		l.advance()
		begin := l.offset
		for l.offset < len(l.src) && l.src[l.offset] != '}' {
			l.advance()
		}
		code, err := strconv.ParseUint(strings.ReplaceAll(l.src[begin:l.offset], "_", ""), 16, 32)
		if err != nil || l.offset >= len(l.src) || code > utf8.MaxRune {
			return syntaxErrorf(start, "malformed unicode escape")
		}
		r := rune(code) //nolint:gosec // G115: checked against utf8.MaxRune above
		if !utf8.ValidRune(r) {
			return syntaxErrorf(start, "malformed unicode escape")
		}
		sb.WriteRune(r)
	default:
		if isHexDigit(c) && isHexDigit(l.peekByte(1)) {
			b, _ := strconv.ParseUint(l.src[l.offset:l.offset+2], 16, 8)
			sb.WriteByte(byte(b))
			l.advance()
			break
		}
		return syntaxErrorf(start, "unknown escape sequence")
	}
	l.advance()
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdContinue(c byte) bool {
	return isIdStart(c) || isDigit(c)
}
