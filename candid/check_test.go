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

package candid_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/icdef/candid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileSrc = `
type Profile = record { name : text; age : nat8; tags : vec text; avatar : opt blob };
type Result = variant { ok : Profile; err : text };
service : (principal) -> {
  get : (principal) -> (Result) query;
  set : (Profile) -> ();
  notify : (text) -> () oneway;
}
`

const profilePretty = `type Profile = record { age : nat8; name : text; tags : vec text; avatar : opt blob };
type Result = variant { ok : Profile; err : text };
service : (principal) -> {
  get : (principal) -> (Result) query;
  notify : (text) -> () oneway;
  set : (Profile) -> ();
}
`

func TestCheckGreet(t *testing.T) {
	env, sig, err := candid.Check(`service : { greet : (text) -> (text) query }`)
	require.NoError(t, err)
	assert.Equal(t, 0, env.Len())
	require.NotNil(t, sig)
	assert.False(t, sig.IsClass)
	require.Len(t, sig.Methods, 1)
	method, ok := sig.Method("greet")
	require.True(t, ok)
	funcType, err := env.AsFunc(method.Type)
	require.NoError(t, err)
	assert.True(t, funcType.IsQuery())
	_, ok = sig.Method("missing")
	assert.False(t, ok)
}

func TestCheckNoActor(t *testing.T) {
	env, sig, err := candid.Check(`type A = nat;`)
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.Equal(t, []string{"A"}, env.Names())
}

func TestCheckNormalizes(t *testing.T) {
	env, sig, err := candid.Check(profileSrc)
	require.NoError(t, err)
	require.True(t, sig.IsClass)
	assert.Equal(t, []candid.ArgType{{Type: candid.Principal}}, sig.InitArgs)
	methodNames := []string{}
	for _, method := range sig.Methods {
		methodNames = append(methodNames, method.Name)
	}
	assert.Equal(t, []string{"get", "notify", "set"}, methodNames)
	profile, ok := env.Find("Profile")
	require.True(t, ok)
	labels := []string{}
	for _, field := range profile.(candid.RecordType).Fields {
		labels = append(labels, field.Label.Name)
	}
	assert.Equal(t, []string{"age", "name", "tags", "avatar"}, labels)
}

func TestPrettyProg(t *testing.T) {
	env, sig, err := candid.Check(profileSrc)
	require.NoError(t, err)
	pretty := candid.PrettyProg(env, sig)
	assert.Equal(t, profilePretty, pretty)
	// The rendered program checks to the same thing
	env2, sig2, err := candid.Check(pretty)
	require.NoError(t, err)
	assert.Equal(t, pretty, candid.PrettyProg(env2, sig2))
}

func TestPretty(t *testing.T) {
	testDefs := []struct {
		src      string
		expected string
	}{
		{src: "record {}", expected: "record {}"},
		{src: "record { nat; text }", expected: "record { nat; text }"},
		{src: "record { b : nat; a : text }", expected: "record { a : text; b : nat }"},
		{src: `record { "type" : nat; "with space" : nat }`, expected: `record { "with space" : nat; "type" : nat }`},
		{src: "variant { b; a : nat; 5 }", expected: "variant { 5; a : nat; b }"},
		{src: "vec nat8", expected: "blob"},
		{src: "opt vec opt int", expected: "opt vec opt int"},
		{src: "func (x : nat, text) -> () composite_query", expected: "func (x : nat, text) -> () composite_query"},
		{src: "service { b : () -> (); a : (nat) -> (nat) }", expected: "service { a : (nat) -> (nat); b : () -> () }"},
		{src: "service {}", expected: "service {}"},
	}
	for _, testDef := range testDefs {
		env, _, err := candid.Check("type T = " + testDef.src + ";")
		require.NoError(t, err, testDef.src)
		typ, ok := env.Find("T")
		require.True(t, ok)
		assert.Equal(t, testDef.expected, candid.Pretty(typ), testDef.src)
	}
}

func TestCheckUnresolved(t *testing.T) {
	_, _, err := candid.Check("type A = record { foo : Foo };\nservice : { get : () -> (A) }")
	var unresolvedErr *candid.UnresolvedTypeError
	require.True(t, errors.As(err, &unresolvedErr), "did not get expected error type: got %T", err)
	assert.Equal(t, "Foo", unresolvedErr.Name)
	assert.Equal(t, 1, unresolvedErr.Pos.Line)
	assert.Equal(t, 25, unresolvedErr.Pos.Column)
}

func TestCheckUnresolvedInService(t *testing.T) {
	_, _, err := candid.Check("service : { get : () -> (Foo) }")
	var unresolvedErr *candid.UnresolvedTypeError
	require.True(t, errors.As(err, &unresolvedErr), "did not get expected error type: got %T", err)
	assert.Equal(t, "Foo", unresolvedErr.Name)
}

func TestCheckDuplicates(t *testing.T) {
	testDefs := []struct {
		src  string
		kind string
		name string
	}{
		{src: "type A = nat;\ntype A = text;", kind: "type", name: "A"},
		{src: "type A = record { a : nat; a : text };", kind: "field", name: "a"},
		{src: "type A = variant { x; y; x : nat };", kind: "field", name: "x"},
		// 97 is the field ID of "a"
		{src: "type A = record { a : nat; 97 : text };", kind: "field", name: "97"},
		{src: "service : { m : () -> (); m : (nat) -> () }", kind: "method", name: "m"},
	}
	for _, testDef := range testDefs {
		_, _, err := candid.Check(testDef.src)
		var dupErr *candid.DuplicateDefinitionError
		if !errors.As(err, &dupErr) {
			t.Errorf("did not get expected duplicate error for %q: got %v", testDef.src, err)
			continue
		}
		assert.Equal(t, testDef.kind, dupErr.Kind, testDef.src)
		assert.Equal(t, testDef.name, dupErr.Name, testDef.src)
	}
}

func TestCheckRecursion(t *testing.T) {
	testDefs := []string{
		"type A = A;",
		"type A = B; type B = A;",
		"type A = B; type B = C; type C = A; service : { f : (A) -> () }",
	}
	for _, testDef := range testDefs {
		_, _, err := candid.Check(testDef)
		var recErr *candid.InvalidRecursionError
		assert.True(t, errors.As(err, &recErr), "did not get expected recursion error for %q: got %v", testDef, err)
	}
	// Recursion through a type constructor is allowed
	env, _, err := candid.Check(
		"type List = opt record { head : int; tail : List };\ntype Tree = variant { leaf : int; node : vec Tree };",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"List", "Tree"}, env.Names())
}

func TestCheckTypeMismatch(t *testing.T) {
	testDefs := []string{
		"service : { f : (nat) -> (nat) oneway }",
		"type A = nat; service : A",
		"type F = nat; service : { m : F }",
		"type S = service {}; service : (nat) -> S; type X = nat;",
	}
	for _, testDef := range testDefs[:3] {
		_, _, err := candid.Check(testDef)
		var mismatchErr *candid.TypeMismatchError
		assert.True(t, errors.As(err, &mismatchErr), "did not get expected type error for %q: got %v", testDef, err)
	}
	// Definitions after the service are a syntax error
	_, _, err := candid.Check(testDefs[3])
	var syntaxErr *candid.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

func TestCheckMethodReference(t *testing.T) {
	env, sig, err := candid.Check("type F = func (nat) -> (nat) query; type G = F; service : { m : G }")
	require.NoError(t, err)
	method, ok := sig.Method("m")
	require.True(t, ok)
	funcType, err := env.AsFunc(method.Type)
	require.NoError(t, err)
	assert.True(t, funcType.IsQuery())
}

func TestCheckActorReference(t *testing.T) {
	env, sig, err := candid.Check("type S = service { b : () -> (); a : () -> () }; service : S")
	require.NoError(t, err)
	require.Len(t, sig.Methods, 2)
	assert.Equal(t, "a", sig.Methods[0].Name)
	assert.Equal(t, 1, env.Len())
}
