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

package main

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/icdef/cbor"
	"github.com/blinklabs-io/icdef/internal/test"
	"github.com/blinklabs-io/icdef/principal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetSrc = "service : { greet : (text) -> (text) query }"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	// A nil slice would make cobra fall back to os.Args
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGenerateFromDid(t *testing.T) {
	dir := t.TempDir()
	did := writeFile(t, dir, "greet.did", greetSrc)
	outPath := filepath.Join(dir, "out", "greet", "def.go")
	_, err := execute(t, "--did", did, "--path", outPath, "--package", "greet")
	require.NoError(t, err)
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "package greet\n")
	assert.Contains(t, string(out), "func (s *Service) Greet(")

	stdout, err := execute(t, "extract", outPath)
	require.NoError(t, err)
	assert.Equal(t, "service : {\n  greet : (text) -> (text) query;\n}\n", stdout)
}

func TestGenerateFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	did := writeFile(t, dir, "bad.did", "service : { get : () -> (Foo) query }")
	outPath := filepath.Join(dir, "def.go")
	_, err := execute(t, "--did", did, "--path", outPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Foo")
	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateInvalidArgs(t *testing.T) {
	_, err := execute(t)
	assert.ErrorContains(t, err, "no canister specified")
	_, err = execute(t, "--canister", "aaaaa-aa", "--target", "remote")
	assert.ErrorContains(t, err, "unknown target")
	_, err = execute(t, "--canister", "not-a-principal", "--path", filepath.Join(t.TempDir(), "def.go"))
	assert.ErrorContains(t, err, "InvalidIdentifier")
	_, err = execute(t, "extract", filepath.Join(t.TempDir(), "missing.go"))
	assert.Error(t, err)
}

func TestGenerateFromGateway(t *testing.T) {
	canisterID := principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")
	root := test.NewKeyPair(3)
	_, certCbor := root.Certify(test.CanisterMetadataTree(canisterID, greetSrc, time.Now()), nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/canister/"+canisterID.String()+"/read_state" {
			http.NotFound(w, r)
			return
		}
		data, err := cbor.EncodeSelfDescribed(map[string]any{"certificate": certCbor})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/cbor")
		_, _ = w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "ledger", "def.go")
	certDir := filepath.Join(dir, "certs")
	_, err := execute(
		t,
		"--canister", canisterID.String(),
		"--target", "direct-call",
		"--url", server.URL,
		"--root-key", hex.EncodeToString(root.PublicKeyDER),
		"--path", outPath,
		"--save-certificate", certDir,
	)
	require.NoError(t, err)
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), `var CanisterID = principal.MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")`)
	assert.Contains(t, string(out), "func Greet(ctx context.Context, arg0 string) (ret0 string, err error)")
	// The saved certificate is the one the bindings were generated from
	savedCert, err := os.ReadFile(filepath.Join(certDir, canisterID.String()+".cbor"))
	require.NoError(t, err)
	assert.Equal(t, certCbor, savedCert)

	// A different root key must not verify
	other := test.NewKeyPair(4)
	failPath := filepath.Join(dir, "fail", "def.go")
	_, err = execute(
		t,
		"--canister", canisterID.String(),
		"--url", server.URL,
		"--root-key", hex.EncodeToString(other.PublicKeyDER),
		"--path", failPath,
	)
	assert.ErrorContains(t, err, "CertificateInvalid")
	_, statErr := os.Stat(failPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateFromDidSkipsCertificate(t *testing.T) {
	dir := t.TempDir()
	did := writeFile(t, dir, "greet.did", greetSrc)
	certDir := filepath.Join(dir, "certs")
	_, err := execute(
		t,
		"--did", did,
		"--path", filepath.Join(dir, "def.go"),
		"--save-certificate", certDir,
	)
	require.NoError(t, err)
	_, statErr := os.Stat(certDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateFromConfig(t *testing.T) {
	dir := t.TempDir()
	did := writeFile(t, dir, "greet.did", greetSrc)
	first := filepath.Join(dir, "first", "def.go")
	second := filepath.Join(dir, "second", "def.go")
	cfgPath := writeFile(t, dir, "icdefgen.yaml", `
canisters:
  - did: `+did+`
    path: `+first+`
    package: first
  - did: `+did+`
    id: ryjl3-tyaaa-aaaaa-aaaba-cai
    target: canister
    path: `+second+`
    package: second
`)
	stdout, err := execute(t, "--config", cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Using default path")
	firstOut, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(firstOut), "package first\n")
	secondOut, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(secondOut), "package second\n")
	assert.Contains(t, string(secondOut), "func Greet(")
}
