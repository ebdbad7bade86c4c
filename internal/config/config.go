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

// Package config loads the icdefgen configuration file
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/blinklabs-io/icdef/agent"
	"github.com/blinklabs-io/icdef/bindings"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where generated bindings are written when no path is given
const DefaultPath = "canister/def.go"

// Config is the icdefgen configuration. Settings of each canister entry override the top level ones
type Config struct {
	URL     string          `yaml:"url"`
	RootKey string          `yaml:"root_key"`
	Timeout time.Duration   `yaml:"timeout"`
	Workers int             `yaml:"workers"`
	Target  bindings.Target `yaml:"target"`
	Package string          `yaml:"package"`
	Service string          `yaml:"service"`
	// MaxCertificateAge bounds the age of accepted certificates. Zero disables the check
	MaxCertificateAge time.Duration `yaml:"max_certificate_age"`
	Canisters         []Canister    `yaml:"canisters"`
}

// Canister is one set of bindings to generate
type Canister struct {
	ID string `yaml:"id"`
	// Did is a local Candid file compiled instead of fetching the interface
	Did     string           `yaml:"did"`
	Target  *bindings.Target `yaml:"target"`
	Path    string           `yaml:"path"`
	Package string           `yaml:"package"`
	Service string           `yaml:"service"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		URL:               agent.DefaultURL,
		Timeout:           agent.DefaultTimeout,
		Workers:           4,
		Target:            bindings.TargetAgent,
		Package:           bindings.DefaultPackageName,
		Service:           bindings.DefaultServiceName,
		MaxCertificateAge: agent.DefaultMaxCertificateAge,
	}
}

// Load reads the configuration file at the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or conflicting values
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s", c.Timeout)
	}
	if c.MaxCertificateAge < 0 {
		return fmt.Errorf("invalid max_certificate_age %s", c.MaxCertificateAge)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("invalid workers %d", c.Workers)
	}
	if _, err := c.RootKeyBytes(); err != nil {
		return err
	}
	paths := make(map[string]int, len(c.Canisters))
	for idx, canister := range c.Canisters {
		if canister.ID == "" && canister.Did == "" {
			return fmt.Errorf("canister %d: id or did is required", idx)
		}
		path := canister.OutputPath()
		if prev, ok := paths[path]; ok {
			return fmt.Errorf("canister %d: path %s is already used by canister %d", idx, path, prev)
		}
		paths[path] = idx
	}
	return nil
}

// RootKeyBytes returns the decoded root key, or nil if none is configured
func (c *Config) RootKeyBytes() ([]byte, error) {
	if c.RootKey == "" {
		return nil, nil
	}
	rootKey, err := hex.DecodeString(c.RootKey)
	if err != nil {
		return nil, fmt.Errorf("invalid root_key: %w", err)
	}
	return rootKey, nil
}

// Bindings returns the code generation settings for the canister entry
func (c *Config) Bindings(canister Canister) bindings.Config {
	ret := bindings.Config{
		Target:      c.Target,
		PackageName: c.Package,
		ServiceName: c.Service,
	}
	if canister.Target != nil {
		ret.Target = *canister.Target
	}
	if canister.Package != "" {
		ret.PackageName = canister.Package
	}
	if canister.Service != "" {
		ret.ServiceName = canister.Service
	}
	return ret
}

// OutputPath returns the path the canister's bindings are written to
func (c Canister) OutputPath() string {
	if c.Path == "" {
		return DefaultPath
	}
	return c.Path
}
