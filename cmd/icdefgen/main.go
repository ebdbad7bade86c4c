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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/icdef/agent"
	"github.com/blinklabs-io/icdef/bindings"
	"github.com/blinklabs-io/icdef/internal/config"
	"github.com/blinklabs-io/icdef/pipeline"
	"github.com/spf13/cobra"
)

const programName = "icdefgen"

type globalFlags struct {
	canister   string
	did        string
	target     string
	path       string
	url        string
	configFile string
	rootKey    string
	timeout    time.Duration
	pkg        string
	service    string
	saveCerts  string
	verbose    bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer, stderr io.Writer) *cobra.Command {
	f := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Generate Go bindings for an Internet Computer canister",
		Long: "Fetches the candid:service metadata of a canister from the certified state tree, " +
			"verifies the certificate, type checks the interface and writes Go bindings for it.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	flags := rootCmd.Flags()
	flags.StringVarP(&f.canister, "canister", "c", "", "canister ID to generate bindings for")
	flags.StringVar(&f.did, "did", "", "local Candid file to compile instead of fetching the interface")
	flags.StringVarP(
		&f.target,
		"target",
		"t",
		bindings.TargetAgent.String(),
		"bindings target: agent or canister (direct calls bound to the canister ID)",
	)
	flags.StringVarP(&f.path, "path", "p", "", "output file (default "+config.DefaultPath+")")
	flags.StringVar(&f.url, "url", agent.DefaultURL, "gateway URL")
	flags.StringVar(&f.configFile, "config", "", "YAML config file")
	flags.StringVar(&f.rootKey, "root-key", "", "hex-encoded DER root key (fetched from the gateway if not set)")
	flags.DurationVar(&f.timeout, "timeout", agent.DefaultTimeout, "request timeout")
	flags.StringVar(&f.pkg, "package", bindings.DefaultPackageName, "package name of the generated source")
	flags.StringVar(&f.service, "service", bindings.DefaultServiceName, "name of the generated service type")
	flags.StringVar(
		&f.saveCerts,
		"save-certificate",
		"",
		"directory to save the verified certificate of each fetched interface in, as <canister ID>.cbor",
	)
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(newExtractCmd(stdout))
	return rootCmd
}

// loadConfig builds the configuration from the config file and the flags set on the command line
func loadConfig(cmd *cobra.Command, f *globalFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		var err error
		cfg, err = config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("url") || f.configFile == "" {
		cfg.URL = f.url
	}
	if flags.Changed("root-key") {
		cfg.RootKey = f.rootKey
	}
	if flags.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if flags.Changed("target") || f.configFile == "" {
		target, err := bindings.ParseTarget(f.target)
		if err != nil {
			return nil, err
		}
		cfg.Target = target
	}
	if flags.Changed("package") {
		cfg.Package = f.pkg
	}
	if flags.Changed("service") {
		cfg.Service = f.service
	}
	if f.canister != "" || f.did != "" {
		cfg.Canisters = []config.Canister{
			{
				ID:   f.canister,
				Did:  f.did,
				Path: f.path,
			},
		}
	}
	if len(cfg.Canisters) == 0 {
		return nil, errors.New("no canister specified: use --canister, --did or a config file with canisters")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runGenerate(cmd *cobra.Command, f *globalFlags, stdout io.Writer, stderr io.Writer) error {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	requests := make([]pipeline.Request, 0, len(cfg.Canisters))
	needsAgent := false
	for _, canister := range cfg.Canisters {
		if canister.Path == "" {
			fmt.Fprintf(stdout, "Using default path %s\n", config.DefaultPath)
		}
		req := pipeline.Request{CanisterID: canister.ID}
		bindingsConfig := cfg.Bindings(canister)
		req.Bindings = &bindingsConfig
		if canister.Did != "" {
			source, err := os.ReadFile(canister.Did)
			if err != nil {
				return fmt.Errorf("failed to read Candid file: %w", err)
			}
			req.Source = string(source)
		} else {
			needsAgent = true
		}
		requests = append(requests, req)
	}

	opts := []pipeline.PipelineOption{
		pipeline.WithLogger(logger),
		pipeline.WithWorkers(cfg.Workers),
	}
	if needsAgent {
		a, err := newAgent(cfg, logger)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithStateReader(a))
	}
	if f.saveCerts != "" {
		opts = append(opts, pipeline.WithStage(saveCertificateStage(f.saveCerts, logger)))
	}
	p := pipeline.NewPipeline(opts...)
	results := p.RunAll(cmd.Context(), requests)
	// Nothing is written unless every run succeeded
	for _, result := range results {
		if result.Err != nil {
			return result.Err
		}
	}
	for idx, result := range results {
		path := cfg.Canisters[idx].OutputPath()
		if err := writeOutput(path, result.Job.Output()); err != nil {
			return err
		}
		logger.Info(
			"wrote bindings",
			"path", path,
			"canister_id", result.Request.CanisterID,
		)
	}
	return nil
}

func newAgent(cfg *config.Config, logger *slog.Logger) (*agent.Agent, error) {
	opts := []agent.AgentOptionFunc{
		agent.WithURL(cfg.URL),
		agent.WithLogger(logger),
		agent.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		agent.WithMaxCertificateAge(cfg.MaxCertificateAge),
	}
	rootKey, err := cfg.RootKeyBytes()
	if err != nil {
		return nil, err
	}
	if rootKey != nil {
		opts = append(opts, agent.WithRootKey(rootKey))
	}
	return agent.New(opts...)
}

// saveCertificateStage returns a stage that writes the certificate a job's interface was read from.
// Jobs compiled from a local file have none and are skipped
func saveCertificateStage(dir string, logger *slog.Logger) pipeline.Stage {
	return pipeline.NewStageFunc("save-certificate", func(ctx context.Context, job *pipeline.Job) error {
		certCbor := job.CertificateCbor()
		if certCbor == nil || job.CanisterID() == nil {
			return nil
		}
		path := filepath.Join(dir, job.CanisterID().String()+".cbor")
		if err := writeOutput(path, certCbor); err != nil {
			return err
		}
		logger.Info(
			"saved certificate",
			"path", path,
			"canister_id", job.CanisterID().String(),
		)
		return nil
	})
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // generated source is not secret
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExtractCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the Candid interface embedded in generated bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read bindings: %w", err)
			}
			iface, err := bindings.ExtractInterface(src)
			if err != nil {
				return err
			}
			_, err = io.WriteString(stdout, iface)
			return err
		},
	}
}
