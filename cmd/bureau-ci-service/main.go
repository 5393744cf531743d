// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bureau-ci/lib/clock"
	"github.com/bureau-foundation/bureau-ci/lib/config"
	"github.com/bureau-foundation/bureau-ci/lib/git"
	"github.com/bureau-foundation/bureau-ci/lib/github"
	"github.com/bureau-foundation/bureau-ci/lib/ledger"
	"github.com/bureau-foundation/bureau-ci/lib/notify"
	"github.com/bureau-foundation/bureau-ci/lib/pipeline"
	"github.com/bureau-foundation/bureau-ci/lib/process"
	"github.com/bureau-foundation/bureau-ci/lib/service"
	"github.com/bureau-foundation/bureau-ci/lib/version"
	"github.com/bureau-foundation/bureau-ci/lib/workspace"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		listen      string
		envFile     string
		showVersion bool
	)
	flags := pflag.NewFlagSet("bureau-ci-service", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "config file (YAML, or JSON with comments); defaults to $"+config.EnvironmentVariable+", then built-in defaults")
	flags.StringVar(&listen, "listen", "", "listen address, overriding server.address")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment before configuration")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("bureau-ci-service %s\n", version.Full())
		return nil
	}

	if err := loadEnvFile(envFile, flags.Changed("env-file")); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Address = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err := service.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real()
	token := github.EnvToken(cfg.GitHub.TokenEnv)
	if _, err := token(); err != nil {
		logger.Warn("no GitHub token; commit statuses will not be posted and private repositories cannot be cloned",
			"token_env", cfg.GitHub.TokenEnv,
		)
	}

	history, err := ledger.Open(cfg.Paths.Ledger, logger)
	if err != nil {
		return err
	}

	apiClient, err := github.NewClient(github.Config{
		BaseURL: cfg.GitHub.APIURL,
		Token:   token,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	hub := notify.NewHub(realClock, logger)
	executor := process.NewOSExecutor(logger)
	builds := pipeline.New(pipeline.Config{
		Executor:      executor,
		SourceControl: git.NewClient(executor, token.Optional(), logger),
		Workspaces:    workspace.NewManager(cfg.Paths.Workspaces, logger),
		CloneBaseURL:  cfg.GitHub.CloneURL,
		Toolchain: pipeline.Toolchain{
			Compile: cfg.Build.Compile,
			Test:    cfg.Build.Test,
		},
		PhaseTimeout: cfg.Build.PhaseTimeout,
		Clock:        realClock,
		Logger:       logger,
		OnTransition: transitionNotifier(hub),
	})

	webhookSecret := strings.TrimSpace(os.Getenv(cfg.Server.WebhookSecretEnv))
	if webhookSecret == "" {
		logger.Warn("no webhook secret; accepting unsigned deliveries",
			"webhook_secret_env", cfg.Server.WebhookSecretEnv,
		)
	}

	server := NewServer(ServerConfig{
		Context:       ctx,
		Builder:       builds,
		Reporter:      github.NewStatusReporter(apiClient, cfg.GitHub.StatusContext, logger),
		Ledger:        history,
		Hub:           hub,
		WebhookSecret: []byte(webhookSecret),
		PublicURL:     cfg.Server.PublicURL,
		Clock:         realClock,
		Logger:        logger,
	})

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Server.Address,
		Handler:         server.Handler(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})

	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	select {
	case <-httpServer.Ready():
		logger.Info("bureau-ci-service running",
			"version", version.Info(),
			"environment", string(cfg.Environment),
			"address", httpServer.Addr().String(),
			"ledger", history.Path(),
			"builds", history.Len(),
		)
	case err := <-httpDone:
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	hub.Close()
	return <-httpDone
}

// loadEnvFile loads path into the environment without overriding
// variables that are already set. A missing file is an error only when
// it was named explicitly.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the file named by --config, then the one named by
// BUREAU_CI_CONFIG, and otherwise returns the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}
