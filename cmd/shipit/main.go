package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/shipit-dev/shipit/internal/docker"
	"github.com/shipit-dev/shipit/internal/registry"
	"github.com/shipit-dev/shipit/internal/runner"
	"github.com/shipit-dev/shipit/pkg/config"
	"github.com/shipit-dev/shipit/pkg/k8s"
	"github.com/shipit-dev/shipit/pkg/logging"
)

func main() {
	var (
		configPath   string
		registryAddr string
		namespace    string
		kubeconfig   string
		force        bool
		reset        bool
	)

	flag.StringVar(&configPath, "config", "shipit.yaml", "Path to configuration file")
	flag.StringVar(&registryAddr, "registry", "", "Override the configured registry address")
	flag.StringVar(&namespace, "namespace", "", "Override the configured namespace")
	flag.StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file (optional for out-of-cluster)")
	flag.BoolVar(&force, "force", false, "Rebuild all directories regardless of stored fingerprints")
	flag.BoolVar(&reset, "reset", false, "Discard all persisted fingerprints before running")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if registryAddr != "" {
		cfg.Registry = registryAddr
	}
	if namespace != "" {
		cfg.Namespace = namespace
	}

	if err := logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logging.Logger.Info("Configuration loaded",
		zap.String("config", configPath),
		zap.String("registry", cfg.Registry),
		zap.String("namespace", cfg.Namespace),
		zap.Int("services", len(cfg.Services)))

	k8sClient, err := k8s.NewClient(kubeconfig)
	if err != nil {
		logging.Logger.Fatal("Failed to create Kubernetes client", zap.Error(err))
	}

	r := runner.New(cfg, docker.NewShellBuilder(), k8sClient, registry.NewVerifier(), runner.Options{
		Force: force,
		Reset: reset,
	})

	outcome, err := r.Run(context.Background())
	if err != nil {
		reportFailure(err)
		os.Exit(1)
	}

	switch outcome.State {
	case runner.StateAllSkipped:
		logging.Logger.Info("Run complete, nothing to do")
	case runner.StateCompleted:
		logging.Logger.Info("Run complete",
			zap.String("tag", outcome.RunTag),
			zap.Int("deployed", len(outcome.Results)))
	}
}

// reportFailure logs the error with its category and the offending item
func reportFailure(err error) {
	var prereq *runner.PrerequisiteError
	var build *runner.BuildError
	var deploy *runner.DeployError

	switch {
	case errors.As(err, &prereq):
		logging.Logger.Error("Prerequisite check failed",
			zap.String("item", prereq.Item),
			zap.String("reason", prereq.Reason))
	case errors.As(err, &build):
		logging.Logger.Error("Build failed, run aborted",
			zap.String("dir", build.Dir),
			zap.Error(build.Err))
	case errors.As(err, &deploy):
		logging.Logger.Error("Deploy failed, run aborted",
			zap.String("deployment", deploy.Deployment),
			zap.Error(deploy.Err))
	default:
		logging.Logger.Error("Run failed", zap.Error(err))
	}
}
