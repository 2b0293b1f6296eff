// Command bifrost-gatewayd fans out telemetry Snapshot calls to a fleet of
// bifrostd instances registered under a single endpoint, so a dashboard or
// CLI doesn't need to track every instance's address itself.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/bifrost-project/bifrost/common/go/logging"
	"github.com/bifrost-project/bifrost/common/go/xcmd"
	"github.com/bifrost-project/bifrost/telemetry"
)

var cmd struct {
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "bifrost-gatewayd",
	Short: "Bifrost telemetry gateway",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run(cmd.ConfigPath)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	_ = rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

// gatewayConfig is the gateway's own small config: where it listens, and
// which bifrostd instances it proxies to on startup. Instances can also be
// added later by calling Register directly if this binary is embedded.
type gatewayConfig struct {
	Logging   logging.Config    `yaml:"logging"`
	Endpoint  string            `yaml:"endpoint"`
	Instances map[string]string `yaml:"instances"`
}

func defaultGatewayConfig() *gatewayConfig {
	return &gatewayConfig{
		Logging:  logging.DefaultConfig(),
		Endpoint: "127.0.0.1:4502",
	}
}

func loadGatewayConfig(path string) (*gatewayConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := defaultGatewayConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}
	return cfg, nil
}

func run(configPath string) error {
	cfg, err := loadGatewayConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	registry := telemetry.NewBackendRegistry()
	for instance, endpoint := range cfg.Instances {
		if err := registry.Register(instance, endpoint); err != nil {
			return fmt.Errorf("failed to register instance %q: %w", instance, err)
		}
		log.Infow("registered telemetry backend", "instance", instance, "endpoint", endpoint)
	}

	gw := telemetry.NewGateway(cfg.Endpoint, registry, log)

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return gw.Run(ctx)
	})
	wg.Go(func() error {
		registry.Watch(ctx, log)
		return nil
	})
	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}
