package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/repositories"
	"github.com/desertthunder/reelx/internal/shared"
)

// Setup creates config.toml when missing and prepares the configured session storage.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", configPath)
	}
	shared.ApplyEnv(config)

	if err := config.Validate(); err != nil {
		return err
	}

	r.logger.Info("preparing session storage", "driver", config.Storage.Driver)
	_, closer, err := repositories.Open(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to prepare storage: %w", err)
	}
	defer closer.Close()

	r.config = config
	r.configPath = configPath

	if err := r.writePlain("%s config: %s\n", r.palette.OK("✓"), configPath); err != nil {
		return err
	}
	return r.writePlain("%s storage: %s\n", r.palette.OK("✓"), storageLabel(config))
}

func storageLabel(c *shared.Config) string {
	switch c.Storage.Driver {
	case "file":
		return "file " + shared.ExpandHome(c.Storage.FilePath)
	case "redis":
		return "redis " + c.Storage.RedisAddr
	default:
		return "sqlite " + c.Storage.Path
	}
}
