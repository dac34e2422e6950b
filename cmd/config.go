package main

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the template config file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("Config written to %s\n", path)
	r.writePlain("Set client_id, client_secret and redirect_uri from your Spotify app dashboard.\n")
	return nil
}

// ConfigCheck validates the effective configuration (file plus environment) and prints it masked.
func (r *Runner) ConfigCheck(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if err := toml.NewEncoder(r.output).Encode(config.Masked()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return err
	}
	if config.Session.Secret == "" {
		r.logger.Warn("session.secret is empty; a random secret will be generated at startup")
	}

	r.writePlain("\nconfiguration OK\n")
	return nil
}
