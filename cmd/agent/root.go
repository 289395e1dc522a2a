package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpw1134/web-automation-agent/internal/infrastructure/config"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/env"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "agent",
		Short:         "Web automation agent driven by a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	load := func() (*config.Config, error) {
		if _, err := env.Load(); err != nil {
			return nil, err
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newRunCmd(load))
	return root
}
