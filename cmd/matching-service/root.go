package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/config"
	"jobmate/matching-service/internal/logger"
)

const app = "matching-service"

// rootOptions is shared by every subcommand.
type rootOptions struct {
	cfgFile string
	v       *viper.Viper
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:          app,
		Short:        "matching-service ranks job postings against each user's active resume",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "a config file (default is matching-service.yaml in current directory)")
	cmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	cmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	o.bind(config.KeyLogDebug, cmd, "debug")
	o.bind(config.KeyLogJSON, cmd, "json")

	cmd.AddCommand(
		newServeCmd(o),
		newRecomputeCmd(o),
		newMigrateCmd(o),
		newVersionCmd(),
	)
	return cmd
}

// bind makes the named flag of cmd the highest-precedence source for key.
func (o *rootOptions) bind(key string, cmd *cobra.Command, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if err := o.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag for %s: %v", key, err))
	}
}

// load resolves the configuration and builds the logger.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	if err := config.ReadFile(o.v, o.cfgFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(o.v)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}
