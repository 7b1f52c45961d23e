// Config loading for the pledgewatch CLI.
package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

const (
	configFileName = "pledgewatch"
	configFileType = "yaml"

	// Config keys.
	cfgKeyDataDir    = "data_dir"
	cfgKeyStateFile  = "state_file"
	cfgKeyEventsFile = "events_file"

	// Defaults matching the cache files the state fetcher writes next to
	// the working directory.
	defaultDataDir    = ".pledgewatch-db"
	defaultStateFile  = "liquidPledgingState.json"
	defaultEventsFile = "liquidPledgingEvents.json"
)

// loadConfig reads the config file using Viper. With --config set the named
// file must exist; otherwise pledgewatch.yaml is looked up in the working
// directory and its absence is not an error.
func loadConfig() (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDataDir, defaultDataDir)
	v.SetDefault(cfgKeyStateFile, defaultStateFile)
	v.SetDefault(cfgKeyEventsFile, defaultEventsFile)

	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
		if err := v.ReadInConfig(); err != nil {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return types.Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}

	// Flags override config values.
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	return cfg, nil
}
