// Package config provides a reusable loader for wallet-node configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"armorycore/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a wallet node. It mirrors
// the structure of the YAML files under cmd/walletnode/config.
type Config struct {
	Network struct {
		ListenAddr      string `mapstructure:"listen_addr" json:"listen_addr"`
		Network         string `mapstructure:"network" json:"network"` // mainnet/testnet/regtest
		DefaultCipher   string `mapstructure:"default_cipher" json:"default_cipher"`
		RekeyBytesLimit uint64 `mapstructure:"rekey_bytes_limit" json:"rekey_bytes_limit"`
		CookieFile      bool   `mapstructure:"cookie_file" json:"cookie_file"`
	} `mapstructure:"network" json:"network"`

	Storage struct {
		DataDir    string `mapstructure:"data_dir" json:"data_dir"`
		WalletFile string `mapstructure:"wallet_file" json:"wallet_file"`
	} `mapstructure:"storage" json:"storage"`

	KDF struct {
		TargetSeconds float64 `mapstructure:"target_seconds" json:"target_seconds"`
		MaxMemoryMiB  int     `mapstructure:"max_memory_mib" json:"max_memory_mib"`
	} `mapstructure:"kdf" json:"kdf"`

	Indexer struct {
		BlockFilesDir string `mapstructure:"block_files_dir" json:"block_files_dir"`
		Workers       int    `mapstructure:"workers" json:"workers"`
	} `mapstructure:"indexer" json:"indexer"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/walletnode/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up environment overrides of known keys; no env prefix is set

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the WALLETNODE_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("WALLETNODE_ENV", ""))
}
