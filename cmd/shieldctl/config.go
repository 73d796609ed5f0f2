// config.go - Configuration management for the shieldctl tool
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the tool configuration
type Config struct {
	// Service endpoints
	RelayerURL string `json:"relayer_url"`
	RPCURL     string `json:"rpc_url"`

	// Pool identity
	ProgramID    string `json:"program_id"`
	FeeRecipient string `json:"fee_recipient"`

	// Wallet
	WalletSeedFile string `json:"wallet_seed_file"`

	// File paths
	StoragePath string `json:"storage_path"`
	KeyDir      string `json:"key_dir"`

	// Proving
	ProverCommand string `json:"prover_command"`

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RelayerURL:     "http://localhost:8080",
		RPCURL:         "http://localhost:8899",
		WalletSeedFile: "wallet.seed",
		StoragePath:    "shieldpool.db",
		KeyDir:         "keys",
		LogLevel:       "info",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		cfg := DefaultConfig()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		return cfg, nil
	}

	// Create default config file
	cfg := DefaultConfig()
	if err := SaveConfig(cfg, configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes configuration to file
func SaveConfig(cfg *Config, configPath string) error {
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
