package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"admart/pkg/models"
)

func GetConfigPath() string {
	// Check for environment variable first
	if configPath := os.Getenv("ADMART_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".admart")
}

func GetConfigFile() string {
	if configFile := os.Getenv("ADMART_CONFIG"); configFile != "" {
		return filepath.Clean(configFile)
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Load reads the config file, decrypting any encrypted credentials.
// A missing file yields an empty config, not an error; required fields
// are validated by FromEnv once the environment is merged in.
func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return &models.Config{}, nil
	}

	data, err := os.ReadFile(configFile) // #nosec G304 - path is cleaned above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if IsEncrypted(config.API.AccessToken) {
		token, err := DecryptSecret(config.API.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stored access token: %w", err)
		}
		config.API.AccessToken = token
	}
	if IsEncrypted(config.Warehouse.Password) {
		password, err := DecryptSecret(config.Warehouse.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stored warehouse password: %w", err)
		}
		config.Warehouse.Password = password
	}

	return &config, nil
}

// Save writes the config file, encrypting credentials at rest.
func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	toWrite := *config
	if toWrite.API.AccessToken != "" {
		enc, err := EncryptSecret(toWrite.API.AccessToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt access token: %w", err)
		}
		toWrite.API.AccessToken = enc
	}
	if toWrite.Warehouse.Password != "" {
		enc, err := EncryptSecret(toWrite.Warehouse.Password)
		if err != nil {
			return fmt.Errorf("failed to encrypt warehouse password: %w", err)
		}
		toWrite.Warehouse.Password = enc
	}

	data, err := yaml.Marshal(&toWrite)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
