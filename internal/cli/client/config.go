package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// envConfigDir overrides the directory holding config.json.
const envConfigDir = "REMIND_CONFIG_DIR"

// GlobalConfig is the daemon address saved by `remind config set`.
type GlobalConfig struct {
	APIToken string `json:"api_token,omitempty"`
	APIURL   string `json:"api_url"`
}

// GetConfigDir returns $REMIND_CONFIG_DIR, else <user config dir>/remind.
func GetConfigDir() (string, error) {
	if dir := os.Getenv(envConfigDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, "remind"), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadGlobalConfig returns nil, nil when no config has been saved.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// SaveGlobalConfig writes config.json with 0600 permissions since it may
// hold the bearer token.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}

	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DeleteGlobalConfig removes config.json; a missing file is not an error.
func DeleteGlobalConfig() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// CredentialSource represents where the daemon address came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceDefault      CredentialSource = "default"
)

// ResolveEndpoint applies the cascade flag -> env -> global config -> default
// independently to the URL and the token. The reported source is the URL's.
func ResolveEndpoint(flagURL, flagToken string) (CredentialSource, string, string, error) {
	source, url, token := SourceDefault, flagURL, flagToken
	if url != "" {
		source = SourceFlag
	}

	if url == "" {
		if url = os.Getenv(envAPIURL); url != "" {
			source = SourceEnv
		}
	}
	if token == "" {
		token = os.Getenv(envAPIToken)
	}

	if url == "" || token == "" {
		config, err := LoadGlobalConfig()
		if err != nil {
			return "", "", "", err
		}
		if config != nil {
			if url == "" && config.APIURL != "" {
				url = config.APIURL
				source = SourceGlobalConfig
			}
			if token == "" {
				token = config.APIToken
			}
		}
	}

	if url == "" {
		url = defaultAPIURL
	}
	return source, strings.TrimRight(url, "/"), token, nil
}
