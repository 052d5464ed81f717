package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GlobalConfig is the client state stored in config.json.
type GlobalConfig struct {
	APIToken string `json:"api_token,omitempty"`
	APIURL   string `json:"api_url"`
	// DefaultKB is used by upload when --kb is not given.
	DefaultKB string `json:"default_kb,omitempty"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "interviewqa"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig returns nil, not an error, when config.json does not exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes config.json with 0600 permissions since it may hold a token.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the config.json file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// CredentialSource represents where credentials came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceDefault      CredentialSource = "default"
)

// Settings is the resolved client configuration.
type Settings struct {
	APIURL      string
	APIToken    string
	DefaultKB   string
	URLSource   CredentialSource
	TokenSource CredentialSource
}

// ResolveSettings applies the cascade flag → env → config.json → default,
// independently for the URL and the token.
func ResolveSettings(flagURL, flagToken string) (*Settings, error) {
	global, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if global == nil {
		global = &GlobalConfig{}
	}

	s := &Settings{DefaultKB: global.DefaultKB}

	switch {
	case flagURL != "":
		s.APIURL, s.URLSource = flagURL, SourceFlag
	case os.Getenv(envAPIURL) != "":
		s.APIURL, s.URLSource = os.Getenv(envAPIURL), SourceEnv
	case global.APIURL != "":
		s.APIURL, s.URLSource = global.APIURL, SourceGlobalConfig
	default:
		s.APIURL, s.URLSource = defaultAPIURL, SourceDefault
	}

	switch {
	case flagToken != "":
		s.APIToken, s.TokenSource = flagToken, SourceFlag
	case os.Getenv(envAPIToken) != "":
		s.APIToken, s.TokenSource = os.Getenv(envAPIToken), SourceEnv
	case global.APIToken != "":
		s.APIToken, s.TokenSource = global.APIToken, SourceGlobalConfig
	default:
		s.TokenSource = SourceDefault
	}

	return s, nil
}
