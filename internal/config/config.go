package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
)

const keyringServiceName = "gsc"

type AppConfig struct {
	Settings *Settings
	Tokens   *Tokens
}

// StoredConfig is the credentials file. Tokens only land in InsecureSecrets
// when the system keyring is unavailable.
type StoredConfig struct {
	Tokens          map[string]StoredToken  `yaml:"tokens,omitempty"`
	InsecureSecrets map[string]StoredSecret `yaml:"insecure_secrets,omitempty"`
}

type StoredToken struct {
	Storage string `yaml:"storage"`
}

type StoredSecret struct {
	Token string `yaml:"token,omitempty"`
}

type LoginInput struct {
	TokenName string
	Token     string
}

type LoginResult struct {
	TokenName           string
	UsedInsecureStorage bool
}

// Load reads the ini settings at settingsPath (see LoadSettings) and resolves
// every known token from .env, the environment and stored credentials, in
// that order of precedence.
func Load(settingsPath string) (AppConfig, error) {
	_ = godotenv.Load(".env")

	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return AppConfig{}, err
	}

	tokens, err := LoadTokens()
	if err != nil {
		return AppConfig{}, err
	}

	return AppConfig{Settings: settings, Tokens: tokens}, nil
}

func LoadTokens() (*Tokens, error) {
	tokens := NewTokens()
	for _, name := range tokenNames {
		if value := envOrDefault(name, ""); value != "" {
			tokens.Set(name, value, SourceEnv)
		}
	}

	if os.Getenv("GSC_DISABLE_STORED_CONFIG") == "1" {
		return tokens, nil
	}

	stored, err := LoadStoredConfig()
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfiguration, "cannot read stored credentials", err)
	}

	for _, name := range tokenNames {
		if tokens.Get(name) != "" {
			continue
		}
		if value, source := resolveStoredToken(stored, name); value != "" {
			tokens.Set(name, value, source)
		}
	}

	return tokens, nil
}

func SaveLogin(input LoginInput) (LoginResult, error) {
	name := strings.TrimSpace(input.TokenName)
	if !slices.Contains(tokenNames, name) {
		return LoginResult{}, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown token %q", input.TokenName), nil)
	}

	token := strings.TrimSpace(input.Token)
	if token == "" {
		return LoginResult{}, apperrors.New(apperrors.KindValidation, "token is required", nil)
	}

	stored, err := LoadStoredConfig()
	if err != nil {
		return LoginResult{}, apperrors.New(apperrors.KindConfiguration, "cannot read stored credentials", err)
	}

	result := LoginResult{TokenName: name}
	if err := keyring.Set(keyringServiceName, name, token); err != nil {
		stored.InsecureSecrets[name] = StoredSecret{Token: token}
		stored.Tokens[name] = StoredToken{Storage: SourceFile}
		result.UsedInsecureStorage = true
	} else {
		delete(stored.InsecureSecrets, name)
		stored.Tokens[name] = StoredToken{Storage: SourceKeyring}
	}

	if err := SaveStoredConfig(stored); err != nil {
		return LoginResult{}, err
	}

	return result, nil
}

func Logout(tokenName string) error {
	name := strings.TrimSpace(tokenName)
	if !slices.Contains(tokenNames, name) {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown token %q", tokenName), nil)
	}

	stored, err := LoadStoredConfig()
	if err != nil {
		return apperrors.New(apperrors.KindConfiguration, "cannot read stored credentials", err)
	}

	if _, ok := stored.Tokens[name]; !ok {
		return apperrors.New(apperrors.KindNotFound, fmt.Sprintf("no stored token for %s", name), nil)
	}

	_ = keyring.Delete(keyringServiceName, name)
	delete(stored.Tokens, name)
	delete(stored.InsecureSecrets, name)

	return SaveStoredConfig(stored)
}

func LoadStoredConfig() (StoredConfig, error) {
	path, err := CredentialsPath()
	if err != nil {
		return StoredConfig{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StoredConfig{Tokens: map[string]StoredToken{}, InsecureSecrets: map[string]StoredSecret{}}, nil
		}
		return StoredConfig{}, err
	}

	var stored StoredConfig
	if err := yaml.Unmarshal(raw, &stored); err != nil {
		return StoredConfig{}, err
	}
	if stored.Tokens == nil {
		stored.Tokens = map[string]StoredToken{}
	}
	if stored.InsecureSecrets == nil {
		stored.InsecureSecrets = map[string]StoredSecret{}
	}

	return stored, nil
}

func SaveStoredConfig(stored StoredConfig) error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	encoded, err := yaml.Marshal(stored)
	if err != nil {
		return err
	}

	return os.WriteFile(path, encoded, 0o600)
}

func CredentialsPath() (string, error) {
	if custom := strings.TrimSpace(os.Getenv("GSC_CREDENTIALS_PATH")); custom != "" {
		return custom, nil
	}

	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(baseDir, "gsc", "credentials.yaml"), nil
}

func resolveStoredToken(stored StoredConfig, name string) (string, string) {
	if _, ok := stored.Tokens[name]; !ok {
		return "", SourceNone
	}

	if token, err := keyring.Get(keyringServiceName, name); err == nil && strings.TrimSpace(token) != "" {
		return token, SourceKeyring
	}

	if insecure, ok := stored.InsecureSecrets[name]; ok && insecure.Token != "" {
		return insecure.Token, SourceFile
	}

	return "", SourceNone
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	return value
}
