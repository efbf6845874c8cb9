package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
)

const (
	BackendGoGit = "go-git"
	BackendExec  = "exec"

	gitSection  = "git"
	hostnameKey = "hostname"
)

//go:embed defaults.ini
var defaultSettings []byte

// Settings is the merged view of the built-in defaults and the user's ini file.
type Settings struct {
	file *ini.File
	path string
}

// LoadSettings reads the built-in defaults and overlays path when it exists.
// An empty path resolves through SettingsPath.
func LoadSettings(path string) (*Settings, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		var err error
		resolved, err = SettingsPath()
		if err != nil {
			return nil, apperrors.New(apperrors.KindConfiguration, "cannot determine configuration path", err)
		}
	}

	sources := []any{defaultSettings}
	if _, err := os.Stat(resolved); err == nil {
		sources = append(sources, resolved)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.New(apperrors.KindConfiguration, fmt.Sprintf("cannot read configuration file %s", resolved), err)
	} else if strings.TrimSpace(path) != "" {
		return nil, apperrors.New(apperrors.KindConfiguration, fmt.Sprintf("configuration file %s does not exist", resolved), err)
	}

	file, err := ini.LoadSources(ini.LoadOptions{}, sources[0], sources[1:]...)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfiguration, fmt.Sprintf("malformed configuration file %s", resolved), err)
	}

	settings := &Settings{file: file, path: resolved}
	if err := settings.validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

func (settings *Settings) Path() string {
	return settings.path
}

// Hostname returns the hostname configured in section. A missing section
// yields the empty string; a section without a usable hostname is a
// configuration error.
func (settings *Settings) Hostname(section string) (string, error) {
	sec, err := settings.file.GetSection(section)
	if err != nil {
		return "", nil
	}

	hostname := strings.TrimSpace(sec.Key(hostnameKey).String())
	if hostname == "" {
		return "", apperrors.New(
			apperrors.KindConfiguration,
			fmt.Sprintf("the %q key is missing in section [%s] of the configuration file", hostnameKey, section),
			nil,
		)
	}

	if strings.ContainsAny(hostname, "/@: \t") {
		return "", apperrors.New(
			apperrors.KindConfiguration,
			fmt.Sprintf("invalid hostname %q in section [%s]: expected a bare host name", hostname, section),
			nil,
		)
	}

	return strings.ToLower(hostname), nil
}

func (settings *Settings) Backend() string {
	return strings.TrimSpace(settings.file.Section(gitSection).Key("backend").MustString(BackendGoGit))
}

func (settings *Settings) validate() error {
	switch backend := settings.Backend(); backend {
	case BackendGoGit, BackendExec:
		return nil
	default:
		return apperrors.New(apperrors.KindConfiguration, fmt.Sprintf("unknown git backend %q in section [%s]", backend, gitSection), nil)
	}
}

func SettingsPath() (string, error) {
	if custom := strings.TrimSpace(os.Getenv("GSC_CONFIG_PATH")); custom != "" {
		return custom, nil
	}

	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(baseDir, "gsc", "config.ini"), nil
}
