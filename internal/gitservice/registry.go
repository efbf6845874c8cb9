package gitservice

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vriesdemichael/git-service-cli/internal/config"
	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
	"github.com/vriesdemichael/git-service-cli/internal/git"
	"github.com/vriesdemichael/git-service-cli/internal/git/giturl"
)

// Registry holds the services of a process, in resolution order.
type Registry struct {
	services []*Service
}

func NewRegistry(services ...*Service) *Registry {
	return &Registry{services: services}
}

// NewRegistryFromConfig builds one service per known variant, each reading
// its token lazily from cfg.Tokens, and loads their defaults.
func NewRegistryFromConfig(cfg config.AppConfig, ops git.Operations, logger *zap.Logger) (*Registry, error) {
	services := make([]*Service, 0, len(Variants()))
	for _, variant := range Variants() {
		tokens := TokenFunc(cfg.Tokens.Accessor(variant.TokenName))
		services = append(services, New(variant, tokens, ops, WithLogger(logger)))
	}

	registry := NewRegistry(services...)
	if err := registry.LoadDefaults(cfg.Settings); err != nil {
		return nil, err
	}

	return registry, nil
}

// LoadDefaults configures every service and stops at the first error.
func (registry *Registry) LoadDefaults(loader HostnameLoader) error {
	for _, service := range registry.services {
		if err := service.LoadDefaults(loader); err != nil {
			return err
		}
	}

	return nil
}

func (registry *Registry) Services() []*Service {
	return registry.services
}

// Resolve returns the first configured service whose hostname serves rawURL.
func (registry *Registry) Resolve(rawURL string) (*Service, error) {
	host := giturl.Host(rawURL)
	if host == "" {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unsupported repository URL %q", giturl.Redact(rawURL)), nil)
	}

	for _, service := range registry.services {
		if service.Hostname() != "" && service.Hostname() == host {
			return service, nil
		}
	}

	return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("no configured git service serves host %q", host), nil)
}
