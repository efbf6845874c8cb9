package gitservice

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
	"github.com/vriesdemichael/git-service-cli/internal/git"
	"github.com/vriesdemichael/git-service-cli/internal/git/giturl"
	"github.com/vriesdemichael/git-service-cli/internal/logging"
)

// tokenUser is the username GitLab expects for token authentication over https.
const tokenUser = "oauth2"

// ErrRemoteState marks failures that may have left a credentialed URL in the
// repository configuration. The repository should be removed.
var ErrRemoteState = errors.New("origin remote is in an unexpected state")

// TokenSource yields the current access token, or the empty string.
type TokenSource interface {
	CurrentToken() string
}

type TokenFunc func() string

func (fn TokenFunc) CurrentToken() string {
	if fn == nil {
		return ""
	}
	return fn()
}

// HostnameLoader reads the hostname of a configuration section. A missing
// section yields "" and no error.
type HostnameLoader interface {
	Hostname(section string) (string, error)
}

// Service is one git service endpoint. It is created once at startup,
// configured through LoadDefaults and not modified afterwards.
type Service struct {
	variant  Variant
	hostname string
	tokens   TokenSource
	ops      git.Operations
	logger   *zap.Logger
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(service *Service) {
		service.logger = logging.OrNop(logger)
	}
}

func New(variant Variant, tokens TokenSource, ops git.Operations, options ...Option) *Service {
	service := &Service{
		variant: variant,
		tokens:  tokens,
		ops:     ops,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(service)
	}
	service.logger = service.logger.With(zap.String("service", variant.String()))

	return service
}

func (service *Service) Kind() Kind {
	return service.variant.Kind
}

func (service *Service) Variant() Variant {
	return service.variant
}

// Hostname is empty until LoadDefaults found a configured host.
func (service *Service) Hostname() string {
	return service.hostname
}

func (service *Service) HasToken() bool {
	return service.currentToken() != ""
}

// LoadDefaults sets the hostname from the variant's configuration section.
func (service *Service) LoadDefaults(loader HostnameLoader) error {
	if service.hostname != "" {
		return apperrors.New(apperrors.KindInternal, fmt.Sprintf("%s is already configured for %s", service.variant, service.hostname), nil)
	}

	hostname, err := loader.Hostname(service.variant.Section)
	if err != nil {
		return err
	}

	if hostname == "" {
		hostname = service.variant.DefaultHostname
	}
	if hostname == "" {
		service.logger.Debug("no hostname configured, service disabled", zap.String("section", service.variant.Section))
		return nil
	}

	if service.variant.TokenMandatory && service.currentToken() == "" {
		return apperrors.New(
			apperrors.KindConfiguration,
			fmt.Sprintf("environment variable %s for %s is not set for git service %q", service.variant.TokenName, service.variant, hostname),
			nil,
		)
	}

	service.hostname = hostname
	service.logger.Debug("service configured", zap.String("hostname", hostname), zap.Bool("token", service.HasToken()))
	return nil
}

// ConstructCloneURL returns the URL used for network operations: the origin
// form of rawURL with the access token embedded when one is available. Only
// URLs on the service's own host are accepted.
func (service *Service) ConstructCloneURL(rawURL string) (string, error) {
	if service.hostname == "" {
		service.logger.Debug("cannot construct a clone URL without a hostname")
		return "", apperrors.New(
			apperrors.KindClone,
			fmt.Sprintf("cannot clone the repo '%s' due to an internal error", giturl.Redact(rawURL)),
			apperrors.New(apperrors.KindInternal, fmt.Sprintf("%s has no hostname", service.variant), nil),
		)
	}

	parsed, err := giturl.Parse(rawURL, service.hostname)
	if err != nil {
		return "", apperrors.New(
			apperrors.KindClone,
			fmt.Sprintf("cannot clone the repo '%s' due to the URL format being invalid or not supported", giturl.Redact(rawURL)),
			err,
		)
	}

	cloneURL := url.URL{Scheme: parsed.Scheme, Host: service.hostname, Path: parsed.Path}
	if token := service.currentToken(); token != "" {
		cloneURL.User = url.UserPassword(tokenUser, token)
	}

	return cloneURL.String(), nil
}

// CloneRepo clones url into dir and reports whether a clone happened. On
// success the persisted origin URL is url itself, never the credentialed
// clone URL. An existing non-empty dir is left untouched and reported as
// not cloned.
func (service *Service) CloneRepo(ctx context.Context, dir string, rawURL string) (bool, error) {
	cloneURL, err := service.ConstructCloneURL(rawURL)
	if err != nil {
		return false, err
	}

	// Errors from the clone itself leave no repository behind, so there is
	// nothing to restore on that path.
	repository, err := service.ops.CloneRemoteRepo(ctx, dir, cloneURL)
	if err != nil {
		return false, err
	}
	if repository == nil {
		service.logger.Info("repository already present, skipping clone", zap.String("dir", dir))
		return false, nil
	}

	origin, err := repository.Remote(git.OriginRemote)
	if err != nil {
		return false, apperrors.New(
			apperrors.KindClone,
			fmt.Sprintf("cannot find the remote origin for the repository at %s; consider removing it", dir),
			errors.Join(ErrRemoteState, err),
		)
	}

	if err := origin.SetURL(context.WithoutCancel(ctx), rawURL, cloneURL); err != nil {
		return false, apperrors.New(
			apperrors.KindClone,
			fmt.Sprintf("failed to set the remote origin URL because this repository is in an unexpected state; consider removing the cloned repository at %s", dir),
			errors.Join(ErrRemoteState, err),
		)
	}

	service.logger.Debug("cloned repository", zap.String("dir", dir), zap.String("url", giturl.Redact(rawURL)))
	return true, nil
}

// CheckOutRepo checks out branch and digest of repository. The origin URL
// carries the access token only while the checkout runs and is restored
// before any checkout failure is reported.
func (service *Service) CheckOutRepo(ctx context.Context, repository git.Repository, branch string, digest string, offline bool) (git.Repository, error) {
	originalURL, err := service.ops.GetRemoteOriginOfLocalRepo(ctx, repository)
	if err != nil {
		return nil, apperrors.New(apperrors.KindCheckout, "cannot read the remote origin URL of this repository", err)
	}

	origin, err := repository.Remote(git.OriginRemote)
	if err != nil {
		return nil, apperrors.New(apperrors.KindCheckout, "cannot find the remote origin for this repository", err)
	}

	cloneURL, err := service.ConstructCloneURL(originalURL)
	if err != nil {
		return nil, apperrors.New(apperrors.KindCheckout, "cannot parse the remote origin URL of this repository", err)
	}

	if err := origin.SetURL(ctx, cloneURL, originalURL); err != nil {
		return nil, apperrors.New(
			apperrors.KindCheckout,
			"failed to set the remote origin URL because this repository is in an unexpected state; consider removing the cloned repository",
			errors.Join(ErrRemoteState, err),
		)
	}

	target := git.CheckoutTarget{Branch: branch, Digest: digest, Offline: offline}
	checkedOut, checkoutErr := service.checkOutTarget(ctx, repository, target)

	// Restore regardless of the checkout outcome and of caller cancellation.
	if err := origin.SetURL(context.WithoutCancel(ctx), originalURL, cloneURL); err != nil {
		service.logger.Error("failed to restore the remote origin URL", zap.String("repo", repository.Path()), zap.Error(err))
		return nil, apperrors.New(
			apperrors.KindCheckout,
			"failed to restore the remote origin URL because this repository is in an unexpected state; consider removing the cloned repository",
			errors.Join(ErrRemoteState, err, checkoutErr),
		)
	}

	if checkoutErr != nil || !checkedOut {
		return nil, apperrors.New(
			apperrors.KindCheckout,
			fmt.Sprintf("failed to check out branch %s and commit %s for repo %s", branch, digest, repository.ProjectName()),
			checkoutErr,
		)
	}

	return repository, nil
}

// checkOutTarget turns collaborator errors and panics into a value so the
// caller can always restore the origin URL first.
func (service *Service) checkOutTarget(ctx context.Context, repository git.Repository, target git.CheckoutTarget) (checkedOut bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			checkedOut = false
			err = fmt.Errorf("checkout aborted: %v", recovered)
		}
	}()

	return service.ops.CheckOutRepoTarget(ctx, repository, target)
}

func (service *Service) currentToken() string {
	if service.tokens == nil {
		return ""
	}
	return service.tokens.CurrentToken()
}
