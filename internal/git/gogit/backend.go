// Package gogit implements git.Operations on top of go-git, without
// requiring a git binary for clone, fetch and checkout.
package gogit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
	"github.com/vriesdemichael/git-service-cli/internal/git"
	"github.com/vriesdemichael/git-service-cli/internal/git/giturl"
	"github.com/vriesdemichael/git-service-cli/internal/logging"
)

type Backend struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Backend {
	return &Backend{logger: logging.OrNop(logger)}
}

func (backend *Backend) CloneRemoteRepo(ctx context.Context, dir string, url string) (git.Repository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, apperrors.New(apperrors.KindValidation, "clone directory cannot be empty", nil)
	}

	exists, err := git.PrepareCloneDir(dir)
	if err != nil {
		return nil, apperrors.New(apperrors.KindClone, fmt.Sprintf("cannot prepare clone directory %s", dir), err)
	}
	if exists {
		backend.logger.Debug("clone directory is not empty, skipping clone", zap.String("dir", dir))
		return nil, nil
	}

	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:        url,
		RemoteName: git.OriginRemote,
		Tags:       gogit.AllTags,
	})
	if err != nil {
		// A partial clone may already hold the credentialed URL in .git/config.
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			backend.logger.Warn("failed to remove partial clone", zap.String("dir", dir), zap.Error(removeErr))
		}
		return nil, apperrors.New(
			apperrors.KindClone,
			fmt.Sprintf("failed to clone %s into %s", giturl.Redact(url), dir),
			errors.New(giturl.Redact(err.Error())),
		)
	}

	backend.logger.Debug("cloned repository", zap.String("dir", dir), zap.String("url", giturl.Redact(url)))
	return &Repository{path: dir, repo: repo}, nil
}

func (backend *Backend) OpenLocalRepo(_ context.Context, dir string) (git.Repository, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("no git repository at %s", dir), err)
		}
		return nil, apperrors.New(apperrors.KindPermanent, fmt.Sprintf("cannot open repository at %s", dir), err)
	}

	return &Repository{path: dir, repo: repo}, nil
}

func (backend *Backend) GetRemoteOriginOfLocalRepo(_ context.Context, repository git.Repository) (string, error) {
	handle, err := unwrap(repository)
	if err != nil {
		return "", err
	}

	remote, err := handle.repo.Remote(git.OriginRemote)
	if err != nil {
		return "", remoteError(err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 || strings.TrimSpace(urls[0]) == "" {
		return "", fmt.Errorf("remote %q of %s has no URL: %w", git.OriginRemote, handle.path, git.ErrRemoteNotFound)
	}

	return urls[0], nil
}

func (backend *Backend) CheckOutRepoTarget(ctx context.Context, repository git.Repository, target git.CheckoutTarget) (bool, error) {
	handle, err := unwrap(repository)
	if err != nil {
		return false, err
	}

	logger := backend.logger.With(zap.String("repo", handle.path), zap.String("branch", target.Branch), zap.String("digest", target.Digest))

	if !target.Offline {
		err := handle.repo.FetchContext(ctx, &gogit.FetchOptions{
			RemoteName: git.OriginRemote,
			Tags:       gogit.AllTags,
			Force:      true,
		})
		if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			logger.Debug("fetch failed", zap.String("error", giturl.Redact(err.Error())))
			return false, nil
		}
	}

	worktree, err := handle.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree of %s: %w", handle.path, err)
	}

	if target.Branch != "" {
		if err := checkOutBranch(handle.repo, worktree, target.Branch); err != nil {
			logger.Debug("branch checkout failed", zap.Error(err))
			return false, nil
		}
	}

	if target.Digest == "" {
		return true, nil
	}

	hash, err := handle.repo.ResolveRevision(plumbing.Revision(target.Digest))
	if err != nil {
		logger.Debug("commit not found", zap.Error(err))
		return false, nil
	}

	if err := worktree.Checkout(&gogit.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		logger.Debug("commit checkout failed", zap.Error(err))
		return false, nil
	}

	head, err := handle.repo.Head()
	if err != nil || head.Hash() != *hash {
		logger.Debug("HEAD does not point at the requested commit")
		return false, nil
	}

	return true, nil
}

func checkOutBranch(repo *gogit.Repository, worktree *gogit.Worktree, branch string) error {
	local := plumbing.NewBranchReferenceName(branch)

	tracking, err := repo.Reference(plumbing.NewRemoteReferenceName(git.OriginRemote, branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return worktree.Checkout(&gogit.CheckoutOptions{Branch: local, Force: true})
	}
	if err != nil {
		return err
	}

	if _, err := repo.Reference(local, true); err != nil {
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return err
		}
		return worktree.Checkout(&gogit.CheckoutOptions{Branch: local, Hash: tracking.Hash(), Create: true, Force: true})
	}

	if err := worktree.Checkout(&gogit.CheckoutOptions{Branch: local, Force: true}); err != nil {
		return err
	}

	return worktree.Reset(&gogit.ResetOptions{Commit: tracking.Hash(), Mode: gogit.HardReset})
}

type Repository struct {
	path string
	repo *gogit.Repository
}

func (repository *Repository) Path() string {
	return repository.path
}

func (repository *Repository) ProjectName() string {
	return filepath.Base(filepath.Clean(repository.path))
}

func (repository *Repository) Remote(name string) (git.Remote, error) {
	if _, err := repository.repo.Remote(name); err != nil {
		return nil, remoteError(err)
	}

	return &Remote{name: name, repo: repository.repo}, nil
}

type Remote struct {
	name string
	repo *gogit.Repository
}

func (remote *Remote) Name() string {
	return remote.name
}

func (remote *Remote) SetURL(_ context.Context, newURL string, oldURL string) error {
	cfg, err := remote.repo.Config()
	if err != nil {
		return fmt.Errorf("read repository config: %w", err)
	}

	remoteConfig, ok := cfg.Remotes[remote.name]
	if !ok {
		return fmt.Errorf("%q: %w", remote.name, git.ErrRemoteNotFound)
	}

	if oldURL != "" && (len(remoteConfig.URLs) == 0 || remoteConfig.URLs[0] != oldURL) {
		return git.ErrRemoteURLMismatch
	}

	remoteConfig.URLs = []string{newURL}
	if err := remote.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("write repository config: %s", giturl.Redact(err.Error()))
	}

	return nil
}

func unwrap(repository git.Repository) (*Repository, error) {
	handle, ok := repository.(*Repository)
	if !ok || handle == nil || handle.repo == nil {
		return nil, apperrors.New(apperrors.KindInternal, fmt.Sprintf("unsupported repository handle %T", repository), nil)
	}

	return handle, nil
}

func remoteError(err error) error {
	if errors.Is(err, gogit.ErrRemoteNotFound) {
		return fmt.Errorf("%w: %v", git.ErrRemoteNotFound, err)
	}

	return err
}
