package gitservice

import (
	"context"
	"path/filepath"

	"github.com/vriesdemichael/git-service-cli/internal/git"
)

type fakeRepository struct {
	path    string
	remotes map[string]string
	// setURLErr, when set, decides the outcome of each SetURL call.
	setURLErr   func(call int, newURL string) error
	setURLCalls []string
}

func newFakeRepository(path string, origin string) *fakeRepository {
	return &fakeRepository{path: path, remotes: map[string]string{git.OriginRemote: origin}}
}

func (repository *fakeRepository) Path() string {
	return repository.path
}

func (repository *fakeRepository) ProjectName() string {
	return filepath.Base(repository.path)
}

func (repository *fakeRepository) Remote(name string) (git.Remote, error) {
	if _, ok := repository.remotes[name]; !ok {
		return nil, git.ErrRemoteNotFound
	}
	return &fakeRemote{name: name, repository: repository}, nil
}

type fakeRemote struct {
	name       string
	repository *fakeRepository
}

func (remote *fakeRemote) Name() string {
	return remote.name
}

func (remote *fakeRemote) SetURL(ctx context.Context, newURL string, oldURL string) error {
	repository := remote.repository
	repository.setURLCalls = append(repository.setURLCalls, newURL)
	if err := ctx.Err(); err != nil {
		return err
	}
	if repository.setURLErr != nil {
		if err := repository.setURLErr(len(repository.setURLCalls), newURL); err != nil {
			return err
		}
	}
	if oldURL != "" && repository.remotes[remote.name] != oldURL {
		return git.ErrRemoteURLMismatch
	}
	repository.remotes[remote.name] = newURL
	return nil
}

type fakeOperations struct {
	repositories map[string]*fakeRepository
	cloneErr     error
	clonedURLs   []string
	// dropOrigin removes the origin remote of freshly cloned repositories.
	dropOrigin bool
	setURLErr  func(call int, newURL string) error

	checkout     func(ctx context.Context, target git.CheckoutTarget) (bool, error)
	checkoutURLs []string
	targets      []git.CheckoutTarget
}

func newFakeOperations() *fakeOperations {
	return &fakeOperations{repositories: map[string]*fakeRepository{}}
}

func (ops *fakeOperations) CloneRemoteRepo(_ context.Context, dir string, url string) (git.Repository, error) {
	if ops.cloneErr != nil {
		return nil, ops.cloneErr
	}
	if _, ok := ops.repositories[dir]; ok {
		return nil, nil
	}

	ops.clonedURLs = append(ops.clonedURLs, url)
	repository := newFakeRepository(dir, url)
	repository.setURLErr = ops.setURLErr
	if ops.dropOrigin {
		delete(repository.remotes, git.OriginRemote)
	}
	ops.repositories[dir] = repository
	return repository, nil
}

func (ops *fakeOperations) OpenLocalRepo(_ context.Context, dir string) (git.Repository, error) {
	repository, ok := ops.repositories[dir]
	if !ok {
		return nil, git.ErrRemoteNotFound
	}
	return repository, nil
}

func (ops *fakeOperations) GetRemoteOriginOfLocalRepo(_ context.Context, repository git.Repository) (string, error) {
	url, ok := repository.(*fakeRepository).remotes[git.OriginRemote]
	if !ok {
		return "", git.ErrRemoteNotFound
	}
	return url, nil
}

func (ops *fakeOperations) CheckOutRepoTarget(ctx context.Context, repository git.Repository, target git.CheckoutTarget) (bool, error) {
	ops.checkoutURLs = append(ops.checkoutURLs, repository.(*fakeRepository).remotes[git.OriginRemote])
	ops.targets = append(ops.targets, target)
	if ops.checkout != nil {
		return ops.checkout(ctx, target)
	}
	return true, nil
}

type fakeLoader struct {
	hostnames map[string]string
	err       error
}

func (loader fakeLoader) Hostname(section string) (string, error) {
	if loader.err != nil {
		return "", loader.err
	}
	return loader.hostnames[section], nil
}
