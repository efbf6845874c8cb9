package git

import (
	"context"
	"errors"
)

const OriginRemote = "origin"

var (
	ErrRemoteNotFound    = errors.New("remote not found")
	ErrRemoteURLMismatch = errors.New("remote URL does not match expected value")
	ErrNotDirectory      = errors.New("clone target exists and is not a directory")
)

type CheckoutTarget struct {
	Branch string
	Digest string
	// Offline suppresses every network fetch.
	Offline bool
}

// Remote is a named remote of a local repository whose URL can be rewritten
// in the persisted repository configuration.
type Remote interface {
	Name() string
	// SetURL replaces the remote URL. When oldURL is non-empty the current URL
	// must equal it, otherwise ErrRemoteURLMismatch is returned.
	SetURL(ctx context.Context, newURL string, oldURL string) error
}

type Repository interface {
	Path() string
	ProjectName() string
	Remote(name string) (Remote, error)
}

// Operations is the git plumbing the clone and checkout orchestration relies on.
type Operations interface {
	// CloneRemoteRepo returns a nil Repository and no error when dir already
	// holds content; nothing is cloned in that case.
	CloneRemoteRepo(ctx context.Context, dir string, url string) (Repository, error)
	OpenLocalRepo(ctx context.Context, dir string) (Repository, error)
	GetRemoteOriginOfLocalRepo(ctx context.Context, repo Repository) (string, error)
	// CheckOutRepoTarget reports ordinary checkout failures (unknown branch,
	// missing commit, failed fetch) as false. Errors are reserved for
	// conditions that prevent the attempt itself.
	CheckOutRepoTarget(ctx context.Context, repo Repository, target CheckoutTarget) (bool, error)
}
