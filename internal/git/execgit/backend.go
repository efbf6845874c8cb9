package execgit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
	"github.com/vriesdemichael/git-service-cli/internal/git"
	"github.com/vriesdemichael/git-service-cli/internal/git/giturl"
	"github.com/vriesdemichael/git-service-cli/internal/logging"
)

const defaultTimeout = 5 * time.Minute

var digestPattern = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)

type Backend struct {
	Timeout time.Duration
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Backend {
	return &Backend{Timeout: defaultTimeout, logger: logging.OrNop(logger)}
}

func (backend *Backend) Version(ctx context.Context) (string, error) {
	result, err := backend.run(ctx, runOptions{args: []string{"--version"}})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(result.stdout), nil
}

func (backend *Backend) CloneRemoteRepo(ctx context.Context, dir string, url string) (git.Repository, error) {
	if strings.TrimSpace(url) == "" {
		return nil, apperrors.New(apperrors.KindValidation, "repository URL cannot be empty", nil)
	}

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

	_, err = backend.run(ctx, runOptions{args: []string{"clone", "--filter=tree:0", "--", url, dir}})
	if err != nil {
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			backend.logger.Warn("failed to remove partial clone", zap.String("dir", dir), zap.Error(removeErr))
		}
		return nil, apperrors.New(apperrors.KindClone, fmt.Sprintf("failed to clone %s into %s", giturl.Redact(url), dir), err)
	}

	return &Repository{path: dir, backend: backend}, nil
}

func (backend *Backend) OpenLocalRepo(ctx context.Context, dir string) (git.Repository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, apperrors.New(apperrors.KindValidation, "repository directory cannot be empty", nil)
	}

	result, err := backend.run(ctx, runOptions{cwd: dir, args: []string{"rev-parse", "--show-toplevel"}})
	if err != nil {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("no git repository at %s", dir), err)
	}

	// Only accept dir itself, not a parent repository it happens to live in.
	top := strings.TrimSpace(result.stdout)
	if !sameDirectory(top, dir) {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("no git repository at %s", dir), nil)
	}

	return &Repository{path: dir, backend: backend}, nil
}

func (backend *Backend) GetRemoteOriginOfLocalRepo(ctx context.Context, repository git.Repository) (string, error) {
	handle, err := unwrap(repository)
	if err != nil {
		return "", err
	}

	return handle.remoteURL(ctx, git.OriginRemote)
}

func (backend *Backend) CheckOutRepoTarget(ctx context.Context, repository git.Repository, target git.CheckoutTarget) (bool, error) {
	handle, err := unwrap(repository)
	if err != nil {
		return false, err
	}

	logger := backend.logger.With(zap.String("repo", handle.path), zap.String("branch", target.Branch), zap.String("digest", target.Digest))
	runGit := func(args ...string) (runResult, error) {
		return backend.run(ctx, runOptions{cwd: handle.path, args: args})
	}

	if !target.Offline {
		if _, err := runGit("fetch", "--force", "--tags", "origin"); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			logger.Debug("fetch failed", zap.Error(err))
			return false, nil
		}
	}

	if target.Branch != "" {
		if strings.HasPrefix(target.Branch, "-") {
			return false, nil
		}

		if _, err := runGit("rev-parse", "--verify", "--quiet", "refs/remotes/origin/"+target.Branch); err == nil {
			_, err = runGit("checkout", "--force", "-B", target.Branch, "origin/"+target.Branch)
			if err != nil {
				logger.Debug("branch checkout failed", zap.Error(err))
				return false, nil
			}
		} else if _, err := runGit("checkout", "--force", target.Branch, "--"); err != nil {
			logger.Debug("branch checkout failed", zap.Error(err))
			return false, nil
		}
	}

	if target.Digest == "" {
		return true, nil
	}

	if !digestPattern.MatchString(target.Digest) {
		return false, nil
	}

	want, err := runGit("rev-parse", "--verify", "--quiet", target.Digest+"^{commit}")
	if err != nil {
		logger.Debug("commit not found", zap.Error(err))
		return false, nil
	}

	if _, err := runGit("checkout", "--force", strings.TrimSpace(want.stdout)); err != nil {
		logger.Debug("commit checkout failed", zap.Error(err))
		return false, nil
	}

	head, err := runGit("rev-parse", "HEAD")
	if err != nil || strings.TrimSpace(head.stdout) != strings.TrimSpace(want.stdout) {
		return false, nil
	}

	return true, nil
}

type Repository struct {
	path    string
	backend *Backend
}

func (repository *Repository) Path() string {
	return repository.path
}

func (repository *Repository) ProjectName() string {
	return filepath.Base(filepath.Clean(repository.path))
}

func (repository *Repository) Remote(name string) (git.Remote, error) {
	if _, err := repository.remoteURL(context.Background(), name); err != nil {
		return nil, err
	}

	return &Remote{name: name, repository: repository}, nil
}

func (repository *Repository) remoteURL(ctx context.Context, name string) (string, error) {
	result, err := repository.backend.run(ctx, runOptions{cwd: repository.path, args: []string{"remote", "get-url", name}})
	if err != nil {
		return "", fmt.Errorf("%q: %w (%v)", name, git.ErrRemoteNotFound, err)
	}

	return strings.TrimSpace(result.stdout), nil
}

type Remote struct {
	name       string
	repository *Repository
}

func (remote *Remote) Name() string {
	return remote.name
}

func (remote *Remote) SetURL(ctx context.Context, newURL string, oldURL string) error {
	// git's own <oldurl> argument is a regex, so the comparison happens here.
	if oldURL != "" {
		current, err := remote.repository.remoteURL(ctx, remote.name)
		if err != nil {
			return err
		}
		if current != oldURL {
			return git.ErrRemoteURLMismatch
		}
	}

	_, err := remote.repository.backend.run(ctx, runOptions{
		cwd:  remote.repository.path,
		args: []string{"remote", "set-url", remote.name, newURL},
	})
	return err
}

type runOptions struct {
	cwd  string
	args []string
}

type runResult struct {
	stdout string
	stderr string
}

func (backend *Backend) run(ctx context.Context, options runOptions) (runResult, error) {
	if len(options.args) == 0 {
		return runResult{}, apperrors.New(apperrors.KindValidation, "git command cannot be empty", nil)
	}

	if backend.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, backend.Timeout)
		defer cancel()
	}

	command := exec.CommandContext(ctx, "git", options.args...)
	if options.cwd != "" {
		command.Dir = options.cwd
	}
	command.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	result := runResult{stdout: stdout.String(), stderr: stderr.String()}
	if err != nil {
		message := strings.TrimSpace(result.stderr)
		if message == "" {
			message = strings.TrimSpace(err.Error())
		}

		redacted := make([]string, len(options.args))
		for index, arg := range options.args {
			redacted[index] = giturl.Redact(arg)
		}

		kind := apperrors.KindPermanent
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = apperrors.KindTransient
		}
		return result, apperrors.New(kind, fmt.Sprintf("git %s failed: %s", strings.Join(redacted, " "), giturl.Redact(message)), err)
	}

	return result, nil
}

func unwrap(repository git.Repository) (*Repository, error) {
	handle, ok := repository.(*Repository)
	if !ok || handle == nil || handle.backend == nil {
		return nil, apperrors.New(apperrors.KindInternal, fmt.Sprintf("unsupported repository handle %T", repository), nil)
	}

	return handle, nil
}

func sameDirectory(left string, right string) bool {
	leftInfo, leftErr := os.Stat(left)
	rightInfo, rightErr := os.Stat(right)
	if leftErr != nil || rightErr != nil {
		return false
	}

	return os.SameFile(leftInfo, rightInfo)
}
