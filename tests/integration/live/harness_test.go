//go:build live

package live_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"

	"github.com/vriesdemichael/git-service-cli/internal/cli"
)

const defaultLiveRepoURL = "https://gitlab.com/gitlab-org/gitlab-test.git"

type liveHarness struct {
	t       *testing.T
	repoURL string
	branch  string
	workDir string
}

// newLiveHarness targets GSC_LIVE_REPO_URL (a repository on gitlab.com or on
// the configured self-hosted instance) and GSC_LIVE_BRANCH.
func newLiveHarness(t *testing.T) *liveHarness {
	t.Helper()

	if os.Getenv("GSC_LIVE") != "1" {
		t.Skip("GSC_LIVE=1 required for live tests")
	}

	repoURL := strings.TrimSpace(os.Getenv("GSC_LIVE_REPO_URL"))
	if repoURL == "" {
		repoURL = defaultLiveRepoURL
	}

	branch := strings.TrimSpace(os.Getenv("GSC_LIVE_BRANCH"))
	if branch == "" {
		branch = "master"
	}

	return &liveHarness{t: t, repoURL: repoURL, branch: branch, workDir: t.TempDir()}
}

func (h *liveHarness) run(args ...string) (string, error) {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	command := cli.NewRootCommand()
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(output)
	command.SetArgs(args)

	err := command.ExecuteContext(ctx)
	return output.String(), err
}

func (h *liveHarness) cloneDir(name string) string {
	return filepath.Join(h.workDir, name)
}

func (h *liveHarness) requireGit() {
	h.t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		h.t.Skip("git executable is required for the exec backend")
	}
}

// originURL reads the persisted origin URL straight from the repository config.
func (h *liveHarness) originURL(dir string) string {
	h.t.Helper()

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		h.t.Fatalf("open %s: %v", dir, err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		h.t.Fatalf("read origin of %s: %v", dir, err)
	}

	return remote.Config().URLs[0]
}

func (h *liveHarness) assertNoCredentials(dir string) {
	h.t.Helper()

	origin := h.originURL(dir)
	if strings.Contains(origin, "@") || strings.Contains(origin, "oauth2") {
		h.t.Fatalf("origin URL of %s still carries credentials: %s", dir, origin)
	}

	raw, err := os.ReadFile(filepath.Join(dir, ".git", "config"))
	if err != nil {
		h.t.Fatalf("read git config: %v", err)
	}
	for _, name := range []string{"GSC_GITLAB_TOKEN", "GSC_SELF_HOSTED_GITLAB_TOKEN"} {
		if token := os.Getenv(name); token != "" && strings.Contains(string(raw), token) {
			h.t.Fatalf("%s found in %s/.git/config", name, dir)
		}
	}
}
