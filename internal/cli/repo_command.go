package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vriesdemichael/git-service-cli/internal/git/giturl"
	"github.com/vriesdemichael/git-service-cli/internal/repolock"
)

type checkoutFlags struct {
	Branch  string
	Digest  string
	Offline bool
}

func (flags *checkoutFlags) register(set *pflag.FlagSet) {
	set.StringVar(&flags.Branch, "branch", "", "Branch to check out")
	set.StringVar(&flags.Digest, "digest", "", "Commit to check out (detached)")
	set.BoolVar(&flags.Offline, "offline", false, "Skip fetching from origin before checkout")
}

func (flags *checkoutFlags) requested() bool {
	return flags.Branch != "" || flags.Digest != ""
}

type repoResult struct {
	Service        string `json:"service"`
	Hostname       string `json:"hostname"`
	Dir            string `json:"dir,omitempty"`
	URL            string `json:"url,omitempty"`
	CloneURL       string `json:"clone_url,omitempty"`
	AlreadyPresent bool   `json:"already_present,omitempty"`
	Branch         string `json:"branch,omitempty"`
	Digest         string `json:"digest,omitempty"`
	CheckedOut     bool   `json:"checked_out"`
}

func newResolveCommand(options *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Show which git service serves a repository URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := options.load()
			if err != nil {
				return err
			}
			defer env.close()

			registry, err := env.registry()
			if err != nil {
				return err
			}

			service, err := registry.Resolve(args[0])
			if err != nil {
				return err
			}

			cloneURL, err := service.ConstructCloneURL(args[0])
			if err != nil {
				return err
			}

			result := repoResult{
				Service:  service.Variant().String(),
				Hostname: service.Hostname(),
				URL:      giturl.Redact(args[0]),
				CloneURL: giturl.Redact(cloneURL),
			}

			if options.JSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n%s\n", result.Service, result.Hostname, result.CloneURL)
			return nil
		},
	}
}

func newCloneCommand(options *rootOptions) *cobra.Command {
	flags := &checkoutFlags{}

	cmd := &cobra.Command{
		Use:   "clone <url> <dir>",
		Short: "Clone a repository without persisting the access token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL, dir := args[0], args[1]

			env, err := options.load()
			if err != nil {
				return err
			}
			defer env.close()

			registry, err := env.registry()
			if err != nil {
				return err
			}

			service, err := registry.Resolve(rawURL)
			if err != nil {
				return err
			}

			lock, err := repolock.Acquire(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Release(); err != nil {
					env.logger.Warn("failed to release repository lock", zap.String("dir", dir), zap.Error(err))
				}
			}()

			cloned, err := service.CloneRepo(cmd.Context(), dir, rawURL)
			if err != nil {
				return err
			}

			result := repoResult{
				Service:        service.Variant().String(),
				Hostname:       service.Hostname(),
				Dir:            dir,
				URL:            giturl.Redact(rawURL),
				AlreadyPresent: !cloned,
			}

			if flags.requested() {
				repository, err := env.ops.OpenLocalRepo(cmd.Context(), dir)
				if err != nil {
					return err
				}

				if _, err := service.CheckOutRepo(cmd.Context(), repository, flags.Branch, flags.Digest, flags.Offline); err != nil {
					return err
				}

				result.Branch = flags.Branch
				result.Digest = flags.Digest
				result.CheckedOut = true
			}

			if options.JSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			if result.AlreadyPresent {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not empty, skipped cloning %s\n", dir, result.URL)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s into %s\n", result.URL, dir)
			}
			if result.CheckedOut {
				fmt.Fprintf(cmd.OutOrStdout(), "Checked out %s\n", describeTarget(flags))
			}
			return nil
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func newCheckoutCommand(options *rootOptions) *cobra.Command {
	flags := &checkoutFlags{}

	cmd := &cobra.Command{
		Use:   "checkout <dir>",
		Short: "Fetch and check out a branch or commit of a cloned repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			env, err := options.load()
			if err != nil {
				return err
			}
			defer env.close()

			registry, err := env.registry()
			if err != nil {
				return err
			}

			lock, err := repolock.Acquire(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Release(); err != nil {
					env.logger.Warn("failed to release repository lock", zap.String("dir", dir), zap.Error(err))
				}
			}()

			repository, err := env.ops.OpenLocalRepo(cmd.Context(), dir)
			if err != nil {
				return err
			}

			origin, err := env.ops.GetRemoteOriginOfLocalRepo(cmd.Context(), repository)
			if err != nil {
				return err
			}

			service, err := registry.Resolve(origin)
			if err != nil {
				return err
			}

			if _, err := service.CheckOutRepo(cmd.Context(), repository, flags.Branch, flags.Digest, flags.Offline); err != nil {
				return err
			}

			result := repoResult{
				Service:    service.Variant().String(),
				Hostname:   service.Hostname(),
				Dir:        repository.Path(),
				URL:        giturl.Redact(origin),
				Branch:     flags.Branch,
				Digest:     flags.Digest,
				CheckedOut: true,
			}

			if options.JSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Checked out %s in %s\n", describeTarget(flags), result.Dir)
			return nil
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func describeTarget(flags *checkoutFlags) string {
	switch {
	case flags.Branch != "" && flags.Digest != "":
		return fmt.Sprintf("branch %s at %s", flags.Branch, flags.Digest)
	case flags.Digest != "":
		return "commit " + flags.Digest
	case flags.Branch != "":
		return "branch " + flags.Branch
	default:
		return "current HEAD"
	}
}
