package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vriesdemichael/git-service-cli/internal/config"
	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
	"github.com/vriesdemichael/git-service-cli/internal/gitservice"
	"github.com/vriesdemichael/git-service-cli/internal/transport/httpclient"
)

type serviceStatus struct {
	Service     string                   `json:"service"`
	Hostname    string                   `json:"hostname,omitempty"`
	TokenEnv    string                   `json:"token_env"`
	Token       bool                     `json:"token"`
	TokenSource string                   `json:"token_source"`
	Error       string                   `json:"error,omitempty"`
	Health      *httpclient.HealthStatus `json:"health,omitempty"`
}

func newAuthCommand(options *rootOptions) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}

	var verify bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show configured git services and token availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := options.load()
			if err != nil {
				return err
			}
			defer env.close()

			statuses := make([]serviceStatus, 0, len(gitservice.Variants()))
			for _, variant := range gitservice.Variants() {
				tokens := env.config.Tokens
				service := gitservice.New(variant, gitservice.TokenFunc(tokens.Accessor(variant.TokenName)), env.ops, gitservice.WithLogger(env.logger))

				status := serviceStatus{
					Service:     variant.String(),
					TokenEnv:    variant.TokenName,
					Token:       service.HasToken(),
					TokenSource: tokens.Source(variant.TokenName),
				}

				if err := service.LoadDefaults(env.config.Settings); err != nil {
					status.Error = err.Error()
				}
				status.Hostname = service.Hostname()

				if verify && status.Hostname != "" && status.Error == "" {
					health, err := httpclient.NewForHost(status.Hostname, tokens.Accessor(variant.TokenName)).Health(cmd.Context())
					if err != nil {
						status.Error = err.Error()
					} else {
						status.Health = &health
					}
				}

				statuses = append(statuses, status)
			}

			if options.JSON {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}

			styles := newOutputStyles(cmd.OutOrStdout())
			for _, status := range statuses {
				writeServiceStatus(cmd.OutOrStdout(), styles, status)
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&verify, "verify", false, "Probe each configured host's API with its token")
	authCmd.AddCommand(statusCmd)

	var loginService string
	var loginToken string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token for a git service",
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := variantByName(loginService)
			if err != nil {
				return err
			}

			token := strings.TrimSpace(loginToken)
			if token == "" {
				token, err = readToken(cmd, variant)
				if err != nil {
					return err
				}
			}

			result, err := config.SaveLogin(config.LoginInput{TokenName: variant.TokenName, Token: token})
			if err != nil {
				return err
			}

			if options.JSON {
				payload := map[string]any{
					"service":               variant.String(),
					"token_env":             result.TokenName,
					"used_insecure_storage": result.UsedInsecureStorage,
				}
				return writeJSON(cmd.OutOrStdout(), payload)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %s\n", variant)
			if result.UsedInsecureStorage {
				fmt.Fprintln(cmd.OutOrStdout(), "Warning: keyring unavailable, token stored in credentials file fallback")
			}
			return nil
		},
	}
	loginCmd.Flags().StringVar(&loginService, "service", gitservice.PubliclyHostedGitLab.Name, serviceFlagUsage())
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Access token (prompted when omitted)")
	authCmd.AddCommand(loginCmd)

	var logoutService string
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token of a git service",
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := variantByName(logoutService)
			if err != nil {
				return err
			}

			if err := config.Logout(variant.TokenName); err != nil {
				return err
			}

			if options.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "ok"})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %s removed\n", variant)
			return nil
		},
	}
	logoutCmd.Flags().StringVar(&logoutService, "service", gitservice.PubliclyHostedGitLab.Name, serviceFlagUsage())
	authCmd.AddCommand(logoutCmd)

	return authCmd
}

func writeServiceStatus(writer io.Writer, styles outputStyles, status serviceStatus) {
	hostname := status.Hostname
	if hostname == "" {
		hostname = "(not configured)"
	}

	token := styles.warn.Render("unset")
	if status.Token {
		token = styles.good.Render("set")
	}

	fmt.Fprintf(writer, "%s: host=%s token=%s source=%s\n", styles.title.Render(status.Service), hostname, token, status.TokenSource)
	if status.Health != nil {
		fmt.Fprintf(writer, "  api: %s (status=%d)\n", status.Health.Message, status.Health.StatusCode)
	}
	if status.Error != "" {
		fmt.Fprintf(writer, "  error: %s\n", styles.bad.Render(status.Error))
	}
}

func variantByName(name string) (gitservice.Variant, error) {
	for _, variant := range gitservice.Variants() {
		if variant.Name == name || variant.String() == name {
			return variant, nil
		}
	}

	return gitservice.Variant{}, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown service %q", name), nil)
}

func readToken(cmd *cobra.Command, variant gitservice.Variant) (string, error) {
	if file, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Token for %s: ", variant)
		raw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", apperrors.New(apperrors.KindValidation, "failed to read token", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", apperrors.New(apperrors.KindValidation, "failed to read token", err)
	}

	return strings.TrimSpace(line), nil
}

func serviceFlagUsage() string {
	names := make([]string, 0, len(gitservice.Variants()))
	for _, variant := range gitservice.Variants() {
		names = append(names, variant.Name)
	}

	return "Hosting mode: " + strings.Join(names, " or ")
}
