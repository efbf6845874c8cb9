package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vriesdemichael/git-service-cli/internal/config"
	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
	"github.com/vriesdemichael/git-service-cli/internal/git"
	"github.com/vriesdemichael/git-service-cli/internal/git/execgit"
	"github.com/vriesdemichael/git-service-cli/internal/git/gogit"
	"github.com/vriesdemichael/git-service-cli/internal/gitservice"
	"github.com/vriesdemichael/git-service-cli/internal/logging"
)

func NewRootCommand() *cobra.Command {
	options := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "gsc",
		Short:         "Clone and check out GitLab repositories without persisting access tokens",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().BoolVar(&options.JSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&options.Debug, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&options.ConfigPath, "config", "", "Path to the ini configuration file (default $GSC_CONFIG_PATH or user config dir)")
	rootCmd.PersistentFlags().StringVar(&options.Backend, "backend", "", "Git backend: go-git or exec (default from configuration)")

	rootCmd.AddCommand(newAuthCommand(options))
	rootCmd.AddCommand(newResolveCommand(options))
	rootCmd.AddCommand(newCloneCommand(options))
	rootCmd.AddCommand(newCheckoutCommand(options))

	return rootCmd
}

type rootOptions struct {
	JSON       bool
	Debug      bool
	ConfigPath string
	Backend    string
}

// commandEnv is everything a command needs once configuration is loaded.
type commandEnv struct {
	logger *zap.Logger
	config config.AppConfig
	ops    git.Operations
}

func (options *rootOptions) load() (*commandEnv, error) {
	logger, err := logging.New(options.Debug)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to initialize logging", err)
	}

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return nil, err
	}

	backend := strings.TrimSpace(options.Backend)
	if backend == "" {
		backend = cfg.Settings.Backend()
	}

	var ops git.Operations
	switch backend {
	case config.BackendGoGit:
		ops = gogit.New(logger)
	case config.BackendExec:
		ops = execgit.New(logger)
	default:
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown git backend %q", backend), nil)
	}

	logger.Debug("configuration loaded", zap.String("settings", cfg.Settings.Path()), zap.String("backend", backend))
	return &commandEnv{logger: logger, config: cfg, ops: ops}, nil
}

func (env *commandEnv) registry() (*gitservice.Registry, error) {
	return gitservice.NewRegistryFromConfig(env.config, env.ops, env.logger)
}

// close flushes buffered log entries. Sync errors on terminals are ignored.
func (env *commandEnv) close() {
	_ = env.logger.Sync()
}

func writeJSON(writer io.Writer, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.KindInternal, "failed to encode JSON output", err)
	}

	fmt.Fprintln(writer, string(encoded))
	return nil
}
