package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bastionzero/rsakit/internal/config"
	"github.com/bastionzero/rsakit/internal/logging"
)

// App carries what every command needs once the root command has loaded the configuration
type App struct {
	Config *config.Config
	Logger logging.Logger
}

// NewRootCommand builds the rsakit command tree
func NewRootCommand() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "rsakit",
		Short: "RSA key and cipher toolkit",
		Long: `rsakit generates RSA keys, converts them between PKCS#1, PKCS#8, OpenSSH, PuTTY,
XML and S-expression formats, encrypts and signs with OAEP, PSS and PKCS#1 v1.5 padding,
and runs the DES, 3DES, RC2 and AES block ciphers.

Defaults come from rsakit.yaml (in the working directory or $HOME/.rsakit) and can be
overridden with RSAKIT_* environment variables, such as RSAKIT_ENGINE_HASH=sha256.`,
		SilenceUsage:      true,
		PersistentPreRunE: app.setup,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warning, error)")

	initKeyCommands(rootCmd, app)
	initRSACommands(rootCmd, app)
	initCipherCommands(rootCmd, app)

	return rootCmd
}

func (app *App) setup(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("invalid config flag: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("invalid log-level flag: %w", err)
	}
	if level != "" {
		cfg.Logging.Level = level
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(&cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	app.Config = cfg
	app.Logger = logger.With("command", cmd.Name())
	return nil
}
