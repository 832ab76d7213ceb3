package cli

import (
	"fmt"
	"path/filepath"

	"github.com/harun/authvault/internal/config"
	"github.com/harun/authvault/internal/daemon"
	"github.com/harun/authvault/internal/logger"
	"github.com/harun/authvault/internal/observability"
	"github.com/harun/authvault/pkg/session"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "authvault",
	Short: "authvault - durable session store for multi-tenant API proxies",
	Long: `authvault persists per-user authentication context (credential, upstream
endpoint, tenant identifiers, expiry) as one file per session, shared safely
between processes on the same host.

Run "authvault serve" for background housekeeping and the admin endpoints, or
use the session commands to inspect and manage records directly.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.authvault/authvault.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// commandEnv is the runtime shared by the one-shot session commands.
type commandEnv struct {
	cfg   *config.Config
	log   *logger.Logger
	store *session.Store
	audit bool
}

// newCommandEnv loads config, installs a logger and opens the store.
// One-shot commands log to stderr at warn unless --log-level is given, so
// their stdout stays machine-readable.
func newCommandEnv(cmd *cobra.Command) (*commandEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	log, err := logger.New(logger.Config{
		Level:     level,
		Console:   true,
		Pretty:    true,
		Redaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := daemon.OpenStore(cfg)
	if err != nil {
		log.Close()
		return nil, err
	}

	return &commandEnv{
		cfg:   cfg,
		log:   log,
		store: store,
		audit: openAudit(cfg.DataDir),
	}, nil
}

// openAudit points the audit log at dataDir/audit.log.
func openAudit(dataDir string) bool {
	return observability.OpenAuditLog(filepath.Join(dataDir, "audit.log")) == nil
}

func (e *commandEnv) Close() {
	if e.audit {
		_ = observability.CloseAuditLog()
	}
	_ = e.log.Close()
}

func pidFilePath(cfg *config.Config) string {
	return daemon.PIDFilePath(cfg.DataDir)
}
