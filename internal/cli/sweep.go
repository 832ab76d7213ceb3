package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeIdle time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired sessions",
	Long: `Remove every session whose expiry (less the configured skew) has passed.
Sessions without an expiry and unreadable records are left alone.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove sessions idle for too long",
	Long: `Remove sessions whose last access is older than --idle, including
sessions without an expiry. Defaults to sessions.idle_ttl_seconds.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeIdle, "idle", 0, "idle threshold (e.g. 72h)")
	rootCmd.AddCommand(sweepCmd, purgeCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	removed, err := env.store.SweepExpired(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired session(s)\n", removed)
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	idle := purgeIdle
	if !cmd.Flags().Changed("idle") {
		idle = env.cfg.Sessions.IdleTTL()
	}
	if idle <= 0 {
		return fmt.Errorf("no idle threshold: pass --idle or set sessions.idle_ttl_seconds")
	}

	removed, err := env.store.PurgeIdle(cmd.Context(), idle)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s) idle for %s or more\n", removed, idle)
	return nil
}
