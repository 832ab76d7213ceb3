package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/harun/authvault/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and session store status",
	Long: `Show whether the authvault daemon is running and count the session
records by state. Counting never modifies or touches a record.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	pidFile := pidFilePath(env.cfg)

	pid, err := daemon.ReadPID(pidFile)
	if err != nil || !daemon.ProcessAlive(pid) {
		fmt.Fprintln(out, "Status: stopped")
	} else {
		fmt.Fprintln(out, "Status: running")
		fmt.Fprintf(out, "PID: %d\n", pid)
		if info, err := os.Stat(pidFile); err == nil {
			fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
		}
	}

	stats, err := env.store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}

	fmt.Fprintf(out, "Sessions dir: %s\n", env.store.Dir())
	fmt.Fprintf(out, "Sessions: %d total, %d active, %d expired, %d open-ended, %d unreadable\n",
		stats.Total, stats.Active, stats.Expired, stats.OpenEnded, stats.Unreadable)

	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
