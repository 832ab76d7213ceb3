package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harun/authvault/pkg/session"
	"github.com/spf13/cobra"
)

var (
	createID        string
	createCred      string
	createUpstream  string
	createTenant    string
	createSubject   string
	createRole      string
	createExpiresIn time.Duration
	createExpiresAt string
	createClaims    map[string]string

	showOutput string
	listOutput string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session record",
	Long: `Create a session record and print its id.
Without --id a random UUID is generated. The credential is stored as given
and never printed.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session without its credential",
	Long: `Show a session without its credential.
Loading a session counts as an access: an expired session is removed and
reported as not found, a live one has its last access time refreshed.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live sessions",
	Long: `List live sessions oldest first.
Listing loads every record, so expired sessions found along the way are
removed. The result is a best-effort snapshot.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <session-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete sessions",
	Long:    `Delete one or more sessions. Deleting a missing session is not an error.`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDelete,
}

func init() {
	createCmd.Flags().StringVar(&createID, "id", "", "session id (default: random UUID)")
	createCmd.Flags().StringVar(&createCred, "credential", "", "credential presented upstream (required)")
	createCmd.Flags().StringVar(&createUpstream, "upstream", "", "upstream base URL")
	createCmd.Flags().StringVar(&createTenant, "tenant", "", "tenant id")
	createCmd.Flags().StringVar(&createSubject, "subject", "", "subject id")
	createCmd.Flags().StringVar(&createRole, "role", "", "role or profile id")
	createCmd.Flags().DurationVar(&createExpiresIn, "expires-in", 0, "expire after this duration (e.g. 1h)")
	createCmd.Flags().StringVar(&createExpiresAt, "expires-at", "", "expire at this RFC3339 time")
	createCmd.Flags().StringToStringVar(&createClaims, "claim", nil, "extra claim as key=value (repeatable)")
	_ = createCmd.MarkFlagRequired("credential")
	createCmd.MarkFlagsMutuallyExclusive("expires-in", "expires-at")

	showCmd.Flags().StringVarP(&showOutput, "output", "o", outputTable, "output format (table, json, yaml)")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", outputTable, "output format (table, json, yaml)")

	rootCmd.AddCommand(createCmd, showCmd, listCmd, deleteCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	fields := session.Fields{
		Credential:      createCred,
		UpstreamBaseURL: createUpstream,
		TenantID:        createTenant,
		SubjectID:       createSubject,
		RoleID:          createRole,
	}

	switch {
	case createExpiresIn < 0:
		return fmt.Errorf("--expires-in must be positive")
	case createExpiresIn > 0:
		fields.ExpiresAt = env.store.Now().Add(createExpiresIn)
	case createExpiresAt != "":
		t, err := time.Parse(time.RFC3339, createExpiresAt)
		if err != nil {
			return fmt.Errorf("invalid --expires-at: %w", err)
		}
		fields.ExpiresAt = t
	}

	if len(createClaims) > 0 {
		fields.Claims = make(map[string]any, len(createClaims))
		for k, v := range createClaims {
			fields.Claims[k] = v
		}
	}

	id, err := env.store.Create(cmd.Context(), fields, createID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

// sessionView is what show prints: the summary plus claims.
type sessionView struct {
	session.Summary `yaml:",inline"`
	Claims          map[string]any `json:"claims,omitempty" yaml:"claims,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := validateOutput(showOutput); err != nil {
		return err
	}

	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	sess, err := env.store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s not found", args[0])
	}

	view := sessionView{Summary: session.Summarize(sess), Claims: sess.Claims}
	out := cmd.OutOrStdout()

	if showOutput != outputTable {
		return writeStructured(out, showOutput, view)
	}

	now := env.store.Now()
	fmt.Fprintf(out, "Session:      %s\n", view.ID)
	fmt.Fprintf(out, "Tenant:       %s\n", orDash(view.TenantID))
	fmt.Fprintf(out, "Subject:      %s\n", orDash(view.SubjectID))
	fmt.Fprintf(out, "Role:         %s\n", orDash(view.RoleID))
	fmt.Fprintf(out, "Upstream:     %s\n", orDash(view.UpstreamBaseURL))
	fmt.Fprintf(out, "Created:      %s\n", formatTime(view.CreatedAt))
	fmt.Fprintf(out, "Last access:  %s\n", formatTime(view.LastAccessedAt))
	fmt.Fprintf(out, "Expires:      %s\n", formatExpiry(now, view.ExpiresAt, env.store.Skew()))
	if len(view.Claims) > 0 {
		keys := make([]string, 0, len(view.Claims))
		for k := range view.Claims {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(out, "Claims:       %s\n", strings.Join(keys, ", "))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if err := validateOutput(listOutput); err != nil {
		return err
	}

	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	summaries, err := env.store.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch listOutput {
	case outputTable:
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No sessions")
			return nil
		}
		return writeSummaryTable(out, summaries, env.store.Now(), env.store.Skew())
	default:
		if summaries == nil {
			summaries = []session.Summary{}
		}
		return writeStructured(out, listOutput, summaries)
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	var failed int
	for _, id := range args {
		removed, err := env.store.Delete(cmd.Context(), id)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
		case removed:
			fmt.Fprintf(out, "%s: deleted\n", id)
		default:
			fmt.Fprintf(out, "%s: not found\n", id)
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to delete %d of %d sessions", failed, len(args))
	}
	return nil
}
