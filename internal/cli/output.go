package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/harun/authvault/pkg/session"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (must be one of: table, json, yaml)", format)
	}
}

// writeStructured writes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
}

func writeSummaryTable(w io.Writer, summaries []session.Summary, now time.Time, skew time.Duration) error {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID,
			orDash(s.TenantID),
			orDash(s.SubjectID),
			orDash(s.RoleID),
			formatTime(s.CreatedAt),
			formatTime(s.LastAccessedAt),
			formatExpiry(now, s.ExpiresAt, skew),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "TENANT", "SUBJECT", "ROLE", "CREATED", "LAST ACCESS", "EXPIRES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatExpiry(now, expiresAt time.Time, skew time.Duration) string {
	if expiresAt.IsZero() {
		return "never"
	}
	if session.IsExpired(now, expiresAt, skew) {
		return "expired"
	}
	return fmt.Sprintf("%s (in %s)", formatTime(expiresAt), formatDuration(expiresAt.Sub(now)))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
