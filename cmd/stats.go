package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asreview/prior/internal/config"
	"github.com/asreview/prior/internal/models"
	"github.com/asreview/prior/internal/outbox"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show prior-knowledge totals and queued decisions",
	GroupID: "screening",
	RunE:    runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addClientFlags(statsCmd.Flags())
	statsCmd.Flags().Bool("json", false, "Output JSON")
}

// statsReport is what 'prior stats' prints
type statsReport struct {
	Project  string             `json:"project"`
	API      string             `json:"api"`
	Prior    *models.PriorStats `json:"prior,omitempty"`
	APIError string             `json:"api_error,omitempty"`
	Outbox   *outbox.Stats      `json:"outbox,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	dir := getBaseDir()
	cfg, err := resolveSettings(cmd.Flags(), dir)
	if err != nil {
		return err
	}

	report := statsReport{Project: cfg.ProjectID, API: cfg.APIBase}

	if cfg.ProjectID != "" {
		stats, err := newClient(cfg).PriorStats(cmd.Context(), cfg.ProjectID)
		if err != nil {
			report.APIError = err.Error()
		} else {
			report.Prior = &stats
		}
	}

	if path := config.StatePath(dir, outboxFile); fileExists(path) {
		queue, err := outbox.Open(path)
		if err != nil {
			return fmt.Errorf("open outbox: %w", err)
		}
		defer queue.Close()
		s, err := queue.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("outbox stats: %w", err)
		}
		report.Outbox = &s
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	styled := false
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	printStats(cmd.OutOrStdout(), report, styled, time.Now())

	if report.APIError != "" {
		return errors.New("could not reach the API")
	}
	return nil
}

func printStats(w io.Writer, r statsReport, styled bool, now time.Time) {
	heading := func(s string) string { return s }
	muted := func(s string) string { return s }
	if styled {
		heading = func(s string) string { return lipgloss.NewStyle().Bold(true).Render(s) }
		muted = func(s string) string { return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(s) }
	}

	fmt.Fprintln(w, heading("Prior knowledge"))
	switch {
	case r.Project == "":
		fmt.Fprintln(w, muted("  no project configured; run 'prior init' or pass --project"))
	case r.Prior != nil:
		fmt.Fprintf(w, "  project:     %s\n", r.Project)
		fmt.Fprintf(w, "  labelled:    %s\n", humanize.Comma(int64(r.Prior.Prior)))
		fmt.Fprintf(w, "  relevant:    %s\n", humanize.Comma(int64(r.Prior.Inclusions)))
		fmt.Fprintf(w, "  irrelevant:  %s\n", humanize.Comma(int64(r.Prior.Exclusions)))
	default:
		fmt.Fprintf(w, "  project:     %s\n", r.Project)
		fmt.Fprintf(w, "  %s\n", muted("unavailable: "+r.APIError))
	}
	fmt.Fprintln(w, muted("  api: "+r.API))

	if r.Outbox == nil {
		return
	}
	o := r.Outbox
	fmt.Fprintln(w)
	fmt.Fprintln(w, heading("Outbox"))
	fmt.Fprintf(w, "  pending:     %s", humanize.Comma(int64(o.Pending)))
	if o.OldestPending != nil {
		fmt.Fprintf(w, " %s", muted("(oldest "+humanize.RelTime(*o.OldestPending, now, "ago", "from now")+")"))
	}
	fmt.Fprintln(w)
	if o.Retrying > 0 {
		fmt.Fprintf(w, "  retrying:    %s\n", humanize.Comma(int64(o.Retrying)))
	}
	fmt.Fprintf(w, "  sent:        %s", humanize.Comma(int64(o.Sent)))
	if o.LastSent != nil {
		fmt.Fprintf(w, " %s", muted("(last "+humanize.RelTime(*o.LastSent, now, "ago", "from now")+")"))
	}
	fmt.Fprintln(w)
	if o.Rejected > 0 {
		fmt.Fprintf(w, "  rejected:    %s\n", humanize.Comma(int64(o.Rejected)))
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
