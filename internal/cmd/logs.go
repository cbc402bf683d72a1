package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/config"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View coordinator logs",
	Long: `View and filter the JSON log written under {base}/logs.

Examples:
  # Show the last 50 entries
  hyperteam logs

  # Everything about one member in the last hour
  hyperteam logs --team alpha --member w1 --since 1h -n 0

  # Only warnings and errors mentioning shutdown
  hyperteam logs --level warn --grep shutdown`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail   int
	logsLevel  string
	logsSince  string
	logsGrep   string
	logsTeam   string
	logsMember string
	logsFormat string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only entries whose message contains this text")
	logsCmd.Flags().StringVar(&logsTeam, "team", "", "Only entries for this team")
	logsCmd.Flags().StringVar(&logsMember, "member", "", "Only entries for this member")
	addFormatFlag(logsCmd, &logsFormat)
}

func runLogs(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	path := filepath.Join(cfg.LogDir(), logging.LogFileName)

	entries, err := logging.ReadEntries(path)
	if err != nil {
		return err
	}

	filter := logging.Filter{
		Level:    logsLevel,
		Team:     logsTeam,
		Member:   logsMember,
		Contains: logsGrep,
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}
	entries = logging.FilterEntries(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	if entries == nil {
		entries = []logging.Entry{}
	}

	return render(cmd, logsFormat, entries, func(w io.Writer) error {
		for _, e := range entries {
			printEntry(w, e)
		}
		return nil
	})
}

func printEntry(w io.Writer, e logging.Entry) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", e.Time.Local().Format("2006-01-02 15:04:05"), e.Level, e.Message)
	if e.Team != "" {
		fmt.Fprintf(&b, " team=%s", e.Team)
	}
	if e.Member != "" {
		fmt.Fprintf(&b, " member=%s", e.Member)
	}
	if e.Task != "" {
		fmt.Fprintf(&b, " task=%s", e.Task)
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	fmt.Fprintln(w, b.String())
}
