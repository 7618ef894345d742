package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.withHistory(); err != nil {
				return err
			}

			items, err := a.history.Recent(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No interactions found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tSOURCE\tLATENCY\tQUESTION\tANSWER")
			for _, it := range items {
				answer := it.Answer
				if it.Error != "" {
					answer = "error: " + it.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(it.CreatedAt), it.Source, it.Latency.Round(time.Millisecond),
					shorten(it.Question, 40), shorten(oneLine(answer), 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "only show this session")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of interactions")

	var since string
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show per-day totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := beginningOfMonth()
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				start = t
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.withHistory(); err != nil {
				return err
			}

			rows, err := a.history.Summary(cmd.Context(), start)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No interactions found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tQUESTIONS\tCACHE HITS\tPROVIDER CALLS\tFAILURES\tAVG LATENCY")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
					r.Day, r.Questions, r.CacheHits, r.GatewayCalls, r.Failures, r.AvgLatency.Round(time.Millisecond))
			}
			return w.Flush()
		},
	}
	summaryCmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD, default: start of month)")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.withHistory(); err != nil {
				return err
			}

			sessions, err := a.history.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION ID\tSTARTED\tLAST ACTIVITY\tQUESTIONS")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), humanize.Time(s.LastActivity), s.Questions)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(summaryCmd, sessionsCmd)
	return cmd
}

func beginningOfMonth() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
