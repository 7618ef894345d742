package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/akande-ai/akande/pkg/cache"
	"github.com/akande-ai/akande/pkg/models"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the answer cache",
	}

	// run opens the configured store, even when the cache is disabled for
	// answering, and hands it to fn.
	run := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.withStore(true); err != nil {
				return err
			}
			return fn(cmd.Context(), a, args)
		}
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			stats, err := a.store.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Answer cache") + mutedStyle.Render(" ("+a.cfg.Cache.Backend+")"))
			fmt.Println(field("Entries", humanize.Comma(stats.Entries)))
			fmt.Println(field("Size", humanize.Bytes(uint64(stats.SizeBytes))))
			fmt.Println(field("Hits", humanize.Comma(stats.Hits)))
			fmt.Println(field("Misses", humanize.Comma(stats.Misses)))
			fmt.Println(field("Evictions", humanize.Comma(stats.Evictions)))
			fmt.Println(field("Hit rate", fmt.Sprintf("%.1f%%", stats.HitRate())))
			return nil
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached questions, most recently used first",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			var entries []models.CacheEntry
			if err := a.store.Entries(ctx, func(e models.CacheEntry) error {
				entries = append(entries, e)
				return nil
			}); err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("The cache is empty.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUESTION\tHITS\tLAST USED\tUPDATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					shorten(e.Key, 60), e.Hits, humanize.Time(e.AccessedAt), humanize.Time(e.UpdatedAt))
			}
			return w.Flush()
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <question>",
		Short: "Print the cached answer for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			key := cache.Normalize(strings.Join(args, " "))
			value, ok, err := a.store.Get(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no cached answer for %q", key)
			}
			fmt.Println(value)
			return nil
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <question>",
		Short: "Forget the cached answer for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			key := cache.Normalize(strings.Join(args, " "))
			if err := a.store.Delete(ctx, key); err != nil {
				return err
			}
			fmt.Printf("Deleted %q.\n", key)
			return nil
		}),
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			if expiredOnly {
				return prune(ctx, a)
			}
			if err := a.store.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		}),
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove entries older than the configured TTL",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			return prune(ctx, a)
		}),
	}

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write a compressed snapshot of the cache (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			var w io.Writer = os.Stdout
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create snapshot: %w", err)
				}
				defer f.Close()
				w = f
			}
			n, err := cache.Export(ctx, a.store, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Exported %s entries.\n", humanize.Comma(int64(n)))
			return nil
		}),
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot written by export (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			var r io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open snapshot: %w", err)
				}
				defer f.Close()
				r = f
			}
			n, err := cache.Import(ctx, a.store, r)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %s entries.\n", humanize.Comma(int64(n)))
			return nil
		}),
	}

	cmd.AddCommand(statsCmd, listCmd, getCmd, deleteCmd, clearCmd, pruneCmd, exportCmd, importCmd)
	return cmd
}

func prune(ctx context.Context, a *app) error {
	if a.cfg.Cache.TTL <= 0 {
		fmt.Println("No cache TTL configured; nothing expires.")
		return nil
	}
	n, err := a.store.Prune(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %s expired entries.\n", humanize.Comma(n))
	return nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
