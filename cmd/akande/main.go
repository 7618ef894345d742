package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "akande",
		Short: "Àkàndé, a voice assistant that remembers its answers",
		Long: "Àkàndé answers spoken or typed questions with a language model, speaks the\n" +
			"answer and keeps a local cache so repeated questions are answered instantly.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: search akande.yaml)")

	root.AddCommand(
		newChatCmd(&configPath),
		newAskCmd(&configPath),
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newCacheCmd(&configPath),
		newHistoryCmd(&configPath),
		newBudgetCmd(&configPath),
		newManCmd(root),
	)
	return root
}
