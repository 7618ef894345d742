package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akande-ai/akande/pkg/models"
)

type askOutput struct {
	Question  string              `json:"question"`
	Key       string              `json:"key"`
	Answer    string              `json:"answer"`
	Source    models.AnswerSource `json:"source"`
	Provider  string              `json:"provider,omitempty"`
	Model     string              `json:"model,omitempty"`
	LatencyMS int64               `json:"latency_ms"`
}

func newAskCmd(configPath *string) *cobra.Command {
	var (
		jsonOut bool
		plain   bool
		speak   bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			asst, err := a.assistant()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ans, err := asst.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(askOutput{
					Question:  ans.Question,
					Key:       ans.Key,
					Answer:    ans.Text,
					Source:    ans.Source,
					Provider:  ans.Provider,
					Model:     ans.Model,
					LatencyMS: ans.Latency.Milliseconds(),
				}); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, answerRenderer(plain)(ans))
			}

			presenters, _, err := a.presenters(speak)
			if err != nil {
				return err
			}
			for _, p := range presenters {
				if err := p.Present(ctx, ans.Question, ans.Text); err != nil {
					a.logger.Warn("presenter failed", "err", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the answer as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "print the answer without markdown rendering")
	cmd.Flags().BoolVar(&speak, "speak", false, "speak the answer when speech is enabled")
	return cmd
}
