package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akande-ai/akande/pkg/config"
	"github.com/akande-ai/akande/pkg/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if listen != "" {
				a.cfg.Listen = listen
			}

			asst, err := a.assistant()
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithLogger(a.logger),
				server.WithSessions(a.history),
			}
			if a.store != nil {
				opts = append(opts, server.WithCache(a.store))
			}
			if key, _ := openAIAccess(a.cfg); config.ValidAPIKey(key) {
				opts = append(opts, server.WithTranscriber(newOpenAISpeech(a.cfg)))
			} else {
				a.logger.Info("no OpenAI key, audio questions disabled")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.New(a.cfg, asst, opts...).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}
