package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akande-ai/akande/pkg/assistant"
	"github.com/akande-ai/akande/pkg/speech"
)

func newChatCmd(configPath *string) *cobra.Command {
	var (
		noVoice bool
		mute    bool
		plain   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question session",
		Long: "Type a question and press Enter, or press Enter on an empty line to ask by\n" +
			"voice. Say or type \"stop\" to leave.",
		Args: cobra.NoArgs,
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

			sessionID, err := a.history.StartSession(ctx)
			if err != nil {
				return err
			}

			presenters, speaker, err := a.presenters(!mute)
			if err != nil {
				return err
			}
			session := &assistant.Session{
				Assistant:  asst,
				ID:         sessionID,
				In:         cmd.InOrStdin(),
				Out:        cmd.OutOrStdout(),
				Presenters: presenters,
				Render:     answerRenderer(plain),
				Logger:     a.logger,
			}
			if speaker != nil {
				session.Sayer = speaker
			}

			if a.cfg.Speech.Enabled && !noVoice {
				rec, err := speech.NewRecorder(a.cfg.Speech.SampleRate)
				switch {
				case errors.Is(err, speech.ErrVoiceUnavailable):
					a.logger.Info("voice input unavailable, type your questions")
				case err != nil:
					return err
				default:
					a.closers = append(a.closers, rec)
					session.Listener = &speech.Listener{
						Recorder:    rec,
						Transcriber: newOpenAISpeech(a.cfg),
						SampleRate:  a.cfg.Speech.SampleRate,
						Duration:    a.cfg.Speech.RecordDuration,
					}
				}
			}

			a.logger.Debug("chat session started", "session", sessionID)
			if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noVoice, "no-voice", false, "disable microphone input")
	cmd.Flags().BoolVar(&mute, "mute", false, "do not speak answers")
	cmd.Flags().BoolVar(&plain, "plain", false, "print answers without markdown rendering")
	return cmd
}
