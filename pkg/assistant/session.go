package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	welcome       = "\nWelcome to Àkàndé, your AI voice assistant.\n"
	instructions  = "\nPress Enter to use voice or type your question and press Enter:\n"
	goodbye       = "Goodbye!"
	farewell      = "You're welcome. Goodbye!"
	notUnderstood = "I'm sorry, I couldn't understand what you said."
)

// Presenter delivers an answer somewhere: speech, a PDF, a CSV row.
type Presenter interface {
	Present(ctx context.Context, question, answer string) error
}

// Listener captures a spoken question.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Sayer speaks a short phrase.
type Sayer interface {
	Say(ctx context.Context, text string) (string, error)
}

// Session runs the interactive question loop.
type Session struct {
	Assistant *Assistant
	ID        string
	In        io.Reader
	Out       io.Writer
	// Listener is used when the user submits an empty line. Optional.
	Listener Listener
	// Sayer speaks the farewell and recognition errors. Optional.
	Sayer Sayer
	// Presenters run in order after each answer. Their failures are logged.
	Presenters []Presenter
	// Render formats an answer for Out. Defaults to the plain text.
	Render func(Answer) string
	Logger *log.Logger
}

// Run reads questions until the user says stop, thanks the assistant, or the
// input ends.
func (s *Session) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	scanner := bufio.NewScanner(s.In)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.Out, welcome+instructions)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintf(s.Out, "\n%s\n", goodbye)
			return nil
		}

		prompt := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if prompt == "stop" {
			fmt.Fprintf(s.Out, "\n%s\n", goodbye)
			return nil
		}

		if prompt == "" {
			if s.Listener == nil {
				continue
			}
			fmt.Fprintln(s.Out, "Listening...")
			heard, err := s.Listener.Listen(ctx)
			if err != nil {
				logger.Warn("voice input failed", "err", err)
				s.say(ctx, logger, notUnderstood)
				continue
			}
			prompt = strings.ToLower(strings.TrimSpace(heard))
			if prompt == "stop" {
				fmt.Fprintf(s.Out, "\n%s\n", goodbye)
				return nil
			}
		}

		switch prompt {
		case "", "stop voice", "stop text":
			continue
		case "thank you for your help":
			fmt.Fprintln(s.Out, farewell)
			s.say(ctx, logger, farewell)
			return nil
		}

		ans, err := s.Assistant.AskInSession(ctx, s.ID, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(s.Out, "Sorry, I could not get an answer: %v\n", err)
			continue
		}

		if s.Render != nil {
			fmt.Fprintln(s.Out, s.Render(ans))
		} else {
			fmt.Fprintln(s.Out, ans.Text)
		}

		for _, p := range s.Presenters {
			if err := p.Present(ctx, ans.Question, ans.Text); err != nil {
				logger.Warn("presenter failed", "err", err)
			}
		}
	}
}

func (s *Session) say(ctx context.Context, logger *log.Logger, text string) {
	if s.Sayer == nil {
		return
	}
	if _, err := s.Sayer.Say(ctx, text); err != nil {
		logger.Warn("speech failed", "err", err)
	}
}
