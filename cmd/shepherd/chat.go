package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/events"
	"github.com/go-go-golems/shepherd/pkg/inference/toolloop"
)

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Ask a question in the terminal; without a prompt, start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return chat(cmd.Context(), viper.GetViper(), strings.Join(args, " "), os.Stdout)
		},
	}
	cmd.Flags().Bool("render", false, "Render the answer as markdown when stdout is a terminal")
	cmd.Flags().Bool("no-stream", false, "Wait for complete answers instead of streaming")
	cmd.Flags().Bool("show-tools", false, "Print a summary of the tool calls after each answer")
	return cmd
}

func chat(ctx context.Context, v *viper.Viper, prompt string, w io.Writer) error {
	router, err := newEventRouter(v)
	if err != nil {
		return err
	}
	defer func() { _ = router.Close() }()

	render := v.GetBool("render") && isatty.IsTerminal(os.Stdout.Fd())
	if !render {
		router.AddHandler("printer", events.TopicChat, events.StepPrinterFunc("", w))
	}

	a, err := newToolsApp(v, router)
	if err != nil {
		return err
	}

	aggregator := events.NewToolEventAggregator()
	loop, err := a.newLoop(ctx, v,
		toolloop.WithLoopConfig(toolloop.DefaultLoopConfig().
			WithMaxIterations(v.GetInt("max-iterations")).
			WithStreaming(!v.GetBool("no-stream"))),
		toolloop.WithEventSinks(events.NewWatermillSink(router.Publisher, events.TopicChat), aggregator),
		toolloop.WithSnapshotHook(func(ctx context.Context, c conversation.Conversation, phase string) {
			log.Debug().Str("run_id", events.RunIDFromContext(ctx)).Str("phase", phase).Int("turns", len(c)).Msg("chat: transcript snapshot")
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	routerErr := make(chan error, 1)
	runRouter(ctx, router, routerErr)

	s := &chatSession{loop: loop, aggregator: aggregator, w: w, render: render, showTools: v.GetBool("show-tools")}
	if prompt != "" {
		return s.ask(ctx, prompt)
	}
	return s.interactive(ctx)
}

type chatSession struct {
	loop       *toolloop.Loop
	aggregator *events.ToolEventAggregator
	transcript conversation.Conversation
	w          io.Writer
	render     bool
	showTools  bool
}

// ask runs one question on top of the session transcript.
func (s *chatSession) ask(ctx context.Context, prompt string) error {
	s.aggregator.Reset()
	conv := s.transcript.Append(conversation.NewUserTurn(prompt))
	out, err := s.loop.Run(ctx, conv, "")
	if err != nil {
		// the error has been printed as an event already
		return err
	}
	s.transcript = out

	if s.showTools {
		for _, line := range s.aggregator.Lines() {
			_, _ = fmt.Fprintln(s.w, line)
		}
	}
	if s.render {
		return s.renderAnswer(out[len(conv):])
	}
	return nil
}

func (s *chatSession) renderAnswer(turns conversation.Conversation) error {
	var sb strings.Builder
	for _, t := range turns {
		if t.Role == conversation.RoleAssistant && t.Text != "" {
			sb.WriteString(t.Text)
			sb.WriteString("\n\n")
		}
	}
	styled, err := glamour.Render(sb.String(), "dark")
	if err != nil {
		return errors.Wrap(err, "could not render answer")
	}
	_, err = fmt.Fprint(s.w, styled)
	return err
}

func (s *chatSession) interactive(ctx context.Context) error {
	ui := &input.UI{
		Writer: os.Stdout,
		Reader: os.Stdin,
	}
	for {
		question, err := ui.Ask("\nAsk a question (exit to quit)", &input.Options{
			Required:  true,
			Loop:      true,
			HideOrder: true,
		})
		if err != nil {
			if errors.Is(err, input.ErrInterrupted) {
				return nil
			}
			return err
		}
		switch strings.TrimSpace(question) {
		case "exit", "quit":
			return nil
		}

		if err := s.ask(ctx, question); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// keep the session going; the failed question is not kept
			log.Debug().Err(err).Msg("chat: question failed")
		}
	}
}
