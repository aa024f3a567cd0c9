package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/kiddybot/internal/bootstrap"
	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
	"github.com/zhouzirui/kiddybot/internal/playback"
	"github.com/zhouzirui/kiddybot/internal/playback/speaker"
	"github.com/zhouzirui/kiddybot/internal/render"
	"github.com/zhouzirui/kiddybot/internal/service/ai"
	"github.com/zhouzirui/kiddybot/internal/service/conversation"
)

type options struct {
	configPath string
	logLevel   string
	mute       bool
	width      int
	noClear    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "kiddybot",
		Short:         "Chat with Gab in the terminal; every line you type is one utterance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	cmd.Flags().BoolVar(&opts.mute, "mute", false, "do not play synthesized speech")
	cmd.Flags().IntVar(&opts.width, "width", 72, "bubble width in columns")
	cmd.Flags().BoolVar(&opts.noClear, "no-clear", false, "append transcripts instead of redrawing the screen")
	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.LoadConfig(opts.configPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	cfg.Log.Pretty = true
	if err := bootstrap.SetupLogging(cfg.Log, opts.logLevel, os.Stderr); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(ctx, cfg)
	if err != nil {
		return err
	}

	p, ok := persona.NewMemoryStore(persona.Seed()).Default()
	if !ok {
		return errors.New("default persona missing")
	}

	terminal := render.NewTerminal(p.Name, p.Welcome, opts.width, !opts.noClear)
	surface := render.NewStream(terminal, out, chat.NewTurn(chat.RoleSystem, ""))

	ctrlOpts := conversation.Options{
		SessionID: "terminal",
		Composer:  ai.NewComposer(p),
		Completer: services.AI,
		Surface:   surface,
		Player:    playback.Noop{},
	}
	if services.Speech != nil {
		ctrlOpts.Synthesizer = services.Speech.WithVoice(p.VoiceID)
	}
	if !opts.mute {
		ctrlOpts.Player = speaker.New()
	}

	ctrl, err := conversation.NewController(ctrlOpts)
	if err != nil {
		return err
	}

	return chatLoop(ctx, ctrl, surface, in, out)
}

// chatLoop feeds each non-empty input line to the controller until EOF or interrupt.
func chatLoop(ctx context.Context, ctrl *conversation.Controller, surface conversation.Surface, in io.Reader, out io.Writer) error {
	if err := surface.Update(ctrl.History()); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			if _, err := ctrl.HandleUtterance(ctx, line, nil); err != nil {
				if errors.Is(err, conversation.ErrEmptyUtterance) {
					continue
				}
				log.Warn().Err(err).Msg("utterance rejected")
			}
		}
	}
}
