package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nadzzz/civicbot/internal/chat"
)

type askOptions struct {
	variant  string
	language string
	delay    time.Duration
}

func newAskCmd(configFile *string) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Chat with a variant from the terminal",
		Long: "With arguments, sends them as one message and prints the reply. Without arguments, " +
			"starts an interactive session when stdin is a terminal, or sends each line of stdin otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			interactive := len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd()))
			return runAsk(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.chat, opts, args, interactive)
		},
	}

	cmd.Flags().StringVar(&opts.variant, "variant", "", "variant ID (default: the hazard variant)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "en", "reply language code")
	cmd.Flags().DurationVar(&opts.delay, "delay", 15*time.Millisecond, "pause between revealed characters")
	return cmd
}

func runAsk(ctx context.Context, in io.Reader, out io.Writer, svc *chat.Service, opts askOptions, args []string, interactive bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	view, err := svc.OpenSession(opts.variant)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return ask(ctx, out, svc, view.ID, strings.Join(args, " "), opts)
	}

	if interactive {
		fmt.Fprintf(out, "%s\n%s\n", view.Variant, view.Intro)
		fmt.Fprintln(out, "Commands: /variant <id>, /clear, /quit")
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return nil
		case line == "/clear":
			if _, err := svc.ClearSession(view.ID); err != nil {
				return err
			}
			fmt.Fprintln(out, "(history cleared)")
		case strings.HasPrefix(line, "/variant "):
			v, err := svc.SwitchVariant(view.ID, strings.TrimSpace(strings.TrimPrefix(line, "/variant ")))
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			view = v
			fmt.Fprintf(out, "%s\n%s\n", view.Variant, view.Intro)
		default:
			if err := ask(ctx, out, svc, view.ID, line, opts); err != nil {
				return err
			}
		}
	}
}

// ask sends one message and prints the reply as it is revealed.
func ask(ctx context.Context, out io.Writer, svc *chat.Service, id, text string, opts askOptions) error {
	ex, err := svc.Say(ctx, id, text, opts.language)
	if err != nil {
		return err
	}

	printed := 0
	for snap := range ex.All() {
		content := snap.Last().Content
		fmt.Fprint(out, content[printed:])
		printed = len(content)
		if opts.delay > 0 {
			select {
			case <-ctx.Done():
				fmt.Fprintln(out)
				return ctx.Err()
			case <-time.After(opts.delay):
			}
		}
	}
	fmt.Fprintln(out)
	return nil
}
