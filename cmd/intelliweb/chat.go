package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/intelliweb/config"
)

func chatCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in one session, one question per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			ctx := cmd.Context()
			orch, err := buildAssistant(ctx, cfg)
			if err != nil {
				return err
			}
			id, err := orch.NewSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = orch.EndSession(context.WithoutCancel(ctx), id) }()
			return chatLoop(ctx, orch, id, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// chatLoop answers each input line until EOF or "exit". A failed turn is
// reported and the loop goes on.
func chatLoop(ctx context.Context, r turnRunner, sessionID string, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := runTurn(ctx, r, sessionID, line, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
