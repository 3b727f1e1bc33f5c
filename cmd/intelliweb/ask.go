package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/assistant"
)

type turnRunner interface {
	ProcessTurn(ctx context.Context, sessionID, query string, stream bool) (*assistant.TurnResult, error)
}

func askCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
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
			return runTurn(ctx, orch, id, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

// runTurn streams the answer to out, then lists references and follow-ups.
func runTurn(ctx context.Context, r turnRunner, sessionID, query string, out io.Writer) error {
	res, err := r.ProcessTurn(ctx, sessionID, query, true)
	if err != nil {
		return err
	}
	defer res.Stream.Close()
	for {
		tok, err := res.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("%w: %w", assistant.ErrSynthesis, err)
		}
		fmt.Fprint(out, tok)
	}
	fmt.Fprintln(out)
	if len(res.References) > 0 {
		fmt.Fprintln(out, "\nReferences:")
		for i, u := range res.References {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, u)
		}
	}
	if qs := res.FollowUps(); len(qs) > 0 {
		fmt.Fprintln(out, "\nYou could also ask:")
		for _, q := range qs {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	return nil
}
