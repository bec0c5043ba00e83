package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tokamak-network/ai-tokamak/internal/agent"
	"github.com/tokamak-network/ai-tokamak/internal/llm"
	"github.com/tokamak-network/ai-tokamak/internal/session"
)

func newAskCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the reply",
		Long: `Run one question through the agent loop in a throwaway session and
print the reply. Useful for smoke tests without starting the server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// Logs go to stderr so stdout carries only the reply.
			logger, err := loggerFor(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.bus.Stop()
			return runAsk(cmd.Context(), cmd.OutOrStdout(), a.loop, cfg.Agent.MaxRetries, strings.Join(args, " "))
		},
	}
}

// asker is the agent surface used by runAsk.
type asker interface {
	RunWithRetry(ctx context.Context, sess *session.Session, message string, maxRetries int, opts ...agent.RunOption) (string, bool)
}

// errNoReply is returned when the agent produced no answer.
var errNoReply = errors.New("no reply from agent")

// runAsk answers question in a fresh session and prints the reply.
func runAsk(ctx context.Context, w io.Writer, loop asker, maxRetries int, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("empty question")
	}

	sess := session.NewStore(session.DefaultMaxMessages).GetOrCreate("cli:ask:" + uuid.NewString())
	sess.AddMessage(llm.RoleUser, question, nil)

	reply, ok := loop.RunWithRetry(ctx, sess, question, maxRetries)
	if !ok {
		return errNoReply
	}
	_, err := fmt.Fprintln(w, reply)
	return err
}
