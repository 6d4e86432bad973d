package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/samsaffron/orchat/internal/chat"
	"github.com/samsaffron/orchat/internal/exitcode"
	"github.com/samsaffron/orchat/internal/llm"
	"github.com/samsaffron/orchat/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var askModel string

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask a question and stream the answer",
	Long: `Ask a free OpenRouter model a question and stream the reply to stdout.

When stdin is not a terminal it is read and appended to the question.

Examples:
  orchat ask "What is the capital of France?"
  orchat ask --model gemma "Summarise RFC 9110 in three lines"
  cat main.go | orchat ask "what does this do?"`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model id or fuzzy name (default: config or first free model)")
	_ = askCmd.RegisterFlagCompletionFunc("model", ModelFlagCompletion)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	stdin := cmd.InOrStdin()
	piped := false
	if f, ok := stdin.(*os.File); ok {
		piped = !term.IsTerminal(int(f.Fd()))
	}
	question, err := buildQuestion(args, stdin, piped)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, askModel)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.session.HasCredential() {
		return missingKeyError()
	}
	if err := a.requireModel(ctx, askModel); err != nil {
		if ctx.Err() != nil {
			return exitcode.Cancel()
		}
		return err
	}

	return streamAnswer(ctx, a.session, question, cmd.OutOrStdout())
}

// buildQuestion joins the arguments and, when piped, the contents of stdin.
func buildQuestion(args []string, stdin io.Reader, piped bool) (string, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if piped {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if input := strings.TrimSpace(string(data)); input != "" {
			if question == "" {
				question = input
			} else {
				question += "\n\n" + input
			}
		}
	}
	if question == "" {
		return "", fmt.Errorf("nothing to ask: pass a question or pipe text on stdin")
	}
	return question, nil
}

// streamAnswer submits question and copies the reply to out as it arrives.
func streamAnswer(ctx context.Context, sess *session.Session, question string, out io.Writer) error {
	updates, err := sess.Submit(ctx, question)
	switch {
	case errors.Is(err, llm.ErrCredentialMissing):
		return missingKeyError()
	case err != nil:
		return err
	}

	var failure string
	cancelled := false
	wrote := false
	for u := range updates {
		switch u := u.(type) {
		case session.UpdateDelta:
			fmt.Fprint(out, u.Text)
			wrote = true
		case session.UpdateError:
			failure = u.Message
		case session.UpdateDone:
			cancelled = u.Cancelled
		}
	}
	if wrote {
		fmt.Fprintln(out)
	}

	if cancelled {
		return exitcode.Cancel()
	}
	if failure != "" {
		return errors.New(strings.TrimPrefix(failure, chat.ErrorPrefix))
	}
	return nil
}
