package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/hupe1980/payroute"
	"github.com/hupe1980/payroute/session"
	"github.com/spf13/cobra"
)

func newReplCmd(a *app) *cobra.Command {
	var (
		sessionID string
		plain     bool
	)

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive loop with conversation history",
		Long: `Reads one utterance per line. Commands:
  /history  show the turns of this session
  /graph    print the flow as Mermaid
  exit      leave (also quit, /exit)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, router, _, err := a.setup()
			if err != nil {
				return err
			}

			store, release, err := sessionStore(cfg)
			if err != nil {
				return err
			}
			defer release()

			if sessionID == "" {
				sessionID = session.NewID()
			}

			render := plainRenderer
			if !plain {
				if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100)); err == nil {
					render = r.Render
				}
			}

			r := &repl{
				router:    router,
				store:     store,
				sessionID: sessionID,
				render:    render,
				in:        cmd.InOrStdin(),
				out:       cmd.OutOrStdout(),
				errOut:    cmd.ErrOrStderr(),
				now:       time.Now,
			}

			return r.loop(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session id")
	cmd.Flags().BoolVar(&plain, "plain", false, "disable markdown rendering")

	return cmd
}

func plainRenderer(s string) (string, error) { return s + "\n", nil }

type repl struct {
	router    *payroute.Router
	store     session.Store
	sessionID string
	render    func(string) (string, error)
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
	now       func() time.Time
}

func (r *repl) loop(ctx context.Context) error {
	fmt.Fprintf(r.out, "payroute (session %s, type 'exit' to quit)\n", r.sessionID)

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "exit", "quit", "/exit":
			return nil
		case "/history":
			r.printHistory(ctx)
			continue
		case "/graph":
			fmt.Fprintln(r.out, r.router.Mermaid())
			continue
		}

		res, err := r.router.RunSync(ctx, input)
		if err != nil {
			fmt.Fprintf(r.errOut, "Error: %v\n", err)
			continue
		}

		if err := r.store.Append(ctx, r.sessionID, session.Turn{
			RunID:    res.RunID,
			Input:    input,
			Output:   res.Output(),
			Terminal: res.Terminal,
			Path:     res.Path,
			At:       r.now(),
		}); err != nil {
			fmt.Fprintf(r.errOut, "Error: record turn: %v\n", err)
		}

		r.print(res.Output())
	}
}

func (r *repl) print(text string) {
	out, err := r.render(text)
	if err != nil {
		out = text + "\n"
	}
	fmt.Fprint(r.out, out)
}

func (r *repl) printHistory(ctx context.Context) {
	turns, err := r.store.History(ctx, r.sessionID)
	if err != nil {
		fmt.Fprintln(r.out, "(no history)")
		return
	}

	var sb strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&sb, "%d. **%s**\n   → %s _(%s)_\n", i+1, t.Input, t.Output, t.Terminal)
	}
	r.print(sb.String())
}
