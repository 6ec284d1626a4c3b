package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codecollab/internal/executor"
	"github.com/michaelbrown/codecollab/internal/toolchain"
)

var playgroundLang string

var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Interactive scratchpad for running snippets",
	Long: `Type code line by line, then /run to execute the buffer.

Examples:
  codecollab playground
  codecollab playground --language javascript`,
	RunE: runPlayground,
}

func init() {
	playgroundCmd.Flags().StringVarP(&playgroundLang, "language", "l", "python", "Starting language")
	rootCmd.AddCommand(playgroundCmd)
}

// playground is the editable state of one REPL session.
type playground struct {
	runner *executor.Runner
	lang   toolchain.Language
	lines  []string
	out    io.Writer
}

func runPlayground(cmd *cobra.Command, args []string) error {
	runner := executor.NewFromConfig(cfg.Execution)
	tc, err := runner.Registry().Resolve(playgroundLang)
	if err != nil {
		return err
	}
	p := &playground{runner: runner, lang: tc.Language, out: cmd.OutOrStdout()}

	fmt.Fprintf(p.out, "CodeCollab Playground\n")
	fmt.Fprintf(p.out, "Languages: %s\n", languageNames(runner.Registry()))
	fmt.Fprintf(p.out, "Type /help for commands, /run to execute, /quit to exit\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          p.prompt(),
		HistoryFile:     filepath.Join(os.TempDir(), "codecollab_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return errors.Wrap(err, "readline")
	}
	defer rl.Close()

	// Ctrl+C cancels the running snippet, not the playground.
	var runCancel context.CancelFunc
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if runCancel != nil {
				runCancel()
			}
		}
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Fprintln(p.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if !strings.HasPrefix(strings.TrimSpace(line), "/") {
			p.lines = append(p.lines, line)
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		runCancel = cancel
		quit := p.command(ctx, strings.TrimSpace(line))
		cancel()
		runCancel = nil

		if quit {
			fmt.Fprintln(p.out, "Goodbye!")
			return nil
		}
		rl.SetPrompt(p.prompt())
	}
}

func (p *playground) prompt() string {
	return fmt.Sprintf("\033[36m%s>\033[0m ", p.lang)
}

// command handles one slash command. It returns true when the session ends.
func (p *playground) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return true
	case "/run", "/r":
		p.run(ctx)
	case "/lang", "/language":
		if len(fields) < 2 {
			fmt.Fprintf(p.out, "Current language: %s\n\n", p.lang)
			break
		}
		tc, err := p.runner.Registry().Resolve(fields[1])
		if err != nil {
			fmt.Fprintf(p.out, "\033[31m%s\033[0m\n\n", err)
			break
		}
		p.lang = tc.Language
		fmt.Fprintf(p.out, "Language set to %s.\n\n", p.lang)
	case "/clear":
		p.lines = nil
		fmt.Fprintln(p.out, "Buffer cleared.")
		fmt.Fprintln(p.out)
	case "/show":
		if len(p.lines) == 0 {
			fmt.Fprintln(p.out, "(empty)")
		}
		for i, l := range p.lines {
			fmt.Fprintf(p.out, "\033[90m%3d│\033[0m %s\n", i+1, l)
		}
		fmt.Fprintln(p.out)
	case "/help":
		fmt.Fprintln(p.out, "Commands:")
		fmt.Fprintln(p.out, "  /run        - Execute the buffer")
		fmt.Fprintln(p.out, "  /lang <x>   - Switch language")
		fmt.Fprintln(p.out, "  /show       - Print the buffer")
		fmt.Fprintln(p.out, "  /clear      - Empty the buffer")
		fmt.Fprintln(p.out, "  /quit       - Exit")
		fmt.Fprintln(p.out)
	default:
		fmt.Fprintf(p.out, "Unknown command: %s (try /help)\n\n", input)
	}
	return false
}

func (p *playground) run(ctx context.Context) {
	src := strings.Join(p.lines, "\n")
	if strings.TrimSpace(src) == "" {
		fmt.Fprintln(p.out, "Nothing to run.")
		fmt.Fprintln(p.out)
		return
	}

	out, err := p.runner.Run(ctx, executor.Request{Source: src, Language: string(p.lang)})
	switch {
	case ctx.Err() != nil:
		fmt.Fprintln(p.out, "(interrupted)")
	case err != nil:
		fmt.Fprintf(p.out, "\033[31merror: %s\033[0m\n", err)
	case out.OK():
		fmt.Fprint(p.out, withNewline(out.Text))
	default:
		fmt.Fprintf(p.out, "\033[31m%s\033[0m", withNewline(out.Text))
	}
	fmt.Fprintln(p.out)
}
