package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codecollab/internal/executor"
	"github.com/michaelbrown/codecollab/internal/toolchain"
)

var languageFlag string

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run or validate a source file",
	Long: `Run a source file through the same runner the server uses.

The language is inferred from the file extension unless --language is given.

Examples:
  codecollab run hello.py
  codecollab run Main.java
  codecollab run snippet.txt --language ruby`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language (default: inferred from extension)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading source")
	}

	runner := executor.NewFromConfig(cfg.Execution)
	lang, err := detectLanguage(runner.Registry(), path, languageFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := runner.Run(ctx, executor.Request{Source: string(src), Language: string(lang)})
	if err != nil {
		return err
	}

	if out.OK() {
		fmt.Fprint(cmd.OutOrStdout(), withNewline(out.Text))
		return nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), withNewline(out.Text))
	return errors.Newf("%s (%s)", out.Kind, lang)
}

// detectLanguage resolves an explicit language name, or infers one from path.
func detectLanguage(reg *toolchain.Registry, path, explicit string) (toolchain.Language, error) {
	if explicit != "" {
		tc, err := reg.Resolve(explicit)
		if err != nil {
			return "", err
		}
		return tc.Language, nil
	}
	lang, ok := reg.FromFilename(path)
	if !ok {
		return "", errors.WithHint(
			errors.Newf("cannot infer language of %s", path),
			"pass --language",
		)
	}
	return lang, nil
}

func withNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
