package executor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/codecollab/internal/toolchain"
)

func TestDiagnosticsTable_CoversEveryExecutedLanguage(t *testing.T) {
	c := DefaultClassifier()
	for _, tc := range toolchain.Default().Toolchains() {
		if tc.Kind == toolchain.ValidateOnly {
			continue
		}
		assert.True(t, c.Covers(tc.Language), "no remediation for %s", tc.Language)
	}
}

func TestClassify_Rewrites(t *testing.T) {
	tests := []struct {
		lang toolchain.Language
		raw  string
		want string
	}{
		{toolchain.Go, "# command-line-arguments\nmain.go:4:2: undefined: x", "Error: # command-line-arguments\nmain.go, line 4: undefined: x"},
		{toolchain.Rust, "error[E0425]: cannot find value `x`\n --> main.rs:2:5", "Error: Error:  cannot find value `x`\n main.rs:2:5"},
		{toolchain.PHP, "PHP Parse error: syntax error", "Error: Parse Error: syntax error"},
		{toolchain.Ruby, "main.rb:1:in `<main>': undefined local variable", "Error: main.rb:1: undefined local variable"},
		{toolchain.C, "main.c:3:1: error: expected ';'\nmain.c:2:1: warning: unused", "Error: main.c:3:1: expected ';'\nmain.c:2:1: Warning: unused"},
		{toolchain.CPP, "main.cpp:1:1: error: boom", "Error: main.cpp:1:1: boom"},
		{toolchain.Java, "Exception in thread \"main\" java.lang.ArithmeticException", "Error: Error: \"main\" java.lang.ArithmeticException"},
		{toolchain.TypeScript, "main.ts(1,7): error TS2322: Type 'string'", "Error: main.ts(1,7): error TypeScript Error:  Type 'string'"},
		{toolchain.Python, "Traceback\nZeroDivisionError: division by zero", "Error: Traceback\nZeroDivisionError: division by zero"},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			out := Classify(tt.lang, tt.raw)
			assert.Equal(t, KindRuntimeError, out.Kind)
			assert.Equal(t, tt.want, out.Text)
		})
	}
}

func TestClassify_MissingToolchain(t *testing.T) {
	tests := []struct {
		lang toolchain.Language
		raw  string
		hint string
	}{
		{toolchain.Python, "sh: 1: python3: not found", "Python is not installed"},
		{toolchain.Go, "bash: go: command not found", "Go is not installed"},
		{toolchain.CPP, "'g++' is not recognized as an internal or external command", "g++ compiler is not installed"},
		{toolchain.Java, `exec: "javac": executable file not found in $PATH`, "Java JDK is not installed"},
		{toolchain.TypeScript, "Error: Cannot find module 'ts-node'", "npm install -g typescript ts-node"},
		{toolchain.TypeScript, "npm ERR! could not determine executable to run", "TypeScript/ts-node"},
	}
	for _, tt := range tests {
		out := Classify(tt.lang, tt.raw)
		require.Equal(t, KindToolchainMissing, out.Kind, tt.raw)
		assert.True(t, strings.HasPrefix(out.Text, "❌ Runtime Not Found\n\n"), out.Text)
		assert.Contains(t, out.Text, tt.hint)
		assert.True(t, strings.HasSuffix(out.Text, "\n\nAfter installation, restart the server and try again."))
	}
}

func TestClassify_LanguageSpecificMissingPatternsStayLocal(t *testing.T) {
	out := Classify(toolchain.JavaScript, "Error: Cannot find module 'ts-node'")
	assert.Equal(t, KindRuntimeError, out.Kind)
}

func TestClassify_UserOutputThatLooksLikeAShellIsARuntimeError(t *testing.T) {
	tests := []struct {
		lang toolchain.Language
		raw  string
	}{
		{toolchain.Python, "config.json: not found"},
		{toolchain.Python, "Traceback (most recent call last):\nKeyError: 'x'\nlookup: not found"},
		{toolchain.Ruby, "deploy: command not found"},
		{toolchain.Go, `open "data.csv": executable file not found`},
		{toolchain.JavaScript, "python3: not found"},
	}
	for _, tt := range tests {
		out := Classify(tt.lang, tt.raw)
		assert.Equal(t, KindRuntimeError, out.Kind, tt.raw)
		assert.True(t, strings.HasPrefix(out.Text, "Error: "), out.Text)
	}
}

func TestClassifier_MissingWithoutRemediation(t *testing.T) {
	c, err := NewClassifier([]byte("missing: [\"gone\"]\n"))
	require.NoError(t, err)

	out := c.Classify(toolchain.Ruby, "ruby is gone")
	assert.Equal(t, KindToolchainMissing, out.Kind)
	assert.Contains(t, out.Text, "The ruby toolchain is not installed.")
}

func TestNewClassifier_Errors(t *testing.T) {
	_, err := NewClassifier([]byte("missing: [unterminated"))
	assert.Error(t, err)

	_, err = NewClassifier([]byte("languages:\n  go:\n    rewrites:\n      - pattern: '('\n        replace: ''\n"))
	assert.Error(t, err)
}
