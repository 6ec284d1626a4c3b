package executor

import (
	_ "embed"
	"regexp"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/michaelbrown/codecollab/internal/toolchain"
)

//go:embed diagnostics.yaml
var diagnosticsYAML []byte

const (
	missingHeader = "❌ Runtime Not Found"
	missingFooter = "After installation, restart the server and try again."
)

type diagnosticsFile struct {
	Missing   []string                       `yaml:"missing"`
	Languages map[string]languageDiagnostics `yaml:"languages"`
}

type languageDiagnostics struct {
	Binaries    []string      `yaml:"binaries"`
	Remediation string        `yaml:"remediation"`
	Missing     []string      `yaml:"missing"`
	Rewrites    []rewriteRule `yaml:"rewrites"`
}

type rewriteRule struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

type rewrite struct {
	re      *regexp.Regexp
	replace string
}

type languageRules struct {
	remediation string
	missing     []string
	rewrites    []rewrite
}

// Classifier turns the raw diagnostic of a failed execution into an outcome
// using a declarative table.
type Classifier struct {
	missing   []string
	languages map[toolchain.Language]languageRules
}

// NewClassifier parses a diagnostics table.
func NewClassifier(data []byte) (*Classifier, error) {
	var file diagnosticsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing diagnostics table")
	}

	c := &Classifier{
		missing:   file.Missing,
		languages: make(map[toolchain.Language]languageRules, len(file.Languages)),
	}
	for name, diag := range file.Languages {
		rules := languageRules{
			remediation: strings.TrimSpace(diag.Remediation),
			missing:     append(absentBinary(diag.Binaries), diag.Missing...),
		}
		for i, rule := range diag.Rewrites {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, errors.Wrapf(err, "diagnostics for %s: rewrite %d", name, i)
			}
			rules.rewrites = append(rules.rewrites, rewrite{re: re, replace: rule.Replace})
		}
		c.languages[toolchain.Language(name)] = rules
	}
	return c, nil
}

// absentBinary lists the ways sh, bash, cmd.exe and os/exec report that one
// of bins could not be launched.
func absentBinary(bins []string) []string {
	var sigs []string
	for _, bin := range bins {
		sigs = append(sigs,
			bin+": not found",
			bin+": command not found",
			`"`+bin+`": executable file not found`,
			"'"+bin+"' is not recognized as an internal or external command",
		)
	}
	return sigs
}

var (
	defaultClassifierOnce sync.Once
	defaultClassifier     *Classifier
)

// DefaultClassifier returns the classifier built from the embedded table.
func DefaultClassifier() *Classifier {
	defaultClassifierOnce.Do(func() {
		c, err := NewClassifier(diagnosticsYAML)
		if err != nil {
			panic(err)
		}
		defaultClassifier = c
	})
	return defaultClassifier
}

// Classify maps a raw diagnostic to either a toolchain-missing outcome or a
// runtime error with normalized text.
func Classify(lang toolchain.Language, raw string) Outcome {
	return DefaultClassifier().Classify(lang, raw)
}

// Classify maps a raw diagnostic to either a toolchain-missing outcome or a
// runtime error with normalized text.
func (c *Classifier) Classify(lang toolchain.Language, raw string) Outcome {
	rules := c.languages[lang]

	if c.isMissing(rules, raw) {
		return c.Missing(lang)
	}

	text := raw
	for _, rw := range rules.rewrites {
		text = rw.re.ReplaceAllString(text, rw.replace)
	}
	return Outcome{Kind: KindRuntimeError, Text: "Error: " + text}
}

// Missing builds the toolchain-missing outcome for lang.
func (c *Classifier) Missing(lang toolchain.Language) Outcome {
	remediation := c.languages[lang].remediation
	if remediation == "" {
		remediation = "The " + string(lang) + " toolchain is not installed."
	}
	return Outcome{
		Kind: KindToolchainMissing,
		Text: missingHeader + "\n\n" + remediation + "\n\n" + missingFooter,
	}
}

// Covers reports whether the table has a remediation entry for lang.
func (c *Classifier) Covers(lang toolchain.Language) bool {
	return c.languages[lang].remediation != ""
}

func (c *Classifier) isMissing(rules languageRules, raw string) bool {
	for _, sig := range c.missing {
		if strings.Contains(raw, sig) {
			return true
		}
	}
	for _, sig := range rules.missing {
		if strings.Contains(raw, sig) {
			return true
		}
	}
	return false
}
