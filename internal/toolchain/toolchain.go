// Package toolchain maps a language to the recipe used to check or run it.
package toolchain

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"

	"github.com/michaelbrown/codecollab/internal/validate"
)

// Language is a closed set of supported source languages.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	C          Language = "c"
	CPP        Language = "cpp"
	Java       Language = "java"
	Go         Language = "go"
	Rust       Language = "rust"
	PHP        Language = "php"
	Ruby       Language = "ruby"
	HTML       Language = "html"
	CSS        Language = "css"
)

// Languages returns every Language constant. The default registry must
// carry an entry for each of them.
func Languages() []Language {
	return []Language{Python, JavaScript, TypeScript, C, CPP, Java, Go, Rust, PHP, Ruby, HTML, CSS}
}

// Kind is the execution strategy of a language.
type Kind int

const (
	// Interpreted runs the source file directly.
	Interpreted Kind = iota
	// Compiled builds an artifact and runs it; both steps share one timeout.
	Compiled
	// ValidateOnly checks the source in-process and never spawns anything.
	ValidateOnly
)

func (k Kind) String() string {
	switch k {
	case Interpreted:
		return "interpreted"
	case Compiled:
		return "compiled"
	case ValidateOnly:
		return "validate-only"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for _, candidate := range []Kind{Interpreted, Compiled, ValidateOnly} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return errors.Newf("unknown kind %q", text)
}

// Toolchain is the recipe for one language.
type Toolchain struct {
	Language Language
	Kind     Kind

	// Extension of the source artifact, including the dot.
	Extension string
	// DisplayName replaces artifact paths in diagnostics shown to users.
	DisplayName string
	// EntryPoint marks languages whose source must declare a class named
	// after the artifact (Java).
	EntryPoint bool

	// Compile and Run are argv templates. Placeholders: {src} source path,
	// {bin} binary path, {out} class output directory, {class} entry class.
	Compile []string
	Run     []string

	// Image is the container image used by the docker sandbox.
	Image string

	// Validate is required for ValidateOnly and runs as a pre-flight check
	// for the other kinds when set.
	Validate       validate.Func
	ErrorHeading   string
	SuccessMessage string
}

// Steps expands the compile and run templates with vars, in execution order.
func (t Toolchain) Steps(vars map[string]string) [][]string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	var steps [][]string
	for _, tmpl := range [][]string{t.Compile, t.Run} {
		if len(tmpl) == 0 {
			continue
		}
		argv := make([]string, len(tmpl))
		for i, arg := range tmpl {
			argv[i] = r.Replace(arg)
		}
		steps = append(steps, argv)
	}
	return steps
}

// Command renders the steps as one shell line, expanded with the display
// filename, for help output.
func (t Toolchain) Command() string {
	base := strings.TrimSuffix(t.DisplayName, t.Extension)
	steps := t.Steps(map[string]string{
		"src":   t.DisplayName,
		"bin":   "./" + base,
		"out":   ".",
		"class": base,
	})
	parts := make([]string, 0, len(steps))
	for _, argv := range steps {
		parts = append(parts, shellquote.Join(argv...))
	}
	return strings.Join(parts, " && ")
}

// Template splits a command line into an argv template.
func Template(line string) ([]string, error) {
	argv, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing command template %q", line)
	}
	return argv, nil
}

func mustTemplate(line string) []string {
	argv, err := Template(line)
	if err != nil {
		panic(err)
	}
	return argv
}
