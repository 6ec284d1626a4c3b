package toolchain

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/michaelbrown/codecollab/internal/validate"
)

// ErrUnsupported is returned for languages the registry does not know.
var ErrUnsupported = errors.New("unsupported language")

var aliases = map[string]Language{
	"py":         Python,
	"python3":    Python,
	"js":         JavaScript,
	"node":       JavaScript,
	"ts":         TypeScript,
	"c++":        CPP,
	"cxx":        CPP,
	"golang":     Go,
	"rs":         Rust,
	"rb":         Ruby,
	"htm":        HTML,
	"stylesheet": CSS,
}

var extraExtensions = map[string]Language{
	".mjs": JavaScript,
	".cjs": JavaScript,
	".cc":  CPP,
	".cxx": CPP,
	".htm": HTML,
}

// Registry resolves language names to toolchains.
type Registry struct {
	byLang map[Language]Toolchain
	byExt  map[string]Language
}

// New builds a registry from the given toolchains.
func New(tcs ...Toolchain) (*Registry, error) {
	r := &Registry{
		byLang: make(map[Language]Toolchain, len(tcs)),
		byExt:  make(map[string]Language, len(tcs)),
	}
	for _, tc := range tcs {
		if _, dup := r.byLang[tc.Language]; dup {
			return nil, errors.Newf("duplicate toolchain for %s", tc.Language)
		}
		if tc.Kind == ValidateOnly && tc.Validate == nil {
			return nil, errors.Newf("validate-only toolchain %s has no validator", tc.Language)
		}
		if tc.Kind != ValidateOnly && len(tc.Run) == 0 {
			return nil, errors.Newf("toolchain %s has no run command", tc.Language)
		}
		if tc.Kind == Compiled && len(tc.Compile) == 0 {
			return nil, errors.Newf("compiled toolchain %s has no compile command", tc.Language)
		}
		r.byLang[tc.Language] = tc
		if tc.Extension != "" {
			r.byExt[tc.Extension] = tc.Language
		}
	}
	for ext, lang := range extraExtensions {
		if _, ok := r.byLang[lang]; ok {
			r.byExt[ext] = lang
		}
	}
	return r, nil
}

// Resolve finds the toolchain for a user-supplied language name. Matching is
// case-insensitive and accepts common aliases.
func (r *Registry) Resolve(name string) (Toolchain, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	lang := Language(key)
	if alias, ok := aliases[key]; ok {
		lang = alias
	}
	tc, ok := r.byLang[lang]
	if !ok {
		return Toolchain{}, errors.WithDetailf(ErrUnsupported, "language %q", name)
	}
	return tc, nil
}

// Lookup returns the toolchain for a known language.
func (r *Registry) Lookup(lang Language) (Toolchain, bool) {
	tc, ok := r.byLang[lang]
	return tc, ok
}

// FromFilename infers the language from a file extension.
func (r *Registry) FromFilename(path string) (Language, bool) {
	lang, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Toolchains returns every registered toolchain ordered by language name.
func (r *Registry) Toolchains() []Toolchain {
	out := make([]Toolchain, 0, len(r.byLang))
	for _, tc := range r.byLang {
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry. It panics if a Language constant
// has no toolchain, which is a programming error.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := New(builtin()...)
		if err != nil {
			panic(err)
		}
		for _, lang := range Languages() {
			if _, ok := r.byLang[lang]; !ok {
				panic("toolchain: no entry for " + string(lang))
			}
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

func builtin() []Toolchain {
	return []Toolchain{
		{
			Language:    Python,
			Kind:        Interpreted,
			Extension:   ".py",
			DisplayName: "main.py",
			Run:         mustTemplate("python3 {src}"),
			Image:       "python:3.12-slim",
		},
		{
			Language:    JavaScript,
			Kind:        Interpreted,
			Extension:   ".js",
			DisplayName: "main.js",
			Run:         mustTemplate("node {src}"),
			Image:       "node:22-slim",
		},
		{
			Language:     TypeScript,
			Kind:         Interpreted,
			Extension:    ".ts",
			DisplayName:  "main.ts",
			Run:          mustTemplate("npx --no ts-node {src}"),
			Image:        "node:22-slim",
			Validate:     validate.Brackets,
			ErrorHeading: "TypeScript Validation Error",
		},
		{
			Language:    Go,
			Kind:        Interpreted,
			Extension:   ".go",
			DisplayName: "main.go",
			Run:         mustTemplate("go run {src}"),
			Image:       "golang:1.23-alpine",
		},
		{
			Language:    PHP,
			Kind:        Interpreted,
			Extension:   ".php",
			DisplayName: "main.php",
			Run:         mustTemplate("php {src}"),
			Image:       "php:8.3-cli",
		},
		{
			Language:    Ruby,
			Kind:        Interpreted,
			Extension:   ".rb",
			DisplayName: "main.rb",
			Run:         mustTemplate("ruby {src}"),
			Image:       "ruby:3.3-slim",
		},
		{
			Language:    C,
			Kind:        Compiled,
			Extension:   ".c",
			DisplayName: "main.c",
			Compile:     mustTemplate("gcc {src} -o {bin}"),
			Run:         mustTemplate("{bin}"),
			Image:       "gcc:14",
		},
		{
			Language:    CPP,
			Kind:        Compiled,
			Extension:   ".cpp",
			DisplayName: "main.cpp",
			Compile:     mustTemplate("g++ {src} -o {bin}"),
			Run:         mustTemplate("{bin}"),
			Image:       "gcc:14",
		},
		{
			Language:    Rust,
			Kind:        Compiled,
			Extension:   ".rs",
			DisplayName: "main.rs",
			Compile:     mustTemplate("rustc {src} -o {bin}"),
			Run:         mustTemplate("{bin}"),
			Image:       "rust:1-slim",
		},
		{
			Language:    Java,
			Kind:        Compiled,
			Extension:   ".java",
			DisplayName: "Main.java",
			EntryPoint:  true,
			Compile:     mustTemplate("javac -d {out} {src}"),
			Run:         mustTemplate("java -cp {out} {class}"),
			Image:       "eclipse-temurin:21",
		},
		{
			Language:       HTML,
			Kind:           ValidateOnly,
			Extension:      ".html",
			DisplayName:    "index.html",
			Validate:       validate.Markup,
			ErrorHeading:   "HTML Validation Error",
			SuccessMessage: "✓ HTML validated successfully!\n\nOpen this file in a browser to view the result.\nYou can also use it in your web project.",
		},
		{
			Language:       CSS,
			Kind:           ValidateOnly,
			Extension:      ".css",
			DisplayName:    "styles.css",
			Validate:       validate.Stylesheet,
			ErrorHeading:   "CSS Validation Error",
			SuccessMessage: "✓ CSS validated successfully!\n\nLink this stylesheet in your HTML:\n<link rel=\"stylesheet\" href=\"styles.css\">",
		},
	}
}
