package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/michaelbrown/codecollab/internal/toolchain"
)

var artifactSeq atomic.Uint64

var publicClassPattern = regexp.MustCompile(`public class\s+(\w+)`)

// Artifact is the set of scratch files owned by one invocation.
type Artifact struct {
	Dir      string
	Base     string
	Source   string
	Binary   string
	ClassDir string
	Class    string
}

// newArtifact names the files for one invocation. Basenames combine a
// millisecond timestamp, a process-wide counter and a random suffix.
func newArtifact(dir string, tc toolchain.Toolchain) *Artifact {
	prefix := "code"
	if tc.EntryPoint {
		prefix = "Main"
	}
	base := fmt.Sprintf("%s_%d_%d_%s",
		prefix,
		time.Now().UnixMilli(),
		artifactSeq.Add(1),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
	)

	a := &Artifact{
		Dir:    dir,
		Base:   base,
		Source: filepath.Join(dir, base+tc.Extension),
		Binary: filepath.Join(dir, base),
	}
	if tc.EntryPoint {
		a.Class = base
		a.ClassDir = filepath.Join(dir, base+"_classes")
	}
	return a
}

// vars are the values substituted into command templates.
func (a *Artifact) vars() map[string]string {
	return map[string]string{
		"src":   a.Source,
		"bin":   a.Binary,
		"out":   a.ClassDir,
		"class": a.Class,
	}
}

// writeSource writes src to the source path. Entry-point languages get the
// class renamed, or the code wrapped in a class, so it matches the file.
func (a *Artifact) writeSource(src string) error {
	if a.Class != "" {
		src = entrySource(src, a.Class)
	}
	if err := os.WriteFile(a.Source, []byte(src), 0o600); err != nil {
		return errors.Wrap(err, "writing source artifact")
	}
	return nil
}

// paths lists everything the invocation may have created.
func (a *Artifact) paths() []string {
	p := []string{a.Source, a.Binary, a.Binary + ".exe"}
	if a.ClassDir != "" {
		p = append(p, a.ClassDir)
	}
	return p
}

// remove deletes every artifact path. Missing paths are not errors.
func (a *Artifact) remove() error {
	var errs error
	for _, p := range a.paths() {
		if err := os.RemoveAll(p); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

// scrub replaces scratch paths and generated names in diagnostics with the
// display filename.
func (a *Artifact) scrub(text string, tc toolchain.Toolchain) string {
	display := tc.DisplayName
	displayBase := strings.TrimSuffix(display, filepath.Ext(display))
	r := strings.NewReplacer(
		a.Source, display,
		a.Binary+".exe", displayBase,
		a.Binary, displayBase,
		a.Base+tc.Extension, display,
		a.Base, displayBase,
	)
	return r.Replace(text)
}

func entrySource(src, class string) string {
	if !strings.Contains(src, "public class") {
		return wrapInClass(src, class)
	}
	loc := publicClassPattern.FindStringIndex(src)
	if loc == nil {
		return src
	}
	return src[:loc[0]] + "public class " + class + src[loc[1]:]
}

func wrapInClass(src, class string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = "        " + line
	}
	return "public class " + class + " {\n" +
		"    public static void main(String[] args) {\n" +
		strings.Join(lines, "\n") + "\n" +
		"    }\n" +
		"}"
}
