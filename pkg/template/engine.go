// Package template resolves extends, variable templates, stage/job/
// step templates, and ${{ if/each }} directives in a pipeline
// document, expanding them recursively into a fully-typed Document.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/azlocal/pipeline/pkg/expression"
)

// Engine resolves template references against a repo root and a
// mapping from logical repository name to filesystem root. It is not
// safe for concurrent use — the include stack is mutable state scoped
// to a single top-level resolution call.
type Engine struct {
	RepoRoot string
	Repos    map[string]string

	stack []string
}

// NewEngine constructs a template Engine rooted at repoRoot, with
// additional named repositories available for `path@repoName`
// references.
func NewEngine(repoRoot string, repos map[string]string) *Engine {
	return &Engine{RepoRoot: repoRoot, Repos: repos}
}

// resolveRef parses a template reference ("path/to/file.yml",
// "path@repoName", or "repoName@path") into a canonical absolute
// filesystem path.
func (e *Engine) resolveRef(ref string) (string, error) {
	root := e.RepoRoot
	rel := ref
	if idx := strings.Index(ref, "@"); idx >= 0 {
		left, right := ref[:idx], ref[idx+1:]
		if r, ok := e.Repos[right]; ok {
			root, rel = r, left
		} else if r, ok := e.Repos[left]; ok {
			root, rel = r, right
		} else {
			return "", &Error{Kind: ErrFileNotFound, Path: ref, Message: fmt.Sprintf("unknown repository reference in %q", ref)}
		}
	}
	abs := filepath.Join(root, rel)
	canon, err := filepath.Abs(abs)
	if err != nil {
		return "", &Error{Kind: ErrFileNotFound, Path: ref, Message: err.Error()}
	}
	return canon, nil
}

// push records entry into path on the include stack, failing on
// re-entry or depth overflow. The caller must call pop exactly once,
// on every exit path (success or error), after load.
func (e *Engine) push(path string) error {
	for _, p := range e.stack {
		if p == path {
			chain := append(append([]string{}, e.stack...), path)
			return &Error{Kind: ErrCircularReference, Path: path, Message: fmt.Sprintf("circular template reference: %s", strings.Join(chain, " -> "))}
		}
	}
	if len(e.stack) >= maxIncludeDepth {
		return &Error{Kind: ErrMaxDepthExceeded, Path: path, Message: fmt.Sprintf("template include depth exceeds %d", maxIncludeDepth)}
	}
	e.stack = append(e.stack, path)
	return nil
}

func (e *Engine) pop() {
	if len(e.stack) > 0 {
		e.stack = e.stack[:len(e.stack)-1]
	}
}

// loadRaw reads and parses a template file's raw YAML tree, without
// typed decoding (so directive splicing can run against the untyped
// tree first).
func (e *Engine) loadRaw(ref string) (*yaml.Node, string, error) {
	path, err := e.resolveRef(ref)
	if err != nil {
		return nil, "", err
	}
	if err := e.push(path); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		e.pop()
		return nil, "", &Error{Kind: ErrFileNotFound, Path: path, Message: err.Error()}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		e.pop()
		return nil, "", &Error{Path: path, Message: fmt.Sprintf("parse: %v", err)}
	}
	return &root, path, nil
}

// eng is the shared expression.Engine instance used to evaluate every
// ${{ }} directive and scalar substitution encountered during
// resolution.
var eng = expression.NewEngine()
