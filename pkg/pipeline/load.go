package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/azlocal/pipeline/pkg/expression"
)

// LoadFile reads and parses a pipeline YAML file.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pipeline: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a pipeline document from an io.Reader. It first walks
// the raw yaml.Node tree to detect ${{ if/each }} directive entries
// (which a typed decode would silently drop), then decodes into
// Document; keys with no matching field are ignored rather than
// rejected. When directives are present, HasTemplateDirectives
// is set so the template engine knows to re-parse the raw tree rather
// than trust the typed result.
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}

	hasDirectives := containsDirectiveNode(&root)

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	doc.HasTemplateDirectives = hasDirectives

	return &doc, nil
}

// containsDirectiveNode reports whether any sequence item or mapping
// key in the tree is a one-key mapping whose key matches a
// ${{ if/elseif/else/each }} directive head.
func containsDirectiveNode(n *yaml.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			if containsDirectiveNode(c) {
				return true
			}
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if isDirectiveMapping(item) {
				return true
			}
			if containsDirectiveNode(item) {
				return true
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind == yaml.ScalarNode && expression.HasDirectives(key.Value) {
				return true
			}
			if containsDirectiveNode(val) {
				return true
			}
		}
	}
	return false
}

func isDirectiveMapping(n *yaml.Node) bool {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return false
	}
	key := n.Content[0]
	return key.Kind == yaml.ScalarNode && expression.HasDirectives(key.Value)
}
