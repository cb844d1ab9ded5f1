// Package graph builds and orders the stage/job dependency DAG: cycle
// detection, topological ordering, parallel-level grouping, and
// matrix/parallel strategy expansion.
package graph

import (
	"fmt"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

// Error is returned for dependency-graph construction failures,
// distinct from a runtime skip caused by a failed dependency.
type Error struct {
	Kind    ErrorKind
	Message string
}

// ErrorKind classifies a graph construction failure.
type ErrorKind int

const (
	ErrCycle ErrorKind = iota
	ErrUnknownDependency
)

func (e *Error) Error() string { return e.Message }

// node is one entry of a dependency graph: a name, its dependency
// names, and its level once computed.
type node struct {
	name  string
	deps  []string
	level int
}

// Graph is a built, validated dependency graph over a named node set.
type Graph struct {
	order []string
	byName map[string]*node
}

// BuildStageGraph constructs the stage-level dependency graph for a
// document. Stage dependsOn must already be resolved via
// pipeline.ResolveStageDeps.
func BuildStageGraph(doc *pipeline.Document) (*Graph, error) {
	names := make([]string, len(doc.Stages))
	deps := make([][]string, len(doc.Stages))
	for i, s := range doc.Stages {
		names[i] = s.Stage
		deps[i] = s.Deps().Names
	}
	return build(names, deps)
}

// BuildJobGraph constructs the job-level dependency graph for one
// stage. Job dependsOn must already be resolved via
// pipeline.ResolveJobDeps.
func BuildJobGraph(stage *pipeline.Stage) (*Graph, error) {
	names := make([]string, len(stage.Jobs))
	deps := make([][]string, len(stage.Jobs))
	for i, j := range stage.Jobs {
		names[i] = j.Name()
		deps[i] = j.Deps().Names
	}
	return build(names, deps)
}

func build(names []string, deps [][]string) (*Graph, error) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	nodes := make([]*node, len(names))
	byName := make(map[string]*node, len(names))
	for i, n := range names {
		nd := &node{name: n, deps: deps[i]}
		nodes[i] = nd
		byName[n] = nd
	}

	for i, n := range names {
		for _, dep := range deps[i] {
			if _, ok := index[dep]; !ok {
				return nil, &Error{Kind: ErrUnknownDependency, Message: fmt.Sprintf("node %q depends on unknown node %q", n, dep)}
			}
		}
	}

	if cyc := detectCycle(names, deps); cyc != nil {
		return nil, &Error{Kind: ErrCycle, Message: fmt.Sprintf("dependency cycle detected: %v", cyc)}
	}

	if err := computeLevels(names, deps, index, nodes); err != nil {
		return nil, err
	}

	return &Graph{order: names, byName: byName}, nil
}

// computeLevels assigns level = 1 + max(level of deps) via repeated
// relaxation (the graph is acyclic by this point, so this terminates).
func computeLevels(names []string, deps [][]string, index map[string]int, nodes []*node) error {
	resolved := make([]bool, len(names))
	levels := make([]int, len(names))

	remaining := len(names)
	for remaining > 0 {
		progressed := false
		for i := range names {
			if resolved[i] {
				continue
			}
			ready := true
			max := 0
			for _, dep := range deps[i] {
				dj := index[dep]
				if !resolved[dj] {
					ready = false
					break
				}
				if levels[dj] > max {
					max = levels[dj]
				}
			}
			if !ready {
				continue
			}
			if len(deps[i]) == 0 {
				levels[i] = 1
			} else {
				levels[i] = max + 1
			}
			resolved[i] = true
			remaining--
			progressed = true
		}
		if !progressed {
			return &Error{Kind: ErrCycle, Message: "dependency cycle detected during level computation"}
		}
	}
	for i, n := range names {
		nodes[i].level = levels[i]
		_ = n
	}
	return nil
}

// detectCycle runs three-color DFS and returns the discovered cycle
// (in traversal order) or nil.
func detectCycle(names []string, deps [][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	color := make([]int, len(names))
	var stack []string
	var cycle []string

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		stack = append(stack, names[i])
		for _, dep := range deps[i] {
			dj := index[dep]
			if color[dj] == gray {
				cycle = append(append([]string{}, stack...), names[dj])
				return true
			}
			if color[dj] == white {
				if visit(dj) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return false
	}

	for i := range names {
		if color[i] == white {
			if visit(i) {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalOrder returns node names in Kahn's-algorithm order
// (dependency-respecting, deterministic for ties via document order).
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, 0, len(g.order))
	seen := map[string]bool{}
	remaining := map[string]bool{}
	for _, n := range g.order {
		remaining[n] = true
	}
	for len(remaining) > 0 {
		progressed := false
		for _, n := range g.order {
			if !remaining[n] {
				continue
			}
			ready := true
			for _, dep := range g.byName[n].deps {
				if remaining[dep] {
					ready = false
					break
				}
			}
			if ready {
				out = append(out, n)
				delete(remaining, n)
				seen[n] = true
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

// Levels groups node names by parallel-eligible level, in document
// order within each level.
func (g *Graph) Levels() [][]string {
	maxLevel := 0
	for _, n := range g.order {
		if l := g.byName[n].level; l > maxLevel {
			maxLevel = l
		}
	}
	out := make([][]string, maxLevel)
	for _, n := range g.order {
		l := g.byName[n].level
		out[l-1] = append(out[l-1], n)
	}
	return out
}

// ParallelStages is Levels for a stage graph, named to match the
// executor loop's terminology.
func (g *Graph) ParallelStages() [][]string { return g.Levels() }

// ParallelJobs is Levels for a job graph.
func (g *Graph) ParallelJobs() [][]string { return g.Levels() }
