// Package graph holds the parsed, in-memory representation of a dialogue
// graph: a named collection of nodes, each an ordered instruction list.
// Graphs load once per asset and are immutable afterwards; the
// interpreter in engine/dialogue walks them without ever mutating them.
package graph

import (
	"github.com/nathoo/fable/types"
)

// Graph is one loaded dialogue asset.
type Graph struct {
	Name  string
	Nodes []Node
	// Meta maps node names to advisory tags ("run_on_load", "run_once").
	// The interpreter never consults these; the host does.
	Meta map[string][]string

	byName map[string]int
}

// Node is a named, ordered instruction sequence.
type Node struct {
	Name string
	Body []types.Instruction
}

// index builds the node-name lookup map. Called after parsing.
func (g *Graph) index() {
	g.byName = make(map[string]int, len(g.Nodes))
	for i, node := range g.Nodes {
		g.byName[node.Name] = i
	}
}

// Node returns the named node, or nil if it does not exist.
func (g *Graph) Node(name string) *Node {
	i, ok := g.byName[name]
	if !ok {
		return nil
	}
	return &g.Nodes[i]
}

// HasNode reports whether the graph defines the named node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.byName[name]
	return ok
}

// Tags returns the advisory tags for a node. Nil if none.
func (g *Graph) Tags(node string) []string {
	return g.Meta[node]
}

// HasTag reports whether a node carries the given advisory tag.
func (g *Graph) HasTag(node, tag string) bool {
	for _, t := range g.Meta[node] {
		if t == tag {
			return true
		}
	}
	return false
}
