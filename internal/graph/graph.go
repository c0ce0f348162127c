// Package graph builds the dependency graph of a workflow from the steps'
// port declarations and computes a deterministic execution order.
package graph

import (
	"sort"

	"github.com/me/seqflow/pkg/model"
)

// Node is one step in the resolved workflow graph.
type Node struct {
	Step model.Step

	// Params is the configuration the step was bound with.
	Params model.Parameters

	// deps and dependents are keyed by step name.
	deps       map[string]*Node
	dependents map[string]*Node

	// producers maps each input port name to the node producing its
	// format, or nil when the port is fed by a workflow input.
	producers map[string]*Node
}

// Name returns the step name.
func (n *Node) Name() string { return n.Step.Name() }

// Dependencies returns the names of the steps this node depends on, sorted.
func (n *Node) Dependencies() []string {
	return sortedKeys(n.deps)
}

// Dependents returns the names of the steps depending on this node, sorted.
func (n *Node) Dependents() []string {
	return sortedKeys(n.dependents)
}

// DependencyCount returns the number of upstream steps.
func (n *Node) DependencyCount() int { return len(n.deps) }

// Producer returns the node producing the named input port's format, or
// nil when the port is satisfied by a workflow input.
func (n *Node) Producer(port string) *Node {
	return n.producers[port]
}

// Graph is a validated, acyclic workflow graph with a topological order.
type Graph struct {
	nodes map[string]*Node
	order []*Node
}

// Node returns the named node, or nil.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// Len returns the number of steps in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Order returns the topological execution order. Independent steps are
// ordered by name, so identical inputs always yield the identical order.
func (g *Graph) Order() []*Node {
	out := make([]*Node, len(g.order))
	copy(out, g.order)
	return out
}

// DependentsOf returns the nodes directly depending on the named node.
func (g *Graph) DependentsOf(name string) []*Node {
	n := g.nodes[name]
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.dependents))
	for _, depName := range n.Dependents() {
		out = append(out, n.dependents[depName])
	}
	return out
}

// topoSort computes a Kahn topological order with a name-sorted ready set.
// Steps left unordered indicate a cycle; their names are returned.
func topoSort(nodes map[string]*Node) (order []*Node, leftover []string) {
	indegree := make(map[string]int, len(nodes))
	for name, n := range nodes {
		indegree[name] = len(n.deps)
	}

	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		n := nodes[name]
		order = append(order, n)

		var unlocked []string
		for depName := range n.dependents {
			indegree[depName]--
			if indegree[depName] == 0 {
				unlocked = append(unlocked, depName)
			}
		}
		sort.Strings(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	if len(order) != len(nodes) {
		var unordered []string
		for name := range nodes {
			if indegree[name] > 0 {
				unordered = append(unordered, name)
			}
		}
		leftover = cycleMembers(nodes, unordered)
	}
	return order, leftover
}

// cycleMembers narrows the unordered set down to the steps actually on a
// cycle. A step merely downstream of a cycle also keeps a positive
// indegree, but it is not a participant. Tarjan's strongly connected
// components over the unordered subgraph separate the two.
func cycleMembers(nodes map[string]*Node, unordered []string) []string {
	in := make(map[string]bool, len(unordered))
	for _, name := range unordered {
		in[name] = true
	}

	index := make(map[string]int, len(unordered))
	low := make(map[string]int, len(unordered))
	onStack := make(map[string]bool, len(unordered))
	var stack []string
	next := 0
	var members []string

	var connect func(name string)
	connect = func(name string) {
		index[name] = next
		low[name] = next
		next++
		stack = append(stack, name)
		onStack[name] = true

		for depName := range nodes[name].dependents {
			if !in[depName] {
				continue
			}
			if _, seen := index[depName]; !seen {
				connect(depName)
				if low[depName] < low[name] {
					low[name] = low[depName]
				}
			} else if onStack[depName] {
				if index[depName] < low[name] {
					low[name] = index[depName]
				}
			}
		}

		if low[name] == index[name] {
			var comp []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				comp = append(comp, top)
				if top == name {
					break
				}
			}
			if len(comp) > 1 {
				members = append(members, comp...)
			}
		}
	}

	sort.Strings(unordered)
	for _, name := range unordered {
		if _, seen := index[name]; !seen {
			connect(name)
		}
	}
	sort.Strings(members)
	return members
}

// mergeSorted merges two sorted string slices.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
