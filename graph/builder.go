package graph

import (
	"encoding/json"
	"sort"

	"github.com/brunobiangulo/policyreason/semantics"
)

// Graph is an undirected, label-annotated clause graph. Clause pages are
// interned into an arena (page -> stable integer index) and adjacency is
// stored by index, so the graph never holds clause records. A Graph is not
// modified after Build returns.
type Graph struct {
	pages []string
	index map[string]int
	links [][]Link
	order []int // node indices in order of their first edge
	edges int
}

// Build computes pairwise relations for every unordered pair of clauses and
// records a symmetric edge for each pair that yields at least one relation.
// Clauses sharing a page number address the same node and are never linked
// to each other.
func Build(clauses []semantics.Clause) *Graph {
	g := &Graph{index: make(map[string]int, len(clauses))}
	for _, c := range clauses {
		g.intern(c.PageNumber)
	}
	g.links = make([][]Link, len(g.pages))

	for i := 0; i < len(clauses); i++ {
		for j := i + 1; j < len(clauses); j++ {
			a, b := g.index[clauses[i].PageNumber], g.index[clauses[j].PageNumber]
			if a == b {
				continue
			}
			relations := relate(clauses[i], clauses[j])
			if len(relations) == 0 {
				continue
			}
			g.link(a, b, relations)
			g.link(b, a, relations)
			g.edges++
		}
	}
	return g
}

// relate returns the relations between two clauses in fixed order:
// shared treatment, shared topic, potential constraint.
func relate(c1, c2 semantics.Clause) []Relation {
	var relations []Relation
	if shared := intersect(c1.Treatments, c2.Treatments); len(shared) > 0 {
		relations = append(relations, Relation{Type: SharesTreatment, Value: shared})
	}
	if shared := intersect(c1.Topics, c2.Topics); len(shared) > 0 {
		relations = append(relations, Relation{Type: SharesTopic, Value: shared})
	}
	if (c1.HasTopic(semantics.TopicWaitingPeriod) && c2.MentionsTreatment) ||
		(c2.HasTopic(semantics.TopicWaitingPeriod) && c1.MentionsTreatment) {
		relations = append(relations, Relation{
			Type:  PotentialConstraint,
			Value: []string{semantics.TopicWaitingPeriod},
		})
	}
	return relations
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, s := range a {
		if inB[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) intern(page string) int {
	if i, ok := g.index[page]; ok {
		return i
	}
	g.index[page] = len(g.pages)
	g.pages = append(g.pages, page)
	return len(g.pages) - 1
}

func (g *Graph) link(from, to int, relations []Relation) {
	if len(g.links[from]) == 0 {
		g.order = append(g.order, from)
	}
	g.links[from] = append(g.links[from], Link{To: to, Relations: relations})
}

// Index returns the arena index of a page.
func (g *Graph) Index(page string) (int, bool) {
	i, ok := g.index[page]
	return i, ok
}

// Page returns the page number stored at an arena index.
func (g *Graph) Page(i int) string { return g.pages[i] }

// Links returns the adjacency of the node at arena index i.
func (g *Graph) Links(i int) []Link {
	if i < 0 || i >= len(g.links) {
		return nil
	}
	return g.links[i]
}

// Nodes returns the pages that have at least one edge, in the order their
// first edge was recorded.
func (g *Graph) Nodes() []string {
	nodes := make([]string, len(g.order))
	for k, i := range g.order {
		nodes[k] = g.pages[i]
	}
	return nodes
}

// Edges returns the adjacency of a page. Pages with no relationship to any
// other clause have no edges.
func (g *Graph) Edges(page string) []Edge {
	i, ok := g.index[page]
	if !ok {
		return nil
	}
	edges := make([]Edge, len(g.links[i]))
	for k, l := range g.links[i] {
		edges[k] = Edge{ConnectedTo: g.pages[l.To], Relations: l.Relations}
	}
	return edges
}

// Len returns the number of pages that have at least one edge.
func (g *Graph) Len() int { return len(g.order) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return g.edges }

// AdjacencyList returns the graph as a page-keyed adjacency map.
func (g *Graph) AdjacencyList() map[string][]Edge {
	out := make(map[string][]Edge, len(g.order))
	for _, page := range g.Nodes() {
		out[page] = g.Edges(page)
	}
	return out
}

// MarshalJSON encodes the graph as its adjacency map.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.AdjacencyList())
}
