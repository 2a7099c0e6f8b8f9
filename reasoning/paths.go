package reasoning

import (
	"slices"
	"sort"

	"github.com/brunobiangulo/policyreason/graph"
	"github.com/brunobiangulo/policyreason/semantics"
)

// DefaultMaxDepth is the default bound on edges traversed per path.
const DefaultMaxDepth = 2

// PathClause is a clause on a reasoning path, reduced to its tags.
type PathClause struct {
	Page       string   `json:"page"`
	Topics     []string `json:"topics"`
	Treatments []string `json:"treatments"`
}

// Path is an acyclic walk through the clause graph together with the
// relation chosen at each hop and the summed relation priority.
type Path struct {
	Score     int              `json:"score"`
	Clauses   []PathClause     `json:"clauses"`
	Relations []graph.Relation `json:"relations"`
}

// Pages returns the page numbers visited by the path, in order.
func (p Path) Pages() []string {
	pages := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		pages[i] = c.Page
	}
	return pages
}

// frontier is one breadth-first search state. nodes are arena indices.
type frontier struct {
	current   int
	nodes     []int
	relations []graph.Relation
}

// ExtractPaths runs one breadth-first search per treatment-mentioning clause
// and returns every path of one to maxDepth edges, ranked by score. An edge
// carrying several relations spawns one branch per relation. Ties keep
// discovery order (start clause order, then breadth-first order). Paths over
// the same pages with different relations are all kept.
func ExtractPaths(clauses []semantics.Clause, g *graph.Graph, maxDepth int) []Path {
	byPage := make(map[string]semantics.Clause, len(clauses))
	for _, c := range clauses {
		if _, ok := byPage[c.PageNumber]; !ok {
			byPage[c.PageNumber] = c
		}
	}

	type candidate struct {
		nodes     []int
		relations []graph.Relation
		score     int
	}
	var candidates []candidate

	for _, c := range clauses {
		if !c.MentionsTreatment {
			continue
		}
		start, ok := g.Index(c.PageNumber)
		if !ok {
			continue
		}

		queue := []frontier{{current: start, nodes: []int{start}}}
		for len(queue) > 0 {
			s := queue[0]
			queue = queue[1:]

			if len(s.relations) > 0 {
				candidates = append(candidates, candidate{
					nodes:     s.nodes,
					relations: s.relations,
					score:     Score(s.relations),
				})
			}

			if len(s.nodes)-1 >= maxDepth {
				continue
			}

			for _, l := range g.Links(s.current) {
				if slices.Contains(s.nodes, l.To) {
					continue
				}
				for _, rel := range l.Relations {
					queue = append(queue, frontier{
						current:   l.To,
						nodes:     append(slices.Clone(s.nodes), l.To),
						relations: append(slices.Clone(s.relations), rel),
					})
				}
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	paths := make([]Path, len(candidates))
	for i, cand := range candidates {
		pcs := make([]PathClause, len(cand.nodes))
		for k, n := range cand.nodes {
			page := g.Page(n)
			c := byPage[page]
			pcs[k] = PathClause{Page: page, Topics: c.Topics, Treatments: c.Treatments}
		}
		paths[i] = Path{Score: cand.score, Clauses: pcs, Relations: cand.relations}
	}
	return paths
}
