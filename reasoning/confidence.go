package reasoning

import (
	"maps"

	"github.com/brunobiangulo/policyreason/graph"
)

// priorityRelations weights each relation type when scoring a path. A
// potential constraint outranks a shared treatment, which outranks a shared
// topic.
var priorityRelations = map[graph.RelationType]int{
	graph.PotentialConstraint: 3,
	graph.SharesTreatment:     2,
	graph.SharesTopic:         1,
}

// Score sums the priority of every traversed relation. Unknown relation
// types contribute nothing.
func Score(relations []graph.Relation) int {
	total := 0
	for _, r := range relations {
		total += priorityRelations[r.Type]
	}
	return total
}

// Priority returns the weight of a relation type, 0 when unknown.
func Priority(t graph.RelationType) int {
	return priorityRelations[t]
}

// PriorityRelations returns a copy of the relation weights.
func PriorityRelations() map[graph.RelationType]int {
	return maps.Clone(priorityRelations)
}
