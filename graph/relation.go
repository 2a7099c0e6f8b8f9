package graph

// RelationType labels why two clauses are connected.
type RelationType string

// Relation types, in no particular order. Their ranking weight lives in the
// reasoning package.
const (
	SharesTreatment     RelationType = "SHARES_TREATMENT"
	SharesTopic         RelationType = "SHARES_TOPIC"
	PotentialConstraint RelationType = "POTENTIAL_CONSTRAINT"
)

// Relation is a typed, valued edge label. Value holds the shared tags in
// sorted order, or the constraint topic for PotentialConstraint.
type Relation struct {
	Type  RelationType `json:"type"`
	Value []string     `json:"value"`
}

// Edge is one adjacency entry addressed by page number.
type Edge struct {
	ConnectedTo string     `json:"connected_to"`
	Relations   []Relation `json:"relations"`
}

// Link is one adjacency entry addressed by arena index.
type Link struct {
	To        int
	Relations []Relation
}
