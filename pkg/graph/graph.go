// Package graph builds and maintains the per-case knowledge graph: entities,
// relationships and the timecodes tying each entity back to the transcript
// artifacts where it is mentioned.
package graph

// Node types recognized in case graphs.
const (
	TypePerson    = "Person"
	TypeLocation  = "Location"
	TypeEvent     = "Event"
	TypeEvidence  = "Evidence"
	TypeStatement = "Statement"
)

// Node is one entity in the case graph. ID is a stable human-readable
// identifier ("John_Doe"), unique within a graph. Statement nodes carry
// "type" and "content" properties.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Relationship is a directed (source, target, type) triple between two node
// identifiers. Relationship types are general and timeless; triples are
// unique within a graph.
type Relationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph is a case's knowledge graph. Timecodes maps an entity identifier to
// the transcript-store keys marking its mentions.
type Graph struct {
	Nodes         []Node              `json:"nodes"`
	Relationships []Relationship      `json:"relationships"`
	Timecodes     map[string][]string `json:"timecodes"`
}

// New returns an empty graph with all collections initialized.
func New() Graph {
	return Graph{
		Nodes:         []Node{},
		Relationships: []Relationship{},
		Timecodes:     map[string][]string{},
	}
}

// FindNode returns the node with the given identifier, or nil.
func (g *Graph) FindNode(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}
