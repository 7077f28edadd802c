package model

import (
	"fmt"

	"github.com/katalvlaran/lvlath/core"
)

// Topology is the undirected weighted graph of switches connected by
// links. Adjacency bookkeeping is delegated to lvlath's core.Graph (the
// vertex set is switch ids, edge weight is the link bandwidth); per-link
// delay and the link record itself live in a side index keyed by the
// unordered switch pair, since a graph edge carries a single float and a
// Link needs two independent numbers (bandwidth, delay).
type Topology struct {
	graph    *core.Graph
	switches map[string]*Switch
	links    map[[2]string]*Link
}

// NewTopology returns an empty, undirected, weighted topology.
func NewTopology() *Topology {
	return &Topology{
		graph:    core.NewGraph(core.WithWeighted(), core.WithDirected(false)),
		switches: make(map[string]*Switch),
		links:    make(map[[2]string]*Link),
	}
}

// AddSwitch registers a switch. It is a no-op if the switch id already
// exists.
func (t *Topology) AddSwitch(s *Switch) error {
	if s == nil || s.ID == "" {
		return &ValidationError{Op: "AddSwitch", Reason: "switch must have a non-empty id"}
	}
	if _, exists := t.switches[s.ID]; exists {
		return nil
	}
	if err := t.graph.AddVertex(s.ID); err != nil {
		return fmt.Errorf("add switch %q: %w", s.ID, err)
	}
	t.switches[s.ID] = s
	return nil
}

// AddLink registers a link between two existing switches. Returns a
// ValidationError if either switch is unknown or a link already connects
// the pair (I: at most one link per unordered pair).
func (t *Topology) AddLink(l *Link) error {
	if l == nil {
		return &ValidationError{Op: "AddLink", Reason: "link must not be nil"}
	}
	if _, ok := t.switches[l.A]; !ok {
		return &ValidationError{Op: "AddLink", Reason: fmt.Sprintf("unknown switch %q", l.A)}
	}
	if _, ok := t.switches[l.B]; !ok {
		return &ValidationError{Op: "AddLink", Reason: fmt.Sprintf("unknown switch %q", l.B)}
	}
	key := linkKey(l.A, l.B)
	if _, exists := t.links[key]; exists {
		return &ValidationError{Op: "AddLink", Reason: fmt.Sprintf("duplicate link between %q and %q", l.A, l.B)}
	}
	if _, err := t.graph.AddEdge(l.A, l.B, l.Bandwidth); err != nil {
		return fmt.Errorf("add link %s-%s: %w", l.A, l.B, err)
	}
	t.links[key] = l
	return nil
}

// Switch returns the switch with the given id, or nil.
func (t *Topology) Switch(id string) *Switch { return t.switches[id] }

// Switches returns every registered switch, in the graph's deterministic
// vertex order.
func (t *Topology) Switches() []*Switch {
	ids := t.graph.Vertices()
	out := make([]*Switch, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.switches[id])
	}
	return out
}

// Link returns the link connecting a and b (in either order), or nil if
// they are not directly connected.
func (t *Topology) Link(a, b string) *Link {
	return t.links[linkKey(a, b)]
}

// Links returns every registered link.
func (t *Topology) Links() []*Link {
	out := make([]*Link, 0, len(t.links))
	for _, l := range t.links {
		out = append(out, l)
	}
	return out
}

// Neighbors returns the switch ids directly reachable from id.
func (t *Topology) Neighbors(id string) ([]string, error) {
	ids, err := t.graph.NeighborIDs(id)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %q: %w", id, err)
	}
	return ids, nil
}

// HasLink reports whether a and b are directly connected.
func (t *Topology) HasLink(a, b string) bool {
	return t.Link(a, b) != nil
}

// ValidateLeg checks that leg is a non-empty sequence of known switches
// forming a walk along existing links (I3 allows a single-switch leg,
// which trivially walks nowhere).
func (t *Topology) ValidateLeg(leg []string) error {
	if len(leg) == 0 {
		return &ValidationError{Op: "ValidateLeg", Reason: "leg must be non-empty"}
	}
	for _, id := range leg {
		if _, ok := t.switches[id]; !ok {
			return &ValidationError{Op: "ValidateLeg", Reason: fmt.Sprintf("leg references unknown switch %q", id)}
		}
	}
	for i := 0; i+1 < len(leg); i++ {
		if !t.HasLink(leg[i], leg[i+1]) {
			return &ValidationError{Op: "ValidateLeg", Reason: fmt.Sprintf("no link between %q and %q", leg[i], leg[i+1])}
		}
	}
	return nil
}
