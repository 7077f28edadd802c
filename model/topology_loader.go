package model

import (
	"encoding/json"
	"fmt"
	"io"
)

// rawTopology mirrors the on-disk topology document shape.
type rawTopology struct {
	Switches []rawSwitch `json:"switches"`
	Links    []rawLink   `json:"links"`
	Servers  []rawServer `json:"servers"`
}

type rawSwitch struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type rawLink struct {
	A         string  `json:"a"`
	B         string  `json:"b"`
	Bandwidth float64 `json:"bandwidth"`
	Delay     int     `json:"delay"`
}

type rawServer struct {
	ID       string `json:"id"`
	SwitchID string `json:"switch_id"`
}

// LoadTopologyFromReader parses a topology JSON document and builds a
// Topology plus the EdgeServers it hosts. It never partially mutates a
// returned Topology on failure: validation errors are surfaced before any
// caller observes a half-built graph.
func LoadTopologyFromReader(r io.Reader) (*Topology, map[string]*EdgeServer, error) {
	dec := json.NewDecoder(r)
	var raw rawTopology
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("decode topology: %w", err)
	}

	topo := NewTopology()
	for _, rs := range raw.Switches {
		if rs.ID == "" {
			return nil, nil, &ValidationError{Op: "LoadTopology", Reason: "switch with empty id"}
		}
		if err := topo.AddSwitch(&Switch{ID: rs.ID, Coordinates: [2]float64{rs.X, rs.Y}}); err != nil {
			return nil, nil, err
		}
	}
	for _, rl := range raw.Links {
		if err := topo.AddLink(&Link{A: rl.A, B: rl.B, Bandwidth: rl.Bandwidth, Delay: rl.Delay}); err != nil {
			return nil, nil, err
		}
	}

	servers := make(map[string]*EdgeServer, len(raw.Servers))
	for _, rsrv := range raw.Servers {
		sw := topo.Switch(rsrv.SwitchID)
		if sw == nil {
			return nil, nil, &ValidationError{Op: "LoadTopology", Reason: fmt.Sprintf("server %q references unknown switch %q", rsrv.ID, rsrv.SwitchID)}
		}
		if _, dup := servers[rsrv.ID]; dup {
			return nil, nil, &ValidationError{Op: "LoadTopology", Reason: fmt.Sprintf("duplicate server id %q", rsrv.ID)}
		}
		server := &EdgeServer{ID: rsrv.ID, SwitchID: rsrv.SwitchID}
		sw.AttachServer(server)
		servers[rsrv.ID] = server
	}

	return topo, servers, nil
}
