package model

import (
	"encoding/json"
	"fmt"
	"io"
)

// catalogFile mirrors the on-disk service/application catalog document: a
// reusable ServiceType (processing cost), one Assignment placing a
// ServiceType instance on a specific EdgeServer, and Applications that
// reference assignments by id in visit order.
type catalogFile struct {
	ServiceTypes []catalogServiceType  `json:"service_types"`
	Assignments  []catalogAssignment   `json:"assignments"`
	Applications []catalogApplication  `json:"applications"`
}

type catalogServiceType struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ProcessingTime   int    `json:"processing_time"`
	ProcessingOutput int    `json:"processing_output"`
}

type catalogAssignment struct {
	ID       string `json:"id"`
	TypeID   string `json:"type_id"`
	ServerID string `json:"server_id"`
}

type catalogApplication struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ServiceIDs []string `json:"service_ids"`
}

// Catalog is the built, in-memory set of applications and the services
// backing them, keyed by id.
type Catalog struct {
	Applications map[string]*Application
	Services     map[string]*Service
}

// LoadCatalogFromReader parses a catalog JSON document, instantiates one
// Service per assignment (attached to its named EdgeServer), and wires
// each Application's Services in the order its service_ids list them.
// servers must already be populated, typically by LoadTopologyFromReader.
func LoadCatalogFromReader(r io.Reader, servers map[string]*EdgeServer) (*Catalog, error) {
	dec := json.NewDecoder(r)
	var raw catalogFile
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	types := make(map[string]catalogServiceType, len(raw.ServiceTypes))
	for _, rt := range raw.ServiceTypes {
		if rt.ID == "" {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: "service type with empty id"}
		}
		if _, dup := types[rt.ID]; dup {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: fmt.Sprintf("duplicate service type id %q", rt.ID)}
		}
		if rt.ProcessingTime <= 0 {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: fmt.Sprintf("service type %q must have a positive processing_time", rt.ID)}
		}
		types[rt.ID] = rt
	}

	cat := &Catalog{
		Applications: make(map[string]*Application, len(raw.Applications)),
		Services:     make(map[string]*Service, len(raw.Assignments)),
	}

	for _, ra := range raw.Assignments {
		if ra.ID == "" {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: "assignment with empty id"}
		}
		if _, dup := cat.Services[ra.ID]; dup {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: fmt.Sprintf("duplicate assignment id %q", ra.ID)}
		}
		typ, ok := types[ra.TypeID]
		if !ok {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: fmt.Sprintf("assignment %q references unknown service type %q", ra.ID, ra.TypeID)}
		}
		server, ok := servers[ra.ServerID]
		if !ok {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: fmt.Sprintf("assignment %q references unknown server %q", ra.ID, ra.ServerID)}
		}
		svc := &Service{
			ID:               ra.ID,
			ProcessingTime:   typ.ProcessingTime,
			ProcessingOutput: typ.ProcessingOutput,
			Server:           server,
		}
		server.Services = append(server.Services, svc)
		cat.Services[svc.ID] = svc
	}

	for _, ra := range raw.Applications {
		if ra.ID == "" {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: "application with empty id"}
		}
		if _, dup := cat.Applications[ra.ID]; dup {
			return nil, &ValidationError{Op: "LoadCatalog", Reason: fmt.Sprintf("duplicate application id %q", ra.ID)}
		}
		app := &Application{ID: ra.ID, Name: ra.Name}
		for _, sid := range ra.ServiceIDs {
			svc, ok := cat.Services[sid]
			if !ok {
				return nil, &ValidationError{Op: "LoadCatalog", Reason: fmt.Sprintf("application %q references unknown service %q", ra.ID, sid)}
			}
			app.Services = append(app.Services, svc)
		}
		cat.Applications[app.ID] = app
	}

	return cat, nil
}
