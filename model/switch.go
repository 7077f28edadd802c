package model

// Switch is a node in the network topology. Every packet hop either
// transits a Switch or terminates at one that hosts the destination
// service's EdgeServer.
type Switch struct {
	ID          string    `json:"id"`
	Coordinates [2]float64 `json:"coordinates"`
	Servers     []*EdgeServer `json:"-"`
}

// AttachServer records that server is physically hosted at this switch.
func (s *Switch) AttachServer(server *EdgeServer) {
	if server == nil {
		return
	}
	for _, existing := range s.Servers {
		if existing == server {
			return
		}
	}
	s.Servers = append(s.Servers, server)
	server.SwitchID = s.ID
}

// HostsServer reports whether server is currently attached to this switch.
func (s *Switch) HostsServer(server *EdgeServer) bool {
	if server == nil {
		return false
	}
	for _, existing := range s.Servers {
		if existing.ID == server.ID {
			return true
		}
	}
	return false
}
