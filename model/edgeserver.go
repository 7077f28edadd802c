package model

// EdgeServer hosts zero or more Services. It is attached to exactly one
// Switch for its lifetime; Services themselves are what the placement
// policy reassigns across servers (see Service.Server).
type EdgeServer struct {
	ID       string     `json:"id"`
	SwitchID string     `json:"switch_id"`
	Services []*Service `json:"-"`
}
