package model

import "math/rand"

// PacketSizeMode selects how a User's PacketSizeStrategy samples a size.
type PacketSizeMode string

const (
	PacketSizeFixed  PacketSizeMode = "fixed"
	PacketSizeRandom PacketSizeMode = "random"
)

// PacketSizeStrategy is a User's rule for sizing newly generated packets:
// either a constant Size, or a Min..Max uniform range.
type PacketSizeStrategy struct {
	Mode PacketSizeMode `json:"mode"`
	Size int            `json:"size,omitempty"`
	Min  int            `json:"min,omitempty"`
	Max  int            `json:"max,omitempty"`
}

// Sample draws a packet size according to the strategy.
func (p PacketSizeStrategy) Sample(rng *rand.Rand) int {
	if p.Mode == PacketSizeRandom {
		if p.Max > p.Min {
			return p.Min + rng.Intn(p.Max-p.Min+1)
		}
		return p.Min
	}
	return p.Size
}

// AccessPattern drives when a User's packets are generated (the World's
// users phase builds one packet per active pattern per tick): it is active
// for DurationValues[i] ticks starting at Start, then idle for
// IntervalValues[i] ticks, cycling through the value lists (mirrors
// EdgeSimPy's CircularDurationAndIntervalAccessPattern).
type AccessPattern struct {
	Start          int   `json:"start"`
	DurationValues []int `json:"duration_values"`
	IntervalValues []int `json:"interval_values"`
}

// ActiveAt reports whether the pattern is "on" at the given tick.
func (p *AccessPattern) ActiveAt(tick int) bool {
	if tick < p.Start || len(p.DurationValues) == 0 || len(p.IntervalValues) == 0 {
		return false
	}
	elapsed := tick - p.Start
	i := 0
	for {
		d := p.DurationValues[i%len(p.DurationValues)]
		iv := p.IntervalValues[i%len(p.IntervalValues)]
		period := d + iv
		if period <= 0 {
			return false
		}
		if elapsed < d {
			return true
		}
		if elapsed < period {
			return false
		}
		elapsed -= period
		i++
	}
}

// User generates packets for the applications it uses and supplies their
// pre-computed per-leg paths. Path computation and mobility are external
// collaborators (§6); User only stores what they hand the core.
type User struct {
	ID                 string                    `json:"id"`
	Coordinates        [2]float64                `json:"coordinates"`
	PacketSize         PacketSizeStrategy        `json:"packet_size"`
	CommunicationPaths map[string][][]string     `json:"communication_paths"`
	AccessPatterns     map[string]*AccessPattern `json:"-"`
}

// BuildPacket validates the user's stored path for app against topology and
// constructs a new, not-yet-launched DataPacket. size should come from
// PacketSize.Sample.
func (u *User) BuildPacket(app *Application, topo *Topology, size int, id string) (*DataPacket, error) {
	legs, ok := u.CommunicationPaths[app.ID]
	if !ok || len(legs) == 0 {
		return nil, &ValidationError{Op: "BuildPacket", Reason: "user has no communication path for application " + app.ID}
	}
	if len(legs) != len(app.Services) {
		return nil, &ValidationError{Op: "BuildPacket", Reason: "path leg count does not match application service count"}
	}
	totalPath := make([][]string, len(legs))
	for i, leg := range legs {
		if err := topo.ValidateLeg(leg); err != nil {
			return nil, err
		}
		cp := make([]string, len(leg))
		copy(cp, leg)
		totalPath[i] = cp
	}
	return NewDataPacket(id, u.ID, app, size, totalPath)
}
