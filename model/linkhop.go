package model

// LinkHop is an immutable record of one traversed link within a packet's
// journey across a single leg: the delays it incurred, the bandwidth it
// observed, and the size it carried in and out. Packets accumulate one
// LinkHop per link crossed; the hop of a leg's last link also carries the
// service's processing delay, and a single-switch leg records one hop
// with equal source and target.
type LinkHop struct {
	Hop  int `json:"hop"`
	Link int `json:"link"`

	Source string `json:"source"`
	Target string `json:"target"`

	Start int `json:"start"`
	End   int `json:"end"`

	QueueDelay        int `json:"queue_delay"`
	TransmissionDelay int `json:"transmission_delay"`
	ProcessingDelay   int `json:"processing_delay"`
	PropagationDelay  int `json:"propagation_delay"`

	MinBandwidth float64 `json:"min_bandwidth"`
	MaxBandwidth float64 `json:"max_bandwidth"`
	AvgBandwidth float64 `json:"avg_bandwidth"`

	DataInput  int `json:"data_input"`
	DataOutput int `json:"data_output"`
}

// TotalDelay sums the four delay components recorded for this hop.
func (h LinkHop) TotalDelay() int {
	return h.QueueDelay + h.TransmissionDelay + h.ProcessingDelay + h.PropagationDelay
}
