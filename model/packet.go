package model

import "fmt"

// PacketStatus is the four-state lifecycle of a DataPacket.
type PacketStatus string

const (
	PacketActive     PacketStatus = "active"
	PacketProcessing PacketStatus = "processing"
	PacketFinished   PacketStatus = "finished"
	PacketDropped    PacketStatus = "dropped"
)

// DataPacket is a unit of traffic moving through an ordered sequence of
// legs (TotalPath), one per Application.Services entry. Within a leg it
// crosses CurrentLink..len(leg)-2 links before arriving at the switch
// hosting that leg's Service, where it queues for ProcessingTime ticks
// before its Size is rewritten to ProcessingOutput and the next leg
// begins. It never stores a pointer to its current NetworkFlow (§9 Design
// Notes): CurrentFlowID refers to it by id, resolved by whoever is driving
// the flow registry. ProcessingService points at the service processing
// the packet and is cleared when processing ends or the packet is dropped.
type DataPacket struct {
	ID     string
	UserID string
	App    *Application

	Size int

	TotalPath [][]string

	CurrentHop    int
	CurrentLink   int
	CurrentSwitch string

	IsProcessing            bool
	ProcessingRemainingTime int
	ProcessingService       *Service

	CurrentFlowID string

	Status PacketStatus

	Hops []LinkHop
}

// NewDataPacket validates size and totalPath and returns a new, active
// packet positioned at the first switch of its first leg.
func NewDataPacket(id, userID string, app *Application, size int, totalPath [][]string) (*DataPacket, error) {
	if size <= 0 {
		return nil, &ValidationError{Op: "NewDataPacket", Reason: "DataPacket size must be a positive integer."}
	}
	if app == nil {
		return nil, &ValidationError{Op: "NewDataPacket", Reason: "DataPacket requires an application"}
	}
	if len(totalPath) == 0 {
		return nil, &ValidationError{Op: "NewDataPacket", Reason: "DataPacket requires a non-empty total path"}
	}
	for _, leg := range totalPath {
		if len(leg) == 0 {
			return nil, &ValidationError{Op: "NewDataPacket", Reason: "DataPacket leg must be non-empty"}
		}
	}
	return &DataPacket{
		ID:            id,
		UserID:        userID,
		App:           app,
		Size:          size,
		TotalPath:     totalPath,
		CurrentSwitch: totalPath[0][0],
		Status:        PacketActive,
	}, nil
}

// LaunchNextFlow is called once per tick for every packet that is active,
// not currently processing, and has no in-flight flow. It either starts a
// NetworkFlow across the next link of the current leg, or, for a
// degenerate single-switch leg, completes the leg immediately with no
// flow at all.
func (p *DataPacket) LaunchNextFlow(tick int, topo *Topology, flowID string) (*NetworkFlow, error) {
	if p.Status != PacketActive || p.IsProcessing || p.CurrentFlowID != "" {
		return nil, nil
	}
	if p.CurrentHop >= len(p.TotalPath) {
		p.Status = PacketFinished
		return nil, nil
	}

	leg := p.TotalPath[p.CurrentHop]
	if len(leg) == 1 {
		if err := p.arriveAtService(tick, tick, 0, 0, 0, p.Size, leg[0], leg[0]); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if p.CurrentLink < 0 || p.CurrentLink > len(leg)-2 {
		return nil, &LogicError{Op: "LaunchNextFlow", PacketID: p.ID, Hop: p.CurrentHop, Link: p.CurrentLink, Reason: "Index link out of range."}
	}

	source := leg[p.CurrentLink]
	target := leg[p.CurrentLink+1]
	if !topo.HasLink(source, target) {
		return nil, &LogicError{Op: "LaunchNextFlow", PacketID: p.ID, Hop: p.CurrentHop, Link: p.CurrentLink, Reason: fmt.Sprintf("no link between %q and %q", source, target)}
	}

	flow := NewNetworkFlow(flowID, p.ID, p.CurrentHop, p.CurrentLink, source, target, p.Size, tick)
	p.CurrentFlowID = flowID
	return flow, nil
}

// OnFlowFinished is called when flow.Step reports completion. It either
// advances CurrentLink and clears CurrentFlowID so the caller can launch
// the next link's flow within this same tick (intermediate link, §9 I2:
// hops[i].End must equal hops[i+1].Start), or arrives at the leg's
// destination service (terminal link).
func (p *DataPacket) OnFlowFinished(flow *NetworkFlow, topo *Topology) error {
	if flow.HopIndex != p.CurrentHop || flow.LinkIndex != p.CurrentLink {
		return &LogicError{Op: "OnFlowFinished", PacketID: p.ID, Hop: flow.HopIndex, Link: flow.LinkIndex, Reason: "flow does not match packet's current hop/link"}
	}
	leg := p.TotalPath[p.CurrentHop]
	if flow.LinkIndex > len(leg)-2 {
		return &LogicError{Op: "OnFlowFinished", PacketID: p.ID, Hop: flow.HopIndex, Link: flow.LinkIndex, Reason: "Index link out of range."}
	}

	link := topo.Link(flow.Source, flow.Target)
	propagation := 0
	if link != nil {
		propagation = link.Delay
	}

	p.CurrentFlowID = ""

	if flow.LinkIndex < len(leg)-2 {
		// Intermediate link: no transformation, just a hop record and a
		// step to the next link of the same leg.
		p.Hops = append(p.Hops, LinkHop{
			Hop:               flow.HopIndex,
			Link:              flow.LinkIndex,
			Source:            flow.Source,
			Target:            flow.Target,
			Start:             flow.StartTick,
			End:               flow.EndTick,
			QueueDelay:        flow.QueueDelay,
			TransmissionDelay: flow.TransmissionDelay(),
			PropagationDelay:  propagation,
			MinBandwidth:      flow.MinBandwidth(),
			MaxBandwidth:      flow.MaxBandwidth(),
			AvgBandwidth:      flow.AvgBandwidth(),
			DataInput:         flow.DataSize,
			DataOutput:        flow.DataSize,
		})
		p.CurrentSwitch = flow.Target
		p.CurrentLink++
		return nil
	}

	return p.arriveAtService(flow.StartTick, flow.EndTick, flow.QueueDelay, flow.TransmissionDelay(), propagation, flow.DataSize, flow.Source, flow.Target)
}

// arriveAtService records the terminal hop of the current leg and hands
// the packet to the leg's Service. If the service has since migrated away
// from the arrival switch (§4.5), the packet is dropped instead.
func (p *DataPacket) arriveAtService(start, end, queueDelay, transmissionDelay, propagationDelay, dataInput int, source, target string) error {
	svc := p.App.Service(p.CurrentHop)
	if svc == nil {
		return &LogicError{Op: "arriveAtService", PacketID: p.ID, Hop: p.CurrentHop, Link: p.CurrentLink, Reason: "application has no service for this hop"}
	}
	if svc.Server == nil || svc.Server.SwitchID != target {
		p.Status = PacketDropped
		p.CurrentFlowID = ""
		return nil
	}

	p.Hops = append(p.Hops, LinkHop{
		Hop:               p.CurrentHop,
		Link:              p.CurrentLink,
		Source:            source,
		Target:            target,
		Start:             start,
		End:               end,
		QueueDelay:        queueDelay,
		TransmissionDelay: transmissionDelay,
		ProcessingDelay:   svc.ProcessingTime,
		PropagationDelay:  propagationDelay,
		DataInput:         dataInput,
		DataOutput:        svc.ProcessingOutput,
	})

	svc.StartProcessing(p)
	p.Status = PacketProcessing
	p.CurrentSwitch = target
	p.CurrentHop++
	p.CurrentLink = 0
	return nil
}

// StepProcessing counts down ProcessingRemainingTime for a packet that is
// currently being processed. Every tick it first re-checks that the
// service it is queued on still runs where the packet arrived (§4.5): a
// placement policy may reassign Service.Server at any tick, and a packet
// already processing at the old switch is dropped the next time this is
// observed (scenario S3), never finishing stale work. Otherwise, on the
// tick ProcessingRemainingTime reaches zero, the packet's Size is
// rewritten to the service's ProcessingOutput (§9 Open Question a: size
// changes at completion, not at start) and the packet returns to Active,
// ready to launch the next leg's first flow.
func (p *DataPacket) StepProcessing() {
	if !p.IsProcessing {
		return
	}
	if p.ProcessingService.Server == nil || p.ProcessingService.Server.SwitchID != p.CurrentSwitch {
		p.Status = PacketDropped
		p.IsProcessing = false
		p.ProcessingService = nil
		p.ProcessingRemainingTime = 0
		return
	}
	p.ProcessingRemainingTime--
	if p.ProcessingRemainingTime > 0 {
		return
	}
	p.Size = p.ProcessingService.ProcessingOutput
	p.IsProcessing = false
	p.ProcessingService = nil
	p.Status = PacketActive
}

// GetHops returns a defensive copy of the packet's accumulated hop
// history; callers may inspect it freely without risk of mutating the
// packet's own state.
func (p *DataPacket) GetHops() []LinkHop {
	out := make([]LinkHop, len(p.Hops))
	copy(out, p.Hops)
	return out
}

// Collect aggregates the packet's hop history into the flat summary shape
// used by reports: per-component delay totals across every recorded hop.
func (p *DataPacket) Collect() map[string]interface{} {
	var queue, transmission, processing, propagation int
	for _, h := range p.Hops {
		queue += h.QueueDelay
		transmission += h.TransmissionDelay
		processing += h.ProcessingDelay
		propagation += h.PropagationDelay
	}
	return map[string]interface{}{
		"Id":                 p.ID,
		"User":               p.UserID,
		"Application":        p.App.ID,
		"Size":               p.Size,
		"Queue Delay":        queue,
		"Transmission Delay": transmission,
		"Processing Delay":   processing,
		"Propagation Delay":  propagation,
		"Total Delay":        queue + transmission + processing + propagation,
		"Total Path":         p.TotalPath,
		"Hops":               p.GetHops(),
	}
}

// ToDict returns the packet's live state snapshot, matching the shape used
// by the HTTP surface.
func (p *DataPacket) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"id":                        p.ID,
		"user":                      p.UserID,
		"application":               p.App.ID,
		"size":                      p.Size,
		"status":                    p.Status,
		"current_hop":               p.CurrentHop,
		"current_link":              p.CurrentLink,
		"is_processing":             p.IsProcessing,
		"processing_remaining_time": p.ProcessingRemainingTime,
		"total_path":                p.TotalPath,
		"hops":                      p.GetHops(),
	}
}
