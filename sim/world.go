package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwmdev/edgesim/model"
)

// World owns every live entity of one simulation run. It replaces the
// global `_instances` / `find_by_id` registries of the original system
// (§9 Design Notes) with a single struct callers construct explicitly and
// pass around; nothing here is package-level state.
type World struct {
	Topology *model.Topology
	Catalog  *model.Catalog
	Users    map[string]*model.User

	Packets map[string]*model.DataPacket
	Flows   map[string]*model.NetworkFlow

	Scheduler model.BandwidthScheduler

	Tick int
	RNG  *rand.Rand

	// Sink receives every Event a Step produces, in emission order. It is
	// nil-safe: a World with no Sink simply drops events.
	Sink func(Event)

	// mu guards every field above against the HTTP server reading World
	// state from a different goroutine than the one calling Step (mirrors
	// the mutex the bus simulator's own runner takes around shared state
	// read by its HTTP handlers). Step holds it for writing for the whole
	// tick; it needs no other locking, since only one goroutine ever calls
	// it.
	mu sync.RWMutex
}

// RLock/RUnlock let a reader (typically the HTTP server) observe a
// consistent snapshot of World state without racing a concurrent Step.
func (w *World) RLock()   { w.mu.RLock() }
func (w *World) RUnlock() { w.mu.RUnlock() }

// NewWorld builds an empty World rooted at topo/catalog, seeded for
// reproducible packet-size and RNG-driven decisions.
func NewWorld(topo *model.Topology, catalog *model.Catalog, seed int64) *World {
	return &World{
		Topology: topo,
		Catalog:  catalog,
		Users:    make(map[string]*model.User),
		Packets:  make(map[string]*model.DataPacket),
		Flows:    make(map[string]*model.NetworkFlow),
		RNG:      rand.New(rand.NewSource(seed)),
	}
}

// AddUser registers a user that will be consulted for packet generation
// every Step.
func (w *World) AddUser(u *model.User) {
	w.Users[u.ID] = u
}

func (w *World) emit(e Event) {
	if w.Sink != nil {
		w.Sink(e)
	}
}

// Step advances the simulation by exactly one tick, in the fixed order
// packets -> services -> topology/scheduler -> flows -> users (§5).
func (w *World) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.emit(StepStartedEvent{Step: w.Tick})

	packetIDs := w.sortedPacketIDs()

	// 1. Packets: count down any in-flight processing, then let every
	// idle active packet try to launch its next flow.
	for _, id := range packetIDs {
		pkt := w.Packets[id]
		if pkt.Status == model.PacketProcessing {
			wasProcessing := pkt.IsProcessing
			pkt.StepProcessing()
			switch {
			case pkt.Status == model.PacketDropped:
				w.emit(PacketDroppedEvent{Step: w.Tick, PacketID: pkt.ID, Reason: "service migrated away from processing switch"})
			case wasProcessing && !pkt.IsProcessing:
				w.emit(PacketProcessingFinishedEvent{Step: w.Tick, PacketID: pkt.ID, NewSize: pkt.Size})
			}
		}
	}
	for _, id := range packetIDs {
		pkt := w.Packets[id]
		if pkt.Status != model.PacketActive {
			continue
		}
		if err := w.launchNextFlow(pkt); err != nil {
			return err
		}
	}

	// 2. Services: no-op hook kept for parity with the fixed phase order;
	// a Service's own state never changes outside StartProcessing.
	for _, app := range w.Catalog.Applications {
		for _, svc := range app.Services {
			svc.Step()
		}
	}

	// 3. Topology / scheduler: compute this tick's bandwidth split.
	flows := w.sortedActiveFlows()
	allocation := w.Scheduler.Allocate(w.Topology, flows)

	// 4. Flows: apply the allocation and react to completions.
	for _, flow := range flows {
		if !flow.Step(w.Tick, allocation[flow.ID]) {
			continue
		}
		pkt := w.Packets[flow.PacketID]
		if pkt == nil {
			delete(w.Flows, flow.ID)
			continue
		}
		if err := pkt.OnFlowFinished(flow, w.Topology); err != nil {
			return fmt.Errorf("finish flow %s: %w", flow.ID, err)
		}
		delete(w.Flows, flow.ID)
		w.emit(FlowFinishedEvent{Step: w.Tick, FlowID: flow.ID, PacketID: pkt.ID, Hop: flow.HopIndex, Link: flow.LinkIndex})
		switch pkt.Status {
		case model.PacketActive:
			// Intermediate link of a multi-link leg: relaunch the next link
			// of the same leg at this same tick (flow.EndTick == w.Tick), so
			// the new hop's Start equals the finished hop's End (I2).
			if err := w.launchNextFlow(pkt); err != nil {
				return err
			}
		case model.PacketProcessing:
			w.emit(PacketProcessingStartedEvent{Step: w.Tick, PacketID: pkt.ID})
		case model.PacketDropped:
			w.emit(PacketDroppedEvent{Step: w.Tick, PacketID: pkt.ID, Reason: "service migrated away from destination switch"})
		case model.PacketFinished:
			w.emit(w.finishedEvent(pkt))
		}
	}

	// 5. Users: generate packets for every application access pattern
	// that is active this tick.
	if err := w.stepUsers(); err != nil {
		return err
	}

	w.emit(StepFinishedEvent{
		Step:              w.Tick,
		ActivePackets:     w.countStatus(model.PacketActive),
		ProcessingPackets: w.countStatus(model.PacketProcessing),
		ActiveFlows:       len(w.Flows),
	})
	w.Tick++
	return nil
}

// launchNextFlow asks an idle active packet to start its next flow and
// dispatches whichever outcome results: a fresh in-flight flow, an
// immediate drop, arrival at a processing service, or completion of the
// whole path. It is shared by phase 1 (packets that were already idle at
// the top of the tick) and phase 4 (a packet that just finished an
// intermediate link of a multi-link leg and must relaunch within the same
// tick, per §4.1/I2: hops[i].End must equal hops[i+1].Start).
func (w *World) launchNextFlow(pkt *model.DataPacket) error {
	flow, err := pkt.LaunchNextFlow(w.Tick, w.Topology, uuid.NewString())
	if err != nil {
		return fmt.Errorf("launch flow for packet %s: %w", pkt.ID, err)
	}
	switch {
	case flow != nil:
		w.Flows[flow.ID] = flow
		w.emit(FlowStartedEvent{Step: w.Tick, FlowID: flow.ID, PacketID: pkt.ID, Hop: flow.HopIndex, Link: flow.LinkIndex, Source: flow.Source, Target: flow.Target})
	case pkt.Status == model.PacketDropped:
		w.emit(PacketDroppedEvent{Step: w.Tick, PacketID: pkt.ID, Reason: "service migrated away from destination switch"})
	case pkt.Status == model.PacketProcessing:
		w.emit(PacketProcessingStartedEvent{Step: w.Tick, PacketID: pkt.ID})
	case pkt.Status == model.PacketFinished:
		w.emit(w.finishedEvent(pkt))
	}
	return nil
}

func (w *World) stepUsers() error {
	userIDs := make([]string, 0, len(w.Users))
	for id := range w.Users {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	for _, uid := range userIDs {
		u := w.Users[uid]
		appIDs := make([]string, 0, len(u.AccessPatterns))
		for appID := range u.AccessPatterns {
			appIDs = append(appIDs, appID)
		}
		sort.Strings(appIDs)

		for _, appID := range appIDs {
			pattern := u.AccessPatterns[appID]
			if !pattern.ActiveAt(w.Tick) {
				continue
			}
			app := w.Catalog.Applications[appID]
			if app == nil {
				continue
			}
			size := u.PacketSize.Sample(w.RNG)
			pkt, err := u.BuildPacket(app, w.Topology, size, uuid.NewString())
			if err != nil {
				return fmt.Errorf("generate packet for user %s: %w", uid, err)
			}
			w.Packets[pkt.ID] = pkt
			w.emit(PacketCreatedEvent{Step: w.Tick, PacketID: pkt.ID, UserID: uid, Application: appID, Size: size})
		}
	}
	return nil
}

func (w *World) finishedEvent(pkt *model.DataPacket) Event {
	collected := pkt.Collect()
	total, _ := collected["Total Delay"].(int)
	return PacketFinishedEvent{Step: w.Tick, PacketID: pkt.ID, TotalDelay: total}
}

func (w *World) countStatus(status model.PacketStatus) int {
	n := 0
	for _, p := range w.Packets {
		if p.Status == status {
			n++
		}
	}
	return n
}

func (w *World) sortedPacketIDs() []string {
	ids := make([]string, 0, len(w.Packets))
	for id := range w.Packets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) sortedActiveFlows() []*model.NetworkFlow {
	ids := make([]string, 0, len(w.Flows))
	for id := range w.Flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.NetworkFlow, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.Flows[id])
	}
	return out
}
