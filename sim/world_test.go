package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwmdev/edgesim/model"
)

func buildTwoHopWorld(t *testing.T) (*World, *model.EdgeServer) {
	t.Helper()
	topo := model.NewTopology()
	require.NoError(t, topo.AddSwitch(&model.Switch{ID: "sw1"}))
	require.NoError(t, topo.AddSwitch(&model.Switch{ID: "sw2"}))
	require.NoError(t, topo.AddLink(&model.Link{A: "sw1", B: "sw2", Bandwidth: 10, Delay: 1}))

	server := &model.EdgeServer{ID: "edge1"}
	topo.Switch("sw2").AttachServer(server)

	svc := &model.Service{ID: "svc1", ProcessingTime: 2, ProcessingOutput: 7}
	svc.Server = server
	app := &model.Application{ID: "app1", Name: "pipeline", Services: []*model.Service{svc}}

	catalog := &model.Catalog{
		Applications: map[string]*model.Application{"app1": app},
		Services:     map[string]*model.Service{"svc1": svc},
	}

	w := NewWorld(topo, catalog, 1)
	return w, server
}

func TestWorldStepSinglePacketTraversesProcessesAndFinishes(t *testing.T) {
	w, _ := buildTwoHopWorld(t)

	pkt, err := model.NewDataPacket("pkt-1", "u1", w.Catalog.Applications["app1"], 10, [][]string{{"sw1", "sw2"}})
	require.NoError(t, err)
	w.Packets[pkt.ID] = pkt

	var events []Event
	w.Sink = func(e Event) { events = append(events, e) }

	ctx := context.Background()

	// Tick 0: the link is uncontended, so the flow launches and finishes
	// within the same step (it gets the link's full bandwidth), handing
	// the packet straight to processing.
	require.NoError(t, w.Step(ctx))
	require.Empty(t, w.Flows)
	require.Equal(t, model.PacketProcessing, pkt.Status)
	require.True(t, pkt.IsProcessing)
	require.Equal(t, 2, pkt.ProcessingRemainingTime)

	var sawFlowStarted, sawFlowFinished bool
	for _, e := range events {
		switch e.(type) {
		case FlowStartedEvent:
			sawFlowStarted = true
		case FlowFinishedEvent:
			sawFlowFinished = true
		}
	}
	require.True(t, sawFlowStarted)
	require.True(t, sawFlowFinished)

	// Tick 1: one more tick of processing remains.
	require.NoError(t, w.Step(ctx))
	require.True(t, pkt.IsProcessing)
	require.Equal(t, 1, pkt.ProcessingRemainingTime)

	// Tick 2: processing completes, size is rewritten to ProcessingOutput,
	// and since the single-leg path is exhausted the packet finishes in
	// this same tick.
	require.NoError(t, w.Step(ctx))
	require.False(t, pkt.IsProcessing)
	require.Equal(t, 7, pkt.Size)
	require.Equal(t, model.PacketFinished, pkt.Status)

	// Tick 3: finished is terminal, the packet stays finished.
	require.NoError(t, w.Step(ctx))
	require.Equal(t, model.PacketFinished, pkt.Status)

	sawFinished := false
	for _, e := range events {
		if _, ok := e.(PacketFinishedEvent); ok {
			sawFinished = true
		}
	}
	require.True(t, sawFinished)
}

func TestWorldStepDropsPacketOnServiceMigration(t *testing.T) {
	w, _ := buildTwoHopWorld(t)
	svc := w.Catalog.Services["svc1"]

	pkt, err := model.NewDataPacket("pkt-1", "u1", w.Catalog.Applications["app1"], 10, [][]string{{"sw1", "sw2"}})
	require.NoError(t, err)
	w.Packets[pkt.ID] = pkt

	// Migrate the service away from sw2 before the packet ever launches: on
	// an uncontended link a flow launches and completes within the same
	// tick, so the drop must already be in place before the first Step.
	svc.Server = &model.EdgeServer{ID: "edge2", SwitchID: "sw1"}

	var dropped bool
	w.Sink = func(e Event) {
		if _, ok := e.(PacketDroppedEvent); ok {
			dropped = true
		}
	}

	require.NoError(t, w.Step(context.Background()))
	require.Equal(t, model.PacketDropped, pkt.Status)
	require.True(t, dropped)
}

func TestWorldStepMultiLinkLegKeepsHopsContiguous(t *testing.T) {
	topo := model.NewTopology()
	require.NoError(t, topo.AddSwitch(&model.Switch{ID: "sw1"}))
	require.NoError(t, topo.AddSwitch(&model.Switch{ID: "sw2"}))
	require.NoError(t, topo.AddSwitch(&model.Switch{ID: "sw3"}))
	require.NoError(t, topo.AddLink(&model.Link{A: "sw1", B: "sw2", Bandwidth: 5, Delay: 0}))
	require.NoError(t, topo.AddLink(&model.Link{A: "sw2", B: "sw3", Bandwidth: 5, Delay: 0}))

	server := &model.EdgeServer{ID: "edge1"}
	topo.Switch("sw3").AttachServer(server)
	svc := &model.Service{ID: "svc1", ProcessingTime: 1, ProcessingOutput: 1, Server: server}
	app := &model.Application{ID: "app1", Services: []*model.Service{svc}}
	catalog := &model.Catalog{
		Applications: map[string]*model.Application{"app1": app},
		Services:     map[string]*model.Service{"svc1": svc},
	}
	w := NewWorld(topo, catalog, 1)

	pkt, err := model.NewDataPacket("pkt-1", "u1", app, 10, [][]string{{"sw1", "sw2", "sw3"}})
	require.NoError(t, err)
	w.Packets[pkt.ID] = pkt

	ctx := context.Background()
	for i := 0; i < 4 && pkt.Status != model.PacketProcessing; i++ {
		require.NoError(t, w.Step(ctx))
	}

	require.True(t, pkt.IsProcessing)
	require.Len(t, pkt.Hops, 2, "both links of the leg must be recorded before processing starts")
	require.Equal(t, pkt.Hops[0].End, pkt.Hops[1].Start, "hop i's end tick must equal hop i+1's start tick (I2)")
}

func TestWorldStepSharesBandwidthFairlyAcrossConcurrentFlows(t *testing.T) {
	topo := model.NewTopology()
	require.NoError(t, topo.AddSwitch(&model.Switch{ID: "sw1"}))
	require.NoError(t, topo.AddSwitch(&model.Switch{ID: "sw2"}))
	require.NoError(t, topo.AddLink(&model.Link{A: "sw1", B: "sw2", Bandwidth: 10, Delay: 0}))

	server := &model.EdgeServer{ID: "edge1"}
	topo.Switch("sw2").AttachServer(server)
	svc := &model.Service{ID: "svc1", ProcessingTime: 1, ProcessingOutput: 1, Server: server}
	app := &model.Application{ID: "app1", Services: []*model.Service{svc}}
	catalog := &model.Catalog{
		Applications: map[string]*model.Application{"app1": app},
		Services:     map[string]*model.Service{"svc1": svc},
	}
	w := NewWorld(topo, catalog, 1)

	p1, err := model.NewDataPacket("pkt-1", "u1", app, 20, [][]string{{"sw1", "sw2"}})
	require.NoError(t, err)
	p2, err := model.NewDataPacket("pkt-2", "u2", app, 20, [][]string{{"sw1", "sw2"}})
	require.NoError(t, err)
	w.Packets[p1.ID] = p1
	w.Packets[p2.ID] = p2

	require.NoError(t, w.Step(context.Background()))
	require.Len(t, w.Flows, 2)

	for _, flow := range w.Flows {
		require.Equal(t, 20, flow.DataSize)
		require.Equal(t, []float64{5.0}, flow.BandwidthHistory)
		require.Equal(t, 15, flow.DataToTransfer)
	}
}

func TestWorldStepGeneratesPacketsFromActiveUserAccessPatterns(t *testing.T) {
	w, _ := buildTwoHopWorld(t)
	app := w.Catalog.Applications["app1"]

	u := &model.User{
		ID:         "user-1",
		PacketSize: model.PacketSizeStrategy{Mode: model.PacketSizeFixed, Size: 15},
		CommunicationPaths: map[string][][]string{
			"app1": {{"sw1", "sw2"}},
		},
		AccessPatterns: map[string]*model.AccessPattern{
			"app1": {Start: 1, DurationValues: []int{1}, IntervalValues: []int{100}},
		},
	}
	w.AddUser(u)

	ctx := context.Background()
	require.NoError(t, w.Step(ctx)) // tick 0: pattern not yet active
	require.Empty(t, w.Packets)

	var created *PacketCreatedEvent
	w.Sink = func(e Event) {
		if c, ok := e.(PacketCreatedEvent); ok {
			created = &c
		}
	}
	require.NoError(t, w.Step(ctx)) // tick 1: pattern active, packet generated
	require.Len(t, w.Packets, 1)
	require.NotNil(t, created)
	require.Equal(t, "user-1", created.UserID)
	require.Equal(t, 15, created.Size)
}

func TestWorldStepEmitsStepStartedAndFinishedBracket(t *testing.T) {
	w, _ := buildTwoHopWorld(t)
	var events []Event
	w.Sink = func(e Event) { events = append(events, e) }

	require.NoError(t, w.Step(context.Background()))
	require.IsType(t, StepStartedEvent{}, events[0])
	require.IsType(t, StepFinishedEvent{}, events[len(events)-1])
	require.Equal(t, 1, w.Tick)
}
