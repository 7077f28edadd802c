package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/jwmdev/edgesim/model"
	"github.com/jwmdev/edgesim/sim"
)

// Options configures the server instance.
type Options struct {
	Logger *slog.Logger
}

// Server exposes a running World's state over HTTP: topology snapshot,
// packet list/detail/hops, and a live SSE event stream. It only ever reads
// already-published state — it never calls World.Step itself (§5).
type Server struct {
	World *sim.World
	Opt   Options

	mu         sync.RWMutex
	subscribers map[chan sim.Event]struct{}
}

// New builds a Server bound to world. Callers are expected to drive world
// forward (typically via sim.StartRunner, routed through Server.Publish)
// on their own goroutine.
func New(world *sim.World, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Server{
		World:       world,
		Opt:         opt,
		subscribers: make(map[chan sim.Event]struct{}),
	}
}

// Publish fans an Event out to every connected SSE subscriber. Pass this as
// a World's Sink (directly, or composed with a Runner's own sink) to keep
// HTTP clients live.
func (s *Server) Publish(e sim.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Server) subscribe() chan sim.Event {
	ch := make(chan sim.Event, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan sim.Event) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
	close(ch)
}

// Router builds the chi mux for this server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/topology", s.handleTopology)
	r.Get("/api/packets", s.handlePackets)
	r.Get("/api/packets/{id}", s.handlePacket)
	r.Get("/api/packets/{id}/hops", s.handlePacketHops)
	r.Get("/api/events", s.handleEvents)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.World.RLock()
	step := s.World.Tick
	s.World.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "step": step})
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	s.World.RLock()
	defer s.World.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	switches := s.World.Topology.Switches()
	out := make([]map[string]any, 0, len(switches))
	for _, sw := range switches {
		servers := make([]string, 0, len(sw.Servers))
		for _, srv := range sw.Servers {
			servers = append(servers, srv.ID)
		}
		out = append(out, map[string]any{"id": sw.ID, "coordinates": sw.Coordinates, "servers": servers})
	}
	links := s.World.Topology.Links()
	linkOut := make([]*model.Link, len(links))
	copy(linkOut, links)
	json.NewEncoder(w).Encode(map[string]any{"switches": out, "links": linkOut})
}

func (s *Server) handlePackets(w http.ResponseWriter, r *http.Request) {
	s.World.RLock()
	out := make([]map[string]any, 0, len(s.World.Packets))
	for _, p := range s.World.Packets {
		out = append(out, p.ToDict())
	}
	s.World.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handlePacket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.World.RLock()
	pkt, ok := s.World.Packets[id]
	var dict map[string]any
	if ok {
		dict = pkt.ToDict()
	}
	s.World.RUnlock()

	if !ok {
		http.Error(w, fmt.Sprintf("packet %q not found", id), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dict)
}

func (s *Server) handlePacketHops(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.World.RLock()
	pkt, ok := s.World.Packets[id]
	var hops []model.LinkHop
	if ok {
		hops = pkt.GetHops()
	}
	s.World.RUnlock()

	if !ok {
		http.Error(w, fmt.Sprintf("packet %q not found", id), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hops)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(e)
			if err != nil {
				s.Opt.Logger.Warn("marshal event for SSE", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}
