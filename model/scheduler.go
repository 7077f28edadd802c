package model

import "sort"

// BandwidthScheduler assigns each active NetworkFlow a per-tick bandwidth
// allocation using max-min fairness: flows sharing a link split its
// capacity equally, except a flow that needs less than its equal share
// takes only what it needs, freeing the remainder to be re-split among the
// flows still contending for bandwidth on that link.
type BandwidthScheduler struct{}

// Allocate groups flows by the link they are currently traversing and
// water-fills each link's bandwidth across them. A flow's demand for the
// tick is whatever data it still has left to transfer; a flow with no
// remaining demand (already satisfied) is allocated nothing. The returned
// map is keyed by NetworkFlow.ID.
func (BandwidthScheduler) Allocate(topo *Topology, flows []*NetworkFlow) map[string]float64 {
	result := make(map[string]float64, len(flows))

	byLink := make(map[[2]string][]*NetworkFlow)
	for _, f := range flows {
		if f.Status != FlowActive {
			continue
		}
		byLink[linkKey(f.Source, f.Target)] = append(byLink[linkKey(f.Source, f.Target)], f)
	}

	for key, group := range byLink {
		link := topo.links[key]
		if link == nil {
			for _, f := range group {
				result[f.ID] = 0
			}
			continue
		}
		for f, alloc := range waterFill(link.Bandwidth, group) {
			result[f.ID] = alloc
		}
	}
	return result
}

// waterFill splits capacity across flows by max-min fairness, where each
// flow's demand is its remaining DataToTransfer for this tick.
func waterFill(capacity float64, flows []*NetworkFlow) map[*NetworkFlow]float64 {
	ordered := make([]*NetworkFlow, len(flows))
	copy(ordered, flows)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DataToTransfer < ordered[j].DataToTransfer
	})

	alloc := make(map[*NetworkFlow]float64, len(ordered))
	remaining := capacity
	for i, f := range ordered {
		n := len(ordered) - i
		share := remaining / float64(n)
		demand := float64(f.DataToTransfer)
		if demand <= share {
			alloc[f] = demand
			remaining -= demand
		} else {
			alloc[f] = share
			remaining -= share
		}
	}
	return alloc
}
