package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessPatternActiveAtCyclesDurationAndInterval(t *testing.T) {
	p := &AccessPattern{Start: 10, DurationValues: []int{3}, IntervalValues: []int{2}}

	require.False(t, p.ActiveAt(9))
	require.True(t, p.ActiveAt(10))
	require.True(t, p.ActiveAt(12))
	require.False(t, p.ActiveAt(13))
	require.False(t, p.ActiveAt(14))
	require.True(t, p.ActiveAt(15))
	require.True(t, p.ActiveAt(17))
	require.False(t, p.ActiveAt(18))
}

func TestPacketSizeStrategySample(t *testing.T) {
	fixed := PacketSizeStrategy{Mode: PacketSizeFixed, Size: 42}
	require.Equal(t, 42, fixed.Sample(rand.New(rand.NewSource(1))))

	random := PacketSizeStrategy{Mode: PacketSizeRandom, Min: 10, Max: 12}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		size := random.Sample(rng)
		require.GreaterOrEqual(t, size, 10)
		require.LessOrEqual(t, size, 12)
	}
}

func TestUserBuildPacketValidatesPathAgainstTopology(t *testing.T) {
	topo, app := buildLinearPipeline(t)
	u := &User{
		ID: "u1",
		CommunicationPaths: map[string][][]string{
			"app1": {{"sw1", "sw2", "sw3"}},
		},
	}
	pkt, err := u.BuildPacket(app, topo, 20, "p1")
	require.NoError(t, err)
	require.Equal(t, "u1", pkt.UserID)
	require.Equal(t, [][]string{{"sw1", "sw2", "sw3"}}, pkt.TotalPath)
}

func TestUserBuildPacketRejectsMissingPath(t *testing.T) {
	_, app := buildLinearPipeline(t)
	topo := NewTopology()
	u := &User{ID: "u1"}
	_, err := u.BuildPacket(app, topo, 20, "p1")
	require.Error(t, err)
}

func TestUserBuildPacketRejectsLegCountMismatch(t *testing.T) {
	topo, app := buildLinearPipeline(t)
	u := &User{
		ID: "u1",
		CommunicationPaths: map[string][][]string{
			"app1": {{"sw1", "sw2", "sw3"}, {"sw3"}},
		},
	}
	_, err := u.BuildPacket(app, topo, 20, "p1")
	require.Error(t, err)
}
