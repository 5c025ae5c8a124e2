package server

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citydrive/protocol"
)

func TestNewTrafficPinsEachActorToOneLane(t *testing.T) {
	w := testWorld()
	tr := NewTraffic(TrafficConfig{Count: 15, Speed: 60, TickRate: 30}, w, rand.New(rand.NewSource(11)))
	start := tr.Snapshot()
	require.Len(t, start.Actors, 15)

	for i := 0; i < 20; i++ {
		tr.Step(1.0 / 30)
	}
	end := tr.Snapshot()
	for i, a := range start.Actors {
		assert.Equal(t, i, a.ID)
		require.True(t, a.Dir.Valid())
		b := end.Actors[i]
		assert.Equal(t, a.Dir, b.Dir)
		if a.Dir.Horizontal() {
			assert.Equal(t, a.Z, b.Z, "actor %d left its row", i)
		} else {
			assert.Equal(t, a.X, b.X, "actor %d left its column", i)
		}
	}
}

func TestTrafficStaysWithinBounds(t *testing.T) {
	w := testWorld()
	tr := NewTraffic(TrafficConfig{Count: 40, Speed: 60, TickRate: 30}, w, rand.New(rand.NewSource(5)))
	bound := tr.Bound()
	for i := 0; i < 30*60; i++ {
		snap := tr.Step(1.0 / 30)
		for _, a := range snap.Actors {
			require.GreaterOrEqual(t, a.X, -bound)
			require.LessOrEqual(t, a.X, bound)
			require.GreaterOrEqual(t, a.Z, -bound)
			require.LessOrEqual(t, a.Z, bound)
		}
	}
	assert.EqualValues(t, 30*60, tr.Snapshot().Tick)
}

func TestTrafficWrapIsHardReset(t *testing.T) {
	tr := &Traffic{bound: 800, speed: 60}
	tr.actors = []protocol.TrafficState{
		{ID: 0, X: 799, Z: 0, Dir: protocol.DirPosX},
		{ID: 1, X: 0, Z: -799.5, Dir: protocol.DirNegZ},
		{ID: 2, X: 0, Z: 798, Dir: protocol.DirPosZ},
	}
	snap := tr.Step(1.0 / 30) // 2 单位

	// 越过 +B 后恰好为 -B，溢出部分丢弃
	assert.Equal(t, -800.0, snap.Actors[0].X)
	assert.Equal(t, protocol.DirPosX, snap.Actors[0].Dir)
	assert.Equal(t, 800.0, snap.Actors[1].Z)
	assert.Equal(t, protocol.DirNegZ, snap.Actors[1].Dir)
	// 恰好到达 +B 不触发重置
	assert.InDelta(t, 800.0, snap.Actors[2].Z, 1e-9)
}

func TestTrafficSnapshotIsImmutable(t *testing.T) {
	tr := &Traffic{bound: 800, speed: 60}
	tr.actors = []protocol.TrafficState{{ID: 0, Dir: protocol.DirPosX}}
	snap := tr.Step(1)
	tr.Step(1)
	assert.Equal(t, 60.0, snap.Actors[0].X)
	assert.EqualValues(t, 1, snap.Tick)
}

func TestTrafficSetSpeed(t *testing.T) {
	tr := &Traffic{bound: 800, speed: 60}
	tr.actors = []protocol.TrafficState{{ID: 0, Dir: protocol.DirNegX}}
	tr.SetSpeed(30)
	assert.Equal(t, 30.0, tr.Speed())
	snap := tr.Step(0.5)
	assert.Equal(t, -15.0, snap.Actors[0].X)
}
