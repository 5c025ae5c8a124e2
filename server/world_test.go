package server

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citydrive/protocol"
)

func TestGenerateWorldSkipsCenterPlaza(t *testing.T) {
	w := testWorld()
	require.Len(t, w.Layout, 16*16-4)
	assert.Equal(t, 800.0, w.HalfExtent())

	for _, b := range w.Layout {
		// 中心 2x2 街区的中心坐标为 ±50
		assert.False(t, (b.X == -50 || b.X == 50) && (b.Z == -50 || b.Z == 50), "plaza block at %v,%v", b.X, b.Z)
		assert.GreaterOrEqual(t, b.Width, 30.0)
		assert.Less(t, b.Width, 60.0)
		assert.GreaterOrEqual(t, b.Depth, 30.0)
		assert.Less(t, b.Depth, 60.0)
		assert.GreaterOrEqual(t, b.Height, 100.0)
		assert.Less(t, b.Height, 400.0)
		assert.GreaterOrEqual(t, b.Twist, -1.0)
		assert.Less(t, b.Twist, 1.0)
		assert.Contains(t, []int{0, 1, 2}, b.Type)
	}
	assert.Equal(t, -750.0, w.Layout[0].X)
	assert.Equal(t, -750.0, w.Layout[0].Z)
}

func TestGenerateWorldIsDeterministicPerSeed(t *testing.T) {
	cfg := WorldConfig{Rows: 8, Cols: 6, BlockSize: 50}
	a := GenerateWorld(cfg, rand.New(rand.NewSource(3)))
	b := GenerateWorld(cfg, rand.New(rand.NewSource(3)))
	assert.Equal(t, a.Layout, b.Layout)
	assert.Equal(t, a.Message(), b.Message())
}

func TestWorldMessageIsCityMap(t *testing.T) {
	w := testWorld()
	env, err := protocol.DecodeEnvelope(w.Message())
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeCityMap, env.Type)

	var m protocol.CityMap
	require.NoError(t, json.Unmarshal(env.Payload, &m))
	assert.Equal(t, 16, m.Rows)
	assert.Equal(t, 16, m.Cols)
	assert.Equal(t, 100.0, m.BlockSize)
	assert.Equal(t, w.Layout, m.Layout)
}
