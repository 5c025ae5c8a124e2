package server

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"citydrive/protocol"
)

// fakeOutbox 记录入队的消息；limit > 0 时模拟容量有限的队列
type fakeOutbox struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	limit  int
}

func (f *fakeOutbox) Enqueue(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || (f.limit > 0 && len(f.msgs) >= f.limit) {
		return false
	}
	f.msgs = append(f.msgs, b)
	return true
}

func (f *fakeOutbox) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeOutbox) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeOutbox) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(f.msgs))
	for _, b := range f.msgs {
		env, err := protocol.DecodeEnvelope(b)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (f *fakeOutbox) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, env := range f.envelopes(t) {
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeOutbox) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

func decodePayload[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func testWorld() *World {
	return GenerateWorld(WorldConfig{Rows: 16, Cols: 16, BlockSize: 100}, rand.New(rand.NewSource(7)))
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.World.Seed = 42
	return cfg
}
