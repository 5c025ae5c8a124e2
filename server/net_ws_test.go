package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citydrive/protocol"
)

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	id := resp.Header.Get(HeaderPlayerID)
	require.NotEmpty(t, id)
	return conn, id
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.DecodeEnvelope(b)
	require.NoError(t, err)
	return env
}

// readUntil 跳过 updateAI 等无关消息，直到读到指定类型
func readUntil(t *testing.T, conn *websocket.Conn, typ string) protocol.Envelope {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readEnvelope(t, conn)
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("no %s message", typ)
	return protocol.Envelope{}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.MustEncode(typ, payload)))
}

func TestWebSocketTwoDriverScenario(t *testing.T) {
	s := New(testConfig(t))
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	connA, idA := dial(t, srv)
	env := readEnvelope(t, connA)
	require.Equal(t, protocol.TypeCityMap, env.Type)
	env = readEnvelope(t, connA)
	require.Equal(t, protocol.TypeCurrentPlayers, env.Type)
	var players protocol.CurrentPlayers
	require.NoError(t, json.Unmarshal(env.Payload, &players))
	assert.Len(t, players, 1)
	assert.Contains(t, players, idA)

	connB, idB := dial(t, srv)
	require.Equal(t, protocol.TypeCityMap, readEnvelope(t, connB).Type)
	env = readEnvelope(t, connB)
	require.Equal(t, protocol.TypeCurrentPlayers, env.Type)
	players = protocol.CurrentPlayers{}
	require.NoError(t, json.Unmarshal(env.Payload, &players))
	assert.Contains(t, players, idA)
	assert.Contains(t, players, idB)

	env = readEnvelope(t, connA)
	require.Equal(t, protocol.TypeNewPlayer, env.Type)
	var np protocol.NewPlayer
	require.NoError(t, json.Unmarshal(env.Payload, &np))
	assert.Equal(t, idB, np.ID)

	send(t, connA, protocol.TypePlayerMovement, protocol.PlayerMovement{X: 5, Z: 0, Rot: 0})
	env = readEnvelope(t, connB)
	require.Equal(t, protocol.TypePlayerMoved, env.Type)
	var moved protocol.PlayerMoved
	require.NoError(t, json.Unmarshal(env.Payload, &moved))
	assert.Equal(t, protocol.PlayerMoved{ID: idA, X: 5, Z: 0, Rot: 0}, moved)

	require.NoError(t, connA.Close())
	env = readEnvelope(t, connB)
	require.Equal(t, protocol.TypePlayerDisconnected, env.Type)
	var gone string
	require.NoError(t, json.Unmarshal(env.Payload, &gone))
	assert.Equal(t, idA, gone)

	assert.Eventually(t, func() bool { return s.Registry().Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketMalformedMessageKeepsConnection(t *testing.T) {
	s := New(testConfig(t))
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	connA, idA := dial(t, srv)
	readUntil(t, connA, protocol.TypeCurrentPlayers)
	connB, _ := dial(t, srv)
	readUntil(t, connB, protocol.TypeCurrentPlayers)

	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte(`{{{`)))
	send(t, connA, protocol.TypePlayerMovement, map[string]float64{"x": 1})
	send(t, connA, protocol.TypeNewPlayer, protocol.NewPlayer{ID: "spoof"})
	send(t, connA, protocol.TypePlayerMovement, protocol.PlayerMovement{X: 2, Z: 3, Rot: 1})

	env := readUntil(t, connB, protocol.TypePlayerMoved)
	var moved protocol.PlayerMoved
	require.NoError(t, json.Unmarshal(env.Payload, &moved))
	assert.Equal(t, protocol.PlayerMoved{ID: idA, X: 2, Z: 3, Rot: 1}, moved)
	assert.EqualValues(t, 3, s.Metrics().Snapshot()["malformed"])
}

func TestWebSocketTrafficTicks(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn, _ := dial(t, srv)
	env := readUntil(t, conn, protocol.TypeUpdateAI)
	actors, err := protocol.DecodeTraffic(env.Payload)
	require.NoError(t, err)
	assert.Len(t, actors, cfg.Traffic.Count)
	for _, a := range actors {
		assert.LessOrEqual(t, a.X, s.Traffic().Bound())
		assert.GreaterOrEqual(t, a.X, -s.Traffic().Bound())
	}
}

func TestClientConnClosesAfterSustainedBackpressure(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	defer srv.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer peer.Close()

	m := NewMetrics()
	c := NewClientConn(<-accepted, 1, 3, m)
	// 不启动写泵，队列容量 1
	assert.True(t, c.Enqueue([]byte("1")))
	assert.False(t, c.Enqueue([]byte("2")))
	assert.False(t, c.Enqueue([]byte("3")))
	select {
	case <-c.done:
		t.Fatal("closed too early")
	default:
	}
	assert.False(t, c.Enqueue([]byte("4")))
	select {
	case <-c.done:
	default:
		t.Fatal("expected slow connection to be closed")
	}
	assert.False(t, c.Enqueue([]byte("5")))

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap["dropped"])
	assert.EqualValues(t, 1, snap["closed_slow"])
}

func TestClientConnClosedWhenDisconnectNoticeDoesNotFit(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	defer srv.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer peer.Close()

	d, m := newTestDispatcher()
	d.Handle(Command{Kind: CmdJoin, PlayerID: "A", Out: &fakeOutbox{}})

	// 不启动写泵：cityMap + currentPlayers 正好占满容量 2
	c := NewClientConn(<-accepted, 2, 90, m)
	d.Handle(Command{Kind: CmdJoin, PlayerID: "B", Out: c})

	snap := Snapshot{Tick: 1, Actors: []protocol.TrafficState{{ID: 0, Dir: protocol.DirPosX}}}
	d.BroadcastTraffic(snap)
	d.BroadcastTraffic(snap)
	select {
	case <-c.done:
		t.Fatal("dropped traffic frames must not close the connection")
	default:
	}

	d.Handle(Command{Kind: CmdDisconnect, PlayerID: "A"})
	select {
	case <-c.done:
	default:
		t.Fatal("expected connection to be closed after losing playerDisconnected")
	}

	snap2 := m.Snapshot()
	assert.EqualValues(t, 1, snap2["lifecycle_lost"])
	assert.EqualValues(t, 0, snap2["closed_slow"])
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand("p", protocol.MustEncode(protocol.TypePlayerMovement, protocol.PlayerMovement{X: 1, Z: 2, Rot: 3}))
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: CmdMove, PlayerID: "p", Move: protocol.PlayerMovement{X: 1, Z: 2, Rot: 3}}, cmd)

	_, err = decodeCommand("p", protocol.MustEncode(protocol.TypeUpdateAI, []int{}))
	assert.ErrorIs(t, err, errUnexpectedType)
	_, err = decodeCommand("p", []byte(`{"type":"playerMovement","payload":{"x":1}}`))
	assert.ErrorIs(t, err, protocol.ErrMalformed)
}
