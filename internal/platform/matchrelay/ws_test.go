package matchrelay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/monachad/matchfeed/internal/domain"
)

func TestHandleMessageDispatch(t *testing.T) {
	w := NewWSClient("ws://unused")

	var (
		shadows       []domain.ShadowTrade
		shadowBatches []ShadowBatch
		originals     []domain.OriginalTrade
		origBatches   []OriginalBatch
		updates       []json.RawMessage
	)
	w.OnShadowTrade(func(tr domain.ShadowTrade) { shadows = append(shadows, tr) })
	w.OnShadowBatch(func(b ShadowBatch) { shadowBatches = append(shadowBatches, b) })
	w.OnOriginalTrade(func(tr domain.OriginalTrade) { originals = append(originals, tr) })
	w.OnOriginalBatch(func(b OriginalBatch) { origBatches = append(origBatches, b) })
	w.OnMatchUpdated(func(data json.RawMessage) { updates = append(updates, data) })

	w.handleMessage([]byte(`{"event":"copyTradeExecuted","data":{"matchId":"m1","supporterAddress":"0xaa","transactionHash":"tx1","tradeType":"OPEN","amount":"100","timestamp":1}}`))
	w.handleMessage([]byte(`{"event":"batchCopyTradesExecuted","data":{"matchId":"m1","trades":[{"transactionHash":"tx2"},{"transactionHash":"tx3"}],"count":2}}`))
	w.handleMessage([]byte(`{"event":"monachadTradeExecuted","data":{"matchId":"m1","monachadAddress":"0xbb","transactionHash":"tx4","tradeType":"CLOSE","amount":"50","timestamp":2}}`))
	w.handleMessage([]byte(`{"event":"batchMonachadTradesExecuted","data":{"matchId":"m1","trades":[{"transactionHash":"tx5"}],"count":1}}`))
	w.handleMessage([]byte(`{"event":"matchUpdated","data":{"matchId":"m1","status":"live"}}`))

	require.Len(t, shadows, 1)
	require.Equal(t, "tx1", shadows[0].TransactionHash)
	require.Equal(t, domain.TradeOpen, shadows[0].TradeType)

	require.Len(t, shadowBatches, 1)
	require.Equal(t, 2, shadowBatches[0].Count)
	require.Equal(t, "tx3", shadowBatches[0].Trades[1].TransactionHash)

	require.Len(t, originals, 1)
	require.Equal(t, "0xbb", originals[0].MonachadAddress)

	require.Len(t, origBatches, 1)
	require.Len(t, updates, 1)
	require.JSONEq(t, `{"matchId":"m1","status":"live"}`, string(updates[0]))
}

func TestHandleMessageIgnoresUnknownAndMalformed(t *testing.T) {
	w := NewWSClient("ws://unused")

	var called bool
	w.OnShadowTrade(func(domain.ShadowTrade) { called = true })

	w.handleMessage([]byte(`{"event":"somethingNew","data":{"matchId":"m1"}}`))
	w.handleMessage([]byte(`not json at all`))
	w.handleMessage([]byte(`{"event":"copyTradeExecuted","data":"not an object"}`))

	require.False(t, called)
}

func TestCloseIsIdempotent(t *testing.T) {
	w := NewWSClient("ws://unused")

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestConnectAfterCloseFails(t *testing.T) {
	w := NewWSClient("ws://unused")
	require.NoError(t, w.Close())

	err := w.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrWSDisconnect)
}

func TestSubscribeRequiresConnection(t *testing.T) {
	w := NewWSClient("ws://unused")

	err := w.SubscribeToMatch(context.Background(), "m1")
	require.ErrorIs(t, err, domain.ErrNotConnected)

	err = w.UnsubscribeFromMatch(context.Background(), "m1")
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

// relayServer is a minimal in-process relay: it upgrades connections, feeds
// every inbound frame to the frames channel, and lets tests push frames to the
// most recent connection.
type relayServer struct {
	t      *testing.T
	srv    *httptest.Server
	frames chan Envelope

	mu   sync.Mutex
	conn *websocket.Conn
}

func newRelayServer(t *testing.T) *relayServer {
	rs := &relayServer{t: t, frames: make(chan Envelope, 16)}

	upgrader := websocket.Upgrader{}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.mu.Lock()
		rs.conn = conn
		rs.mu.Unlock()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			rs.frames <- env
		}
	}))
	t.Cleanup(rs.srv.Close)

	return rs
}

func (rs *relayServer) url() string {
	return "ws" + strings.TrimPrefix(rs.srv.URL, "http")
}

func (rs *relayServer) push(event string, data any) {
	raw, err := json.Marshal(data)
	require.NoError(rs.t, err)
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(rs.t, err)

	rs.mu.Lock()
	conn := rs.conn
	rs.mu.Unlock()
	require.NotNil(rs.t, conn)
	require.NoError(rs.t, conn.WriteMessage(websocket.TextMessage, frame))
}

func (rs *relayServer) dropConnection() {
	rs.mu.Lock()
	conn := rs.conn
	rs.conn = nil
	rs.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (rs *relayServer) nextFrame(timeout time.Duration) (Envelope, bool) {
	select {
	case env := <-rs.frames:
		return env, true
	case <-time.After(timeout):
		return Envelope{}, false
	}
}

func TestClientLifecycleAgainstRelay(t *testing.T) {
	rs := newRelayServer(t)

	w := NewWSClient(rs.url())

	status := make(chan bool, 4)
	received := make(chan domain.ShadowTrade, 4)
	w.OnStatusChange(func(connected bool) { status <- connected })
	w.OnShadowTrade(func(tr domain.ShadowTrade) { received <- tr })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, w.Connect(ctx))
	select {
	case connected := <-status:
		require.True(t, connected)
	case <-time.After(2 * time.Second):
		t.Fatal("no connect notification")
	}

	require.NoError(t, w.SubscribeToMatch(ctx, "m1"))
	env, ok := rs.nextFrame(2 * time.Second)
	require.True(t, ok, "relay did not receive subscribe")
	require.Equal(t, "subscribeToMatch", env.Event)
	require.JSONEq(t, `"m1"`, string(env.Data))

	rs.push(EventCopyTrade, domain.ShadowTrade{
		MatchID:          "m1",
		SupporterAddress: "0xaa",
		TransactionHash:  "tx1",
		Amount:           "100",
	})
	select {
	case tr := <-received:
		require.Equal(t, "tx1", tr.TransactionHash)
	case <-time.After(2 * time.Second):
		t.Fatal("pushed trade never reached handler")
	}

	require.NoError(t, w.UnsubscribeFromMatch(ctx, "m1"))
	env, ok = rs.nextFrame(2 * time.Second)
	require.True(t, ok, "relay did not receive unsubscribe")
	require.Equal(t, "unsubscribeFromMatch", env.Event)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestSubscribeHealsAcrossDyingConnection(t *testing.T) {
	// The relay kills the first connection right after the upgrade, so the
	// subscribe frame written to it is lost or fails outright. The
	// subscription must still reach the relay on the next connection.
	var connCount atomic.Int32
	frames := make(chan Envelope, 16)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		if connCount.Add(1) == 1 {
			conn.Close()
			return
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			frames <- env
		}
	}))
	t.Cleanup(srv.Close)

	w := NewWSClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, w.Connect(ctx))

	// The write may fail or vanish into the dead socket; either way the
	// subscription is registered and must be re-issued after the reconnect.
	_ = w.SubscribeToMatch(ctx, "m1")

	select {
	case env := <-frames:
		require.Equal(t, "subscribeToMatch", env.Event)
		require.JSONEq(t, `"m1"`, string(env.Data))
	case <-time.After(10 * time.Second):
		t.Fatal("subscription never reached the relay")
	}
}

func TestSinglePingWriterAfterReconnect(t *testing.T) {
	rs := newRelayServer(t)

	w := NewWSClient(rs.url())
	w.pingInterval = 20 * time.Millisecond
	t.Cleanup(func() { _ = w.Close() })

	received := make(chan domain.ShadowTrade, 4)
	w.OnShadowTrade(func(tr domain.ShadowTrade) { received <- tr })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, w.Connect(ctx))
	require.NoError(t, w.SubscribeToMatch(ctx, "m1"))
	_, ok := rs.nextFrame(2 * time.Second)
	require.True(t, ok)

	// Force a reconnect. The ping loop bound to the first connection must
	// exit instead of writing to the replacement alongside the new loop.
	rs.dropConnection()
	_, ok = rs.nextFrame(10 * time.Second)
	require.True(t, ok, "client did not resubscribe after reconnect")

	// Let several ping intervals elapse on the new connection, then confirm
	// the client still processes events.
	time.Sleep(200 * time.Millisecond)
	rs.push(EventCopyTrade, domain.ShadowTrade{MatchID: "m1", TransactionHash: "tx1", Amount: "1"})
	select {
	case tr := <-received:
		require.Equal(t, "tx1", tr.TransactionHash)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached handler after reconnect")
	}
}

func TestClientResubscribesAfterReconnect(t *testing.T) {
	rs := newRelayServer(t)

	w := NewWSClient(rs.url())
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, w.Connect(ctx))
	require.NoError(t, w.SubscribeToMatch(ctx, "m1"))

	env, ok := rs.nextFrame(2 * time.Second)
	require.True(t, ok)
	require.Equal(t, "subscribeToMatch", env.Event)

	// Kill the connection; the client must redial and re-issue the
	// subscription on its own.
	rs.dropConnection()

	env, ok = rs.nextFrame(10 * time.Second)
	require.True(t, ok, "client did not resubscribe after reconnect")
	require.Equal(t, "subscribeToMatch", env.Event)
	require.JSONEq(t, `"m1"`, string(env.Data))
}
