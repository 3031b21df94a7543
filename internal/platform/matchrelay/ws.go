// Package matchrelay implements the WebSocket client for the match relay,
// the push transport that streams copy-trade and Monachad-trade events for a
// match. It manages the connection lifecycle, per-match subscriptions, and
// dispatches inbound events to registered handlers.
package matchrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/monachad/matchfeed/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 1 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 30 * time.Second
)

// ShadowTradeHandler is called for every single copy-trade event.
type ShadowTradeHandler func(domain.ShadowTrade)

// ShadowBatchHandler is called for every batch of copy-trade events.
type ShadowBatchHandler func(ShadowBatch)

// OriginalTradeHandler is called for every single Monachad-trade event.
type OriginalTradeHandler func(domain.OriginalTrade)

// OriginalBatchHandler is called for every batch of Monachad-trade events.
type OriginalBatchHandler func(OriginalBatch)

// MatchUpdatedHandler is called for every matchUpdated notification with the
// raw payload.
type MatchUpdatedHandler func(json.RawMessage)

// StatusHandler is called when the connection is established or lost.
type StatusHandler func(connected bool)

// WSClient is a WebSocket client for the match relay real-time event feed.
// It reconnects with capped exponential backoff and re-issues match
// subscriptions after every successful (re)connect.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// writeMu serializes all writes to the socket. gorilla/websocket does not
	// allow concurrent writers on one connection.
	writeMu sync.Mutex

	// pingInterval is how often the ping loop writes keep-alive pings.
	pingInterval time.Duration

	// Match subscriptions to restore on reconnect.
	subscriptions []string

	// Handlers
	shadowHandlers        []ShadowTradeHandler
	shadowBatchHandlers   []ShadowBatchHandler
	originalHandlers      []OriginalTradeHandler
	originalBatchHandlers []OriginalBatchHandler
	updatedHandlers       []MatchUpdatedHandler
	statusHandlers        []StatusHandler
	handlerMu             sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a new WebSocket client for the given relay endpoint,
// e.g. "wss://relay.monachad.xyz/ws".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL:        wsURL,
		pingInterval: pingPeriod,
		done:         make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection, restores any prior match
// subscriptions, and starts the read and ping loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("matchrelay: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("matchrelay: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start the read loop and ping loop. The ping loop is bound to this
	// connection and exits once a reconnect replaces it.
	go w.readLoop()
	go w.pingLoop(conn)

	// Re-issue subscriptions after reconnect. The relay does not retain
	// subscription state across connections.
	for _, matchID := range w.subscriptions {
		if err := w.sendCommand(cmdSubscribe, matchID); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("matchrelay: restore subscription %s: %w", matchID, err)
		}
	}

	w.mu.Unlock()

	w.notifyStatus(true)
	return nil
}

// SubscribeToMatch subscribes to all events for the given match. The
// subscription survives reconnects until UnsubscribeFromMatch or Close.
func (w *WSClient) SubscribeToMatch(ctx context.Context, matchID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("matchrelay: subscribe: %w", domain.ErrNotConnected)
	}

	// Register before writing: if the connection dies mid-send, the next
	// reconnect re-issues the subscription and the stream resumes.
	registered := false
	for _, id := range w.subscriptions {
		if id == matchID {
			registered = true
			break
		}
	}
	if !registered {
		w.subscriptions = append(w.subscriptions, matchID)
	}

	if err := w.sendCommand(cmdSubscribe, matchID); err != nil {
		return fmt.Errorf("matchrelay: subscribe to %s: %w", matchID, err)
	}
	return nil
}

// UnsubscribeFromMatch stops the event stream for the given match.
// Best-effort: the relay does not acknowledge unsubscribes.
func (w *WSClient) UnsubscribeFromMatch(ctx context.Context, matchID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("matchrelay: unsubscribe: %w", domain.ErrNotConnected)
	}

	if err := w.sendCommand(cmdUnsubscribe, matchID); err != nil {
		return fmt.Errorf("matchrelay: unsubscribe from %s: %w", matchID, err)
	}

	filtered := w.subscriptions[:0]
	for _, id := range w.subscriptions {
		if id != matchID {
			filtered = append(filtered, id)
		}
	}
	w.subscriptions = filtered
	return nil
}

// Close shuts down the WebSocket connection and stops the read loop. Safe to
// call multiple times.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		w.writeMu.Lock()
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		w.writeMu.Unlock()
		return w.conn.Close()
	}

	return nil
}

// OnShadowTrade registers a handler for single copy-trade events.
func (w *WSClient) OnShadowTrade(handler ShadowTradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.shadowHandlers = append(w.shadowHandlers, handler)
}

// OnShadowBatch registers a handler for copy-trade batches.
func (w *WSClient) OnShadowBatch(handler ShadowBatchHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.shadowBatchHandlers = append(w.shadowBatchHandlers, handler)
}

// OnOriginalTrade registers a handler for single Monachad-trade events.
func (w *WSClient) OnOriginalTrade(handler OriginalTradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.originalHandlers = append(w.originalHandlers, handler)
}

// OnOriginalBatch registers a handler for Monachad-trade batches.
func (w *WSClient) OnOriginalBatch(handler OriginalBatchHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.originalBatchHandlers = append(w.originalBatchHandlers, handler)
}

// OnMatchUpdated registers a handler for matchUpdated notifications.
func (w *WSClient) OnMatchUpdated(handler MatchUpdatedHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.updatedHandlers = append(w.updatedHandlers, handler)
}

// OnStatusChange registers a handler for connect/disconnect transitions.
func (w *WSClient) OnStatusChange(handler StatusHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.statusHandlers = append(w.statusHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendCommand writes an outbound envelope to the socket. Caller must hold w.mu.
func (w *WSClient) sendCommand(event, matchID string) error {
	cmd, err := command(event, matchID)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// notifyStatus invokes all registered status handlers.
func (w *WSClient) notifyStatus(connected bool) {
	w.handlerMu.RLock()
	handlers := w.statusHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(connected)
	}
}

// readLoop continuously reads messages from the WebSocket and dispatches
// them to the appropriate handlers. It runs in its own goroutine.
// On disconnect, it attempts to reconnect with exponential backoff.
func (w *WSClient) readLoop() {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()

			// Check if we've been shut down.
			select {
			case <-w.done:
				return
			default:
			}

			w.notifyStatus(false)

			// Attempt reconnection; Connect starts a fresh readLoop.
			w.reconnect()
			return
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive. It is
// bound to the connection it was started for and exits once a reconnect
// replaces that connection, so each connection has exactly one ping writer.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			current := w.conn
			w.mu.RUnlock()

			if current != conn {
				return
			}

			w.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a raw relay frame and routes it by event name. The
// event set is closed; unknown events fall through to the default arm and are
// dropped so future relay versions stay compatible.
func (w *WSClient) handleMessage(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return // Silently drop unparseable messages.
	}

	switch env.Event {
	case EventCopyTrade:
		var trade domain.ShadowTrade
		if err := json.Unmarshal(env.Data, &trade); err != nil {
			return
		}

		w.handlerMu.RLock()
		handlers := w.shadowHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(trade)
		}

	case EventCopyBatch:
		var batch ShadowBatch
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			return
		}

		w.handlerMu.RLock()
		handlers := w.shadowBatchHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(batch)
		}

	case EventMonachadTrade:
		var trade domain.OriginalTrade
		if err := json.Unmarshal(env.Data, &trade); err != nil {
			return
		}

		w.handlerMu.RLock()
		handlers := w.originalHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(trade)
		}

	case EventMonachadBatch:
		var batch OriginalBatch
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			return
		}

		w.handlerMu.RLock()
		handlers := w.originalBatchHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(batch)
		}

	case EventMatchUpdated:
		w.handlerMu.RLock()
		handlers := w.updatedHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(env.Data)
		}

	default:
		// Unknown event kind: ignore.
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		// Exponential backoff.
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
