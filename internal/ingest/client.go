package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// rpcRequest is a Solana JSON-RPC 2.0 websocket subscribe/unsubscribe call.
type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
}

type rpcNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription uint64          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// SubHandler receives a subscription's "result" payload on each notification.
type SubHandler func(data json.RawMessage)

// Client is a reconnecting Solana websocket RPC client used for
// accountSubscribe/logsSubscribe/signatureSubscribe firehose ingestion.
// Grounded on the teacher's declared gorilla/websocket dependency and
// chain.RPCClient's reconnect/backoff idiom, generalized here to a
// subscription multiplexer since the teacher's own websocket client file
// was never part of the retrieval pack.
type Client struct {
	url             string
	reconnectDelay  time.Duration
	pingInterval    time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	nextID   atomic.Uint64
	pending  map[uint64]chan rpcResponse
	subs     map[uint64]SubHandler  // subscription ID -> handler
	idToSub  map[uint64]uint64      // request ID -> confirmed subscription ID (for correlating Subscribe's ack)

	onConnect    func()
	onDisconnect func(error)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewClient constructs a Client. Connect must be called to open the socket.
func NewClient(url string, reconnectDelay, pingInterval time.Duration) *Client {
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		pending:        make(map[uint64]chan rpcResponse),
		subs:           make(map[uint64]SubHandler),
		idToSub:        make(map[uint64]uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetCallbacks registers connect/disconnect lifecycle hooks.
func (c *Client) SetCallbacks(onConnect func(), onDisconnect func(error)) {
	c.onConnect = onConnect
	c.onDisconnect = onDisconnect
}

// Connect dials the websocket and starts the reconnect-on-failure read loop.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	c.wg.Add(1)
	go c.readLoop(ctx)
	if c.pingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(ctx)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	if c.onConnect != nil {
		c.onConnect()
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			c.reconnect(ctx)
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("websocket read failed, reconnecting")
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
			c.reconnect(ctx)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) reconnect(ctx context.Context) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case <-c.stopCh:
		return
	case <-time.After(c.reconnectDelay):
	}

	if err := c.dial(ctx); err != nil {
		log.Warn().Err(err).Msg("websocket reconnect failed")
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (c *Client) dispatch(msg []byte) {
	var withID struct {
		ID *uint64 `json:"id"`
	}
	if err := json.Unmarshal(msg, &withID); err == nil && withID.ID != nil {
		var resp rpcResponse
		if err := json.Unmarshal(msg, &resp); err == nil {
			c.mu.Lock()
			ch, ok := c.pending[resp.ID]
			c.mu.Unlock()
			if ok {
				ch <- resp
			}
			return
		}
	}

	var notif rpcNotification
	if err := json.Unmarshal(msg, &notif); err != nil {
		return
	}
	c.mu.Lock()
	handler, ok := c.subs[notif.Params.Subscription]
	c.mu.Unlock()
	if ok {
		handler(notif.Params.Result)
	}
}

func (c *Client) call(method string, params []interface{}) (uint64, error) {
	id := c.nextID.Add(1)
	respCh := make(chan rpcResponse, 1)

	c.mu.Lock()
	c.pending[id] = respCh
	conn := c.conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if conn == nil {
		return 0, fmt.Errorf("websocket not connected")
	}

	req := rpcRequest{Jsonrpc: "2.0", ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case resp := <-respCh:
		var subID uint64
		if err := json.Unmarshal(resp.Result, &subID); err != nil {
			return 0, fmt.Errorf("parse %s result: %w", method, err)
		}
		return subID, nil
	case <-time.After(10 * time.Second):
		return 0, fmt.Errorf("%s timed out", method)
	}
}

// AccountSubscribe subscribes to account-data changes for pubkey.
func (c *Client) AccountSubscribe(pubkey string, handler SubHandler) (uint64, error) {
	subID, err := c.call("accountSubscribe", []interface{}{pubkey, map[string]string{"encoding": "base64", "commitment": "confirmed"}})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.subs[subID] = handler
	c.mu.Unlock()
	return subID, nil
}

// LogsSubscribe subscribes to program log output, optionally filtered by
// "mentions" of a program/account ID.
func (c *Client) LogsSubscribe(mentions string, handler SubHandler) (uint64, error) {
	filter := interface{}("all")
	if mentions != "" {
		filter = map[string][]string{"mentions": {mentions}}
	}
	subID, err := c.call("logsSubscribe", []interface{}{filter, map[string]string{"commitment": "confirmed"}})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.subs[subID] = handler
	c.mu.Unlock()
	return subID, nil
}

// SignatureSubscribe subscribes to a transaction signature's confirmation.
func (c *Client) SignatureSubscribe(signature string, handler SubHandler) (uint64, error) {
	subID, err := c.call("signatureSubscribe", []interface{}{signature, map[string]string{"commitment": "confirmed"}})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.subs[subID] = handler
	c.mu.Unlock()
	return subID, nil
}

// Unsubscribe tears down a subscription by its unsubscribe method name
// ("accountUnsubscribe", "logsUnsubscribe", "signatureUnsubscribe").
func (c *Client) Unsubscribe(method string, subID uint64) {
	c.mu.Lock()
	delete(c.subs, subID)
	c.mu.Unlock()
	if _, err := c.call(method, []interface{}{subID}); err != nil {
		log.Debug().Err(err).Str("method", method).Uint64("subID", subID).Msg("unsubscribe failed")
	}
}

// Close stops the client's background loops and closes the socket.
func (c *Client) Close() {
	close(c.stopCh)
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
}
