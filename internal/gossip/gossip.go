// Package gossip implements peer-to-peer block propagation over
// WebSocket connections, grounded on original_source/yadacoin's
// "new block"/"getblocks"/"getblocksreply" peer protocol and wired through
// gorilla/websocket the way daglabs-btcd's peer package uses it for its
// own gossip transport.
package gossip

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/consensus"
	"github.com/coraxum/coraxumd/store"
)

// messageType mirrors the peer protocol's own message type tags.
type messageType string

const (
	msgNewBlock       messageType = "new block"
	msgGetBlocks      messageType = "getblocks"
	msgGetBlocksReply messageType = "getblocksreply"
)

type envelope struct {
	Type    messageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type newBlockPayload struct {
	Block *block.Block `json:"block"`
}

type getBlocksPayload struct {
	StartIndex int64 `json:"start_index"`
}

type getBlocksReplyPayload struct {
	Blocks []*block.Block `json:"blocks"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected peers and verifies/ingests every block they relay,
// the single writer into BlockStore for inbound gossip traffic.
type Hub struct {
	store    store.BlockStore
	verifier *consensus.BlockVerifier

	mu    sync.Mutex
	peers map[*websocket.Conn]struct{}
}

// NewHub returns a Hub that appends verified blocks to s.
func NewHub(s store.BlockStore, v *consensus.BlockVerifier) *Hub {
	return &Hub{store: s, verifier: v, peers: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the connection and services it until it closes,
// registering it as a broadcast target for Broadcast.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.register(conn)
	defer h.unregister(conn)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		h.handle(r.Context(), conn, env)
	}
}

func (h *Hub) register(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[c] = struct{}{}
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, c)
	c.Close()
}

func (h *Hub) handle(ctx context.Context, conn *websocket.Conn, env envelope) {
	switch env.Type {
	case msgNewBlock:
		var p newBlockPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Block == nil {
			return
		}
		if err := h.verifier.Verify(ctx, p.Block); err != nil {
			return
		}
		if err := h.store.Append(ctx, p.Block); err != nil {
			return
		}
		h.Broadcast(p.Block)

	case msgGetBlocks:
		var p getBlocksPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		height, err := h.store.Height(ctx)
		if err != nil {
			return
		}
		blocks, err := h.store.Range(ctx, p.StartIndex, height+1, false)
		if err != nil {
			return
		}
		reply := envelope{Type: msgGetBlocksReply}
		reply.Payload, _ = json.Marshal(getBlocksReplyPayload{Blocks: blocks})
		conn.WriteJSON(reply)

	case msgGetBlocksReply:
		var p getBlocksReplyPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		for _, b := range p.Blocks {
			if err := h.verifier.Verify(ctx, b); err != nil {
				continue
			}
			h.store.Append(ctx, b)
		}
	}
}

// Broadcast relays b as a "new block" message to every connected peer.
func (h *Hub) Broadcast(b *block.Block) {
	env := envelope{Type: msgNewBlock}
	env.Payload, _ = json.Marshal(newBlockPayload{Block: b})

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.peers {
		c.WriteJSON(env)
	}
}

// RequestBlocks asks conn for every block from startIndex onward, the
// catch-up request a newly-connected peer issues on handshake.
func RequestBlocks(conn *websocket.Conn, startIndex int64) error {
	env := envelope{Type: msgGetBlocks}
	var err error
	env.Payload, err = json.Marshal(getBlocksPayload{StartIndex: startIndex})
	if err != nil {
		return err
	}
	return conn.WriteJSON(env)
}
