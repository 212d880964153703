// Package checkpoint implements the periodic checkpoint generator from
// §4.9: app_hash + merkle_root over a sealed batch, BFT quorum signature
// collection from the known 7-validator set, an HSM coordinator seal, and
// a chained append to the checkpoint ledger.
//
// BFT signature gossip is grounded on the teacher's
// consumer/websocket.go WebSocketHub/Client/pump pattern, repurposed from
// a public dashboard /ws endpoint to an internal validator-to-coordinator
// signature broadcast transport: one hub per checkpoint round, validators
// connect as clients and publish signed tuples, the round closes once
// quorum is reached or it times out.
package checkpoint

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var gossipUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // internal validator mesh, not public
}

// SignedTuple is what a validator publishes into the gossip round.
type SignedTuple struct {
	ValidatorID string `json:"validator_id"`
	Height      uint64 `json:"height"`
	TupleHash   []byte `json:"tuple_hash"`
	Signature   []byte `json:"signature"`
	KeyEpoch    uint32 `json:"key_epoch"`
}

// Round collects signed tuples from connected validators for one
// checkpoint height, closing once quorum is reached or the round times
// out.
type Round struct {
	height     uint64
	quorum     int
	mu         sync.Mutex
	collected  map[string]SignedTuple // validator_id -> tuple
	clients    map[*websocket.Conn]bool
	clientsMu  sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
}

// NewRound starts a round for the given height, requiring quorum distinct
// validator signatures before it is considered satisfied.
func NewRound(height uint64, quorum int) *Round {
	return &Round{
		height:    height,
		quorum:    quorum,
		collected: make(map[string]SignedTuple),
		clients:   make(map[*websocket.Conn]bool),
		done:      make(chan struct{}),
	}
}

// HandleValidator upgrades an incoming validator connection and reads
// signed tuples from it until the round closes or the connection drops --
// mirroring the teacher's handleWebSocket/readPump pair.
func (r *Round) HandleValidator(w http.ResponseWriter, req *http.Request) {
	conn, err := gossipUpgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("[checkpoint] gossip upgrade error: %v", err)
		return
	}
	r.clientsMu.Lock()
	r.clients[conn] = true
	r.clientsMu.Unlock()

	defer func() {
		r.clientsMu.Lock()
		delete(r.clients, conn)
		r.clientsMu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var tuple SignedTuple
		if err := json.Unmarshal(data, &tuple); err != nil {
			continue
		}
		r.record(tuple)
	}
}

func (r *Round) record(tuple SignedTuple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tuple.Height != r.height {
		return
	}
	r.collected[tuple.ValidatorID] = tuple
	if len(r.collected) >= r.quorum {
		r.closeOnce.Do(func() { close(r.done) })
	}
}

// Await blocks until quorum is reached or ctx/timeout elapses, then
// returns the distinct collected signatures (which may be fewer than
// quorum on timeout).
func (r *Round) Await(ctx context.Context, roundTimeout time.Duration) []SignedTuple {
	timer := time.NewTimer(roundTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
	case <-ctx.Done():
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SignedTuple, 0, len(r.collected))
	for _, t := range r.collected {
		out = append(out, t)
	}
	return out
}

// Broadcast pushes the tuple-to-sign to every connected validator client
// in turn, each write bounded by a 5-second write deadline. A failed write
// is logged and skipped; the client stays registered in the round.
func (r *Round) Broadcast(payload []byte) {
	r.clientsMu.RLock()
	defer r.clientsMu.RUnlock()
	for conn := range r.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("[checkpoint] gossip broadcast to validator failed: %v", err)
		}
	}
}
