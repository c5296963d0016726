// Package client implements the per-drive Kinetic connection: producer,
// consumer, and supervisor tasks cooperating over a pending-RPC table,
// per spec.md §4.6. Requests enqueue, a producer dispatches them over the
// wire, and callers Wait on completion; the supervisor/consumer/producer
// triad exists because the Kinetic wire protocol replies out of order and
// needs correlation by sequence number (each reply's ack_sequence names the
// request it answers).
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rawgate/rawgate/pkg/kinetic/wire"
)

// DefaultRPCTTL is the default per-RPC deadline, per spec.md §5.
const DefaultRPCTTL = 10 * time.Second

// Exchange is the in-memory representation of one Kinetic command and
// its eventual reply.
type Exchange struct {
	Command *wire.Command
	Value   []byte

	Reply      *wire.Command
	ReplyValue []byte
}

// PendingRpc tracks one in-flight Exchange: its sequence id, its
// deadline, and the channel its result is signalled on. It is owned by
// the waiting queue until sent, then by the pending table until a reply
// or failure retires it.
type PendingRpc struct {
	Sequence int64
	Exchange *Exchange
	Deadline time.Time
	done     chan error
}

func newPendingRpc(ex *Exchange, ttl time.Duration) *PendingRpc {
	return &PendingRpc{
		Exchange: ex,
		Deadline: time.Now().Add(ttl),
		done:     make(chan error, 1),
	}
}

// Sync is the handle returned to the application by RPC(); Wait blocks
// until the Exchange's reply, a connection reset, or a deadline expiry
// retires the PendingRpc.
type Sync struct {
	p *PendingRpc
}

// Wait blocks until the RPC completes, fails with a reset, or times out.
// A nil error means Exchange.Reply is populated with the drive's answer.
func (s *Sync) Wait(ctx context.Context) error {
	select {
	case err := <-s.p.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exchange returns the Exchange this Sync is waiting on. After Wait
// returns nil, Exchange().Reply and Exchange().ReplyValue are populated.
func (s *Sync) Exchange() *Exchange { return s.p.Exchange }

func (p *PendingRpc) signal(err error) {
	select {
	case p.done <- err:
	default:
	}
}

// ErrConnectionReset is delivered to every waiting/pending RPC when the
// connection is torn down for reconnect.
var ErrConnectionReset = fmt.Errorf("kinetic: connection reset")

// ErrRPCTimeout is delivered when a pending RPC's deadline is swept.
var ErrRPCTimeout = fmt.Errorf("kinetic: rpc timed out")

// pendingTable is the sent-but-unacknowledged RPC set, keyed by
// sequence id. It is only ever touched by the producer (insert on send,
// sweep on timeout), the consumer (remove on reply) and the supervisor
// (drain on reconnect) — each mutation happens between
// suspension points per spec.md §5.
type pendingTable struct {
	mu    sync.Mutex
	items map[int64]*PendingRpc
}

func newPendingTable() *pendingTable {
	return &pendingTable{items: make(map[int64]*PendingRpc)}
}

func (t *pendingTable) insert(p *PendingRpc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[p.Sequence] = p
}

func (t *pendingTable) popBySequence(seq int64) (*PendingRpc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.items[seq]
	if ok {
		delete(t.items, seq)
	}
	return p, ok
}

// sweepExpired removes and returns every RPC whose deadline is before
// now, for the producer's 1s deadline sweep.
func (t *pendingTable) sweepExpired(now time.Time) []*PendingRpc {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []*PendingRpc
	for seq, p := range t.items {
		if p.Deadline.Before(now) {
			expired = append(expired, p)
			delete(t.items, seq)
		}
	}
	return expired
}

// drainAll removes and returns every still-tracked RPC, for supervisor
// reconnect.
func (t *pendingTable) drainAll() []*PendingRpc {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*PendingRpc, 0, len(t.items))
	for seq, p := range t.items {
		out = append(out, p)
		delete(t.items, seq)
	}
	return out
}
