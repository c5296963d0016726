package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rawgate/rawgate/internal/logger"
	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/internal/sched"
	"github.com/rawgate/rawgate/pkg/kinetic/wire"
)

// Config configures one drive connection.
type Config struct {
	Addr           string
	HMACSalt       []byte
	Identity       int64
	HandshakeDeadline time.Duration
	ReadDeadline      time.Duration
	WriteDeadline     time.Duration
	ReconnectBackoff  time.Duration
	RPCTTL            time.Duration
	MaxFrameLength    int
}

func (c Config) withDefaults() Config {
	if c.HandshakeDeadline == 0 {
		c.HandshakeDeadline = 5 * time.Second
	}
	if c.ReadDeadline == 0 {
		c.ReadDeadline = time.Second
	}
	if c.WriteDeadline == 0 {
		c.WriteDeadline = time.Second
	}
	if c.ReconnectBackoff == 0 {
		c.ReconnectBackoff = 500 * time.Millisecond
	}
	if c.RPCTTL == 0 {
		c.RPCTTL = DefaultRPCTTL
	}
	if c.MaxFrameLength == 0 {
		c.MaxFrameLength = wire.DefaultMaxFrameLength
	}
	if len(c.HMACSalt) == 0 {
		c.HMACSalt = []byte(wire.DefaultHMACSalt)
	}
	return c
}

// connState carries the per-connection identity learned from the
// drive's banner reply; reset on each reconnect attempt.
type connState struct {
	connectionID   int64
	sequenceCounter int64
	clusterVersion  int64
}

func (s *connState) nextSequence() int64 {
	s.sequenceCounter++
	return s.sequenceCounter
}

// signal values sent on the to-agent channel between the foreground
// caller and the producer task.
type signal int

const (
	signalData signal = iota
	signalStop
)

// Connection is a single persistent connection to one Kinetic drive,
// running the supervisor/consumer/producer task triad described in
// spec.md §4.6 for the lifetime of the Connection.
type Connection struct {
	cfg Config

	running atomic.Bool

	mu      sync.Mutex
	waiting []*PendingRpc
	pending *pendingTable

	toAgent *sched.Channel[signal]

	state connState
}

// New constructs a Connection in the stopped state; call Start to begin
// the supervisor loop.
func New(cfg Config) *Connection {
	cfg = cfg.withDefaults()
	return &Connection{
		cfg:     cfg,
		pending: newPendingTable(),
		toAgent: sched.NewChannel[signal](1),
	}
}

// Start launches the supervisor task, which reconnects forever while
// running is true, per spec.md §4.6's "Supervisor (run_agents)".
func (c *Connection) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	sched.Spawn(ctx, "kinetic-supervisor", c.runSupervisor)
}

// Stop clears the running flag, so the supervisor does not reconnect once
// the current connection ends, and signals the producer task to stop.
// Outstanding RPCs are failed with ErrConnectionReset when the supervisor
// tears the connection down.
func (c *Connection) Stop() {
	c.running.Store(false)
	c.toAgent.TrySend(signalStop)
}

func (c *Connection) runSupervisor(ctx context.Context) {
	for c.running.Load() {
		c.state = connState{}
		consumerDone := make(chan struct{})
		ch, err := netio.Connect(c.cfg.Addr, nowMS()+c.cfg.HandshakeDeadline.Milliseconds())
		if err != nil {
			logger.Warn("kinetic: connect failed", "addr", c.cfg.Addr, "err", err)
			c.abortAll(ErrConnectionReset)
			c.sleepBackoff(ctx)
			continue
		}

		go func() {
			defer close(consumerDone)
			c.runConsumer(ctx, ch)
		}()

		select {
		case <-consumerDone:
		case <-ctx.Done():
			_ = ch.Close()
			<-consumerDone
		}

		_ = ch.Close()
		c.abortAll(ErrConnectionReset)

		if !c.running.Load() {
			return
		}
		c.sleepBackoff(ctx)
	}
}

func (c *Connection) sleepBackoff(ctx context.Context) {
	_ = sched.SleepUntil(ctx, nowMS()+c.cfg.ReconnectBackoff.Milliseconds())
}

func (c *Connection) abortAll(err error) {
	for _, p := range c.pending.drainAll() {
		p.signal(err)
	}
	c.mu.Lock()
	stale := c.waiting
	c.waiting = nil
	c.mu.Unlock()
	for _, p := range stale {
		p.signal(err)
	}
}

// runConsumer opens the connection, reads the banner, then loops reading
// frames and dispatching replies, per spec.md §4.6's "Consumer".
func (c *Connection) runConsumer(ctx context.Context, ch *netio.Channel) {
	outcome, err := ch.PollOut(nowMS() + c.cfg.HandshakeDeadline.Milliseconds())
	if err != nil || outcome != netio.OutcomeReady {
		logger.Warn("kinetic: handshake poll failed", "err", err)
		return
	}

	banner, err := wire.ReadFrame(ch, c.cfg.MaxFrameLength, nowMS()+c.cfg.HandshakeDeadline.Milliseconds())
	if err != nil {
		logger.Warn("kinetic: banner read failed", "err", err)
		return
	}
	bannerCmd, err := wire.UnmarshalCommand(bannerMessageCommand(banner))
	if err != nil {
		logger.Warn("kinetic: banner decode failed", "err", err)
		return
	}
	if bannerCmd.Status != nil && bannerCmd.Status.Code != wire.StatusCode_SUCCESS {
		logger.Warn("kinetic: banner status not success", "code", bannerCmd.Status.Code)
		return
	}
	if bannerCmd.Header != nil {
		c.state.connectionID = bannerCmd.Header.ConnectionID
		c.state.clusterVersion = bannerCmd.Header.ClusterVersion
	}

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		c.runProducer(ctx, ch)
	}()

	for {
		frame, err := wire.ReadFrame(ch, c.cfg.MaxFrameLength, nowMS()+c.cfg.ReadDeadline.Milliseconds())
		if err == netio.ErrTimeout {
			continue
		}
		if err != nil {
			break
		}
		msg, err := wire.UnmarshalMessage(frame.MessageBytes)
		if err != nil {
			logger.Warn("kinetic: malformed message", "err", err)
			continue
		}
		cmd, err := wire.UnmarshalCommand(msg.CommandBytes)
		if err != nil || cmd.Header == nil {
			logger.Warn("kinetic: malformed command", "err", err)
			continue
		}
		p, ok := c.pending.popBySequence(cmd.Header.AckSequence)
		if !ok {
			logger.Warn("kinetic: unknown ack_sequence, dropping", "ack_sequence", cmd.Header.AckSequence)
			continue
		}
		p.Exchange.Reply = cmd
		p.Exchange.ReplyValue = frame.ValueBytes
		p.signal(nil)
	}

	c.toAgent.TrySend(signalStop)
	<-producerDone
}

// runProducer drains the waiting queue, sends frames, and sweeps expired
// pending RPCs every second, per spec.md §4.6's "Producer".
func (c *Connection) runProducer(ctx context.Context, ch *netio.Channel) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case sig := <-c.toAgent.Raw():
			if sig == signalStop {
				return
			}
			c.drainWaitingAndSend(ch)
		case <-ticker.C:
			c.sweepDeadlines()
		case <-ctx.Done():
			return
		}
	}
}

func (c *Connection) drainWaitingAndSend(ch *netio.Channel) {
	for {
		c.mu.Lock()
		if len(c.waiting) == 0 {
			c.mu.Unlock()
			return
		}
		p := c.waiting[0]
		c.waiting = c.waiting[1:]
		c.mu.Unlock()

		p.Sequence = c.state.nextSequence()
		p.Exchange.Command.Header.Sequence = p.Sequence
		p.Exchange.Command.Header.ConnectionID = c.state.connectionID
		p.Exchange.Command.Header.ClusterVersion = c.state.clusterVersion
		c.pending.insert(p)

		cmdBytes, err := p.Exchange.Command.Marshal()
		if err != nil {
			c.pending.popBySequence(p.Sequence)
			p.signal(err)
			continue
		}
		msg := wire.NewAuthenticatedMessage(c.cfg.Identity, c.cfg.HMACSalt, cmdBytes)
		msgBytes, err := msg.Marshal()
		if err != nil {
			c.pending.popBySequence(p.Sequence)
			p.signal(err)
			continue
		}

		frame := &wire.Frame{MessageBytes: msgBytes, ValueBytes: p.Exchange.Value}
		if err := wire.WriteFrame(ch, frame, nowMS()+c.cfg.WriteDeadline.Milliseconds()); err != nil {
			c.pending.popBySequence(p.Sequence)
			p.signal(err)
			return
		}
	}
}

func (c *Connection) sweepDeadlines() {
	for _, p := range c.pending.sweepExpired(time.Now()) {
		p.signal(ErrRPCTimeout)
	}
}

// RPC enqueues an Exchange for sending and returns a handle to wait on
// its reply, per spec.md §4.6's "RPC(exchange)".
func (c *Connection) RPC(ex *Exchange) *Sync {
	p := newPendingRpc(ex, c.cfg.RPCTTL)
	c.mu.Lock()
	c.waiting = append(c.waiting, p)
	c.mu.Unlock()
	c.toAgent.TrySend(signalData)
	return &Sync{p: p}
}

func nowMS() int64 { return sched.NowMS() }

// bannerMessageCommand extracts the Command bytes from the banner
// frame's Message without verifying HMAC (the banner precedes any
// negotiated identity).
func bannerMessageCommand(f *wire.Frame) []byte {
	msg, err := wire.UnmarshalMessage(f.MessageBytes)
	if err != nil {
		return nil
	}
	return msg.CommandBytes
}
