// Package ring implements the Totem ring state machine: token circulation,
// flow-controlled multicast and retransmission, sorted delivery, and the
// gather/commit/recovery/operational membership protocol that together
// give the group Extended Virtual Synchrony guarantees. Every exported
// method on Instance must run on the single event loop goroutine; there is
// no internal locking, matching the single-threaded cooperative model the
// rest of this module is built around.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ring

import (
	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/buffer"
	"github.com/momentics/totem-srp/codec"
	"github.com/momentics/totem-srp/config"
	"github.com/momentics/totem-srp/control"
	"github.com/momentics/totem-srp/flowcontrol"
	"github.com/momentics/totem-srp/log"
	"github.com/momentics/totem-srp/persist"
	"github.com/momentics/totem-srp/pool"
	"github.com/momentics/totem-srp/queue"
	"github.com/momentics/totem-srp/reactor"
	"github.com/momentics/totem-srp/timer"
	"github.com/momentics/totem-srp/wire"
)

const bufferCapacity = 1 << 16 // 65536, power of two per buffer.New's requirement

// pendingSend is one application payload waiting for the token.
type pendingSend struct {
	payload   []byte
	guarantee api.Guarantee
}

// Instance is one node's view of a single ring. Embedding every local
// state variable the membership protocol references keeps Gather/Commit/
// Recovery transitions (membership.go) straightforward: they read and
// write fields directly rather than threading a dozen return values
// through the event loop.
type Instance struct {
	cfg       config.Config
	log       *log.Logger
	transport api.DatagramTransport
	react     reactor.Reactor
	sched     *timer.Scheduler
	seqStore  *persist.RingSeqStore
	codec     *codec.FrameCodec
	deliver   api.Deliverable

	self   api.NodeID
	ringID api.RingID

	membState api.MembState

	regularBuf  *buffer.SortedBuffer
	recoveryBuf *buffer.SortedBuffer

	newMsgQueue  *queue.FifoQueue[pendingSend]
	retransQueue *queue.FifoQueue[wire.McastMessage]

	flow *flowcontrol.FlowControl

	// Per-ring local sequencing and retransmission state.
	myAru                 uint32
	myHighSeqReceived      uint32
	myHighSeqDelivered     uint32
	myLastAru              uint32
	myLastAruAddr          api.NodeID
	myAruCount             uint32
	myTokenSeq             uint32
	myTokenSeqSeen         bool
	mySeqUnchanged         uint32
	mySetRetransFlag       bool
	myRetransFlagCount     uint32
	myRotationCounter      uint32
	myInstallSeq           uint32
	myReceivedFlag         bool
	myAruSave              uint32
	myHighSeqReceivedSave  uint32
	myOldHighSeqDelivered  uint32

	// Membership state.
	myProcList        []api.NodeID
	myFailedList      []api.NodeID
	myNewMembList     []api.NodeID
	myTransMembList   []api.NodeID
	myMembList        []api.NodeID
	myDeliverMembList []api.NodeID
	consensusList     map[api.NodeID]bool
	membCommitSet     map[api.NodeID]wire.CommitMemb

	rtrList []wire.RtrItem

	tokenLossTimer      api.Cancelable
	tokenRetransTimer   api.Cancelable
	retransFlagZeroRuns int

	hasToken        bool
	lastEncodedToken []byte

	Callbacks CallbackRegistry

	// Stats and Probes expose runtime introspection an operator can read
	// without attaching a debugger: rotation/retransmit/recovery counters
	// and an on-demand membership/sequencing state dump.
	Stats  *control.MetricsRegistry
	Probes *control.DebugProbes

	recvPool api.BytePool

	closed bool
}

// New builds an Instance for self on the ring (self, persisted seq), wiring every collaborator
// this ring owns. The caller is responsible for registering the
// transport's descriptors with react before running the event loop
// (see RegisterDescriptors).
func New(
	cfg config.Config,
	logger *log.Logger,
	transport api.DatagramTransport,
	react reactor.Reactor,
	sched *timer.Scheduler,
	seqStore *persist.RingSeqStore,
	deliver api.Deliverable,
	self api.NodeID,
) *Instance {
	persistedSeq, err := seqStore.Load()
	if err != nil {
		logger.Error("failed to load persisted ring seq, starting from 0", err)
		persistedSeq = 0
	}

	inst := &Instance{
		cfg:       cfg,
		log:       logger,
		transport: transport,
		react:     react,
		sched:     sched,
		seqStore:  seqStore,
		codec:     codec.New(cfg.PrivateKey),
		deliver:   deliver,
		self:      self,
		ringID:    api.RingID{Rep: self, Seq: persistedSeq},
		membState: api.StateGather,

		regularBuf:  buffer.New(bufferCapacity),
		recoveryBuf: buffer.New(bufferCapacity),

		newMsgQueue:  queue.NewFifoQueue[pendingSend](1024),
		retransQueue: queue.NewFifoQueue[wire.McastMessage](1024),

		flow: flowcontrol.New(cfg.Window, cfg.MissingMcastWindow),

		myProcList:    []api.NodeID{self},
		myMembList:    []api.NodeID{self},
		consensusList: make(map[api.NodeID]bool),
		membCommitSet: make(map[api.NodeID]wire.CommitMemb),

		Stats:  control.NewMetricsRegistry(),
		Probes: control.NewDebugProbes(),

		recvPool: pool.NewBytePool(4, recvBufSize),
	}
	inst.Probes.RegisterProbe("ring", inst.dumpState)
	return inst
}

// dumpState is the "ring" debug probe: a point-in-time snapshot of the
// membership and sequencing state, for operators inspecting a stuck or
// misbehaving node without a debugger attached.
func (r *Instance) dumpState() any {
	return map[string]any{
		"memb_state":            r.membState.String(),
		"ring_id":                r.ringID.String(),
		"self":                  r.self,
		"my_aru":                r.myAru,
		"my_high_seq_received":  r.myHighSeqReceived,
		"my_high_seq_delivered": r.myHighSeqDelivered,
		"my_token_seq":          r.myTokenSeq,
		"my_proc_list":          r.myProcList,
		"my_failed_list":        r.myFailedList,
		"my_memb_list":          r.myMembList,
		"has_token":             r.hasToken,
	}
}

// RegisterDescriptors registers the transport's two sockets with the
// reactor, dispatching readable events back into the instance.
func (r *Instance) RegisterDescriptors() error {
	mcastFD := r.transport.RawFD(api.SocketMcast)
	tokenFD := r.transport.RawFD(api.SocketToken)
	if mcastFD != 0 {
		if err := r.react.Register(mcastFD, reactor.EventRead, func(uintptr, reactor.FDEventType) {
			r.drainMcastSocket()
		}); err != nil {
			return err
		}
	}
	if tokenFD != 0 {
		if err := r.react.Register(tokenFD, reactor.EventRead, func(uintptr, reactor.FDEventType) {
			r.drainTokenSocket()
		}); err != nil {
			return err
		}
	}
	return nil
}

// Mcast enqueues payload for transmission once this node holds the token.
// It returns api.ErrSendQueueFull if the pending-send queue is already at
// capacity, matching the documented can_send backpressure contract.
func (r *Instance) Mcast(payload []byte, guarantee api.Guarantee) error {
	if !r.newMsgQueue.Enqueue(pendingSend{payload: payload, guarantee: guarantee}) {
		return api.ErrSendQueueFull
	}
	return nil
}

// CanSend reports whether the pending-send queue has room for one more
// message, the public backpressure query collaborators poll before
// calling Mcast.
func (r *Instance) CanSend() bool {
	return r.newMsgQueue.Len() < r.newMsgQueue.Cap()
}

// MembershipState exposes the current phase, for DumpState/metrics.
func (r *Instance) MembershipState() api.MembState { return r.membState }

// RingID exposes the current ring identifier.
func (r *Instance) RingID() api.RingID { return r.ringID }

// Close tears down timers and the transport.
func (r *Instance) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.tokenLossTimer != nil {
		r.tokenLossTimer.Cancel()
	}
	if r.tokenRetransTimer != nil {
		r.tokenRetransTimer.Cancel()
	}
	return r.transport.Close()
}
