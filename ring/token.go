package ring

import (
	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

const recvBufSize = 1 << 17

// drainMcastSocket repeatedly polls the multicast socket until it reports
// no pending datagram, dispatching each one. Done before acting on a token
// so a token never arrives ahead of the multicasts it implicitly
// acknowledges, avoiding a deadlock where every member waits on a token
// that presupposes messages still sitting unread in the socket buffer.
func (r *Instance) drainMcastSocket() {
	buf := r.recvPool.Acquire(recvBufSize)
	defer r.recvPool.Release(buf)
	for {
		n, _, err := r.transport.RecvFrom(api.SocketMcast, buf)
		if err != nil {
			r.log.Warn("mcast recv error", "err", err.Error())
			return
		}
		if n == 0 {
			return
		}
		r.handleInboundDatagram(buf[:n])
	}
}

func (r *Instance) drainTokenSocket() {
	buf := r.recvPool.Acquire(recvBufSize)
	defer r.recvPool.Release(buf)
	for {
		n, _, err := r.transport.RecvFrom(api.SocketToken, buf)
		if err != nil {
			r.log.Warn("token recv error", "err", err.Error())
			return
		}
		if n == 0 {
			return
		}
		r.handleInboundDatagram(buf[:n])
	}
}

func (r *Instance) handleInboundDatagram(envelope []byte) {
	plaintext, err := r.codec.Decrypt(envelope)
	if err != nil {
		r.log.Warn("frame authentication failed, dropping datagram")
		return
	}

	msgType, _, err := wire.PeekType(plaintext)
	if err != nil {
		r.log.Warn("malformed datagram header, dropping")
		return
	}

	switch msgType {
	case wire.TypeOrfToken:
		r.handleToken(plaintext)
	case wire.TypeMcast:
		r.handleMcastMessage(plaintext)
	case wire.TypeMembJoin:
		r.handleMembJoin(plaintext)
	case wire.TypeMembCommitToken:
		r.handleCommitToken(plaintext)
	default:
		r.log.Warn("unknown message type, dropping")
	}
}

// handleToken implements TokenEngine.Receive.
func (r *Instance) handleToken(plaintext []byte) {
	tok, _, err := wire.DecodeOrfToken(plaintext)
	if err != nil {
		r.log.Warn("malformed token, dropping")
		return
	}

	r.drainMcastSocket()

	if r.membState == api.StateCommit {
		return
	}
	if !tok.RingID.Equal(r.ringID) {
		return // foreign ring
	}
	if r.myTokenSeqSeen && tok.TokenSeq <= r.myTokenSeq {
		// predecessor retransmitted because it never observed our forwarded
		// copy; reset our own timers and drop the duplicate.
		r.resetTokenTimers()
		return
	}
	r.myTokenSeqSeen = true

	r.Callbacks.fireTokenReceived(tok.TokenSeq, func(msg string, err error) { r.log.Warn(msg) })

	if tok.Aru == r.myLastAru && tok.AruAddr == r.myLastAruAddr {
		r.myAruCount++
	} else {
		r.myAruCount = 0
		r.myLastAru = tok.Aru
		r.myLastAruAddr = tok.AruAddr
	}
	if r.myAruCount >= r.cfg.FailToRecvConst && tok.AruAddr == r.self {
		r.declareFailed(tok.AruAddr)
		return
	}

	r.hasToken = true
	r.serviceRetransmits(&tok)
	r.addLocalGaps(&tok)
	r.drainSendQueue(&tok)

	// Lower the group aru to ours when we are behind it, or refresh it when
	// we set it last (or nobody has).
	if r.myAru < tok.Aru || tok.AruAddr == r.self || tok.AruAddr == 0 {
		tok.Aru = r.myAru
		if tok.Aru == tok.Seq {
			tok.AruAddr = 0
		} else {
			tok.AruAddr = r.self
		}
	}

	if tok.Seq == r.myHighSeqReceived {
		r.mySeqUnchanged++
	} else {
		r.mySeqUnchanged = 0
		r.myHighSeqReceived = tok.Seq
	}

	if r.membState == api.StateRecovery {
		r.evaluateRecoveryBarrier(&tok)
	}

	tok.TokenSeq++
	r.myTokenSeq = tok.TokenSeq

	if r.shouldHoldToken() {
		r.hasToken = true
		return
	}
	r.forwardToken(&tok)
}

// shouldHoldToken implements the token-forwarding quiescence optimization:
// a ring representative that has seen no new messages for
// seqno_unchanged_const consecutive rotations holds the token rather than
// forwarding it, so a quiescent ring emits no steady-state traffic.
func (r *Instance) shouldHoldToken() bool {
	if r.self != r.ringID.Rep {
		return false
	}
	return r.mySeqUnchanged >= r.cfg.SeqnoUnchangedConst
}

func (r *Instance) forwardToken(tok *wire.Token) {
	encoded := wire.EncodeOrfToken(*tok)
	envelope, err := r.codec.Encrypt(encoded)
	if err != nil {
		r.log.Error("failed to encrypt outbound token", err)
		return
	}
	r.lastEncodedToken = envelope
	r.hasToken = false
	if err := r.transport.SendTo(api.SocketToken, envelope, r.successor()); err != nil {
		r.log.Warn("failed to forward token", "err", err.Error())
	}
	r.Callbacks.fireTokenSent(tok.TokenSeq, func(msg string, err error) { r.log.Warn(msg) })
	r.armTokenTimers()
}

// sendInitialToken originates the very first ORF token for a newly
// installed ring. Only the ring representative reaches this: once the
// commit token has circulated the new ring twice (gather-to-commit, then
// commit-to-recovery) it comes back around a third time to the
// representative, who is now in Recovery, and that is the trigger to
// bootstrap token circulation.
func (r *Instance) sendInitialToken() {
	tok := wire.Token{
		Seq:         0,
		TokenSeq:    0,
		Aru:         0,
		AruAddr:     r.self,
		RingID:      r.ringID,
		RetransFlag: 1,
	}
	r.forwardToken(&tok)
}

// successor returns the next member in my_memb_list after self, wrapping
// around; the ring is traversed in ascending NodeID order.
func (r *Instance) successor() api.NodeID {
	for i, id := range r.myMembList {
		if id == r.self {
			return r.myMembList[(i+1)%len(r.myMembList)]
		}
	}
	if len(r.myMembList) > 0 {
		return r.myMembList[0]
	}
	return r.self
}

func (r *Instance) armTokenTimers() {
	r.resetTokenTimers()
	r.tokenLossTimer, _ = r.sched.Schedule(int64(r.cfg.TokenTimeout), func() {
		r.log.Warn("token loss detected, entering gather")
		r.Stats.Incr("stats_orf_token_loss", 1)
		r.enterGather()
	})
	r.tokenRetransTimer, _ = r.sched.Schedule(int64(r.cfg.TokenRetransmitTime), r.retransmitLastToken)
}

func (r *Instance) resetTokenTimers() {
	if r.tokenLossTimer != nil {
		r.tokenLossTimer.Cancel()
		r.tokenLossTimer = nil
	}
	if r.tokenRetransTimer != nil {
		r.tokenRetransTimer.Cancel()
		r.tokenRetransTimer = nil
	}
}

func (r *Instance) retransmitLastToken() {
	if r.lastEncodedToken == nil {
		return
	}
	if err := r.transport.SendTo(api.SocketToken, r.lastEncodedToken, r.successor()); err != nil {
		r.log.Warn("token retransmit failed", "err", err.Error())
	}
	r.tokenRetransTimer, _ = r.sched.Schedule(int64(r.cfg.TokenRetransmitTime), r.retransmitLastToken)
}

func (r *Instance) declareFailed(id api.NodeID) {
	r.myFailedList = appendUnique(r.myFailedList, id)
	r.enterGather()
}

func appendUnique(list []api.NodeID, id api.NodeID) []api.NodeID {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
