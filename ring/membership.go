package ring

import (
	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/membership"
	"github.com/momentics/totem-srp/wire"
)

// ringIDSeqStep is the amount each membership transition advances
// ring_id.seq by, following the reference implementation's convention of
// reserving a small range of sequence values per transition rather than
// incrementing by one (leaves room for transitional bookkeeping).
const ringIDSeqStep = 4

func (r *Instance) handleMcastMessage(plaintext []byte) {
	msg, _, err := wire.DecodeMcastMessage(plaintext)
	if err != nil {
		r.log.Warn("malformed multicast message, dropping")
		return
	}
	if !msg.RingID.Equal(r.ringID) {
		return // foreign ring, silently dropped
	}
	if !r.isMember(msg.Source) {
		r.enterGather()
		return
	}

	buf := r.regularBuf
	if r.membState == api.StateRecovery {
		buf = r.recoveryBuf
	}
	if err := buf.Insert(msg.Seq, plaintext); err != nil && err != api.ErrAlreadyPresent {
		r.log.Warn("failed to buffer inbound message", "err", err.Error())
		return
	}
	if msg.Seq > r.myHighSeqReceived {
		r.myHighSeqReceived = msg.Seq
	}
	r.myAru = r.updateAru()
	r.deliverContiguous()
}

func (r *Instance) isMember(id api.NodeID) bool {
	for _, m := range r.myNewMembList {
		if m == id {
			return true
		}
	}
	return len(r.myNewMembList) == 0 // before first membership install, accept anyone
}

// enterGather implements the Operational/Commit/Recovery → Gather
// transition: the node broadcasts its current proc_list/failed_list as a
// join message and waits for matching reports from every other member.
func (r *Instance) enterGather() {
	r.resetTokenTimers()
	r.membState = api.StateGather
	r.consensusList = map[api.NodeID]bool{r.self: true}
	if len(r.myProcList) == 0 {
		r.myProcList = append([]api.NodeID{}, r.myMembList...)
	}
	r.broadcastJoin()
	r.sched.Schedule(int64(r.cfg.GatherJoinTime), r.broadcastJoin)
}

func (r *Instance) broadcastJoin() {
	if r.membState != api.StateGather {
		return
	}
	join := wire.MembJoin{
		RingSeq:    r.ringID.Seq,
		ProcList:   r.myProcList,
		FailedList: r.myFailedList,
	}
	encoded := wire.EncodeMembJoin(join)
	envelope, err := r.codec.Encrypt(encoded)
	if err != nil {
		r.log.Error("failed to encrypt join message", err)
		return
	}
	if err := r.transport.SendTo(api.SocketMcast, envelope, 0); err != nil {
		r.log.Warn("failed to broadcast join", "err", err.Error())
	}
}

// handleMembJoin implements the join-message merge semantics.
func (r *Instance) handleMembJoin(plaintext []byte) {
	join, _, err := wire.DecodeMembJoin(plaintext)
	if err != nil {
		r.log.Warn("malformed join message, dropping")
		return
	}

	theirProc := membership.NewSet(join.ProcList...)
	theirFailed := membership.NewSet(join.FailedList...)
	ourProc := membership.NewSet(r.myProcList...)
	ourFailed := membership.NewSet(r.myFailedList...)

	switch {
	case theirProc.Equal(ourProc) && theirFailed.Equal(ourFailed):
		sender := senderOf(join)
		if sender.Valid() {
			r.consensusList[sender] = true
		}
	case theirProc.Subset(ourProc) && theirFailed.Subset(ourFailed):
		// strict subset of our view: nothing new, ignore.
	default:
		sender := senderOf(join)
		if ourFailed.Contains(sender) {
			return
		}
		merged := ourProc.Union(theirProc)
		r.myProcList = merged.Sorted()
		r.myFailedList = ourFailed.Union(theirFailed).Sorted()
		r.enterGather()
		return
	}

	r.maybeFormCommit()
}

// senderOf recovers the originating node from a join message. The wire
// format does not carry an explicit sender field (the datagram source
// address would supply it on a real transport); the lowest NodeID in
// proc_list is used as an approximation, since the transport layer does
// not supply a source address.
func senderOf(join wire.MembJoin) api.NodeID {
	if len(join.ProcList) == 0 {
		return 0
	}
	lowest, _ := membership.Lowest(join.ProcList)
	return lowest
}

// maybeFormCommit checks memb_consensus_agreed() and lowest-member
// election; if both hold, this node originates the CommitToken.
func (r *Instance) maybeFormCommit() {
	eligible := membership.NewSet(r.myProcList...).Difference(membership.NewSet(r.myFailedList...))
	for _, id := range eligible.Sorted() {
		if !r.consensusList[id] {
			return
		}
	}
	lowest, ok := membership.Lowest(eligible.Sorted())
	if !ok || lowest != r.self {
		return
	}

	newRingID := api.RingID{Rep: r.self, Seq: r.ringID.Seq + ringIDSeqStep}
	members := eligible.Sorted()

	commit := wire.CommitToken{
		TokenSeq:  0,
		RingID:    newRingID,
		MembIndex: uint32(len(members) - 1),
		AddrList:  members,
		PerMember: make([]wire.CommitMemb, len(members)),
	}
	r.commitEnter(&commit)
}

// advanceCommitTokenIndex computes the member-list slot this hop owns and
// the slot the token travels to next, advancing MembIndex and TokenSeq in
// place. Every hop — whether or not it also records its own per-member
// entry — recomputes this the same way, so the token always ends up one
// position further around addr_list regardless of which state handler
// moved it.
func advanceCommitTokenIndex(commit *wire.CommitToken) (idxThis, idxNext int) {
	n := len(commit.AddrList)
	idxThis = int(commit.MembIndex+1) % n
	idxNext = (idxThis + 1) % n
	commit.MembIndex = uint32(idxThis)
	commit.TokenSeq++
	return idxThis, idxNext
}

func (r *Instance) sendCommitToken(commit *wire.CommitToken, to api.NodeID) {
	encoded := wire.EncodeMembCommitToken(*commit)
	envelope, err := r.codec.Encrypt(encoded)
	if err != nil {
		r.log.Error("failed to encrypt commit token", err)
		return
	}
	if err := r.transport.SendTo(api.SocketToken, envelope, to); err != nil {
		r.log.Warn("failed to forward commit token", "err", err.Error())
	}
}

// commitEnter implements the Gather → Commit transition: this node (the
// representative originating the token, or any other member receiving it
// for the first time while still in Gather) records its own per-member
// entry and forwards the token one hop further around the proposed ring's
// address list.
func (r *Instance) commitEnter(commit *wire.CommitToken) {
	r.resetTokenTimers()
	if len(commit.AddrList) == 0 {
		return
	}
	idxThis, idxNext := advanceCommitTokenIndex(commit)
	for len(commit.PerMember) < len(commit.AddrList) {
		commit.PerMember = append(commit.PerMember, wire.CommitMemb{})
	}
	commit.PerMember[idxThis] = wire.CommitMemb{
		RingID:        r.ringID,
		Aru:           r.myAru,
		HighDelivered: r.myHighSeqDelivered,
		ReceivedFlag:  r.myReceivedFlag,
	}
	r.sendCommitToken(commit, commit.AddrList[idxNext])
	r.ringID = commit.RingID
	r.membState = api.StateCommit
}

// handleCommitToken dispatches the commit token by this node's current
// membership state, mirroring the three state-dependent passes the token
// makes around the new ring: Gather members record themselves and
// forward (commitEnter); Commit members forward the token on unchanged,
// transitioning themselves to Recovery as they do (recoveryEnter);
// finally, once the token completes its second lap and reaches the
// representative again, the representative originates the first ORF
// token instead of forwarding the commit token any further.
func (r *Instance) handleCommitToken(plaintext []byte) {
	commit, _, err := wire.DecodeMembCommitToken(plaintext)
	if err != nil {
		r.log.Warn("malformed commit token, dropping")
		return
	}

	switch r.membState {
	case api.StateGather:
		r.commitEnter(&commit)
	case api.StateCommit:
		if !commit.RingID.Equal(r.ringID) {
			return // not the ring this node just committed to
		}
		r.recoveryEnter(&commit)
	case api.StateRecovery:
		if r.self == commit.RingID.Rep {
			r.sendInitialToken()
		}
	}
}

// recoveryEnter implements the Commit → Recovery transition: the token is
// forwarded one more hop unchanged (no per-member entry is written on
// this pass), and this node rebuilds its membership/sequencing state from
// the token's already-collected per-member reports.
func (r *Instance) recoveryEnter(commit *wire.CommitToken) {
	if err := r.seqStore.Save(commit.RingID.Seq); err != nil {
		r.log.Error("failed to persist ring seq, cannot safely continue", err)
		return
	}

	oldMemb := membership.NewSet(r.myMembList...)
	newMemb := membership.NewSet(commit.AddrList...)
	r.myTransMembList = oldMemb.Intersect(newMemb).Sorted()
	r.myNewMembList = newMemb.Sorted()
	r.myMembList = newMemb.Sorted()
	r.myDeliverMembList = r.myTransMembList

	var barrier uint32
	for _, m := range commit.PerMember {
		if m.HighDelivered > barrier {
			barrier = m.HighDelivered
		}
	}
	barrier++

	r.myAruSave = r.myAru
	r.myHighSeqReceivedSave = r.myHighSeqReceived
	r.myOldHighSeqDelivered = r.myHighSeqDelivered
	r.myAru = 0
	r.myHighSeqReceived = 0
	r.recoveryBuf.Reinit(0)
	r.myInstallSeq = barrier
	r.ringID = commit.RingID
	r.myTokenSeq = 0
	r.myTokenSeqSeen = false
	r.membState = api.StateRecovery
	r.retransFlagZeroRuns = 0
	r.Stats.Incr("stats_recovery_enter", 1)

	for _, m := range commit.PerMember {
		if !m.ReceivedFlag {
			lo := m.Aru
			if r.myOldHighSeqDelivered > 0 && r.myOldHighSeqDelivered-1 > lo {
				lo = r.myOldHighSeqDelivered - 1
			}
			hi := m.HighDelivered
			if r.myHighSeqReceivedSave < hi {
				hi = r.myHighSeqReceivedSave
			}
			for seq := lo + 1; seq <= hi; seq++ {
				if encoded, ok := r.regularBuf.Get(seq); ok {
					msg, _, decErr := wire.DecodeMcastMessage(encoded)
					if decErr == nil {
						r.retransQueue.Enqueue(msg)
					}
				}
			}
		}
	}

	if len(commit.AddrList) > 0 {
		_, idxNext := advanceCommitTokenIndex(commit)
		r.sendCommitToken(commit, commit.AddrList[idxNext])
	}
}

// evaluateRecoveryBarrier implements the Recovery → Operational
// transition: once the token's retrans_flag has read 0 for two
// consecutive rotations, retrans queues are drained, and both this node's
// and the token's aru equal the barrier, recovery completes.
func (r *Instance) evaluateRecoveryBarrier(tok *wire.Token) {
	if tok.RetransFlag == 0 {
		r.retransFlagZeroRuns++
	} else {
		r.retransFlagZeroRuns = 0
	}

	ready := r.retransFlagZeroRuns >= 2 &&
		r.retransQueue.Len() == 0 &&
		r.myAru == r.myInstallSeq &&
		tok.Aru == r.myInstallSeq

	if !ready {
		return
	}

	r.deliverRecoveryTail()
	r.deliver.ConfChg(api.ConfChg{
		Type:    api.ConfChgTransitional,
		Members: r.myTransMembList,
		Left:    membership.NewSet(r.myMembList...).Difference(membership.NewSet(r.myTransMembList...)).Sorted(),
		RingID:  r.ringID,
	})

	r.mergeRecoveryIntoRegular()

	joined := membership.NewSet(r.myNewMembList...).Difference(membership.NewSet(r.myTransMembList...)).Sorted()
	r.deliver.ConfChg(api.ConfChg{
		Type:    api.ConfChgRegular,
		Members: r.myNewMembList,
		Joined:  joined,
		RingID:  r.ringID,
	})

	r.retransFlagZeroRuns = 0
	r.myFailedList = nil
	r.membState = api.StateOperational
	r.Stats.Incr("stats_operational_enter", 1)
}

// deliverRecoveryTail delivers any remaining old-ring messages up to the
// barrier under the transitional configuration before the membership
// callbacks fire.
func (r *Instance) deliverRecoveryTail() {
	for seq := r.myOldHighSeqDelivered + 1; seq <= r.myInstallSeq; seq++ {
		encoded, ok := r.regularBuf.Get(seq)
		if !ok {
			continue
		}
		msg, swap, err := wire.DecodeMcastMessage(encoded)
		if err != nil {
			continue
		}
		r.deliver.Deliver(msg.Source, msg.Payload, swap)
	}
	r.myHighSeqDelivered = r.myInstallSeq
}

// mergeRecoveryIntoRegular moves the recovery SortedBuffer's contents into
// the regular buffer, restoring normal delivery for the new ring.
func (r *Instance) mergeRecoveryIntoRegular() {
	r.regularBuf.Reinit(0)
	for seq := r.recoveryBuf.HeadSeq(); seq < uint32(r.recoveryBuf.Cap())+r.recoveryBuf.HeadSeq(); seq++ {
		if encoded, ok := r.recoveryBuf.Get(seq); ok {
			r.regularBuf.Insert(seq, encoded)
		}
	}
	r.myAru = r.myHighSeqReceivedSave
	r.myHighSeqReceived = r.myHighSeqReceivedSave
	r.myHighSeqDelivered = r.myInstallSeq
}
