package ring

import (
	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

// drainSendQueue implements Multicaster: while the token is held and flow
// control permits, drain the new-message queue (Operational) or the
// retrans-message queue (Recovery), stamping and transmitting each one.
func (r *Instance) drainSendQueue(tok *wire.Token) {
	transmitsAllowed := r.flow.TransmitsAllowed(uint32(tok.Fcc))
	braking := r.flow.Braking(tok.Aru, r.myLastAru, tok.Seq)

	var mcastSent uint32
	for mcastSent < transmitsAllowed && !braking {
		if r.membState == api.StateRecovery {
			item, ok := r.retransQueue.Dequeue()
			if !ok {
				break
			}
			r.transmitStamped(tok, item.Payload, item.Source, api.Guarantee(item.Guarantee))
		} else {
			item, ok := r.newMsgQueue.Dequeue()
			if !ok {
				break
			}
			r.transmitStamped(tok, item.payload, r.self, item.guarantee)
		}
		mcastSent++
	}

	tok.Fcc = uint16(r.flow.NextFcc(uint32(tok.Fcc), mcastSent, 0))
	r.myHighSeqReceived = tok.Seq
	r.myAru = r.updateAru()
	if mcastSent > 0 {
		r.Stats.Incr("stats_mcast_sent", int64(mcastSent))
	}
}

// transmitStamped assigns the next sequence number, buffers the encoded
// message (header, source, and guarantee included, so a later retransmit
// or delivery can recover them without a side channel), and transmits it.
func (r *Instance) transmitStamped(tok *wire.Token, payload []byte, source api.NodeID, g api.Guarantee) {
	tok.Seq++
	msg := wire.McastMessage{
		Seq:       tok.Seq,
		RingID:    r.ringID,
		Source:    source,
		Guarantee: uint32(g),
		Payload:   payload,
	}
	encoded := wire.EncodeMcastMessage(msg)
	if err := r.regularBuf.Insert(msg.Seq, encoded); err != nil {
		r.log.Warn("failed to buffer outbound message", "err", err.Error())
		return
	}
	envelope, err := r.codec.Encrypt(encoded)
	if err != nil {
		r.log.Error("failed to encrypt outbound message", err)
		return
	}
	if err := r.transport.SendTo(api.SocketMcast, envelope, 0); err != nil {
		r.log.Warn("multicast send failed", "err", err.Error())
	}
}

// updateAru recomputes my_aru as the highest contiguous seq held in the
// regular SortedBuffer starting just after the previous aru.
func (r *Instance) updateAru() uint32 {
	aru := r.myAru
	for r.regularBuf.InUse(aru + 1) {
		aru++
	}
	return aru
}

// serviceRetransmits implements RetransmitEngine phase 1: for each rtr_list
// entry belonging to this ring, remulticast the stored datagram if this
// node still has it, up to transmits_allowed remulticasts.
func (r *Instance) serviceRetransmits(tok *wire.Token) {
	transmitsAllowed := r.flow.TransmitsAllowed(uint32(tok.Fcc))
	var remcastSent uint32
	remaining := tok.RtrList[:0]
	for _, item := range tok.RtrList {
		if item.RingID.Equal(r.ringID) && remcastSent < transmitsAllowed {
			if encoded, ok := r.regularBuf.Get(item.Seq); ok {
				envelope, err := r.codec.Encrypt(encoded)
				if err == nil {
					if err := r.transport.SendTo(api.SocketMcast, envelope, 0); err == nil {
						remcastSent++
						continue // drop entry: serviced
					}
				}
			}
		}
		remaining = append(remaining, item)
	}
	tok.RtrList = remaining
	tok.Fcc = uint16(r.flow.NextFcc(uint32(tok.Fcc), 0, remcastSent))
	if remcastSent > 0 {
		r.Stats.Incr("stats_remcasts", int64(remcastSent))
	}
}

// addLocalGaps implements RetransmitEngine phase 2: for each seq in
// (my_aru, my_high_seq_received] this node lacks and that is not already
// queued for retransmit, append (my_ring_id, seq) to the rtr_list up to
// retransmit_entries_max.
func (r *Instance) addLocalGaps(tok *wire.Token) {
	present := make(map[uint32]bool, len(tok.RtrList))
	for _, item := range tok.RtrList {
		if item.RingID.Equal(r.ringID) {
			present[item.Seq] = true
		}
	}
	for seq := r.myAru + 1; seq <= r.myHighSeqReceived; seq++ {
		if uint32(len(tok.RtrList)) >= r.cfg.RetransmitEntriesMax {
			break
		}
		if present[seq] {
			continue
		}
		if !r.regularBuf.InUse(seq) {
			tok.RtrList = append(tok.RtrList, wire.RtrItem{RingID: r.ringID, Seq: seq})
			present[seq] = true
		}
	}
}
