package ring

import (
	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

// deliverContiguous implements DeliveryEngine: walks the regular
// SortedBuffer from high_delivered+1 upward, delivering each contiguous
// occupied slot to the collaborator and advancing high_delivered. It stops
// at the first hole. During Recovery it is a no-op; recovered messages are
// delivered only after the wholesale move to the regular buffer on
// transition to Operational.
func (r *Instance) deliverContiguous() {
	if r.membState != api.StateOperational {
		return
	}
	for {
		next := r.myHighSeqDelivered + 1
		encoded, ok := r.regularBuf.Get(next)
		if !ok {
			return
		}
		msg, swap, err := wire.DecodeMcastMessage(encoded)
		if err != nil {
			r.log.Warn("corrupt buffered message, skipping delivery", "seq", next)
			r.myHighSeqDelivered = next
			continue
		}
		r.deliver.Deliver(msg.Source, msg.Payload, swap)
		r.myHighSeqDelivered = next
	}
}
