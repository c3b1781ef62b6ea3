package ring

import (
	"time"

	"github.com/momentics/totem-srp/api"
)

// Run drives the single event loop until stop is closed. Each iteration:
// advances the scheduler's clock, fires due timers, sizes the reactor's
// poll timeout to the next deadline (or a bounded default when nothing is
// armed), and dispatches any ready socket callbacks. This is the loop's
// one suspension point (Poll); everything else runs to completion
// synchronously, matching the single-threaded cooperative model.
func (r *Instance) Run(stop <-chan struct{}, clock func() int64) error {
	const maxPollMs = 1000

	if r.membState == api.StateGather {
		r.enterGather()
	}

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		r.sched.SetNow(clock())
		r.sched.Poll()

		timeoutMs := maxPollMs
		if deadline, ok := r.sched.NextDeadline(); ok {
			if remaining := (deadline - r.sched.Now()) / int64(time.Millisecond); remaining < int64(maxPollMs) {
				if remaining < 0 {
					remaining = 0
				}
				timeoutMs = int(remaining)
			}
		}

		if err := r.react.Poll(timeoutMs); err != nil {
			return err
		}
	}
}
