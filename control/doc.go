// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for a ring instance: a
// concurrent-safe counters registry (stats_remcasts, stats_orf_token_loss,
// and similar rotation/retransmit/recovery counters) and a probe registry
// an operator can use to dump membership/queue state without attaching a
// debugger.
package control
