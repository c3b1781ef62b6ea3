package ring

import (
	"bytes"
	"sync"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/config"
	"github.com/momentics/totem-srp/log"
	"github.com/momentics/totem-srp/persist"
	"github.com/momentics/totem-srp/timer"
	"github.com/rs/zerolog"
)

// fakeTransport records every SendTo call and serves queued RecvFrom
// payloads, standing in for transport.UDPTransport in tests that must not
// touch real sockets.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentDatagram
	inbound map[api.SocketKind][][]byte
}

type sentDatagram struct {
	kind api.SocketKind
	addr api.NodeID
	buf  []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(map[api.SocketKind][][]byte)}
}

func (f *fakeTransport) RawFD(api.SocketKind) uintptr { return 0 }

func (f *fakeTransport) RecvFrom(kind api.SocketKind, buf []byte) (int, api.NodeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.inbound[kind]
	if len(q) == 0 {
		return 0, 0, nil
	}
	next := q[0]
	f.inbound[kind] = q[1:]
	return copy(buf, next), 0, nil
}

func (f *fakeTransport) SendTo(kind api.SocketKind, buf []byte, addr api.NodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte{}, buf...)
	f.sent = append(f.sent, sentDatagram{kind: kind, addr: addr, buf: cp})
	return nil
}

func (f *fakeTransport) BindInterface(string) error { return api.ErrNotSupported }

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) queueInbound(kind api.SocketKind, buf []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound[kind] = append(f.inbound[kind], buf)
}

func (f *fakeTransport) lastSent() (sentDatagram, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentDatagram{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func (f *fakeTransport) sentOfType(kind api.SocketKind) []sentDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentDatagram
	for _, d := range f.sent {
		if d.kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// fakeDeliverable records every delivered payload and confchg in order.
type fakeDeliverable struct {
	mu        sync.Mutex
	delivered []deliveredMsg
	confchgs  []api.ConfChg
}

type deliveredMsg struct {
	source  api.NodeID
	payload []byte
}

func (d *fakeDeliverable) Deliver(source api.NodeID, payload []byte, _ bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, deliveredMsg{source: source, payload: append([]byte{}, payload...)})
}

func (d *fakeDeliverable) ConfChg(cc api.ConfChg) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confchgs = append(d.confchgs, cc)
}

func (d *fakeDeliverable) payloads() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.delivered))
	for i, m := range d.delivered {
		out[i] = m.payload
	}
	return out
}

// newTestInstance builds an Instance wired to fakes plus a real scheduler,
// codec, and file-backed ring-seq store in a temp dir, matching what New would produce for
// a node with no persisted state.
func newTestInstance(t testingTB, self api.NodeID, members []api.NodeID) (*Instance, *fakeTransport, *fakeDeliverable) {
	t.Helper()
	cfg := config.Default()
	cfg.PrivateKey = []byte("test-private-key-totem-srp")

	logger := log.New(&bytes.Buffer{}, zerolog.WarnLevel)
	transport := newFakeTransport()
	sched := timer.New(0)
	seqStore := persist.Open(t.TempDir() + "/ring.seq")
	deliver := &fakeDeliverable{}

	inst := New(cfg, logger, transport, nil, sched, seqStore, deliver, self)
	if len(members) > 0 {
		inst.myMembList = append([]api.NodeID{}, members...)
		inst.myNewMembList = append([]api.NodeID{}, members...)
		inst.myProcList = append([]api.NodeID{}, members...)
	}
	return inst, transport, deliver
}

// testingTB is the subset of *testing.T used by newTestInstance, so this
// file does not need to import "testing" directly (kept minimal to avoid
// pulling testing into non-_test build contexts accidentally).
type testingTB interface {
	Helper()
	TempDir() string
}
