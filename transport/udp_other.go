//go:build !linux

// Non-Linux fallback transport: the reference deployment target for this
// protocol is a Linux cluster interconnect (matching the iocp_reactor.go /
// epoll_reactor.go split), so this build emulates non-blocking semantics
// over net.UDPConn with a zero read deadline rather than reimplementing
// raw non-blocking sockets per platform.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/momentics/totem-srp/api"
)

type UDPTransport struct {
	mcastConn *net.UDPConn
	tokenConn *net.UDPConn
	mcastDst  *net.UDPAddr
	nodes     map[api.NodeID]*net.UDPAddr
	closed    bool
}

func New(mcastAddr string, mcastPort, tokenPort uint16) (*UDPTransport, error) {
	group := &net.UDPAddr{IP: net.ParseIP(mcastAddr), Port: int(mcastPort)}
	mcastConn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, fmt.Errorf("transport: listen multicast: %w", err)
	}

	tokenConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(tokenPort)})
	if err != nil {
		mcastConn.Close()
		return nil, fmt.Errorf("transport: listen token: %w", err)
	}

	return &UDPTransport{
		mcastConn: mcastConn,
		tokenConn: tokenConn,
		mcastDst:  group,
		nodes:     make(map[api.NodeID]*net.UDPAddr),
	}, nil
}

func (t *UDPTransport) SetNodeAddr(id api.NodeID, ip net.IP, port uint16) {
	t.nodes[id] = &net.UDPAddr{IP: ip, Port: int(port)}
}

func (t *UDPTransport) conn(kind api.SocketKind) *net.UDPConn {
	if kind == api.SocketMcast {
		return t.mcastConn
	}
	return t.tokenConn
}

// RawFD is not supported on this build and returns 0; Instance.RegisterDescriptors
// skips a 0 descriptor, so neither socket is registered with the reactor.
func (t *UDPTransport) RawFD(kind api.SocketKind) uintptr { return 0 }

func (t *UDPTransport) RecvFrom(kind api.SocketKind, buf []byte) (int, api.NodeID, error) {
	c := t.conn(kind)
	if err := c.SetReadDeadline(time.Now()); err != nil {
		return 0, 0, fmt.Errorf("transport: set read deadline: %w", err)
	}
	n, _, err := c.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, 0, nil
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("transport: recvfrom: %w", err)
	}
	return n, 0, nil
}

func (t *UDPTransport) SendTo(kind api.SocketKind, buf []byte, addr api.NodeID) error {
	c := t.conn(kind)
	var dst *net.UDPAddr
	if kind == api.SocketMcast {
		dst = t.mcastDst
	} else {
		a, ok := t.nodes[addr]
		if !ok {
			return fmt.Errorf("transport: no known address for node %s", addr)
		}
		dst = a
	}
	if _, err := c.WriteToUDP(buf, dst); err != nil {
		return fmt.Errorf("transport: sendto: %w", err)
	}
	return nil
}

func (t *UDPTransport) BindInterface(iface string) error {
	return api.ErrNotSupported
}

func (t *UDPTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err1 := t.mcastConn.Close()
	err2 := t.tokenConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

var _ api.DatagramTransport = (*UDPTransport)(nil)
