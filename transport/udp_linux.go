//go:build linux

// Package transport implements the non-blocking unreliable-datagram
// channel a ring instance sends and receives frames on, built on raw
// non-blocking UDP sockets.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/totem-srp/api"
)

// nodeAddrs maps a NodeID to its unicast token-socket address. It is
// populated only through SetNodeAddr (cmd/totemd seeds it from --peers);
// the multicast socket needs no such lookup.
type nodeAddrs struct {
	addrs map[api.NodeID]unix.SockaddrInet4
}

// UDPTransport implements api.DatagramTransport with two non-blocking UDP
// sockets: one joined to the multicast group, one bound for unicast
// point-to-point token passing.
type UDPTransport struct {
	mcastFd  int
	tokenFd  int
	mcastDst unix.SockaddrInet4
	nodes    nodeAddrs
	closed   bool
}

// New opens the multicast and token sockets, joins mcastAddr:mcastPort on
// the multicast socket, and binds the token socket to tokenPort on every
// interface.
func New(mcastAddr string, mcastPort, tokenPort uint16) (*UDPTransport, error) {
	mcastFd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("transport: mcast socket: %w", err)
	}
	if err := unix.SetsockoptInt(mcastFd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(mcastFd)
		return nil, fmt.Errorf("transport: mcast SO_REUSEADDR: %w", err)
	}

	ip := net.ParseIP(mcastAddr).To4()
	if ip == nil {
		unix.Close(mcastFd)
		return nil, fmt.Errorf("transport: invalid multicast address %q", mcastAddr)
	}
	var ipArr [4]byte
	copy(ipArr[:], ip)

	bindAddr := unix.SockaddrInet4{Port: int(mcastPort)}
	if err := unix.Bind(mcastFd, &bindAddr); err != nil {
		unix.Close(mcastFd)
		return nil, fmt.Errorf("transport: mcast bind: %w", err)
	}

	mreq := &unix.IPMreq{Multiaddr: ipArr}
	if err := unix.SetsockoptIPMreq(mcastFd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
		unix.Close(mcastFd)
		return nil, fmt.Errorf("transport: join multicast group: %w", err)
	}

	tokenFd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, unix.IPPROTO_UDP)
	if err != nil {
		unix.Close(mcastFd)
		return nil, fmt.Errorf("transport: token socket: %w", err)
	}
	if err := unix.Bind(tokenFd, &unix.SockaddrInet4{Port: int(tokenPort)}); err != nil {
		unix.Close(mcastFd)
		unix.Close(tokenFd)
		return nil, fmt.Errorf("transport: token bind: %w", err)
	}

	return &UDPTransport{
		mcastFd:  mcastFd,
		tokenFd:  tokenFd,
		mcastDst: unix.SockaddrInet4{Port: int(mcastPort), Addr: ipArr},
		nodes:    nodeAddrs{addrs: make(map[api.NodeID]unix.SockaddrInet4)},
	}, nil
}

// SetNodeAddr records the unicast token-socket address for a member, used
// by SendTo(SocketToken, ...) to resolve a NodeID to a wire address.
func (t *UDPTransport) SetNodeAddr(id api.NodeID, ip net.IP, port uint16) {
	var ipArr [4]byte
	copy(ipArr[:], ip.To4())
	t.nodes.addrs[id] = unix.SockaddrInet4{Port: int(port), Addr: ipArr}
}

func (t *UDPTransport) fd(kind api.SocketKind) int {
	if kind == api.SocketMcast {
		return t.mcastFd
	}
	return t.tokenFd
}

func (t *UDPTransport) RawFD(kind api.SocketKind) uintptr {
	return uintptr(t.fd(kind))
}

// RecvFrom reads one pending datagram. EAGAIN/EWOULDBLOCK is reported as
// (0, 0, nil): no datagram was pending, not a failure.
func (t *UDPTransport) RecvFrom(kind api.SocketKind, buf []byte) (int, api.NodeID, error) {
	n, _, err := unix.Recvfrom(t.fd(kind), buf, unix.MSG_DONTWAIT)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("transport: recvfrom: %w", err)
	}
	return n, 0, nil
}

// SendTo writes buf to the multicast group (SocketMcast, addr ignored) or
// to the unicast address registered for addr (SocketToken).
func (t *UDPTransport) SendTo(kind api.SocketKind, buf []byte, addr api.NodeID) error {
	var dst unix.Sockaddr
	if kind == api.SocketMcast {
		d := t.mcastDst
		dst = &d
	} else {
		sa, ok := t.nodes.addrs[addr]
		if !ok {
			return fmt.Errorf("transport: no known address for node %s", addr)
		}
		dst = &sa
	}
	if err := unix.Sendto(t.fd(kind), buf, unix.MSG_DONTWAIT, dst); err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil // transient: dropped, recovered by retransmission
		}
		return fmt.Errorf("transport: sendto: %w", err)
	}
	return nil
}

// BindInterface binds both sockets to iface, so the ring only sends and
// receives on one network path (relevant on multi-homed cluster nodes).
func (t *UDPTransport) BindInterface(iface string) error {
	if err := unix.BindToDevice(t.mcastFd, iface); err != nil {
		return fmt.Errorf("transport: bind mcast to %s: %w", iface, err)
	}
	if err := unix.BindToDevice(t.tokenFd, iface); err != nil {
		return fmt.Errorf("transport: bind token to %s: %w", iface, err)
	}
	return nil
}

func (t *UDPTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err1 := unix.Close(t.mcastFd)
	err2 := unix.Close(t.tokenFd)
	if err1 != nil {
		return err1
	}
	return err2
}

var _ api.DatagramTransport = (*UDPTransport)(nil)
