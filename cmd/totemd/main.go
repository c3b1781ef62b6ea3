// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Command totemd runs one node of a Totem single-ring protocol group: it
// wires a ring.Instance to a UDP transport, a poll-mode reactor, and a
// timer-driven event loop, and delivers every totally-ordered payload and
// membership change to stderr for demonstration.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/config"
	"github.com/momentics/totem-srp/log"
	"github.com/momentics/totem-srp/persist"
	"github.com/momentics/totem-srp/reactor"
	"github.com/momentics/totem-srp/ring"
	"github.com/momentics/totem-srp/timer"
	"github.com/momentics/totem-srp/transport"
)

// stdoutDeliverable logs the source and size of every delivered payload,
// and every membership change, through the console logger (stderr);
// a real caller would sit a packing/fragmentation layer here instead.
type stdoutDeliverable struct {
	log *log.Logger
}

func (d *stdoutDeliverable) Deliver(source api.NodeID, payload []byte, endianSwap bool) {
	d.log.Info("delivered", "source", source, "bytes", len(payload), "endian_swap", endianSwap)
}

func (d *stdoutDeliverable) ConfChg(cc api.ConfChg) {
	d.log.Info("confchg", "type", fmt.Sprintf("%v", cc.Type), "members", cc.Members, "ring_id", cc.RingID.String())
}

// peer is one id@host:port entry of the comma-separated --peers flag, used to seed the token
// socket's address table before the ring ever sees a token from that node.
type peer struct {
	id   api.NodeID
	ip   net.IP
	port uint16
}

func parsePeer(spec string) (peer, error) {
	idPart, hostPort, ok := strings.Cut(spec, "@")
	if !ok {
		return peer{}, fmt.Errorf("peer %q: expected id@host:port", spec)
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return peer{}, fmt.Errorf("peer %q: bad node id: %w", spec, err)
	}
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return peer{}, fmt.Errorf("peer %q: %w", spec, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return peer{}, fmt.Errorf("peer %q: bad port: %w", spec, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return peer{}, fmt.Errorf("peer %q: resolve %s: %w", spec, host, err)
		}
		ip = resolved.IP
	}
	return peer{id: api.NodeID(id), ip: ip, port: uint16(port)}, nil
}

func main() {
	var (
		self        = flag.Uint("self", 0, "this node's id (must be nonzero)")
		mcastAddr   = flag.String("mcast-addr", "239.255.1.1", "multicast group address")
		mcastPort   = flag.Uint("mcast-port", 5405, "multicast group port")
		tokenPort   = flag.Uint("token-port", 5406, "unicast token socket port")
		bindIface   = flag.String("iface", "", "network interface to bind both sockets to (optional)")
		privKeyHex  = flag.String("key", "", "hex-encoded shared private key for frame authentication/encryption")
		stateDir    = flag.String("state-dir", ".", "directory holding this node's persisted ring sequence")
		peersFlag   = flag.String("peers", "", "comma-separated id@host:port list of other ring members")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *self == 0 {
		fmt.Fprintln(os.Stderr, "totemd: --self is required and must be nonzero")
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := log.NewConsole(level).With("node", *self)

	cfg := config.Default()
	cfg.McastAddr = *mcastAddr
	cfg.McastPort = uint16(*mcastPort)
	cfg.BindIface = *bindIface
	if *privKeyHex == "" {
		logger.Warn("running with no --key: frame authentication key is all-zero, unsuitable beyond local testing")
		cfg.PrivateKey = make([]byte, 32)
	} else {
		key, err := hex.DecodeString(*privKeyHex)
		if err != nil {
			logger.Error("invalid --key", err)
			os.Exit(1)
		}
		cfg.PrivateKey = key
	}

	tr, err := transport.New(cfg.McastAddr, cfg.McastPort, uint16(*tokenPort))
	if err != nil {
		logger.Error("failed to open transport", err)
		os.Exit(1)
	}
	if cfg.BindIface != "" {
		if err := tr.BindInterface(cfg.BindIface); err != nil {
			logger.Error("failed to bind interface", err)
			os.Exit(1)
		}
	}

	var peerIDs []api.NodeID
	if *peersFlag != "" {
		for _, spec := range strings.Split(*peersFlag, ",") {
			p, err := parsePeer(spec)
			if err != nil {
				logger.Error("bad --peers entry", err)
				os.Exit(1)
			}
			tr.SetNodeAddr(p.id, p.ip, p.port)
			peerIDs = append(peerIDs, p.id)
		}
	}

	react, err := reactor.New()
	if err != nil {
		logger.Error("failed to create reactor", err)
		os.Exit(1)
	}
	defer react.Close()

	sched := timer.New(time.Now().UnixNano())
	seqStore := persist.Open(ringSeqPath(*stateDir, *self))
	deliver := &stdoutDeliverable{log: logger}

	inst := ring.New(cfg, logger, tr, react, sched, seqStore, deliver, api.NodeID(*self))
	if len(peerIDs) > 0 {
		logger.Info("seeded known peers", "peers", peerIDs)
	}
	if err := inst.RegisterDescriptors(); err != nil {
		logger.Error("failed to register descriptors with reactor", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutdown signal received")
		close(stop)
	}()

	logger.Info("ring starting", "ring_id", inst.RingID().String())
	if err := inst.Run(stop, time.Now().UnixNano); err != nil {
		logger.Error("event loop exited with error", err)
	}
	if err := inst.Close(); err != nil {
		logger.Error("error closing instance", err)
	}
}

// ringSeqPath builds a per-node ring-seq file path so co-located nodes in
// the same test directory never clobber each other's persisted sequence.
func ringSeqPath(dir string, self uint) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(self))
	return dir + "/ring-" + hex.EncodeToString(b[:]) + ".seq"
}
