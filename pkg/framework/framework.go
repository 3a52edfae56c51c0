// Package framework declares the collaborator interfaces supplied by the
// external packet-testing framework: packet construction, per-port send and
// count primitives, and dataplane capture control. None of it is
// implemented here — the harness core only consumes these interfaces, and a
// concrete test-framework integration (or pkg/localfw, the stub
// cmd/dataplane-harness wires in for local runs) supplies the implementation.
package framework

import (
	"context"
	"net"
	"time"
)

// TCPOpts describes a TCP packet to build. Zero-value fields are filled by
// the builder's own defaults (e.g. a fresh ephemeral source port).
type TCPOpts struct {
	SrcMAC, DstMAC net.HardwareAddr
	SrcIP, DstIP   net.IP
	SrcPort        uint16
	DstPort        uint16
	TTL            uint8
	Payload        []byte
}

// UDPOpts describes a UDP packet to build.
type UDPOpts struct {
	SrcMAC, DstMAC net.HardwareAddr
	SrcIP, DstIP   net.IP
	SrcPort        uint16
	DstPort        uint16
	Payload        []byte
}

// ICMPOpts describes an ICMP echo request to build.
type ICMPOpts struct {
	SrcMAC, DstMAC net.HardwareAddr
	SrcIP, DstIP   net.IP
	Identifier     uint16
	Sequence       uint16
}

// ARPOpts describes an ARP request to build.
type ARPOpts struct {
	SrcMAC  net.HardwareAddr
	SrcIP   net.IP
	DstIP   net.IP
}

// PacketBuilder constructs the wire bytes for the probe families this
// harness relies on. The returned slice is a ready-to-send Ethernet frame.
type PacketBuilder interface {
	BuildTCP(TCPOpts) ([]byte, error)
	BuildUDP(UDPOpts) ([]byte, error)
	BuildICMPEcho(ICMPOpts) ([]byte, error)
	BuildARPRequest(ARPOpts) ([]byte, error)
}

// MatchTemplate names which header fields a match check must ignore when
// comparing a captured reply against an expected probe. The exact semantics
// of each flag belong to the framework; the harness only ever builds and
// passes templates, it never inspects their internals.
type MatchTemplate struct {
	Name              string
	IgnoreEthernet    bool
	IgnoreEthernetSrc bool
	IgnoreIPSrc       bool
	IgnoreIPDst       bool
	IgnoreIPTTL       bool
	IgnoreIPChecksum  bool
	IgnoreIPID        bool
	IgnoreTCPChecksum bool
	IgnoreARPHwSrc    bool
	IgnoreARPHwType   bool
}

// Sender emits a single built packet out a logical port index.
type Sender interface {
	SendPacket(ctx context.Context, port int, frame []byte) error
}

// Counter counts replies matching a template across a set of ports within a
// bounded window.
type Counter interface {
	CountMatchedPackets(ctx context.Context, tmpl MatchTemplate, ports []int, timeout time.Duration) (int, error)
}

// CaptureHandle represents a running dataplane capture.
type CaptureHandle interface {
	// Stop ends the capture and returns the path to the pcap file it wrote.
	Stop(ctx context.Context) (pcapPath string, err error)
}

// Capture starts a filtered dataplane capture.
type Capture interface {
	StartCapture(ctx context.Context, bpfFilter string, timeout time.Duration) (CaptureHandle, error)
}

// ARPResponder manages the lifecycle of the external ARP-responder daemon
// that pre-populates VLAN ARP entries for the synthesized FromT1 sources.
type ARPResponder interface {
	Start(ctx context.Context, seed map[string]map[string]string) error
	Stop(ctx context.Context) error
}

// Framework bundles the full external collaborator surface the harness
// needs. A test-framework integration constructs one and hands it to the
// orchestrator; nothing in this module implements it for production use.
type Framework struct {
	Builder  PacketBuilder
	Sender   Sender
	Counter  Counter
	Capture  Capture
	Responder ARPResponder
}
