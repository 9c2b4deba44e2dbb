// Package radio defines the boundary between the core and the physical mesh
// radio: the packet records the core consumes, the probes it can emit, and the
// driver's own in-memory node table. Decoding wire frames into PacketRecord
// values is the radio driver's job, not the core's.
package radio

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Port identifies the decoded payload variant carried by a packet, mirroring
// the Meshtastic portnum enum values the spec's consumed packet record names.
type Port string

const (
	PortText       Port = "TEXT_MESSAGE_APP"
	PortPosition   Port = "POSITION_APP"
	PortNodeInfo   Port = "NODEINFO_APP"
	PortTelemetry  Port = "TELEMETRY_APP"
	PortRouting    Port = "ROUTING_APP"
	PortTraceroute Port = "TRACEROUTE_APP"
)

// NodeIDString renders a 32-bit node number as the canonical "!hhhhhhhh" form.
func NodeIDString(num uint32) string {
	return fmt.Sprintf("!%08x", num)
}

// ParseNodeID parses the canonical "!hhhhhhhh" form back to a 32-bit number.
func ParseNodeID(id string) (uint32, bool) {
	if !strings.HasPrefix(id, "!") || len(id) != 9 {
		return 0, false
	}
	n, err := strconv.ParseUint(id[1:], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// PositionPayload carries a position report. Source radios emit either
// integer-scaled (1e7) or float-degree lat/lon; normalize to decimal degrees
// at extraction time (see internal/ingest/extract.go).
type PositionPayload struct {
	LatitudeI  *int32   // integer-scaled degrees * 1e7, if carried this way
	LongitudeI *int32   // integer-scaled degrees * 1e7, if carried this way
	Latitude   *float64 // decimal degrees, if carried this way
	Longitude  *float64 // decimal degrees, if carried this way
	AltitudeM  *int32   // meters above sea level
}

// NodeInfoPayload carries operator-facing identity for a node.
type NodeInfoPayload struct {
	ShortName       string
	LongName        string
	HardwareModel   string
	Role            string
	FirmwareVersion string
}

// TelemetryPayload carries device and/or environment metrics. Fields are
// pointers so "not present on this packet" is distinguishable from zero.
type TelemetryPayload struct {
	BatteryLevel *int32
	Voltage      *float64
	ChannelUtil  *float64
	AirUtilTx    *float64
	Temperature  *float64
	Humidity     *float64
	Pressure     *float64
}

// TextPayload carries a plain-text message body.
type TextPayload struct {
	Text string
}

// TraceroutePayload carries a route-discovery response: node numbers of every
// hop in the order travelled, and optionally the SNR observed towards each
// successive hop.
type TraceroutePayload struct {
	Route      []uint32
	SNRTowards []float64
}

// DecodedPayload is a tagged union over the packet sub-record variants. Only
// the field matching Port is populated; the extractor per variant lives in
// internal/ingest/extract.go per the tagged-union-over-dictionary-probing
// design note.
type DecodedPayload struct {
	Port        Port
	Position    *PositionPayload
	NodeInfo    *NodeInfoPayload
	Telemetry   *TelemetryPayload
	Text        *TextPayload
	Traceroute  *TraceroutePayload
}

// PacketRecord is the structured record the driver delivers to the core for
// every received packet, matching spec.md §6's "consumed packet record".
type PacketRecord struct {
	ID         uint32
	From       uint32
	To         uint32
	FromID     string // canonical "!hhhhhhhh", derived from From if absent
	ToID       string
	Channel    int
	HopStart   int
	HopLimit   int
	RxSNR      *float64
	RxRSSI     *int
	ViaMQTT    bool
	RelayNode  *uint8 // low-order byte of the relaying node's number, if carried
	Decoded    *DecodedPayload
	ReceivedAt time.Time
}

// HopsAway returns hopStart - hopLimit, clamped at zero; 0 means the packet
// was received from the source directly.
func (p PacketRecord) HopsAway() int {
	h := p.HopStart - p.HopLimit
	if h < 0 {
		return 0
	}
	return h
}

// DriverNodeInfo is one entry in the driver's own in-memory node table —
// the primary candidate source for relay resolution (spec.md §4.3).
type DriverNodeInfo struct {
	Num        uint32
	ID         string
	ShortName  string
	LongName   string
	SNR        float64
	LastHeard  time.Time
}

// Driver is the narrow interface the core depends on. The physical decode of
// wire frames into PacketRecord values, and the transport used to reach the
// radio, are both the driver's concern — out of the core's scope per
// spec.md §1.
type Driver interface {
	// Packets returns the channel of packet records delivered in receipt order.
	Packets() <-chan PacketRecord
	// SendTraceroute emits a route-discovery request toward destNum.
	SendTraceroute(destNum uint32, hopLimit int, wantResponse bool) error
	// SendTelemetryRequest emits a telemetry request toward destNum.
	SendTelemetryRequest(destNum uint32, wantResponse bool) error
	// NodeTable returns a snapshot of the driver's own in-memory node cache.
	NodeTable() map[uint32]DriverNodeInfo
	// IsConnected reports whether the driver currently has a live link to the radio.
	IsConnected() bool
}
