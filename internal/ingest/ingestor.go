// Package ingest is the Ingestor component (spec.md §2 row B, §4.2): it
// consumes packet records from the radio driver, classifies by port,
// extracts typed fields, upserts node state, appends bounded packet
// history, and dispatches into the Relay Resolver, Topology Engine, and
// the two schedulers' attempt correlators.
package ingest

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/relay"
	"github.com/loranexus/loranexus/internal/store"
	"github.com/loranexus/loranexus/internal/topology"
)

// LocalNodeID is the synthetic neighbor identity representing the locally
// attached radio, the destination of every directly-heard packet.
const LocalNodeID = "LOCAL_NODE"

// defaultTrackedPorts is spec.md §4.2's default tracked-port set.
var defaultTrackedPorts = map[radio.Port]bool{
	radio.PortText:       true,
	radio.PortPosition:   true,
	radio.PortNodeInfo:   true,
	radio.PortTelemetry:  true,
	radio.PortRouting:    true,
	radio.PortTraceroute: true,
}

// Store is the subset of internal/store's Store the Ingestor depends on.
type Store interface {
	UpsertNode(id string, u store.NodeUpdate, now time.Time) error
	InsertPacket(e store.PacketEntry, maxPerNode int) error
	InsertTraceroute(from, to string, route []string, snrSeq []float64, packetID int64, now time.Time) (int64, error)
	CompleteAttempt(kind store.AttemptKind, target string, c store.AttemptCompletion, now time.Time) (bool, error)
	ListNodes(includeIgnored bool) ([]store.Node, error)
	GetNode(id string) (store.Node, bool, error)
}

// Config tunes per-node retention and the tracked-port set.
type Config struct {
	MaxPacketsPerNode int
	TrackedPorts      map[radio.Port]bool
}

// Ingestor wires the Store, Relay Resolver, and Topology Engine together
// per the 5-step pipeline in spec.md §4.2. Grounded on
// internal/core/state.go's Run loop shape: consume a channel, dispatch by
// message kind, and log failures with plain log.Printf on the hot path
// rather than structured zap fields.
type Ingestor struct {
	store      Store
	topology   *topology.Engine
	driver     radio.Driver
	maxPerNode int
	tracked    map[radio.Port]bool
}

// New builds an Ingestor. A zero Config.MaxPacketsPerNode defaults to 1000
// (spec.md §3's "bounded at N (default 1000)"); a nil TrackedPorts map
// defaults to spec.md §4.2's set.
func New(st Store, topo *topology.Engine, driver radio.Driver, cfg Config) *Ingestor {
	maxPerNode := cfg.MaxPacketsPerNode
	if maxPerNode <= 0 {
		maxPerNode = 1000
	}
	tracked := cfg.TrackedPorts
	if tracked == nil {
		tracked = defaultTrackedPorts
	}
	return &Ingestor{store: st, topology: topo, driver: driver, maxPerNode: maxPerNode, tracked: tracked}
}

// Run consumes packets from the driver until ctx is cancelled.
func (ig *Ingestor) Run(ctx context.Context) {
	packets := ig.driver.Packets()
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			if err := ig.Ingest(pkt); err != nil {
				log.Printf("[INGEST] dropped packet from %s: %v", pkt.FromID, err)
			}
		}
	}
}

// Ingest runs the 5-step pipeline in spec.md §4.2 for one packet record.
// Every error class is handled at this boundary (spec.md §7): the
// Ingestor never surfaces panics or propagates a partial failure back to
// its caller beyond a logged, non-fatal error.
func (ig *Ingestor) Ingest(pkt radio.PacketRecord) error {
	now := pkt.ReceivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	fromID := pkt.FromID
	if fromID == "" {
		if pkt.From == 0 {
			// Malformed packet: missing source identity. Logged and skipped.
			log.Printf("[INGEST] skipped packet with no source identity")
			return nil
		}
		fromID = radio.NodeIDString(pkt.From)
	}

	ex := extract(pkt.Decoded)

	// Step 1: derive node data and upsert.
	update := store.NodeUpdate{
		Num:             pkt.From,
		ShortName:       ex.ShortName,
		LongName:        ex.LongName,
		HardwareModel:   ex.HardwareModel,
		FirmwareVersion: ex.FirmwareVersion,
		Latitude:        ex.Latitude,
		Longitude:       ex.Longitude,
		AltitudeM:       ex.AltitudeM,
		BatteryLevel:    ex.BatteryLevel,
		Voltage:         ex.Voltage,
		IsMQTT:          pkt.ViaMQTT,
	}
	if err := ig.store.UpsertNode(fromID, update, now); err != nil {
		return err
	}

	hopsAway := pkt.HopsAway()
	relayID := ig.resolveRelay(pkt, hopsAway)

	// Step 2: packet history, for tracked ports only.
	var port string
	if pkt.Decoded != nil {
		port = string(pkt.Decoded.Port)
	}
	if port != "" && ig.tracked[radio.Port(port)] {
		raw, _ := json.Marshal(pkt)
		entry := store.PacketEntry{
			NodeID:       fromID,
			ReceivedUTC:  now,
			Port:         port,
			Channel:      pkt.Channel,
			HopStart:     pkt.HopStart,
			HopLimit:     pkt.HopLimit,
			HopsAway:     hopsAway,
			ViaMQTT:      pkt.ViaMQTT,
			RelayNodeID:  relayID,
			RxSNR:        pkt.RxSNR,
			RxRSSI:       pkt.RxRSSI,
			Latitude:     ex.Latitude,
			Longitude:    ex.Longitude,
			AltitudeM:    ex.AltitudeM,
			BatteryLevel: ex.BatteryLevel,
			Voltage:      ex.Voltage,
			ChannelUtil:  ex.ChannelUtil,
			AirUtilTx:    ex.AirUtilTx,
			Temperature:  ex.Temperature,
			Humidity:     ex.Humidity,
			Pressure:     ex.Pressure,
			MessageText:  ex.MessageText,
			RawJSON:      string(raw),
		}
		if err := ig.store.InsertPacket(entry, ig.maxPerNode); err != nil {
			log.Printf("[INGEST] store write failed for %s: %v", fromID, err)
		}
	}

	// Step 3: topology update, source -> local radio.
	if err := ig.topology.Observe(fromID, LocalNodeID, pkt.RxSNR, rssiToFloat(pkt.RxRSSI), hopsAway, now); err != nil {
		log.Printf("[INGEST] topology update failed for %s: %v", fromID, err)
	}

	switch radio.Port(port) {
	case radio.PortTraceroute:
		ig.correlateTraceroute(fromID, ex, now)
	case radio.PortTelemetry:
		ig.correlateTelemetry(fromID, ex, pkt, relayID, hopsAway, now)
	}

	return nil
}

func (ig *Ingestor) resolveRelay(pkt radio.PacketRecord, hopsAway int) string {
	if pkt.RelayNode == nil || hopsAway <= 0 {
		return ""
	}
	partial := *pkt.RelayNode
	var table map[uint32]radio.DriverNodeInfo
	if ig.driver != nil {
		table = ig.driver.NodeTable()
	}
	nodes, err := ig.store.ListNodes(true)
	if err != nil {
		nodes = nil
	}
	if num, ok := relay.Resolve(partial, pkt.From, table, nodes); ok {
		return radio.NodeIDString(num)
	}
	// Unresolved: stored as the decimal string of the 8-bit value, explicitly
	// excluded from views that join on full node identity (non-"!"-prefixed).
	return strconv.Itoa(int(partial))
}

// correlateTraceroute is step 4 of spec.md §4.2: parse the route into full
// identities, insert one traceroute record, call Topology update with
// hop=1 for each consecutive pair, then complete the pending attempt.
func (ig *Ingestor) correlateTraceroute(fromID string, ex extracted, now time.Time) {
	route := make([]string, len(ex.Route))
	for i, num := range ex.Route {
		route[i] = radio.NodeIDString(num)
	}
	if _, err := ig.store.InsertTraceroute(fromID, "", route, ex.SNRTowards, 0, now); err != nil {
		log.Printf("[INGEST] traceroute insert failed for %s: %v", fromID, err)
	}
	for i := 0; i+1 < len(route); i++ {
		var snr *float64
		if i < len(ex.SNRTowards) {
			v := ex.SNRTowards[i]
			snr = &v
		}
		if err := ig.topology.Observe(route[i], route[i+1], snr, nil, 1, now); err != nil {
			log.Printf("[INGEST] topology update failed for traceroute hop %s->%s: %v", route[i], route[i+1], err)
		}
	}
	if _, err := ig.store.CompleteAttempt(store.AttemptTraceroute, fromID, store.AttemptCompletion{}, now); err != nil {
		log.Printf("[INGEST] complete traceroute attempt failed for %s: %v", fromID, err)
	}
}

// correlateTelemetry is step 5 of spec.md §4.2: complete the pending
// telemetry attempt, recording SNR, RSSI, resolved relay, and hops-away
// from the response that closed it.
func (ig *Ingestor) correlateTelemetry(fromID string, ex extracted, pkt radio.PacketRecord, relayID string, hopsAway int, now time.Time) {
	var relayName string
	if relayID != "" && relayID[0] == '!' {
		if n, ok, err := ig.store.GetNode(relayID); err == nil && ok {
			relayName = n.ShortName
		}
	}
	completion := store.AttemptCompletion{
		RxSNR:       pkt.RxSNR,
		RxRSSI:      pkt.RxRSSI,
		RelayNodeID: relayID,
		RelayName:   relayName,
		HopsAway:    &hopsAway,
	}
	if _, err := ig.store.CompleteAttempt(store.AttemptTelemetry, fromID, completion, now); err != nil {
		log.Printf("[INGEST] complete telemetry attempt failed for %s: %v", fromID, err)
	}
}

func rssiToFloat(rssi *int) *float64 {
	if rssi == nil {
		return nil
	}
	v := float64(*rssi)
	return &v
}
