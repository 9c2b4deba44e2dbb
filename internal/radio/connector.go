package radio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// wireFrame is the newline-delimited JSON packet frame a companion process
// (e.g. a meshtastic --host bridge) streams over the TCP connection. One
// frame per received packet; decoding Meshtastic's own protobuf wire format
// is the companion process's job, not this repo's (spec.md §1 Out of scope).
type wireFrame struct {
	ID        uint32  `json:"id"`
	From      uint32  `json:"from"`
	To        uint32  `json:"to"`
	Channel   int     `json:"channel"`
	HopStart  int     `json:"hop_start"`
	HopLimit  int     `json:"hop_limit"`
	RxSNR     *float64 `json:"rx_snr"`
	RxRSSI    *int     `json:"rx_rssi"`
	ViaMQTT   bool     `json:"via_mqtt"`
	RelayNode *uint8   `json:"relay_node"`

	Port       string               `json:"port"`
	Position   *wirePosition        `json:"position,omitempty"`
	NodeInfo   *wireNodeInfo        `json:"node_info,omitempty"`
	Telemetry  *wireTelemetry       `json:"telemetry,omitempty"`
	Text       *wireText            `json:"text,omitempty"`
	Traceroute *wireTracerouteFrame `json:"traceroute,omitempty"`
}

type wirePosition struct {
	LatitudeI  *int32   `json:"latitude_i,omitempty"`
	LongitudeI *int32   `json:"longitude_i,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	AltitudeM  *int32   `json:"altitude,omitempty"`
}

type wireNodeInfo struct {
	ShortName       string `json:"short_name"`
	LongName        string `json:"long_name"`
	HardwareModel   string `json:"hw_model"`
	Role            string `json:"role"`
	FirmwareVersion string `json:"firmware_version"`
}

type wireTelemetry struct {
	BatteryLevel *int32   `json:"battery_level,omitempty"`
	Voltage      *float64 `json:"voltage,omitempty"`
	ChannelUtil  *float64 `json:"channel_utilization,omitempty"`
	AirUtilTx    *float64 `json:"air_util_tx,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Humidity     *float64 `json:"relative_humidity,omitempty"`
	Pressure     *float64 `json:"barometric_pressure,omitempty"`
}

type wireText struct {
	Text string `json:"text"`
}

type wireTracerouteFrame struct {
	Route      []uint32  `json:"route"`
	SNRTowards []float64 `json:"snr_towards"`
}

func (f wireFrame) toPacketRecord() PacketRecord {
	pr := PacketRecord{
		ID: f.ID, From: f.From, To: f.To, Channel: f.Channel,
		HopStart: f.HopStart, HopLimit: f.HopLimit,
		RxSNR: f.RxSNR, RxRSSI: f.RxRSSI, ViaMQTT: f.ViaMQTT,
		RelayNode: f.RelayNode, ReceivedAt: time.Now().UTC(),
	}
	if f.From != 0 {
		pr.FromID = NodeIDString(f.From)
	}
	if f.To != 0 {
		pr.ToID = NodeIDString(f.To)
	}
	d := &DecodedPayload{Port: Port(f.Port)}
	switch d.Port {
	case PortPosition:
		if f.Position != nil {
			d.Position = &PositionPayload{
				LatitudeI: f.Position.LatitudeI, LongitudeI: f.Position.LongitudeI,
				Latitude: f.Position.Latitude, Longitude: f.Position.Longitude,
				AltitudeM: f.Position.AltitudeM,
			}
		}
	case PortNodeInfo:
		if f.NodeInfo != nil {
			d.NodeInfo = &NodeInfoPayload{
				ShortName: f.NodeInfo.ShortName, LongName: f.NodeInfo.LongName,
				HardwareModel: f.NodeInfo.HardwareModel, Role: f.NodeInfo.Role,
				FirmwareVersion: f.NodeInfo.FirmwareVersion,
			}
		}
	case PortTelemetry:
		if f.Telemetry != nil {
			d.Telemetry = &TelemetryPayload{
				BatteryLevel: f.Telemetry.BatteryLevel, Voltage: f.Telemetry.Voltage,
				ChannelUtil: f.Telemetry.ChannelUtil, AirUtilTx: f.Telemetry.AirUtilTx,
				Temperature: f.Telemetry.Temperature, Humidity: f.Telemetry.Humidity,
				Pressure: f.Telemetry.Pressure,
			}
		}
	case PortText:
		if f.Text != nil {
			d.Text = &TextPayload{Text: f.Text.Text}
		}
	case PortTraceroute:
		if f.Traceroute != nil {
			d.Traceroute = &TraceroutePayload{Route: f.Traceroute.Route, SNRTowards: f.Traceroute.SNRTowards}
		}
	}
	pr.Decoded = d
	return pr
}

// ConnectionStatus is one connect/disconnect transition, mirroring
// internal/ami/connector.go's ConnectionStatus.
type ConnectionStatus struct {
	Connected bool
	Timestamp time.Time
	Error     error
}

// Connector is the one concrete radio.Driver this repo ships: a TCP client
// dialing a local companion process and reading newline-delimited JSON
// packet frames. Reconnect-with-backoff loop shape grounded directly on
// internal/ami/connector.go's Start/loop/connectAndServe.
type Connector struct {
	host     string
	port     int
	retryMin time.Duration
	retryMax time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	running   bool
	connected bool
	conn      net.Conn

	out    chan PacketRecord
	status chan ConnectionStatus
	table  *NodeTable
}

// NewConnector builds a connector (not started yet).
func NewConnector(host string, port int, retryMin, retryMax time.Duration, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		host: host, port: port, retryMin: retryMin, retryMax: retryMax, logger: logger,
		out: make(chan PacketRecord, 64), status: make(chan ConnectionStatus, 4),
		table: NewNodeTable(),
	}
}

// Packets implements radio.Driver.
func (c *Connector) Packets() <-chan PacketRecord { return c.out }

// StatusChan returns connect/disconnect transitions.
func (c *Connector) StatusChan() <-chan ConnectionStatus { return c.status }

// IsConnected implements radio.Driver.
func (c *Connector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// NodeTable implements radio.Driver.
func (c *Connector) NodeTable() map[uint32]DriverNodeInfo { return c.table.Snapshot() }

// Start launches the connection management loop.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("radio: connector already running")
	}
	c.running = true
	c.mu.Unlock()
	go c.loop(ctx)
	return nil
}

func (c *Connector) loop(ctx context.Context) {
	backoff := c.retryMin
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		attempt++
		if attempt == 1 {
			c.logger.Info("connecting", zap.String("addr", c.addr()))
		} else {
			c.logger.Info("reconnecting", zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
		}

		if err := c.connectAndServe(ctx); err != nil {
			c.logger.Warn("connection failed", zap.Error(err))
			c.broadcastStatus(false, err)
		} else {
			c.logger.Info("connection closed")
			c.broadcastStatus(false, nil)
			attempt = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			if attempt == 0 {
				backoff = c.retryMin
				if backoff <= 0 {
					backoff = 5 * time.Second
				}
				continue
			}
			backoff *= 2
			if c.retryMax > 0 && backoff > c.retryMax {
				backoff = c.retryMax
			}
		}
	}
}

func (c *Connector) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *Connector) connectAndServe(ctx context.Context) error {
	conn, err := net.DialTimeout("tcp", c.addr(), 5*time.Second)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	c.logger.Info("connected", zap.String("addr", c.addr()))
	c.broadcastStatus(true, nil)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame wireFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			c.logger.Warn("malformed packet frame, skipping", zap.Error(err))
			continue
		}
		pr := frame.toPacketRecord()
		c.observe(pr)
		select {
		case c.out <- pr:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func (c *Connector) observe(pr PacketRecord) {
	if pr.From == 0 {
		return
	}
	snr := 0.0
	if pr.RxSNR != nil {
		snr = *pr.RxSNR
	}
	c.table.Heard(pr.From, snr, pr.ReceivedAt)
	if pr.Decoded != nil && pr.Decoded.Port == PortNodeInfo && pr.Decoded.NodeInfo != nil {
		c.table.Observe(pr.From, pr.Decoded.NodeInfo.ShortName, pr.Decoded.NodeInfo.LongName, pr.ReceivedAt)
	}
}

// SendTraceroute implements radio.Driver by writing a request frame to the
// companion process. wantResponse mirrors the protocol's want_response flag.
func (c *Connector) SendTraceroute(destNum uint32, hopLimit int, wantResponse bool) error {
	return c.sendRequest(map[string]any{
		"action": "traceroute", "dest": destNum, "hop_limit": hopLimit, "want_response": wantResponse,
	})
}

// SendTelemetryRequest implements radio.Driver.
func (c *Connector) SendTelemetryRequest(destNum uint32, wantResponse bool) error {
	return c.sendRequest(map[string]any{
		"action": "telemetry", "dest": destNum, "want_response": wantResponse,
	})
}

// SendText emits a text message toward destNum. Not part of radio.Driver
// (spec.md §6 only names the probe sends on that interface); exposed as an
// optional capability the HTTP send-text route type-asserts for.
func (c *Connector) SendText(destNum uint32, text string) error {
	return c.sendRequest(map[string]any{
		"action": "text", "dest": destNum, "text": text,
	})
}

func (c *Connector) sendRequest(payload map[string]any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("radio: not connected")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = conn.Write(b)
	return err
}

func (c *Connector) broadcastStatus(connected bool, err error) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
	select {
	case c.status <- ConnectionStatus{Connected: connected, Timestamp: time.Now(), Error: err}:
	default:
	}
}
