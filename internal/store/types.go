package store

import "time"

// Node is one tracked mesh node (spec.md §3 Data Model).
type Node struct {
	ID                string // canonical "!hhhhhhhh"
	Num               uint32
	ShortName         string
	LongName          string
	HardwareModel     string
	FirmwareVersion   string
	Latitude          *float64
	Longitude         *float64
	AltitudeM         *int32
	BatteryLevel      *int32
	Voltage           *float64
	IsCharging        bool
	IsPowered         bool
	FirstSeenUTC      time.Time
	LastSeenUTC       time.Time
	TotalPackets      int64
	IsMQTT            bool
	IsIgnored         bool
	IsAirplane        bool
	LastNameUpdateUTC time.Time
}

// NodeUpdate carries the fields a packet can refresh on upsert. Pointer
// fields left nil are omitted from the refresh, per spec.md §4.1's
// "refresh always-fields when supplied" contract.
type NodeUpdate struct {
	Num             uint32
	ShortName       *string
	LongName        *string
	HardwareModel   *string
	FirmwareVersion *string
	Latitude        *float64
	Longitude       *float64
	AltitudeM       *int32
	BatteryLevel    *int32
	Voltage         *float64
	IsCharging      *bool
	IsPowered       *bool
	IsMQTT          bool
}

// PacketEntry is one packet_history row (spec.md §3).
type PacketEntry struct {
	ID           int64
	NodeID       string
	ReceivedUTC  time.Time
	Port         string
	Channel      int
	HopStart     int
	HopLimit     int
	HopsAway     int
	ViaMQTT      bool
	RelayNodeID  string // "!hhhhhhhh" if resolved, decimal string if unresolved
	RxSNR        *float64
	RxRSSI       *int
	Latitude     *float64
	Longitude    *float64
	AltitudeM    *int32
	BatteryLevel *int32
	Voltage      *float64
	ChannelUtil  *float64
	AirUtilTx    *float64
	Temperature  *float64
	Humidity     *float64
	Pressure     *float64
	MessageText  string
	RawJSON      string
}

// TopologyEdge is one network_topology row (spec.md §3).
type TopologyEdge struct {
	Source       string
	Neighbor     string
	FirstHeard   time.Time
	LastHeard    time.Time
	TotalPackets int64
	AvgSNR       *float64
	MinSNR       *float64
	MaxSNR       *float64
	AvgRSSI      *float64
	MinRSSI      *float64
	MaxRSSI      *float64
	LinkQuality  float64
	IsActive     bool
	LastHopCount int
}

// Traceroute is one traceroutes row (spec.md §3).
type Traceroute struct {
	ID          int64
	FromNodeID  string
	ToNodeID    string // empty if destination unknown
	Route       []string
	HopCount    int
	ReceivedUTC time.Time
	SNRSeq      []float64
	PacketID    int64
}

// AttemptKind selects which of the two identically-shaped attempt tables a
// command/query targets (spec.md §3: "two tables with identical shape").
type AttemptKind string

const (
	AttemptTraceroute AttemptKind = "traceroute_attempts"
	AttemptTelemetry  AttemptKind = "telemetry_attempts"
)

// AttemptStatus is the attempt row lifecycle state.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptCompleted AttemptStatus = "completed"
	AttemptTimeout   AttemptStatus = "timeout"
)

// Attempt is one row of either attempt table (spec.md §3).
type Attempt struct {
	ID           int64
	TargetNodeID string
	TargetName   string
	RequestedUTC time.Time
	Status       AttemptStatus
	CompletedUTC *time.Time
	RxSNR        *float64
	RxRSSI       *int
	RelayNodeID  string
	RelayName    string
	HopsAway     *int
}

// AttemptCompletion carries the fields completeAttempt may record from the
// response that closed the attempt (spec.md §4.6: "the response's SNR,
// RSSI, resolved relay identity, relay name, and hops-away").
type AttemptCompletion struct {
	RxSNR       *float64
	RxRSSI      *int
	RelayNodeID string
	RelayName   string
	HopsAway    *int
}
