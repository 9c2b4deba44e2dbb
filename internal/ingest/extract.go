package ingest

import "github.com/loranexus/loranexus/internal/radio"

// extracted holds the fields derived from one packet's decoded payload,
// normalized to the units the Store expects. Per-port extractors populate
// only the fields their port can carry; spec.md §4.2 requires all field
// extraction to be defensive — a missing nested object yields an omitted
// attribute, never an error.
type extracted struct {
	ShortName       *string
	LongName        *string
	HardwareModel   *string
	FirmwareVersion *string
	Latitude        *float64
	Longitude       *float64
	AltitudeM       *int32
	BatteryLevel    *int32
	Voltage         *float64
	ChannelUtil     *float64
	AirUtilTx       *float64
	Temperature     *float64
	Humidity        *float64
	Pressure        *float64
	MessageText     string
	Route           []uint32
	SNRTowards      []float64
}

const positionScale = 1e7

// extract dispatches on the decoded port, normalizing integer-scaled
// position fields to decimal degrees per spec.md §9's open-question
// resolution. A nil Decoded payload yields a zero-value extracted, which
// is a normal (non-error) outcome for ports carrying no typed payload.
func extract(d *radio.DecodedPayload) extracted {
	var e extracted
	if d == nil {
		return e
	}
	switch d.Port {
	case radio.PortPosition:
		if d.Position != nil {
			p := d.Position
			if p.Latitude != nil {
				e.Latitude = p.Latitude
			} else if p.LatitudeI != nil {
				v := float64(*p.LatitudeI) / positionScale
				e.Latitude = &v
			}
			if p.Longitude != nil {
				e.Longitude = p.Longitude
			} else if p.LongitudeI != nil {
				v := float64(*p.LongitudeI) / positionScale
				e.Longitude = &v
			}
			e.AltitudeM = p.AltitudeM
		}
	case radio.PortNodeInfo:
		if d.NodeInfo != nil {
			ni := d.NodeInfo
			if ni.ShortName != "" {
				e.ShortName = &ni.ShortName
			}
			if ni.LongName != "" {
				e.LongName = &ni.LongName
			}
			if ni.HardwareModel != "" {
				e.HardwareModel = &ni.HardwareModel
			}
			if ni.FirmwareVersion != "" {
				e.FirmwareVersion = &ni.FirmwareVersion
			}
		}
	case radio.PortTelemetry:
		if d.Telemetry != nil {
			tm := d.Telemetry
			e.BatteryLevel = tm.BatteryLevel
			e.Voltage = tm.Voltage
			e.ChannelUtil = tm.ChannelUtil
			e.AirUtilTx = tm.AirUtilTx
			e.Temperature = tm.Temperature
			e.Humidity = tm.Humidity
			e.Pressure = tm.Pressure
		}
	case radio.PortText:
		if d.Text != nil {
			e.MessageText = d.Text.Text
		}
	case radio.PortTraceroute:
		if d.Traceroute != nil {
			e.Route = d.Traceroute.Route
			e.SNRTowards = d.Traceroute.SNRTowards
		}
	}
	return e
}
