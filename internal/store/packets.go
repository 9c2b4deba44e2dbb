package store

import (
	"database/sql"
	"fmt"
)

// InsertPacket appends one packet_history row for entry.NodeID, then evicts
// the oldest rows for that node until count <= maxPerNode. Grounded on
// original_source/plugins/libnode_db.py:insert_packet()'s
// "DELETE ... WHERE id IN (SELECT ... ORDER BY received_at_utc ASC LIMIT ?)"
// eviction query.
func (s *Store) InsertPacket(e PacketEntry, maxPerNode int) error {
	if maxPerNode <= 0 {
		return fmt.Errorf("store: maxPerNode must be positive, got %d", maxPerNode)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO packet_history (
		node_id, received_at_utc, port, channel, hop_start, hop_limit, hops_away,
		via_mqtt, relay_node_id, rx_snr, rx_rssi, latitude, longitude, altitude_m,
		battery_level, voltage, channel_util, air_util_tx, temperature, humidity,
		pressure, message_text, raw_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.NodeID, e.ReceivedUTC, e.Port, e.Channel, e.HopStart, e.HopLimit, e.HopsAway,
		boolToInt(e.ViaMQTT), e.RelayNodeID, nullFloat(e.RxSNR), nullInt(e.RxRSSI),
		nullFloat(e.Latitude), nullFloat(e.Longitude), nullInt32(e.AltitudeM),
		nullInt32(e.BatteryLevel), nullFloat(e.Voltage), nullFloat(e.ChannelUtil),
		nullFloat(e.AirUtilTx), nullFloat(e.Temperature), nullFloat(e.Humidity),
		nullFloat(e.Pressure), e.MessageText, e.RawJSON)
	if err != nil {
		return err
	}

	var count int64
	if err := tx.QueryRow(`SELECT COUNT(1) FROM packet_history WHERE node_id = ?`, e.NodeID).Scan(&count); err != nil {
		return err
	}
	if count > int64(maxPerNode) {
		excess := count - int64(maxPerNode)
		_, err = tx.Exec(`DELETE FROM packet_history WHERE id IN (
			SELECT id FROM packet_history WHERE node_id = ? ORDER BY received_at_utc ASC LIMIT ?
		)`, e.NodeID, excess)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

const packetColumns = `id, node_id, received_at_utc, port, channel, hop_start, hop_limit,
	hops_away, via_mqtt, relay_node_id, rx_snr, rx_rssi, latitude, longitude, altitude_m,
	battery_level, voltage, channel_util, air_util_tx, temperature, humidity, pressure,
	message_text, raw_json`

func scanPacket(row interface{ Scan(...any) error }) (PacketEntry, error) {
	var p PacketEntry
	var rxSNR, lat, lon, voltage, channelUtil, airUtilTx, temp, humidity, pressure sql.NullFloat64
	var rxRSSI, alt, battery sql.NullInt64
	var viaMQTT int64
	err := row.Scan(
		&p.ID, &p.NodeID, &p.ReceivedUTC, &p.Port, &p.Channel, &p.HopStart, &p.HopLimit,
		&p.HopsAway, &viaMQTT, &p.RelayNodeID, &rxSNR, &rxRSSI, &lat, &lon, &alt,
		&battery, &voltage, &channelUtil, &airUtilTx, &temp, &humidity, &pressure,
		&p.MessageText, &p.RawJSON,
	)
	if err != nil {
		return PacketEntry{}, err
	}
	p.ViaMQTT = viaMQTT != 0
	p.RxSNR = fromNullFloat(rxSNR)
	p.RxRSSI = fromNullInt(rxRSSI)
	p.Latitude = fromNullFloat(lat)
	p.Longitude = fromNullFloat(lon)
	p.AltitudeM = fromNullInt32(alt)
	p.BatteryLevel = fromNullInt32(battery)
	p.Voltage = fromNullFloat(voltage)
	p.ChannelUtil = fromNullFloat(channelUtil)
	p.AirUtilTx = fromNullFloat(airUtilTx)
	p.Temperature = fromNullFloat(temp)
	p.Humidity = fromNullFloat(humidity)
	p.Pressure = fromNullFloat(pressure)
	return p, nil
}

// NodePackets returns the most recent packets for a node, newest first,
// capped at limit.
func (s *Store) NodePackets(nodeID string, limit int) ([]PacketEntry, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT %s FROM packet_history WHERE node_id = ?
		ORDER BY received_at_utc DESC LIMIT ?`, packetColumns), nodeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PacketEntry
	for rows.Next() {
		p, err := scanPacket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountNodePackets returns the current packet_history row count for a node.
func (s *Store) CountNodePackets(nodeID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(1) FROM packet_history WHERE node_id = ?`, nodeID).Scan(&count)
	return count, err
}
