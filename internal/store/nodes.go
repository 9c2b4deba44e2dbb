package store

import (
	"database/sql"
	"fmt"
	"time"
)

const airplaneAltitudeThresholdM = 750

// UpsertNode applies the contract in spec.md §4.1: insert on first sight,
// otherwise increment total_packets, refresh always-fields unconditionally,
// and refresh name fields only once per 24h. Grounded on
// original_source/plugins/libnode_db.py:upsert_node().
func (s *Store) UpsertNode(id string, u NodeUpdate, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	var lastNameUpdate time.Time
	row := tx.QueryRow(`SELECT last_name_update_utc FROM nodes WHERE node_id = ?`, id)
	switch err := row.Scan(&lastNameUpdate); err {
	case nil:
		exists = true
	case sql.ErrNoRows:
		exists = false
	default:
		return err
	}

	if !exists {
		isAirplane := u.AltitudeM != nil && *u.AltitudeM > airplaneAltitudeThresholdM
		_, err := tx.Exec(`INSERT INTO nodes (
			node_id, num, short_name, long_name, hardware_model, firmware_version,
			latitude, longitude, altitude_m, battery_level, voltage, is_charging,
			is_powered, first_seen_utc, last_seen_utc, total_packets, is_mqtt,
			is_ignored, is_airplane, last_name_update_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, 0, ?, ?)`,
			id, u.Num, strOrEmpty(u.ShortName), strOrEmpty(u.LongName),
			strOrEmpty(u.HardwareModel), strOrEmpty(u.FirmwareVersion),
			nullFloat(u.Latitude), nullFloat(u.Longitude), nullInt32(u.AltitudeM),
			nullInt32(u.BatteryLevel), nullFloat(u.Voltage), boolToInt(boolOrFalse(u.IsCharging)),
			boolToInt(boolOrFalse(u.IsPowered)), now, now, boolToInt(u.IsMQTT),
			boolToInt(isAirplane), now)
		if err != nil {
			return err
		}
		return tx.Commit()
	}

	setClauses := []string{"total_packets = total_packets + 1", "last_seen_utc = ?", "is_mqtt = ?"}
	args := []any{now, boolToInt(u.IsMQTT)}

	if u.Num != 0 {
		setClauses = append(setClauses, "num = ?")
		args = append(args, u.Num)
	}
	if u.Latitude != nil {
		setClauses = append(setClauses, "latitude = ?")
		args = append(args, *u.Latitude)
	}
	if u.Longitude != nil {
		setClauses = append(setClauses, "longitude = ?")
		args = append(args, *u.Longitude)
	}
	if u.AltitudeM != nil {
		setClauses = append(setClauses, "altitude_m = ?", "is_airplane = ?")
		args = append(args, *u.AltitudeM, boolToInt(*u.AltitudeM > airplaneAltitudeThresholdM))
	}
	if u.HardwareModel != nil {
		setClauses = append(setClauses, "hardware_model = ?")
		args = append(args, *u.HardwareModel)
	}
	if u.FirmwareVersion != nil {
		setClauses = append(setClauses, "firmware_version = ?")
		args = append(args, *u.FirmwareVersion)
	}
	if u.BatteryLevel != nil {
		setClauses = append(setClauses, "battery_level = ?")
		args = append(args, *u.BatteryLevel)
	}
	if u.Voltage != nil {
		setClauses = append(setClauses, "voltage = ?")
		args = append(args, *u.Voltage)
	}
	if u.IsCharging != nil {
		setClauses = append(setClauses, "is_charging = ?")
		args = append(args, boolToInt(*u.IsCharging))
	}
	if u.IsPowered != nil {
		setClauses = append(setClauses, "is_powered = ?")
		args = append(args, boolToInt(*u.IsPowered))
	}
	if now.Sub(lastNameUpdate) >= 24*time.Hour {
		if u.ShortName != nil {
			setClauses = append(setClauses, "short_name = ?")
			args = append(args, *u.ShortName)
		}
		if u.LongName != nil {
			setClauses = append(setClauses, "long_name = ?")
			args = append(args, *u.LongName)
		}
		if u.ShortName != nil || u.LongName != nil {
			setClauses = append(setClauses, "last_name_update_utc = ?")
			args = append(args, now)
		}
	}

	query := "UPDATE nodes SET "
	for i, c := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += c
	}
	query += " WHERE node_id = ?"
	args = append(args, id)

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolOrFalse(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

const nodeColumns = `node_id, num, short_name, long_name, hardware_model, firmware_version,
	latitude, longitude, altitude_m, battery_level, voltage, is_charging, is_powered,
	first_seen_utc, last_seen_utc, total_packets, is_mqtt, is_ignored, is_airplane,
	last_name_update_utc`

func scanNode(row interface{ Scan(...any) error }) (Node, error) {
	var n Node
	var lat, lon, voltage sql.NullFloat64
	var alt, battery sql.NullInt64
	var isCharging, isPowered, isMQTT, isIgnored, isAirplane int64
	err := row.Scan(
		&n.ID, &n.Num, &n.ShortName, &n.LongName, &n.HardwareModel, &n.FirmwareVersion,
		&lat, &lon, &alt, &battery, &voltage, &isCharging, &isPowered,
		&n.FirstSeenUTC, &n.LastSeenUTC, &n.TotalPackets, &isMQTT, &isIgnored, &isAirplane,
		&n.LastNameUpdateUTC,
	)
	if err != nil {
		return Node{}, err
	}
	n.Latitude = fromNullFloat(lat)
	n.Longitude = fromNullFloat(lon)
	n.AltitudeM = fromNullInt32(alt)
	n.BatteryLevel = fromNullInt32(battery)
	n.Voltage = fromNullFloat(voltage)
	n.IsCharging = isCharging != 0
	n.IsPowered = isPowered != 0
	n.IsMQTT = isMQTT != 0
	n.IsIgnored = isIgnored != 0
	n.IsAirplane = isAirplane != 0
	return n, nil
}

// GetNode fetches one node by canonical id.
func (s *Store) GetNode(id string) (Node, bool, error) {
	row := s.db.QueryRow(fmt.Sprintf(`SELECT %s FROM nodes WHERE node_id = ?`, nodeColumns), id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return Node{}, false, nil
	}
	if err != nil {
		return Node{}, false, err
	}
	return n, true, nil
}

// ListNodes returns all nodes, optionally excluding ignored ones.
func (s *Store) ListNodes(includeIgnored bool) ([]Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM nodes`, nodeColumns)
	if !includeIgnored {
		query += ` WHERE is_ignored = 0`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SetIgnored sets or clears the operator-controlled ignore flag on a node.
func (s *Store) SetIgnored(id string, ignored bool) error {
	res, err := s.db.Exec(`UPDATE nodes SET is_ignored = ? WHERE node_id = ?`, boolToInt(ignored), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
