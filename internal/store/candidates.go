package store

import "time"

const nodeColumnsAliasedN = `n.node_id, n.num, n.short_name, n.long_name, n.hardware_model, n.firmware_version,
	n.latitude, n.longitude, n.altitude_m, n.battery_level, n.voltage, n.is_charging, n.is_powered,
	n.first_seen_utc, n.last_seen_utc, n.total_packets, n.is_mqtt, n.is_ignored, n.is_airplane,
	n.last_name_update_utc`

// TracerouteCandidates selects nodes for the Traceroute Scheduler per
// spec.md §4.5: active within activeThreshold, excluding mqtt-relayed nodes
// when excludeMQTT is set, whose most recent traceroute-as-destination is
// absent or older than traceAge. Never-traced nodes sort first, then
// oldest-traced first, capped at limit.
func (s *Store) TracerouteCandidates(activeThreshold time.Duration, excludeMQTT bool, traceAge time.Duration, limit int, now time.Time) ([]Node, error) {
	sinceActive := now.Add(-activeThreshold)
	sinceTrace := now.Add(-traceAge)

	query := `SELECT ` + nodeColumnsAliasedN + `
		FROM nodes n
		LEFT JOIN (
			SELECT to_node_id, MAX(received_at_utc) AS last_trace
			FROM traceroutes
			GROUP BY to_node_id
		) t ON t.to_node_id = n.node_id
		WHERE n.last_seen_utc >= ? AND n.is_ignored = 0
		  AND (t.last_trace IS NULL OR t.last_trace < ?)`
	args := []any{sinceActive, sinceTrace}
	if excludeMQTT {
		query += ` AND n.is_mqtt = 0`
	}
	query += ` ORDER BY (t.last_trace IS NOT NULL), t.last_trace ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
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

// TelemetryCandidates selects nodes for the Telemetry Scheduler per
// spec.md §4.6: active within activeThreshold, staleness measured against
// the most recent completed telemetry attempt, optionally skipping nodes
// with a traceroute more recent than traceAge.
func (s *Store) TelemetryCandidates(activeThreshold time.Duration, requestAge time.Duration, skipRecentTraceroute bool, traceAge time.Duration, limit int, now time.Time) ([]Node, error) {
	sinceActive := now.Add(-activeThreshold)
	sinceRequest := now.Add(-requestAge)
	sinceTrace := now.Add(-traceAge)

	query := `SELECT ` + nodeColumnsAliasedN + `
		FROM nodes n
		LEFT JOIN (
			SELECT target_node_id, MAX(completed_at_utc) AS last_completed
			FROM telemetry_attempts WHERE status = 'completed'
			GROUP BY target_node_id
		) tel ON tel.target_node_id = n.node_id
		LEFT JOIN (
			SELECT to_node_id, MAX(received_at_utc) AS last_trace
			FROM traceroutes
			GROUP BY to_node_id
		) t ON t.to_node_id = n.node_id
		WHERE n.last_seen_utc >= ? AND n.is_ignored = 0
		  AND (tel.last_completed IS NULL OR tel.last_completed < ?)`
	args := []any{sinceActive, sinceRequest}
	if skipRecentTraceroute {
		query += ` AND (t.last_trace IS NULL OR t.last_trace < ?)`
		args = append(args, sinceTrace)
	}
	query += ` ORDER BY (tel.last_completed IS NOT NULL), tel.last_completed ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
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
