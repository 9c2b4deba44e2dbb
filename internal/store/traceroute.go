package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// InsertTraceroute stores one traceroute record (spec.md §3: source,
// optional destination, ordered route, hop count, SNR sequence).
func (s *Store) InsertTraceroute(from, to string, route []string, snrSeq []float64, packetID int64, now time.Time) (int64, error) {
	routeJSON, err := json.Marshal(route)
	if err != nil {
		return 0, err
	}
	snrJSON, err := json.Marshal(snrSeq)
	if err != nil {
		return 0, err
	}
	var packetIDArg any
	if packetID != 0 {
		packetIDArg = packetID
	}
	res, err := s.db.Exec(`INSERT INTO traceroutes (
		from_node_id, to_node_id, route_json, hop_count, received_at_utc, snr_json, packet_id
	) VALUES (?, ?, ?, ?, ?, ?, ?)`, from, to, string(routeJSON), len(route), now, string(snrJSON), packetIDArg)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanTraceroute(row interface{ Scan(...any) error }) (Traceroute, error) {
	var t Traceroute
	var routeJSON, snrJSON string
	var packetID sql.NullInt64
	err := row.Scan(&t.ID, &t.FromNodeID, &t.ToNodeID, &routeJSON, &t.HopCount, &t.ReceivedUTC, &snrJSON, &packetID)
	if err != nil {
		return Traceroute{}, err
	}
	if err := json.Unmarshal([]byte(routeJSON), &t.Route); err != nil {
		return Traceroute{}, err
	}
	if snrJSON != "" {
		if err := json.Unmarshal([]byte(snrJSON), &t.SNRSeq); err != nil {
			return Traceroute{}, err
		}
	}
	if packetID.Valid {
		t.PacketID = packetID.Int64
	}
	return t, nil
}

const tracerouteColumns = `id, from_node_id, to_node_id, route_json, hop_count, received_at_utc, snr_json, packet_id`

// Traceroutes returns traceroute records ordered by recency, capped at limit.
func (s *Store) Traceroutes(limit int) ([]Traceroute, error) {
	rows, err := s.db.Query(`SELECT `+tracerouteColumns+` FROM traceroutes ORDER BY received_at_utc DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTraceroutes(rows)
}

// TracerouteByID fetches one traceroute record by id.
func (s *Store) TracerouteByID(id int64) (Traceroute, bool, error) {
	row := s.db.QueryRow(`SELECT `+tracerouteColumns+` FROM traceroutes WHERE id = ?`, id)
	t, err := scanTraceroute(row)
	if err == sql.ErrNoRows {
		return Traceroute{}, false, nil
	}
	if err != nil {
		return Traceroute{}, false, err
	}
	return t, true, nil
}

// NodeTraceroutes returns traceroute records involving nodeID as source or
// as any hop in the route, ordered by recency.
func (s *Store) NodeTraceroutes(nodeID string, limit int) ([]Traceroute, error) {
	rows, err := s.db.Query(`SELECT `+tracerouteColumns+` FROM traceroutes
		WHERE from_node_id = ? OR to_node_id = ? OR route_json LIKE ?
		ORDER BY received_at_utc DESC LIMIT ?`, nodeID, nodeID, "%"+nodeID+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTraceroutes(rows)
}

func collectTraceroutes(rows *sql.Rows) ([]Traceroute, error) {
	var out []Traceroute
	for rows.Next() {
		t, err := scanTraceroute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MostRecentTraceroute returns the most recent traceroute with destNodeID as
// destination. TracerouteCandidates computes the same per-destination
// staleness inside its own SQL query rather than calling this.
func (s *Store) MostRecentTraceroute(destNodeID string) (Traceroute, bool, error) {
	row := s.db.QueryRow(`SELECT `+tracerouteColumns+` FROM traceroutes
		WHERE to_node_id = ? ORDER BY received_at_utc DESC LIMIT 1`, destNodeID)
	t, err := scanTraceroute(row)
	if err == sql.ErrNoRows {
		return Traceroute{}, false, nil
	}
	if err != nil {
		return Traceroute{}, false, err
	}
	return t, true, nil
}
