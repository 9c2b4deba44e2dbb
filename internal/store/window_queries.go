package store

import "time"

// RelayPacketSample is the slice of a packet_history row the coverage view
// needs: source, resolved relay (may be a partial marker), and signal
// quality at time of receipt.
type RelayPacketSample struct {
	NodeID      string
	RelayNodeID string
	HopsAway    int
	RxSNR       *float64
	RxRSSI      *int
}

// RelayPacketsSince returns packet_history rows received at or after since
// that carry a relay attribution, for the coverage view's direct/indirect
// edge construction (spec.md §4.7).
func (s *Store) RelayPacketsSince(since time.Time) ([]RelayPacketSample, error) {
	rows, err := s.db.Query(`SELECT node_id, relay_node_id, hops_away, rx_snr, rx_rssi
		FROM packet_history WHERE received_at_utc >= ? AND relay_node_id != ''`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RelayPacketSample
	for rows.Next() {
		var p RelayPacketSample
		var snr nullFloatScan
		var rssi nullIntScan
		if err := rows.Scan(&p.NodeID, &p.RelayNodeID, &p.HopsAway, &snr, &rssi); err != nil {
			return nil, err
		}
		p.RxSNR = snr.v
		p.RxRSSI = rssi.v
		out = append(out, p)
	}
	return out, rows.Err()
}

// nullFloatScan/nullIntScan let Scan target a *pointer-to-pointer directly
// without sql.NullFloat64 boilerplate at each call site.
type nullFloatScan struct{ v *float64 }
type nullIntScan struct{ v *int }

func (n *nullFloatScan) Scan(src any) error {
	if src == nil {
		n.v = nil
		return nil
	}
	f, ok := src.(float64)
	if !ok {
		return nil
	}
	n.v = &f
	return nil
}

func (n *nullIntScan) Scan(src any) error {
	if src == nil {
		n.v = nil
		return nil
	}
	switch t := src.(type) {
	case int64:
		v := int(t)
		n.v = &v
	case float64:
		v := int(t)
		n.v = &v
	}
	return nil
}

// AttemptsSince returns completed attempts for kind completed at or after
// since that carry a resolved relay (used by the coverage view).
func (s *Store) AttemptsSince(kind AttemptKind, since time.Time) ([]Attempt, error) {
	rows, err := s.db.Query(`SELECT `+attemptColumns+` FROM `+string(kind)+`
		WHERE status = 'completed' AND completed_at_utc >= ? AND relay_node_id != ''`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TraceroutesSince returns traceroute records received at or after since.
func (s *Store) TraceroutesSince(since time.Time) ([]Traceroute, error) {
	rows, err := s.db.Query(`SELECT `+tracerouteColumns+` FROM traceroutes WHERE received_at_utc >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTraceroutes(rows)
}

// PacketsSince returns packet_history rows received at or after since, for
// the federated uploader's periodic snapshot (SPEC_FULL.md §12).
func (s *Store) PacketsSince(since time.Time, limit int) ([]PacketEntry, error) {
	rows, err := s.db.Query(`SELECT `+packetColumns+` FROM packet_history
		WHERE received_at_utc >= ? ORDER BY received_at_utc DESC LIMIT ?`, since, limit)
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

// NodesSeenSince returns nodes last heard at or after since, for the
// federated uploader's periodic snapshot (SPEC_FULL.md §12).
func (s *Store) NodesSeenSince(since time.Time) ([]Node, error) {
	rows, err := s.db.Query(`SELECT `+nodeColumns+` FROM nodes WHERE last_seen_utc >= ? ORDER BY last_seen_utc DESC`, since)
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

// EdgesSince returns active topology edges last heard at or after since, for
// the federated uploader's periodic snapshot (SPEC_FULL.md §12).
func (s *Store) EdgesSince(since time.Time) ([]TopologyEdge, error) {
	edges, err := s.Edges(true)
	if err != nil {
		return nil, err
	}
	out := edges[:0]
	for _, e := range edges {
		if !e.LastHeard.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
