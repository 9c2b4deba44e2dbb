package store

// HopSummary is one node's minimum observed hops-away and the relay
// identity from its most recent packet with hops_away > 0 — the raw
// material internal/view's hop-graph construction needs (spec.md §4.7).
type HopSummary struct {
	NodeID      string
	MinHops     int
	RecentRelay string // may be a partial (non-"!"-prefixed) marker or empty
}

// HopSummaries computes, for every node with packet history, the minimum
// observed hops-away and the relay from its most recent hops_away>0 packet.
func (s *Store) HopSummaries() ([]HopSummary, error) {
	rows, err := s.db.Query(`
		SELECT ph.node_id, MIN(ph.hops_away) AS min_hops,
			(SELECT r.relay_node_id FROM packet_history r
			 WHERE r.node_id = ph.node_id AND r.hops_away > 0
			 ORDER BY r.received_at_utc DESC LIMIT 1) AS recent_relay
		FROM packet_history ph
		GROUP BY ph.node_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HopSummary
	for rows.Next() {
		var hs HopSummary
		var relay *string
		if err := rows.Scan(&hs.NodeID, &hs.MinHops, &relay); err != nil {
			return nil, err
		}
		if relay != nil {
			hs.RecentRelay = *relay
		}
		out = append(out, hs)
	}
	return out, rows.Err()
}
