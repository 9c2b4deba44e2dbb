package store

// Stats is the aggregate network statistics query result (spec.md §4.7).
type Stats struct {
	TotalNodes      int64
	ActiveEdges     int64
	TotalEdges      int64
	TotalPackets    int64
	TotalTraceroutes int64
}

// NetworkStats computes aggregate counters across the whole store.
func (s *Store) NetworkStats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM nodes WHERE is_ignored = 0`).Scan(&st.TotalNodes); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM network_topology WHERE is_active = 1`).Scan(&st.ActiveEdges); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM network_topology`).Scan(&st.TotalEdges); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(total_packets), 0) FROM nodes`).Scan(&st.TotalPackets); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM traceroutes`).Scan(&st.TotalTraceroutes); err != nil {
		return Stats{}, err
	}
	return st, nil
}
