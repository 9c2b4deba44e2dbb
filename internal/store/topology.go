package store

import (
	"database/sql"
	"math"
	"time"
)

// LinkQuality computes the weighted composite score in [0,100] from
// spec.md §4.4: 40% SNR component, 40% RSSI component, 20% reliability
// component, missing SNR or RSSI contributing zero from that component,
// rounded to two decimals.
func LinkQuality(snr, rssi *float64, packetCount int64) float64 {
	var snrComponent, rssiComponent float64
	if snr != nil {
		snrComponent = clamp((*snr+20)*2.5, 0, 100)
	}
	if rssi != nil {
		rssiComponent = clamp((*rssi+120)*1.11, 0, 100)
	}
	reliability := math.Min(100, 2*float64(packetCount))
	score := 0.4*snrComponent + 0.4*rssiComponent + 0.2*reliability
	return math.Round(score*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UpdateTopology creates or updates the directed edge (source, neighbor)
// with a new sample, maintaining incremental mean/min/max for SNR and RSSI
// and recomputing link quality, all inside one transaction holding the
// edge row per spec.md §9's design note. Grounded on
// original_source/plugins/libnode_db.py:update_topology().
func (s *Store) UpdateTopology(source, neighbor string, snr *float64, rssi *float64, hopCount int, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var totalPackets int64
	var avgSNR, minSNR, maxSNR, avgRSSI, minRSSI, maxRSSI sql.NullFloat64
	row := tx.QueryRow(`SELECT total_packets, avg_snr, min_snr, max_snr, avg_rssi, min_rssi, max_rssi
		FROM network_topology WHERE source = ? AND neighbor = ?`, source, neighbor)
	err = row.Scan(&totalPackets, &avgSNR, &minSNR, &maxSNR, &avgRSSI, &minRSSI, &maxRSSI)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	newCount := totalPackets + 1
	newAvgSNR, newMinSNR, newMaxSNR := incrementalStats(avgSNR, minSNR, maxSNR, totalPackets, snr)
	newAvgRSSI, newMinRSSI, newMaxRSSI := incrementalStats(avgRSSI, minRSSI, maxRSSI, totalPackets, rssi)
	quality := LinkQuality(fromNullFloat(newAvgSNR), fromNullFloat(newAvgRSSI), newCount)

	if !exists {
		_, err = tx.Exec(`INSERT INTO network_topology (
			source, neighbor, first_heard_utc, last_heard_utc, total_packets,
			avg_snr, min_snr, max_snr, avg_rssi, min_rssi, max_rssi, link_quality,
			is_active, last_hop_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			source, neighbor, now, now, newCount,
			newAvgSNR, newMinSNR, newMaxSNR, newAvgRSSI, newMinRSSI, newMaxRSSI, quality, hopCount)
	} else {
		_, err = tx.Exec(`UPDATE network_topology SET
			last_heard_utc = ?, total_packets = ?, avg_snr = ?, min_snr = ?, max_snr = ?,
			avg_rssi = ?, min_rssi = ?, max_rssi = ?, link_quality = ?, is_active = 1,
			last_hop_count = ?
			WHERE source = ? AND neighbor = ?`,
			now, newCount, newAvgSNR, newMinSNR, newMaxSNR,
			newAvgRSSI, newMinRSSI, newMaxRSSI, quality, hopCount, source, neighbor)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// incrementalStats folds one new sample into the running (mean, min, max)
// triple. A nil sample leaves the triple unchanged and does not affect the
// count used elsewhere for the other metric's own mean.
func incrementalStats(avg, min, max sql.NullFloat64, oldCount int64, sample *float64) (sql.NullFloat64, sql.NullFloat64, sql.NullFloat64) {
	if sample == nil {
		return avg, min, max
	}
	s := *sample
	if !avg.Valid {
		return sql.NullFloat64{Float64: s, Valid: true}, sql.NullFloat64{Float64: s, Valid: true}, sql.NullFloat64{Float64: s, Valid: true}
	}
	newAvg := (avg.Float64*float64(oldCount) + s) / float64(oldCount+1)
	newMin := math.Min(min.Float64, s)
	newMax := math.Max(max.Float64, s)
	return sql.NullFloat64{Float64: newAvg, Valid: true},
		sql.NullFloat64{Float64: newMin, Valid: true},
		sql.NullFloat64{Float64: newMax, Valid: true}
}

// MarkInactiveLinks sets is_active=false for edges whose last_heard_utc is
// older than timeout, per spec.md §4.4's staleness sweep.
func (s *Store) MarkInactiveLinks(timeout time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-timeout)
	res, err := s.db.Exec(`UPDATE network_topology SET is_active = 0 WHERE last_heard_utc < ? AND is_active = 1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const edgeColumns = `source, neighbor, first_heard_utc, last_heard_utc, total_packets,
	avg_snr, min_snr, max_snr, avg_rssi, min_rssi, max_rssi, link_quality, is_active, last_hop_count`

func scanEdge(row interface{ Scan(...any) error }) (TopologyEdge, error) {
	var e TopologyEdge
	var avgSNR, minSNR, maxSNR, avgRSSI, minRSSI, maxRSSI sql.NullFloat64
	var isActive int64
	err := row.Scan(&e.Source, &e.Neighbor, &e.FirstHeard, &e.LastHeard, &e.TotalPackets,
		&avgSNR, &minSNR, &maxSNR, &avgRSSI, &minRSSI, &maxRSSI, &e.LinkQuality, &isActive, &e.LastHopCount)
	if err != nil {
		return TopologyEdge{}, err
	}
	e.AvgSNR = fromNullFloat(avgSNR)
	e.MinSNR = fromNullFloat(minSNR)
	e.MaxSNR = fromNullFloat(maxSNR)
	e.AvgRSSI = fromNullFloat(avgRSSI)
	e.MinRSSI = fromNullFloat(minRSSI)
	e.MaxRSSI = fromNullFloat(maxRSSI)
	e.IsActive = isActive != 0
	return e, nil
}

// Edges returns topology edges, optionally restricted to active-only.
func (s *Store) Edges(activeOnly bool) ([]TopologyEdge, error) {
	query := "SELECT " + edgeColumns + " FROM network_topology"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopologyEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NeighborsOf returns all edges where the given node is the source.
func (s *Store) NeighborsOf(nodeID string) ([]TopologyEdge, error) {
	rows, err := s.db.Query("SELECT "+edgeColumns+" FROM network_topology WHERE source = ?", nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopologyEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
