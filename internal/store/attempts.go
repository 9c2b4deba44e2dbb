package store

import (
	"database/sql"
	"time"
)

// InsertAttempt inserts a new pending attempt row for kind.
func (s *Store) InsertAttempt(kind AttemptKind, target, targetName string, now time.Time) error {
	_, err := s.db.Exec(`INSERT INTO `+string(kind)+` (
		target_node_id, target_name, requested_at_utc, status
	) VALUES (?, ?, ?, 'pending')`, target, targetName, now)
	return err
}

// CompleteAttempt closes the most recent pending row whose target equals
// target, recording the fields from completion. Returns false (no error) if
// no pending row exists, matching spec.md §8's law: "Completing an attempt
// with no pending row for the target is a no-op and returns false." There is
// no probe-id to disambiguate overlapping in-flight probes (spec.md §9 open
// question) — the newest pending row for the target is always the one
// closed, per libnode_db.py's `ORDER BY requested_at_utc DESC LIMIT 1`; any
// older pending row for the same target stays pending until it times out.
func (s *Store) CompleteAttempt(kind AttemptKind, target string, c AttemptCompletion, now time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var id int64
	row := tx.QueryRow(`SELECT id FROM `+string(kind)+` WHERE target_node_id = ? AND status = 'pending'
		ORDER BY requested_at_utc DESC LIMIT 1`, target)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	_, err = tx.Exec(`UPDATE `+string(kind)+` SET
		status = 'completed', completed_at_utc = ?, rx_snr = ?, rx_rssi = ?,
		relay_node_id = ?, relay_name = ?, hops_away = ?
		WHERE id = ?`,
		now, nullFloat(c.RxSNR), nullInt(c.RxRSSI), c.RelayNodeID, c.RelayName, nullInt(c.HopsAway), id)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// TimeoutStaleAttempts marks pending rows older than the threshold as timed
// out. Returns the count affected.
func (s *Store) TimeoutStaleAttempts(kind AttemptKind, threshold time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-threshold)
	res, err := s.db.Exec(`UPDATE `+string(kind)+` SET status = 'timeout'
		WHERE status = 'pending' AND requested_at_utc < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const attemptColumns = `id, target_node_id, target_name, requested_at_utc, status,
	completed_at_utc, rx_snr, rx_rssi, relay_node_id, relay_name, hops_away`

func scanAttempt(row interface{ Scan(...any) error }) (Attempt, error) {
	var a Attempt
	var completedAt sql.NullTime
	var rxSNR sql.NullFloat64
	var rxRSSI, hopsAway sql.NullInt64
	var status string
	err := row.Scan(&a.ID, &a.TargetNodeID, &a.TargetName, &a.RequestedUTC, &status,
		&completedAt, &rxSNR, &rxRSSI, &a.RelayNodeID, &a.RelayName, &hopsAway)
	if err != nil {
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedUTC = &t
	}
	a.RxSNR = fromNullFloat(rxSNR)
	a.RxRSSI = fromNullInt(rxRSSI)
	a.HopsAway = fromNullInt(hopsAway)
	return a, nil
}

// AttemptsByStatus returns attempt rows for kind filtered by status, newest
// first. Pass "" for status to return all rows.
func (s *Store) AttemptsByStatus(kind AttemptKind, status AttemptStatus) ([]Attempt, error) {
	query := "SELECT " + attemptColumns + " FROM " + string(kind)
	var rows *sql.Rows
	var err error
	if status != "" {
		query += " WHERE status = ? ORDER BY requested_at_utc DESC"
		rows, err = s.db.Query(query, string(status))
	} else {
		query += " ORDER BY requested_at_utc DESC"
		rows, err = s.db.Query(query)
	}
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

// MostRecentCompletedAttempt returns the most recently completed attempt
// for target under kind. TelemetryCandidates measures staleness against the
// same most-recent completed attempt, computed inside its own SQL query
// rather than through this function.
func (s *Store) MostRecentCompletedAttempt(kind AttemptKind, target string) (Attempt, bool, error) {
	row := s.db.QueryRow(`SELECT `+attemptColumns+` FROM `+string(kind)+`
		WHERE target_node_id = ? AND status = 'completed'
		ORDER BY completed_at_utc DESC LIMIT 1`, target)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, err
	}
	return a, true, nil
}
