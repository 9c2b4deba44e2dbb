package store

import "database/sql"

// CreateOperator inserts one operator credential row. Used by the
// authz package to provision the single-operator account gating the
// ignore-toggle and send-text endpoints (SPEC_FULL.md §13).
func (s *Store) CreateOperator(username, passwordHash string) error {
	_, err := s.db.Exec(`INSERT INTO operators (username, password_hash) VALUES (?, ?)`, username, passwordHash)
	return err
}

// OperatorPasswordHash fetches the stored bcrypt hash for username.
func (s *Store) OperatorPasswordHash(username string) (string, bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM operators WHERE username = ?`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}
