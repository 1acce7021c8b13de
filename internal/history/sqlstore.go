package history

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// SQLStore persists histories in MySQL. Intended for shared deployments
// where several wallet processes serve the same user; the file store covers
// the single-machine case.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore connects to MySQL with dsn and ensures the schema exists.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach history database: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS user_op_histories (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			account VARCHAR(42) NOT NULL,
			op_hash VARCHAR(66) NOT NULL,
			chain_id BIGINT NOT NULL,
			timestamp BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			user_op JSON NOT NULL,
			INDEX idx_histories_account (account)
		)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Load returns account's entries in insertion order.
func (s *SQLStore) Load(account string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT op_hash, chain_id, timestamp, status, user_op
		 FROM user_op_histories WHERE account = ? ORDER BY id`, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load histories: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			rawOp []byte
		)
		if err := rows.Scan(&e.Data.OpHash, &e.Data.ChainID, &e.Data.Timestamp, &e.Status, &rawOp); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal(rawOp, &e.Data.Op); err != nil {
			return nil, fmt.Errorf("failed to decode stored user op: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Append inserts one entry for account.
func (s *SQLStore) Append(account string, e Entry) error {
	rawOp, err := json.Marshal(e.Data.Op)
	if err != nil {
		return fmt.Errorf("failed to encode user op: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO user_op_histories (account, op_hash, chain_id, timestamp, status, user_op)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account, e.Data.OpHash, e.Data.ChainID, e.Data.Timestamp, string(e.Status), rawOp)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
