package results

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the result storage backing an export run. It serves both
// the result-store and the execution/user directory contracts consumed by
// the exporter.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a result store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize result schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id      TEXT PRIMARY KEY,
		label   TEXT NOT NULL DEFAULT '',
		login   TEXT NOT NULL DEFAULT '',
		lti_key TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS executions (
		id          TEXT PRIMARY KEY,
		delivery_id TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		started_at  DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_executions_delivery ON executions(delivery_id, started_at);

	CREATE TABLE IF NOT EXISTS call_ids (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT NOT NULL,
		call_id      TEXT NOT NULL UNIQUE,
		kind         TEXT NOT NULL CHECK (kind IN ('item', 'test'))
	);
	CREATE INDEX IF NOT EXISTS idx_call_ids_execution ON call_ids(execution_id, kind);

	CREATE TABLE IF NOT EXISTS variables (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		call_id    TEXT NOT NULL,
		type       TEXT NOT NULL CHECK (type IN ('response', 'outcome')),
		identifier TEXT NOT NULL,
		value      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_variables_call ON variables(call_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// ResultsForDelivery returns the execution ids recorded for a delivery, in
// storage order.
func (s *SQLiteStore) ResultsForDelivery(ctx context.Context, deliveryID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM executions WHERE delivery_id = ? ORDER BY started_at, id`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("querying executions for %s: %w", deliveryID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ItemCallIDs returns the item-level call ids of one execution.
func (s *SQLiteStore) ItemCallIDs(ctx context.Context, executionID string) ([]string, error) {
	return s.callIDs(ctx, executionID, "item")
}

// TestCallIDs returns the test-level call ids of one execution.
func (s *SQLiteStore) TestCallIDs(ctx context.Context, executionID string) ([]string, error) {
	return s.callIDs(ctx, executionID, "test")
}

func (s *SQLiteStore) callIDs(ctx context.Context, executionID, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT call_id FROM call_ids WHERE execution_id = ? AND kind = ? ORDER BY id`, executionID, kind)
	if err != nil {
		return nil, fmt.Errorf("querying %s call ids for %s: %w", kind, executionID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Variables returns every variable recorded against a call id.
func (s *SQLiteStore) Variables(ctx context.Context, callID string) ([]Variable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, identifier, value FROM variables WHERE call_id = ? ORDER BY id`, callID)
	if err != nil {
		return nil, fmt.Errorf("querying variables for %s: %w", callID, err)
	}
	defer rows.Close()

	var vars []Variable
	for rows.Next() {
		var typ string
		var v Variable
		if err := rows.Scan(&typ, &v.Identifier, &v.Value); err != nil {
			return nil, err
		}
		if typ == "outcome" {
			v.Type = OutcomeVariable
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

// Variable returns a single named variable of a call id, or nil when absent.
func (s *SQLiteStore) Variable(ctx context.Context, callID, identifier string) (*Variable, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT type, identifier, value FROM variables WHERE call_id = ? AND identifier = ? ORDER BY id LIMIT 1`,
		callID, identifier)

	var typ string
	var v Variable
	if err := row.Scan(&typ, &v.Identifier, &v.Value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying variable %s of %s: %w", identifier, callID, err)
	}
	if typ == "outcome" {
		v.Type = OutcomeVariable
	}
	return &v, nil
}

// ExecutionByID looks up one execution.
func (s *SQLiteStore) ExecutionByID(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, delivery_id, user_id, started_at, finished_at FROM executions WHERE id = ?`, id)

	var e Execution
	var finished sql.NullTime
	if err := row.Scan(&e.ID, &e.DeliveryID, &e.UserID, &e.StartedAt, &finished); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("execution %s not found", id)
		}
		return nil, fmt.Errorf("querying execution %s: %w", id, err)
	}
	if finished.Valid {
		t := finished.Time
		e.FinishedAt = &t
	}
	return &e, nil
}

// UserByID looks up one user directory entry. Unknown users resolve to an
// empty entry rather than an error: results can outlive accounts.
func (s *SQLiteStore) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, login, lti_key FROM users WHERE id = ?`, id)

	var u User
	if err := row.Scan(&u.ID, &u.Label, &u.Login, &u.LTIKey); err != nil {
		if err == sql.ErrNoRows {
			return &User{ID: id}, nil
		}
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}
	return &u, nil
}

// AddUser inserts or replaces a user directory entry.
func (s *SQLiteStore) AddUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, label, login, lti_key) VALUES (?, ?, ?, ?)`,
		u.ID, u.Label, u.Login, u.LTIKey)
	return err
}

// AddExecution records an execution, generating an id when none is set, and
// returns the stored id.
func (s *SQLiteStore) AddExecution(ctx context.Context, e Execution) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var finished interface{}
	if e.FinishedAt != nil {
		finished = *e.FinishedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, delivery_id, user_id, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.DeliveryID, e.UserID, e.StartedAt, finished)
	if err != nil {
		return "", fmt.Errorf("inserting execution: %w", err)
	}
	return e.ID, nil
}

// AddItemCall registers an item-level call id for an execution.
func (s *SQLiteStore) AddItemCall(ctx context.Context, executionID, callID string) error {
	return s.addCall(ctx, executionID, callID, "item")
}

// AddTestCall registers a test-level call id for an execution.
func (s *SQLiteStore) AddTestCall(ctx context.Context, executionID, callID string) error {
	return s.addCall(ctx, executionID, callID, "test")
}

func (s *SQLiteStore) addCall(ctx context.Context, executionID, callID, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_ids (execution_id, call_id, kind) VALUES (?, ?, ?)`,
		executionID, callID, kind)
	if err != nil {
		return fmt.Errorf("inserting %s call id: %w", kind, err)
	}
	return nil
}

// AddVariable records a variable against a call id.
func (s *SQLiteStore) AddVariable(ctx context.Context, callID string, v Variable) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variables (call_id, type, identifier, value) VALUES (?, ?, ?, ?)`,
		callID, v.Type.String(), v.Identifier, v.Value)
	if err != nil {
		return fmt.Errorf("inserting variable %s: %w", v.Identifier, err)
	}
	return nil
}
