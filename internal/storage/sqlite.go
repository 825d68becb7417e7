package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/carebridge-dev/carebridge/internal/transcript"
)

// Call is the persisted record of one media-stream session.
type Call struct {
	CallSID         string     `json:"call_sid"`
	StreamSID       string     `json:"stream_sid"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Status          string     `json:"status"`
	EmergencyReason string     `json:"emergency_reason"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "carebridge.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			call_sid TEXT PRIMARY KEY,
			stream_sid TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			emergency_reason TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create calls table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_sid TEXT NOT NULL,
			speaker TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY(call_sid) REFERENCES calls(call_sid) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create turns table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)"); err != nil {
		return fmt.Errorf("create calls index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_turns_call_sid ON turns(call_sid, sequence)"); err != nil {
		return fmt.Errorf("create turns index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateCall(callSID, streamSID string, startedAt time.Time) error {
	if strings.TrimSpace(callSID) == "" {
		return errors.New("call sid is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO calls(call_sid, stream_sid, started_at, status) VALUES(?, ?, ?, 'active')`,
		callSID,
		streamSID,
		startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create call %s: %w", callSID, err)
	}
	return nil
}

func (s *SQLiteStore) EndCall(callSID string, endedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE calls SET ended_at = ?, status = 'ended' WHERE call_sid = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		callSID,
	)
	if err != nil {
		return fmt.Errorf("end call %s: %w", callSID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end call rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) UpdateCallStatus(callSID, status, reason string) error {
	res, err := s.db.Exec(
		`UPDATE calls SET status = ?, emergency_reason = CASE WHEN ? != '' THEN ? ELSE emergency_reason END WHERE call_sid = ?`,
		status,
		reason,
		reason,
		callSID,
	)
	if err != nil {
		return fmt.Errorf("update status for call %s: %w", callSID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) AppendTurn(callSID string, turn transcript.Turn) error {
	_, err := s.db.Exec(
		`INSERT INTO turns(call_sid, speaker, sequence, text, timestamp) VALUES(?, ?, ?, ?, ?)`,
		callSID,
		string(turn.Speaker),
		turn.Sequence,
		strings.TrimSpace(turn.Text),
		turn.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append turn for call %s: %w", callSID, err)
	}
	return nil
}

func (s *SQLiteStore) GetCall(callSID string) (Call, error) {
	row := s.db.QueryRow(
		`SELECT call_sid, stream_sid, started_at, ended_at, status, emergency_reason FROM calls WHERE call_sid = ?`,
		callSID,
	)
	return scanCall(row)
}

func (s *SQLiteStore) GetCallsByDate(date string) ([]Call, error) {
	rows, err := s.db.Query(
		`SELECT call_sid, stream_sid, started_at, ended_at, status, emergency_reason
		 FROM calls
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	var calls []Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call rows: %w", err)
	}

	return calls, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM calls ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetTurns(callSID string) ([]transcript.Turn, error) {
	rows, err := s.db.Query(
		`SELECT speaker, sequence, text, timestamp
		 FROM turns
		 WHERE call_sid = ?
		 ORDER BY sequence ASC`,
		callSID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns for call %s: %w", callSID, err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]transcript.Turn, 0, 32)
	for rows.Next() {
		var turn transcript.Turn
		var speaker, ts string
		if err := rows.Scan(&speaker, &turn.Sequence, &turn.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan turn for call %s: %w", callSID, err)
		}
		turn.Speaker = transcript.Speaker(speaker)

		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse turn timestamp for call %s: %w", callSID, err)
		}
		turn.Timestamp = parsedTS

		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows for call %s: %w", callSID, err)
	}

	return turns, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var call Call
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&call.CallSID, &call.StreamSID, &startedAt, &endedAt, &call.Status, &call.EmergencyReason); err != nil {
		return Call{}, fmt.Errorf("scan call row: %w", err)
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Call{}, fmt.Errorf("parse call %s started_at: %w", call.CallSID, err)
	}
	call.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Call{}, fmt.Errorf("parse call %s ended_at: %w", call.CallSID, err)
		}
		call.EndedAt = &parsedEnd
	}

	return call, nil
}
