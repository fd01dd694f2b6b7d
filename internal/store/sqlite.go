// Package store persists calls, their transcripts, and summary state in
// a local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/visavox/visavox/internal/transcript"
)

const (
	SummaryPending   = "pending"
	SummaryRunning   = "running"
	SummaryCompleted = "completed"
	SummaryFailed    = "failed"
)

// Call is one voice consultation from connect to hangup.
type Call struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Status          string     `json:"status"`
	Summary         string     `json:"summary"`
	SummaryStatus   string     `json:"summary_status"`
	CallerAudioPath string     `json:"caller_audio_path"`
	AgentAudioPath  string     `json:"agent_audio_path"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "visavox.db")
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
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			summary_status TEXT NOT NULL DEFAULT 'pending',
			caller_audio_path TEXT NOT NULL DEFAULT '',
			agent_audio_path TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create calls table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create turns table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS summary_requests (
			call_id TEXT NOT NULL,
			prompt_hash TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(call_id, prompt_hash)
		);
	`); err != nil {
		return fmt.Errorf("create summary_requests table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)"); err != nil {
		return fmt.Errorf("create calls index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_turns_call_id ON turns(call_id, id)"); err != nil {
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

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateCall(id string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("call id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO calls(id, started_at, status, summary_status) VALUES(?, ?, 'active', ?)`,
		id,
		startedAt.UTC().Format(time.RFC3339Nano),
		SummaryPending,
	)
	if err != nil {
		return fmt.Errorf("create call %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndCall(id string, endedAt time.Time, callerAudioPath, agentAudioPath string) error {
	res, err := s.db.Exec(
		`UPDATE calls SET ended_at = ?, status = 'ended', caller_audio_path = ?, agent_audio_path = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		callerAudioPath,
		agentAudioPath,
		id,
	)
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
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

func (s *SQLiteStore) AppendTurn(callID string, turn transcript.Turn, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO turns(call_id, speaker, text, timestamp) VALUES(?, ?, ?, ?)`,
		callID,
		string(turn.Speaker),
		strings.TrimSpace(turn.Text),
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append turn for call %s: %w", callID, err)
	}
	return nil
}

func (s *SQLiteStore) GetCallsByDate(date string) ([]Call, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, status, summary, summary_status, caller_audio_path, agent_audio_path
		 FROM calls
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanCalls(rows)
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

func (s *SQLiteStore) GetCall(id string) (Call, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, ended_at, status, summary, summary_status, caller_audio_path, agent_audio_path
		 FROM calls WHERE id = ?`,
		id,
	)

	var call Call
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&call.ID, &startedAt, &endedAt, &call.Status, &call.Summary, &call.SummaryStatus, &call.CallerAudioPath, &call.AgentAudioPath); err != nil {
		return Call{}, fmt.Errorf("query call %s: %w", id, err)
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Call{}, fmt.Errorf("parse call %s started_at: %w", id, err)
	}
	call.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Call{}, fmt.Errorf("parse call %s ended_at: %w", id, err)
		}
		call.EndedAt = &parsedEnd
	}

	return call, nil
}

func (s *SQLiteStore) GetTurns(callID string) ([]transcript.Turn, error) {
	rows, err := s.db.Query(
		`SELECT speaker, text FROM turns WHERE call_id = ? ORDER BY id ASC`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns for call %s: %w", callID, err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]transcript.Turn, 0, 32)
	for rows.Next() {
		var speaker, text string
		if err := rows.Scan(&speaker, &text); err != nil {
			return nil, fmt.Errorf("scan turn for call %s: %w", callID, err)
		}
		turns = append(turns, transcript.Turn{Speaker: transcript.Speaker(speaker), Text: text})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows for call %s: %w", callID, err)
	}

	return turns, nil
}

func (s *SQLiteStore) UpdateSummary(callID, summary, status string) error {
	res, err := s.db.Exec(
		`UPDATE calls SET summary = ?, summary_status = ? WHERE id = ?`,
		summary,
		status,
		callID,
	)
	if err != nil {
		return fmt.Errorf("update summary for call %s: %w", callID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update summary rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ClaimSummaryRequest records a (call, prompt) pair and reports whether
// this caller won the claim. Duplicate requests for the same transcript
// are filtered here so a summary is generated at most once.
func (s *SQLiteStore) ClaimSummaryRequest(callID, promptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO summary_requests(call_id, prompt_hash) VALUES(?, ?)`,
		callID,
		promptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim summary request for call %s: %w", callID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim summary rows affected: %w", err)
	}

	return rows > 0, nil
}

func scanCalls(rows *sql.Rows) ([]Call, error) {
	calls := make([]Call, 0, 16)
	for rows.Next() {
		var call Call
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&call.ID, &startedAt, &endedAt, &call.Status, &call.Summary, &call.SummaryStatus, &call.CallerAudioPath, &call.AgentAudioPath); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}

		parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		call.StartedAt = parsedStart

		if endedAt.Valid {
			parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse ended_at: %w", err)
			}
			call.EndedAt = &parsedEnd
		}

		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls rows: %w", err)
	}

	return calls, nil
}
