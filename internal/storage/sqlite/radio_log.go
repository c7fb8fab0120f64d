package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/geofs-atc/pkg/logger"
)

// Speaker types
const (
	SpeakerATC   = "ATC"
	SpeakerPilot = "PILOT"
)

// Transmission is one archived radio call
type Transmission struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"timestamp"`
	SpeakerType string    `json:"speaker_type"`
	Station     string    `json:"station,omitempty"` // airport code for ATC calls
	Title       string    `json:"title"`
	Content     string    `json:"text"`
}

// RadioLog archives transmissions. Nothing read from here is ever fed back
// into a conversation.
type RadioLog struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRadioLog creates the radio log table on db
func NewRadioLog(db *sql.DB, log *logger.Logger) (*RadioLog, error) {
	r := &RadioLog{
		db:     db,
		logger: log.Named("sqlite-radio"),
	}
	if err := r.initDB(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RadioLog) initDB() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS transmissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMP NOT NULL,
			speaker_type TEXT NOT NULL,
			station TEXT,
			title TEXT,
			content TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transmissions table: %w", err)
	}

	_, err = r.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transmissions_created_at ON transmissions(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}
	return nil
}

// Append stores a transmission and returns its row id
func (r *RadioLog) Append(ctx context.Context, t Transmission) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO transmissions (created_at, speaker_type, station, title, content)
		VALUES (?, ?, ?, ?, ?)`,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		t.SpeakerType,
		t.Station,
		t.Title,
		t.Content,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transmission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// Recent returns the newest transmissions first
func (r *RadioLog) Recent(ctx context.Context, limit int) ([]Transmission, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, speaker_type, station, title, content
		FROM transmissions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transmissions: %w", err)
	}
	defer rows.Close()

	var out []Transmission
	for rows.Next() {
		var t Transmission
		var createdAt string
		var station, title sql.NullString
		if err := rows.Scan(&t.ID, &createdAt, &t.SpeakerType, &station, &title, &t.Content); err != nil {
			return nil, fmt.Errorf("failed to scan transmission: %w", err)
		}

		t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		t.Station = station.String
		t.Title = title.String
		out = append(out, t)
	}
	return out, rows.Err()
}
