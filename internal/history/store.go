// Package history provides persistent storage for volume load records using
// SQLite.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// LoadStatus represents the state of a volume load.
type LoadStatus string

const (
	StatusLoading   LoadStatus = "loading"
	StatusCompleted LoadStatus = "completed"
	StatusFailed    LoadStatus = "failed"
)

// LoadRecord describes one volume load attempt.
type LoadRecord struct {
	ID          string     `json:"load_id"`
	ViewerID    string     `json:"viewer_id"`
	VolumeID    string     `json:"volume_id,omitempty"`
	Status      LoadStatus `json:"status"`
	SliceCount  int        `json:"slice_count"`
	PatientName string     `json:"patient_name,omitempty"`
	StudyDate   string     `json:"study_date,omitempty"`
	Modality    string     `json:"modality,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Store provides persistent storage for load records using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new SQLite-based history store.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS volume_loads (
		load_id TEXT PRIMARY KEY,
		viewer_id TEXT NOT NULL,
		volume_id TEXT DEFAULT '',
		status TEXT NOT NULL,
		slice_count INTEGER DEFAULT 0,
		patient_name TEXT DEFAULT '',
		study_date TEXT DEFAULT '',
		modality TEXT DEFAULT '',
		error TEXT DEFAULT '',
		created_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_volume_loads_viewer ON volume_loads(viewer_id);
	CREATE INDEX IF NOT EXISTS idx_volume_loads_status ON volume_loads(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateLoad records a new load with status=loading.
func (s *Store) CreateLoad(rec *LoadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO volume_loads (load_id, viewer_id, volume_id, status, slice_count, patient_name, study_date, modality, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.ViewerID,
		rec.VolumeID,
		string(rec.Status),
		rec.SliceCount,
		rec.PatientName,
		rec.StudyDate,
		rec.Modality,
		rec.Error,
		rec.CreatedAt.Format(time.RFC3339),
		nil,
	)
	return err
}

// FinishLoad updates a load record with its terminal status.
func (s *Store) FinishLoad(loadID string, status LoadStatus, volumeID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE volume_loads SET status = ?, volume_id = ?, error = ?, finished_at = ?
		WHERE load_id = ?
	`, string(status), volumeID, errMsg, time.Now().Format(time.RFC3339), loadID)
	return err
}

// MarkLoadingAsFailed marks any load left in the loading state as failed.
// Called on startup after an unclean shutdown.
func (s *Store) MarkLoadingAsFailed(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE volume_loads SET status = ?, error = ?, finished_at = ?
		WHERE status = ?
	`, string(StatusFailed), reason, time.Now().Format(time.RFC3339), string(StatusLoading))
	return err
}

// List returns the most recent load records for a viewer, newest first.
func (s *Store) List(viewerID string, limit int) ([]LoadRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT load_id, viewer_id, volume_id, status, slice_count, patient_name, study_date, modality, error, created_at, finished_at
		FROM volume_loads WHERE viewer_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, viewerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoadRecord
	for rows.Next() {
		var rec LoadRecord
		var status, createdAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ViewerID, &rec.VolumeID, &status, &rec.SliceCount,
			&rec.PatientName, &rec.StudyDate, &rec.Modality, &rec.Error, &createdAt, &finishedAt); err != nil {
			return nil, err
		}
		rec.Status = LoadStatus(status)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t
		}
		if finishedAt.Valid {
			if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
				rec.FinishedAt = &t
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
