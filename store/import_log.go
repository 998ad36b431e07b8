package store

import "time"

// ImportLogEntry records one commit attempt of a spreadsheet import.
type ImportLogEntry struct {
	ID            int64     `json:"id"`
	Source        string    `json:"source"`
	Mode          string    `json:"mode"`
	Username      string    `json:"username"`
	TotalRows     int       `json:"total_rows"`
	CommittedRows int       `json:"committed_rows"`
	SkippedRows   int       `json:"skipped_rows"`
	FailedAtChunk int       `json:"failed_at_chunk,omitempty"` // 1-based, 0 when every chunk committed
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (db *DB) InsertImportLog(e *ImportLogEntry) (int64, error) {
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO import_log (source, mode, username, total_rows, committed_rows, skipped_rows, failed_at_chunk, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		e.Source, e.Mode, e.Username, e.TotalRows, e.CommittedRows, e.SkippedRows, e.FailedAtChunk, e.Error).Scan(&id)
	return id, err
}

// ListImportLog returns the most recent entries first.
func (db *DB) ListImportLog(limit int) ([]ImportLogEntry, error) {
	rows, err := db.Query(db.Q(`SELECT id, source, mode, username, total_rows, committed_rows, skipped_rows, failed_at_chunk, error, created_at FROM import_log ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []ImportLogEntry
	for rows.Next() {
		var e ImportLogEntry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.Source, &e.Mode, &e.Username, &e.TotalRows, &e.CommittedRows, &e.SkippedRows, &e.FailedAtChunk, &e.Error, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
