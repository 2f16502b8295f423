package queue

import (
	"database/sql"
	"time"
)

const recordColumns = "id, job_id, source_path, work_dir, status, exit_code, log_path, error_message, created_at, updated_at, finished_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id           int64
		jobID        string
		sourcePath   string
		workDir      string
		statusStr    string
		exitCode     sql.NullInt64
		logPath      sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&jobID,
		&sourcePath,
		&workDir,
		&statusStr,
		&exitCode,
		&logPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:           id,
		JobID:        jobID,
		SourcePath:   sourcePath,
		WorkDir:      workDir,
		Status:       Status(statusStr),
		LogPath:      logPath.String,
		ErrorMessage: errorMessage.String,
		CreatedAt:    parseTime(createdRaw),
		UpdatedAt:    parseTime(updatedRaw),
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	if finishedRaw.Valid {
		finished := parseTime(finishedRaw)
		rec.FinishedAt = &finished
	}
	return rec, nil
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
