package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"conductor/pkg/models"
)

// ErrTaskNotFound is returned when no record exists for the given id.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskFinal is returned when a mutation would alter a terminal
// record. Re-applying the same terminal status is not an error.
var ErrTaskFinal = errors.New("task record is final")

// ErrInvalidTransition is returned when a status update would violate
// the monotonic lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

const taskColumns = `id, project, description, mode, status, owner_id,
	current_agent, completed_agents, progress_percent, progress_eta_ms,
	cost, created_at, started_at, completed_at, heartbeat_at, error,
	retry_of, subtasks`

// CreateTask inserts a new task record. The record's CreatedAt is set
// if zero; the status defaults to pending if empty.
func (db *DB) CreateTask(rec *models.TaskRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("create task: missing id")
	}
	if rec.Status == "" {
		rec.Status = models.TaskStatusPending
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("create task: unknown status %q", rec.Status)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	completedAgents, err := json.Marshal(rec.CompletedAgents)
	if err != nil {
		return fmt.Errorf("encode completed agents: %w", err)
	}
	subtasks, err := json.Marshal(rec.Subtasks)
	if err != nil {
		return fmt.Errorf("encode subtasks: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Project, rec.Description, string(rec.Mode), string(rec.Status),
		rec.OwnerID, rec.CurrentAgent, string(completedAgents),
		rec.Progress.Percent, rec.Progress.ETA.Milliseconds(), rec.Cost,
		formatTime(rec.CreatedAt), formatNullableTime(rec.StartedAt),
		formatNullableTime(rec.CompletedAt), formatNullableTime(rec.HeartbeatAt),
		rec.Error, rec.RetryOf, string(subtasks))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task record by id.
func (db *DB) GetTask(id string) (*models.TaskRecord, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	rec, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return rec, nil
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Project string
	Status  models.TaskStatus
}

// ListTasks returns records matching the filter, newest first.
func (db *DB) ListTasks(filter TaskFilter) ([]*models.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if filter.Project != "" {
		query += " AND project = ?"
		args = append(args, filter.Project)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var records []*models.TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TaskUpdate is a partial mutation of a task record. Nil fields are
// left untouched.
type TaskUpdate struct {
	Status          *models.TaskStatus
	OwnerID         *string
	CurrentAgent    *string
	CompletedAgents []string
	Progress        *models.Progress
	Cost            *float64
	Error           *string
	Subtasks        []models.SubtaskResult
}

// UpdateTask is the sole task-record mutator. Terminal records accept
// only a repeat of their own status, which is a no-op; any other
// mutation of a terminal record fails with ErrTaskFinal. Status changes
// must follow the monotonic lifecycle. Transitioning to running stamps
// StartedAt; transitioning to a terminal status stamps CompletedAt.
func (db *DB) UpdateTask(id string, upd TaskUpdate) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var current string
		row := tx.QueryRow("SELECT status FROM tasks WHERE id = ?", id)
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("update task %s: %w", id, ErrTaskNotFound)
			}
			return fmt.Errorf("update task %s: %w", id, err)
		}
		status := models.TaskStatus(current)

		if status.Terminal() {
			if upd.Status != nil && *upd.Status == status {
				return nil // idempotent terminal re-apply
			}
			return fmt.Errorf("update task %s: %w", id, ErrTaskFinal)
		}

		set := ""
		var args []any
		add := func(col string, v any) {
			if set != "" {
				set += ", "
			}
			set += col + " = ?"
			args = append(args, v)
		}

		if upd.Status != nil {
			next := *upd.Status
			if !next.Valid() {
				return fmt.Errorf("update task %s: unknown status %q", id, next)
			}
			if !status.CanTransition(next) {
				return fmt.Errorf("update task %s: %s -> %s: %w", id, status, next, ErrInvalidTransition)
			}
			if next != status {
				add("status", string(next))
				now := formatTime(time.Now())
				if next == models.TaskStatusRunning {
					add("started_at", now)
					add("heartbeat_at", now)
				}
				if next.Terminal() {
					add("completed_at", now)
				}
			}
		}
		if upd.OwnerID != nil {
			add("owner_id", *upd.OwnerID)
		}
		if upd.CurrentAgent != nil {
			add("current_agent", *upd.CurrentAgent)
		}
		if upd.CompletedAgents != nil {
			encoded, err := json.Marshal(upd.CompletedAgents)
			if err != nil {
				return fmt.Errorf("encode completed agents: %w", err)
			}
			add("completed_agents", string(encoded))
		}
		if upd.Progress != nil {
			add("progress_percent", upd.Progress.Percent)
			add("progress_eta_ms", upd.Progress.ETA.Milliseconds())
		}
		if upd.Cost != nil {
			add("cost", *upd.Cost)
		}
		if upd.Error != nil {
			add("error", *upd.Error)
		}
		if upd.Subtasks != nil {
			encoded, err := json.Marshal(upd.Subtasks)
			if err != nil {
				return fmt.Errorf("encode subtasks: %w", err)
			}
			add("subtasks", string(encoded))
		}

		if set == "" {
			return nil
		}

		args = append(args, id)
		if _, err := tx.Exec("UPDATE tasks SET "+set+" WHERE id = ?", args...); err != nil {
			return fmt.Errorf("update task %s: %w", id, err)
		}
		return nil
	})
}

// Heartbeat stamps the record's liveness signal. Heartbeats on
// non-running records are ignored.
func (db *DB) Heartbeat(id string) error {
	_, err := db.Exec(`
		UPDATE tasks SET heartbeat_at = ? WHERE id = ? AND status = ?
	`, formatTime(time.Now()), id, string(models.TaskStatusRunning))
	if err != nil {
		return fmt.Errorf("heartbeat task %s: %w", id, err)
	}
	return nil
}

// PurgeOldTasks deletes terminal records completed before the cutoff.
// Returns the number of records removed.
func (db *DB) PurgeOldTasks(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	res, err := db.Exec(`
		DELETE FROM tasks
		WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?
	`, string(models.TaskStatusCompleted), string(models.TaskStatusFailed),
		string(models.TaskStatusCancelled), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	return res.RowsAffected()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.TaskRecord, error) {
	var rec models.TaskRecord
	var mode, status, createdAt string
	var ownerID, currentAgent, completedAgents sql.NullString
	var startedAt, completedAt, heartbeatAt sql.NullString
	var taskErr, retryOf, subtasks sql.NullString
	var etaMS int64

	err := s.Scan(&rec.ID, &rec.Project, &rec.Description, &mode, &status,
		&ownerID, &currentAgent, &completedAgents,
		&rec.Progress.Percent, &etaMS, &rec.Cost,
		&createdAt, &startedAt, &completedAt, &heartbeatAt,
		&taskErr, &retryOf, &subtasks)
	if err != nil {
		return nil, err
	}

	rec.Mode = models.ExecutionMode(mode)
	rec.Status = models.TaskStatus(status)
	rec.OwnerID = ownerID.String
	rec.CurrentAgent = currentAgent.String
	rec.Progress.ETA = time.Duration(etaMS) * time.Millisecond
	rec.Error = taskErr.String
	rec.RetryOf = retryOf.String

	rec.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.StartedAt = parseNullableTime(startedAt)
	rec.CompletedAt = parseNullableTime(completedAt)
	rec.HeartbeatAt = parseNullableTime(heartbeatAt)

	if completedAgents.Valid && completedAgents.String != "" {
		if err := json.Unmarshal([]byte(completedAgents.String), &rec.CompletedAgents); err != nil {
			return nil, fmt.Errorf("decode completed agents: %w", err)
		}
	}
	if subtasks.Valid && subtasks.String != "" {
		if err := json.Unmarshal([]byte(subtasks.String), &rec.Subtasks); err != nil {
			return nil, fmt.Errorf("decode subtasks: %w", err)
		}
	}
	return &rec, nil
}
