package state

import (
	"database/sql"
	"fmt"
	"time"

	"conductor/pkg/models"
)

// SyncLiveness reconciles running records against supervisor heartbeats:
// any running record whose heartbeat is older than staleAfter (or that
// never produced one after starting) is transitioned to failed exactly
// once. Returns the ids of the records it failed. Already-terminal
// records are untouched, so repeated calls are no-ops.
func (db *DB) SyncLiveness(staleAfter time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-staleAfter)

	rows, err := db.Query(`
		SELECT id, heartbeat_at, started_at FROM tasks WHERE status = ?
	`, string(models.TaskStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("sync liveness: %w", err)
	}

	var stale []string
	for rows.Next() {
		var id string
		var heartbeatAt, startedAt sql.NullString
		if err := rows.Scan(&id, &heartbeatAt, &startedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sync liveness: %w", err)
		}

		last := parseNullableTime(heartbeatAt)
		if last == nil {
			last = parseNullableTime(startedAt)
		}
		if last == nil || last.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sync liveness: %w", err)
	}

	failed := models.TaskStatusFailed
	reason := "supervisor heartbeat lost"
	var dead []string
	for _, id := range stale {
		err := db.UpdateTask(id, TaskUpdate{Status: &failed, Error: &reason})
		if err != nil {
			// Lost a race with a concurrent terminal update; the record
			// is final either way.
			continue
		}
		dead = append(dead, id)
	}
	return dead, nil
}
